package bundler

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// KindPaths locates the artifacts of one kind.
type KindPaths struct {
	// BuildPath is the output directory, relative to the public root.
	BuildPath string

	// URLPath is the URL path BuildPath is served from. Defaults to
	// BuildPath.
	URLPath string
}

// AssetsConfig configures the Assets facade.
type AssetsConfig struct {
	PublicRoot string

	// Environment is the current deployment environment. When it appears
	// in IgnoreEnvironments nothing is built and source files are
	// referenced one by one.
	Environment        string
	IgnoreEnvironments []string

	// BaseURL prefixes every rendered URL. Empty renders root-relative
	// URLs.
	BaseURL string

	// ReverseSort reverses the lexical order of files discovered by the
	// *Dir methods.
	ReverseSort bool

	DisableModTime bool
	HashSalt       string

	Stylesheet KindPaths
	Script     KindPaths
}

// BuildResult describes the outcome of one facade call.
type BuildResult struct {
	Kind     string
	Inputs   []string // root-relative references, in order
	Built    bool     // a fresh artifact was written
	Filename string   // artifact name, empty when building is disabled
	Path     string   // artifact location on disk
	URL      string   // public URL of the artifact
	Digest   string   // hash of the artifact bytes
	BuiltAt  time.Time
	Markup   string // tags to embed
}

// Assets is the host-facing entry point. Each call builds (or reuses) one
// bundle and returns the markup referencing it.
type Assets struct {
	cfg      AssetsConfig
	options  []Option
	settings settings
	baseURL  string
}

// NewAssets creates the facade. options are passed on to every Provider it
// creates.
func NewAssets(cfg AssetsConfig, options ...Option) *Assets {
	return &Assets{
		cfg:      cfg,
		options:  options,
		settings: newSettings(options),
		baseURL:  cfg.BaseURL,
	}
}

// WithBaseURL returns a copy of the facade rendering URLs under baseURL.
func (a *Assets) WithBaseURL(baseURL string) *Assets {
	c := *a
	c.baseURL = baseURL
	return &c
}

// Enabled reports whether bundles are built in the current environment.
func (a *Assets) Enabled() bool {
	return !slices.Contains(a.cfg.IgnoreEnvironments, a.cfg.Environment)
}

// Stylesheet bundles files and returns the <link> markup.
func (a *Assets) Stylesheet(ctx context.Context, files []string, attrs Attributes) (string, error) {
	return a.markup(a.Build(ctx, Stylesheet, files, attrs))
}

// Javascript bundles files and returns the <script> markup.
func (a *Assets) Javascript(ctx context.Context, files []string, attrs Attributes) (string, error) {
	return a.markup(a.Build(ctx, Script, files, attrs))
}

// StylesheetDir bundles every .css file below dir.
func (a *Assets) StylesheetDir(ctx context.Context, dir string, attrs Attributes) (string, error) {
	return a.markup(a.BuildDir(ctx, Stylesheet, dir, attrs))
}

// JavascriptDir bundles every .js file below dir.
func (a *Assets) JavascriptDir(ctx context.Context, dir string, attrs Attributes) (string, error) {
	return a.markup(a.BuildDir(ctx, Script, dir, attrs))
}

func (a *Assets) markup(res *BuildResult, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return res.Markup, nil
}

// BuildDir bundles every file of kind found below dir.
func (a *Assets) BuildDir(ctx context.Context, kind Kind, dir string, attrs Attributes) (*BuildResult, error) {
	files, err := a.DirFiles(kind, dir)
	if err != nil {
		return nil, err
	}
	return a.Build(ctx, kind, files, attrs)
}

// Build bundles files as kind. In an ignored environment it only renders
// one tag per source file.
func (a *Assets) Build(ctx context.Context, kind Kind, files []string, attrs Attributes) (*BuildResult, error) {
	p := New(kind, Config{
		PublicRoot:     a.cfg.PublicRoot,
		DisableModTime: a.cfg.DisableModTime,
		HashSalt:       a.cfg.HashSalt,
	}, a.options...)
	if err := p.Add(files...); err != nil {
		return nil, err
	}

	res := &BuildResult{Kind: kind.Name}
	for _, file := range p.Files() {
		res.Inputs = append(res.Inputs, relative(p.root, file))
	}

	if !a.Enabled() {
		res.Markup = p.Tags(a.baseURL, attrs)
		return res, nil
	}

	paths := a.paths(kind)
	built, err := p.Make(ctx, paths.BuildPath)
	if err != nil {
		return nil, err
	}

	res.Built = built
	res.Filename = p.Filename()
	res.Path = filepath.Join(p.outputPath(paths.BuildPath), res.Filename)
	res.URL = joinURL(a.baseURL, path.Join(paths.URLPath, res.Filename))
	res.BuiltAt = a.settings.nowFunc()
	res.Markup = p.Tag(res.URL, attrs)

	digest, err := digestFile(a.settings.fs, a.settings.hashFunc, res.Path)
	if err != nil {
		return nil, newError("digest", res.Path, ErrFileNotFound, err)
	}
	res.Digest = digest
	return res, nil
}

// DirFiles lists the files of kind below dir (relative to the public
// root), sorted lexically, or in reverse when ReverseSort is set. The
// returned references are relative to the public root.
func (a *Assets) DirFiles(kind Kind, dir string) ([]string, error) {
	fs := a.settings.fs
	root := cleanRoot(a.cfg.PublicRoot)
	base := resolve(root, dir)

	exists, err := afero.DirExists(fs, base)
	if err != nil {
		return nil, newError("scan", base, ErrFileNotFound, err)
	}
	if !exists {
		return nil, newError("scan", base, ErrFileNotFound, nil)
	}

	var files []string
	err = afero.Walk(fs, base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), kind.Extension) {
			return nil
		}
		files = append(files, relative(root, path))
		return nil
	})
	if err != nil {
		return nil, newError("scan", base, ErrFileNotFound, err)
	}

	sort.Strings(files)
	if a.cfg.ReverseSort {
		slices.Reverse(files)
	}
	return files, nil
}

func (a *Assets) paths(kind Kind) KindPaths {
	paths := a.cfg.Script
	if kind.Name == Stylesheet.Name {
		paths = a.cfg.Stylesheet
	}
	if paths.URLPath == "" {
		paths.URLPath = filepath.ToSlash(paths.BuildPath)
	}
	return paths
}
