package bundler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Config is the build configuration of a Provider. It is fixed at
// construction.
type Config struct {
	// PublicRoot is the directory local references and output
	// directories are resolved against. Empty means the working directory.
	PublicRoot string

	// DisableModTime drops the modification time sum from artifact names.
	DisableModTime bool

	// HashSalt is appended to the identity before hashing. Changing it
	// renames every artifact.
	HashSalt string
}

// Provider bundles the references of one asset kind into a single
// fingerprinted artifact.
type Provider struct {
	settings
	kind     Kind
	cfg      Config
	root     string
	minifier Minifier
	fetcher  *fetcher
	store    *artifacts

	mu       sync.Mutex
	files    []string // resolved references, registration order
	appended string
	filename string
}

// New creates a provider for kind.
func New(kind Kind, cfg Config, options ...Option) *Provider {
	s := newSettings(options)

	minifier := s.minifier
	if minifier == nil {
		minifier = Passthrough
		if kind.NewMinifier != nil {
			minifier = kind.NewMinifier()
		}
	}

	return &Provider{
		settings: s,
		kind:     kind,
		cfg:      cfg,
		root:     cleanRoot(cfg.PublicRoot),
		minifier: minifier,
		fetcher: &fetcher{
			fs:      s.fs,
			client:  s.client,
			headers: s.headers,
			logger:  s.logger,
		},
		store: &artifacts{
			fs:     s.fs,
			logger: s.logger,
			gzip:   s.gzip,
			zstd:   s.zstd,
		},
	}
}

// NewScript creates a JavaScript provider.
func NewScript(cfg Config, options ...Option) *Provider {
	return New(Script, cfg, options...)
}

// NewStylesheet creates a stylesheet provider.
func NewStylesheet(cfg Config, options ...Option) *Provider {
	return New(Stylesheet, cfg, options...)
}

// Kind returns the asset kind the provider builds.
func (p *Provider) Kind() Kind {
	return p.kind
}

// Add registers one or more references, preserving order. Local references
// are resolved against the public root and must exist. Remote references
// are accepted as-is and only checked when the bundle is built.
func (p *Provider) Add(refs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, ref := range refs {
		file := resolve(p.root, ref)
		if !IsRemote(file) {
			if err := p.checkLocal(file); err != nil {
				if !p.accumulateErrors {
					return err
				}
				errs = append(errs, err)
				continue
			}
		}
		p.files = append(p.files, file)
	}
	return newValidationError(errs)
}

func (p *Provider) checkLocal(file string) error {
	exists, err := afero.Exists(p.fs, file)
	if err != nil {
		return newError("add", file, ErrFileNotFound, err)
	}
	if !exists {
		return newError("add", file, ErrFileNotFound, nil)
	}
	return nil
}

// Count returns the number of registered references.
func (p *Provider) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

// Files returns the registered references in registration order, local ones
// resolved against the public root.
func (p *Provider) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.files...)
}

// Make builds the bundle into outputDir, which is relative to the public
// root. It returns false without touching anything when an artifact with
// the same fingerprint already exists, and true after a fresh build.
func (p *Provider) Make(ctx context.Context, outputDir string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := p.outputPath(outputDir)
	logger := p.logger.With("kind", p.kind.Name, "dir", dir)

	if err := p.store.checkDirectory(dir); err != nil {
		return false, err
	}

	identity := Identity(p.hashFunc, p.root, p.files, p.cfg.HashSalt)
	var modTime int64
	if !p.cfg.DisableModTime {
		var err error
		modTime, err = aggregateModTime(p.fs, p.hashFunc, p.headers.UserAgent, p.files)
		if err != nil {
			return false, err
		}
	}
	name := artifactName(identity, modTime, !p.cfg.DisableModTime, p.kind.Extension)
	p.filename = name

	if p.store.alreadyBuilt(dir, name) {
		logger.Debug("bundle already built", "file", name)
		return false, nil
	}

	appended, err := p.aggregate(ctx)
	if err != nil {
		return false, err
	}
	p.appended = appended

	minified, err := p.minifier.Minify(appended)
	if err != nil {
		return false, err
	}

	removed, err := p.store.purgeStale(dir, identity)
	if err != nil {
		return false, err
	}
	if err := p.store.write(dir, name, []byte(minified)); err != nil {
		return false, err
	}

	logger.Info("bundle built",
		"file", name,
		"inputs", len(p.files),
		"bytes", len(minified),
		"purged", removed,
	)
	return true, nil
}

// aggregate fetches every reference, applies the kind transform and
// terminates each file with exactly one newline. Fetches may run
// concurrently; the result always follows registration order.
func (p *Provider) aggregate(ctx context.Context) (string, error) {
	contents := make([][]byte, len(p.files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, file := range p.files {
		g.Go(func() error {
			content, err := p.fetcher.fetch(gctx, file)
			if err != nil {
				return err
			}
			if p.kind.Transform != nil {
				content = p.kind.Transform(folder(p.root, file), content)
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, content := range contents {
		buf.Write(content)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func (p *Provider) outputPath(outputDir string) string {
	if p.root == "" {
		return filepath.Clean(outputDir)
	}
	return filepath.Join(p.root, outputDir)
}

// Tag renders the kind's markup for a single URL.
func (p *Provider) Tag(url string, attrs Attributes) string {
	return p.kind.Render(url, attrs)
}

// Tags renders one tag per registered reference. Local references are
// served from baseURL by their root-relative path; remote ones are
// referenced directly.
func (p *Provider) Tags(baseURL string, attrs Attributes) string {
	p.mu.Lock()
	files := append([]string(nil), p.files...)
	p.mu.Unlock()

	var html strings.Builder
	for _, file := range files {
		url := file
		if !IsRemote(file) {
			url = joinURL(baseURL, relative(p.root, file))
		}
		html.WriteString(p.Tag(url, attrs))
	}
	return html.String()
}

// Appended returns the aggregated, unminified content of the last fresh
// build.
func (p *Provider) Appended() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.appended
}

// Filename returns the artifact name computed by the last Make.
func (p *Provider) Filename() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filename
}

// String describes the provider for logs.
func (p *Provider) String() string {
	return fmt.Sprintf("%s provider (%d files)", p.kind.Name, p.Count())
}
