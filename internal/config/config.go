package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/gophersatwork/bundler"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig names the config file when no --config flag is given.
	EnvConfig = "BUNDLER_CONFIG"

	// EnvEnvironment selects the active environment when no --env flag is
	// given.
	EnvEnvironment = "BUNDLER_ENV"
)

// ErrNoConfig is returned by Load when neither a path nor BUNDLER_CONFIG is
// set.
var ErrNoConfig = errors.New(EnvConfig + " environment variable not set; " +
	"set it to the path of your bundler.yaml config file, or use --config flag")

// Config is the bundler command configuration.
type Config struct {
	// Environment is the active deployment environment.
	Environment string `yaml:"environment"`

	// PublicRoot is the directory sources and build paths are relative to.
	PublicRoot string `yaml:"public_root"`

	// BaseURL prefixes every rendered URL.
	BaseURL string `yaml:"base_url"`

	// IgnoreEnvironments lists environments in which nothing is built.
	IgnoreEnvironments []string `yaml:"ignore_environments"`

	// ReverseSort reverses the order of files found in bundle directories.
	ReverseSort bool `yaml:"reverse_sort"`

	DisableModTime bool   `yaml:"disable_mtime"`
	HashSalt       string `yaml:"hash_salt"`

	// Hash selects the fingerprint hash: xxhash, md5, sha256 or blake3.
	Hash string `yaml:"hash"`

	Stylesheet PathsConfig `yaml:"stylesheet"`
	Script     PathsConfig `yaml:"script"`

	Remote      RemoteConfig      `yaml:"remote"`
	Precompress PrecompressConfig `yaml:"precompress"`

	// Manifest is where the build manifest is written, relative to the
	// public root unless absolute. Empty disables the manifest.
	Manifest string `yaml:"manifest"`

	Publish PublishConfig `yaml:"publish"`

	Bundles []BundleConfig `yaml:"bundles"`

	// Environments holds per-environment overrides, applied after the base
	// config is loaded.
	Environments map[string]*Overrides `yaml:"environments,omitempty"`
}

// PathsConfig locates the artifacts of one asset kind.
type PathsConfig struct {
	BuildPath string `yaml:"build_path"`
	URLPath   string `yaml:"url_path"`
}

// RemoteConfig configures fetching of remote references.
type RemoteConfig struct {
	// Timeout bounds each fetch. Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency is the number of references fetched at once. Default: 1
	Concurrency int `yaml:"concurrency"`

	// InsecureSkipVerify accepts any TLS certificate.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	UserAgent      string `yaml:"user_agent"`
	Accept         string `yaml:"accept"`
	AcceptLanguage string `yaml:"accept_language"`
}

// PrecompressConfig selects the precompressed copies written next to each
// artifact.
type PrecompressConfig struct {
	Gzip bool `yaml:"gzip"`
	Zstd bool `yaml:"zstd"`
}

// PublishConfig configures uploads to S3-compatible object storage.
type PublishConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether a bucket is configured.
func (p PublishConfig) Enabled() bool {
	return p.Bucket != ""
}

// BundleConfig declares one bundle.
type BundleConfig struct {
	Name string `yaml:"name"`

	// Kind is script (js) or stylesheet (css).
	Kind string `yaml:"kind"`

	// Files lists references in bundle order. Mutually exclusive with Dir.
	Files []string `yaml:"files"`

	// Dir bundles every file of the kind below a directory.
	Dir string `yaml:"dir"`

	Attributes []AttributeConfig `yaml:"attributes"`
}

// AttributeConfig is one tag attribute. A missing value renders the bare
// name; false omits the attribute.
type AttributeConfig struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// Overrides contains the fields that can be overridden per environment.
// Empty strings and nil pointers leave the base value alone.
type Overrides struct {
	PublicRoot     string                `yaml:"public_root,omitempty"`
	BaseURL        string                `yaml:"base_url,omitempty"`
	HashSalt       string                `yaml:"hash_salt,omitempty"`
	Manifest       string                `yaml:"manifest,omitempty"`
	DisableModTime *bool                 `yaml:"disable_mtime,omitempty"`
	Stylesheet     *PathsConfig          `yaml:"stylesheet,omitempty"`
	Script         *PathsConfig          `yaml:"script,omitempty"`
	Precompress    *PrecompressOverrides `yaml:"precompress,omitempty"`
	Publish        *PublishOverrides     `yaml:"publish,omitempty"`
}

// PrecompressOverrides holds per-environment sidecar switches. Unset fields
// keep the base value.
type PrecompressOverrides struct {
	Gzip *bool `yaml:"gzip,omitempty"`
	Zstd *bool `yaml:"zstd,omitempty"`
}

// PublishOverrides holds per-environment publishing settings. Empty strings
// and an unset UseSSL keep the base value.
type PublishOverrides struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    *bool  `yaml:"use_ssl,omitempty"`
}

// Default returns the configuration used as a base before the file is
// applied.
func Default() *Config {
	return &Config{
		Environment: "production",
		PublicRoot:  "public",
		Hash:        "xxhash",
		Stylesheet:  PathsConfig{BuildPath: "build/css"},
		Script:      PathsConfig{BuildPath: "build/js"},
		Remote: RemoteConfig{
			Timeout:     bundler.DefaultTimeout,
			Concurrency: 1,
		},
		Manifest: "build/manifest.json",
	}
}

// Load reads the configuration from path, or from BUNDLER_CONFIG when path
// is empty. environment overrides the environment named in the file; when
// empty BUNDLER_ENV is consulted.
func Load(path, environment string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return nil, ErrNoConfig
	}

	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data, environment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults, applies the overrides of
// the active environment, expands variables and validates the result.
func Parse(data []byte, environment string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if environment == "" {
		environment = os.Getenv(EnvEnvironment)
	}
	if environment != "" {
		cfg.Environment = environment
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	overrides := c.Environments[c.Environment]
	if overrides == nil {
		return
	}

	if overrides.PublicRoot != "" {
		c.PublicRoot = overrides.PublicRoot
	}
	if overrides.BaseURL != "" {
		c.BaseURL = overrides.BaseURL
	}
	if overrides.HashSalt != "" {
		c.HashSalt = overrides.HashSalt
	}
	if overrides.Manifest != "" {
		c.Manifest = overrides.Manifest
	}
	if overrides.DisableModTime != nil {
		c.DisableModTime = *overrides.DisableModTime
	}
	if overrides.Stylesheet != nil {
		mergePaths(&c.Stylesheet, overrides.Stylesheet)
	}
	if overrides.Script != nil {
		mergePaths(&c.Script, overrides.Script)
	}
	if overrides.Precompress != nil {
		mergePrecompress(&c.Precompress, overrides.Precompress)
	}
	if overrides.Publish != nil {
		mergePublish(&c.Publish, overrides.Publish)
	}
}

func mergePaths(dst, src *PathsConfig) {
	if src.BuildPath != "" {
		dst.BuildPath = src.BuildPath
	}
	if src.URLPath != "" {
		dst.URLPath = src.URLPath
	}
}

func mergePrecompress(dst *PrecompressConfig, src *PrecompressOverrides) {
	if src.Gzip != nil {
		dst.Gzip = *src.Gzip
	}
	if src.Zstd != nil {
		dst.Zstd = *src.Zstd
	}
}

func mergePublish(dst *PublishConfig, src *PublishOverrides) {
	if src.Endpoint != "" {
		dst.Endpoint = src.Endpoint
	}
	if src.Region != "" {
		dst.Region = src.Region
	}
	if src.AccessKey != "" {
		dst.AccessKey = src.AccessKey
	}
	if src.SecretKey != "" {
		dst.SecretKey = src.SecretKey
	}
	if src.Bucket != "" {
		dst.Bucket = src.Bucket
	}
	if src.Prefix != "" {
		dst.Prefix = src.Prefix
	}
	if src.UseSSL != nil {
		dst.UseSSL = *src.UseSSL
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths,
// URLs and credentials.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.PublicRoot = expandVars(c.PublicRoot, vars)
	vars["PUBLIC_ROOT"] = c.PublicRoot // Update for dependent paths.

	c.BaseURL = expandVars(c.BaseURL, vars)
	c.HashSalt = expandVars(c.HashSalt, vars)
	c.Manifest = expandVars(c.Manifest, vars)
	c.Stylesheet.BuildPath = expandVars(c.Stylesheet.BuildPath, vars)
	c.Stylesheet.URLPath = expandVars(c.Stylesheet.URLPath, vars)
	c.Script.BuildPath = expandVars(c.Script.BuildPath, vars)
	c.Script.URLPath = expandVars(c.Script.URLPath, vars)
	c.Remote.UserAgent = expandVars(c.Remote.UserAgent, vars)

	c.Publish.Endpoint = expandVars(c.Publish.Endpoint, vars)
	c.Publish.Region = expandVars(c.Publish.Region, vars)
	c.Publish.AccessKey = expandVars(c.Publish.AccessKey, vars)
	c.Publish.SecretKey = expandVars(c.Publish.SecretKey, vars)
	c.Publish.Bucket = expandVars(c.Publish.Bucket, vars)
	c.Publish.Prefix = expandVars(c.Publish.Prefix, vars)

	for i := range c.Bundles {
		b := &c.Bundles[i]
		b.Dir = expandVars(b.Dir, vars)
		for j := range b.Files {
			b.Files[j] = expandVars(b.Files[j], vars)
		}
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.PublicRoot == "" {
		errs = append(errs, fmt.Errorf("public_root is required"))
	}
	if c.Stylesheet.BuildPath == "" {
		errs = append(errs, fmt.Errorf("stylesheet.build_path is required"))
	}
	if c.Script.BuildPath == "" {
		errs = append(errs, fmt.Errorf("script.build_path is required"))
	}
	if _, err := bundler.HashFuncByName(c.Hash); err != nil {
		errs = append(errs, fmt.Errorf("hash: %w", err))
	}
	if c.Remote.Timeout < 0 {
		errs = append(errs, fmt.Errorf("remote.timeout must not be negative"))
	}
	if c.Remote.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("remote.concurrency must be at least 1"))
	}

	seen := make(map[string]bool, len(c.Bundles))
	for i, b := range c.Bundles {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("bundles[%d].name is required", i))
		} else if seen[b.Name] {
			errs = append(errs, fmt.Errorf("bundles[%d]: duplicate name %q", i, b.Name))
		}
		seen[b.Name] = true

		if _, err := bundler.KindByName(b.Kind); err != nil {
			errs = append(errs, fmt.Errorf("bundles[%d].kind: %w", i, err))
		}
		if (len(b.Files) == 0) == (b.Dir == "") {
			errs = append(errs, fmt.Errorf("bundles[%d]: exactly one of files or dir is required", i))
		}
		for j, attr := range b.Attributes {
			if attr.Name == "" {
				errs = append(errs, fmt.Errorf("bundles[%d].attributes[%d].name is required", i, j))
			}
		}
	}

	if c.Publish.Enabled() {
		if c.Publish.Endpoint == "" {
			errs = append(errs, fmt.Errorf("publish.endpoint is required when publish.bucket is set"))
		}
		if c.Publish.AccessKey == "" || c.Publish.SecretKey == "" {
			errs = append(errs, fmt.Errorf("publish.access_key and publish.secret_key are required when publish.bucket is set"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Ignored reports whether nothing is built in the active environment.
func (c *Config) Ignored() bool {
	return slices.Contains(c.IgnoreEnvironments, c.Environment)
}

// ManifestPath returns where the manifest is written, or "" when disabled.
func (c *Config) ManifestPath() string {
	if c.Manifest == "" || filepath.IsAbs(c.Manifest) {
		return c.Manifest
	}
	return filepath.Join(c.PublicRoot, c.Manifest)
}

// AssetsConfig converts the configuration to the facade configuration.
func (c *Config) AssetsConfig() bundler.AssetsConfig {
	return bundler.AssetsConfig{
		PublicRoot:         c.PublicRoot,
		Environment:        c.Environment,
		IgnoreEnvironments: c.IgnoreEnvironments,
		BaseURL:            c.BaseURL,
		ReverseSort:        c.ReverseSort,
		DisableModTime:     c.DisableModTime,
		HashSalt:           c.HashSalt,
		Stylesheet:         bundler.KindPaths{BuildPath: c.Stylesheet.BuildPath, URLPath: c.Stylesheet.URLPath},
		Script:             bundler.KindPaths{BuildPath: c.Script.BuildPath, URLPath: c.Script.URLPath},
	}
}

// Options converts the hash, remote and precompression settings to bundler
// options.
func (c *Config) Options() ([]bundler.Option, error) {
	hashFunc, err := bundler.HashFuncByName(c.Hash)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: c.Remote.Timeout}
	if c.Remote.InsecureSkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.Transport = transport
	}

	return []bundler.Option{
		bundler.WithHashFunc(hashFunc),
		bundler.WithHTTPClient(client),
		bundler.WithHeaders(bundler.RequestHeaders{
			UserAgent:      c.Remote.UserAgent,
			Accept:         c.Remote.Accept,
			AcceptLanguage: c.Remote.AcceptLanguage,
		}),
		bundler.WithConcurrency(c.Remote.Concurrency),
		bundler.WithPrecompression(c.Precompress.Gzip, c.Precompress.Zstd),
	}, nil
}

// KindOf returns the asset kind of the bundle.
func (b BundleConfig) KindOf() (bundler.Kind, error) {
	return bundler.KindByName(b.Kind)
}

// Attrs converts the configured attributes, keeping their order.
func (b BundleConfig) Attrs() bundler.Attributes {
	attrs := make(bundler.Attributes, 0, len(b.Attributes))
	for _, a := range b.Attributes {
		if a.Value == nil {
			attrs = append(attrs, bundler.Flag(a.Name))
			continue
		}
		attrs = append(attrs, bundler.Attr{Key: a.Name, Value: a.Value})
	}
	return attrs
}
