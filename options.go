package bundler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"
)

// DefaultTimeout bounds a single remote fetch when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Option configures a Provider or an Assets facade.
type Option func(*settings)

// settings holds everything a Provider needs beyond its Config.
type settings struct {
	fs               afero.Fs
	hashFunc         HashFunc
	nowFunc          NowFunc
	logger           *slog.Logger
	client           *http.Client
	timeout          time.Duration
	headers          RequestHeaders
	minifier         Minifier
	concurrency      int
	accumulateErrors bool
	gzip             bool
	zstd             bool
}

func newSettings(options []Option) settings {
	s := settings{
		fs:          afero.NewOsFs(),
		hashFunc:    defaultHashFunc,
		nowFunc:     time.Now,
		logger:      slog.New(slog.DiscardHandler),
		timeout:     DefaultTimeout,
		concurrency: 1,
	}
	for _, option := range options {
		option(&s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}
	return s
}

// WithFs sets a custom filesystem.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	p := bundler.NewScript(cfg, bundler.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(s *settings) {
		s.fs = fs
	}
}

// WithHashFunc sets the hash used for artifact names.
// The default is xxHash64. md5.New hashes with the historical algorithm, but
// references are hashed without a leading slash ("js/a.js", not "/js/a.js"),
// so the names do not match ones produced by older tooling.
//
// Note: Changing the hash function renames every artifact on the next build.
func WithHashFunc(hashFunc HashFunc) Option {
	return func(s *settings) {
		s.hashFunc = hashFunc
	}
}

// WithNowFunc sets a custom time function.
// This is primarily useful for testing with deterministic timestamps.
func WithNowFunc(nowFunc NowFunc) Option {
	return func(s *settings) {
		s.nowFunc = nowFunc
	}
}

// WithLogger sets the structured logger. Logging is discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithHTTPClient sets the client used for remote references. When set, the
// value passed to WithTimeout is ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		s.client = client
	}
}

// WithTimeout bounds each remote fetch. Defaults to DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.timeout = timeout
	}
}

// WithHeaders sets the headers forwarded to remote fetches. Hosts usually
// capture them once from the incoming request with HeadersFromRequest.
func WithHeaders(headers RequestHeaders) Option {
	return func(s *settings) {
		s.headers = headers
	}
}

// WithMinifier replaces the kind's default minifier.
func WithMinifier(m Minifier) Option {
	return func(s *settings) {
		s.minifier = m
	}
}

// WithAccumulateErrors makes Add validate every reference it is given and
// report all missing files together in a ValidationError, instead of
// stopping at the first one.
func WithAccumulateErrors() Option {
	return func(s *settings) {
		s.accumulateErrors = true
	}
}

// WithPrecompression writes precompressed copies next to every fresh
// artifact: <name>.gz when gzip is set and <name>.zst when zstd is set.
func WithPrecompression(gzip, zstd bool) Option {
	return func(s *settings) {
		s.gzip = gzip
		s.zstd = zstd
	}
}

// WithConcurrency fetches up to n references at once while aggregating.
// The bundle content keeps registration order regardless. Defaults to 1.
func WithConcurrency(n int) Option {
	return func(s *settings) {
		s.concurrency = n
	}
}
