package bundler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/afero"
)

// maxRemoteSize bounds how much of a remote response is read. Stylesheets
// and scripts are orders of magnitude smaller.
const maxRemoteSize int64 = 64 << 20

// RequestHeaders are forwarded with every remote fetch. They are captured
// once, usually from the request that triggered the build, and never read
// from the environment afterwards.
type RequestHeaders struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
}

// HeadersFromRequest captures the forwarded headers from an incoming
// request. A nil request yields empty headers.
func HeadersFromRequest(r *http.Request) RequestHeaders {
	if r == nil {
		return RequestHeaders{}
	}
	return RequestHeaders{
		UserAgent:      r.Header.Get("User-Agent"),
		Accept:         r.Header.Get("Accept"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
	}
}

// apply sets the captured headers plus the fixed ones on req.
func (h RequestHeaders) apply(req *http.Request) {
	req.Header.Set("User-Agent", h.UserAgent)
	if h.Accept != "" {
		req.Header.Set("Accept", h.Accept)
	}
	if h.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", h.AcceptLanguage)
	}
	// identity keeps the transport from transparently decoding gzip, so the
	// bytes we bundle are the bytes the server sent.
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Connection", "close")
	req.Close = true
}

// fetcher resolves references to bytes. It holds no per-build state.
type fetcher struct {
	fs      afero.Fs
	client  *http.Client
	headers RequestHeaders
	logger  *slog.Logger
	maxSize int64 // 0 means maxRemoteSize
}

func (f *fetcher) limit() int64 {
	if f.maxSize > 0 {
		return f.maxSize
	}
	return maxRemoteSize
}

// fetch returns the content of a resolved reference.
func (f *fetcher) fetch(ctx context.Context, file string) ([]byte, error) {
	if IsRemote(file) {
		return f.fetchRemote(ctx, remoteURL(file))
	}
	data, err := afero.ReadFile(f.fs, file)
	if err != nil {
		return nil, newError("fetch", file, ErrFileNotFound, err)
	}
	return data, nil
}

func (f *fetcher) fetchRemote(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, newError("fetch", u, ErrRemoteFetchFailed, err)
	}
	f.headers.apply(req)

	f.logger.Debug("fetching remote reference", "url", u)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, newError("fetch", u, ErrRemoteFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError("fetch", u, ErrRemoteFetchFailed, fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.limit()+1))
	if err != nil {
		return nil, newError("fetch", u, ErrRemoteFetchFailed, fmt.Errorf("reading response body: %w", err))
	}
	if int64(len(data)) > f.limit() {
		return nil, newError("fetch", u, ErrRemoteFetchFailed, fmt.Errorf("response exceeds %d bytes", f.limit()))
	}
	f.logger.Debug("fetched remote reference", "url", u, "status", resp.StatusCode, "bytes", len(data))
	return data, nil
}
