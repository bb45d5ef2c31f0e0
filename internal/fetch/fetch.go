// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/info"
	"github.com/mia-platform/odp/internal/logger"
)

const (
	loggerName = "odp:fetch"

	schemeHTTP  = "http"
	schemeHTTPS = "https"
	schemeGCS   = "gs"
	schemeFile  = "file"

	defaultExtension = "dat"
	hashLength       = 16
	defaultBackoff   = 500 * time.Millisecond
)

var (
	// ErrUnsupportedScheme reports URLs the fetcher cannot retrieve.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrFetch wraps every failure to retrieve a resource.
	ErrFetch = errors.New("fetch failed")
)

// HTTPError is returned when the remote server answers with an error status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the status code is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Fetcher retrieves resources into a cache directory. It is safe for concurrent use;
// the rate limiter is shared by all the http requests.
type Fetcher struct {
	cacheDir   string
	reuseCache bool
	retries    int
	backoff    time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter

	storageOnce   sync.Once
	storageClient *storage.Client
	storageErr    error
	storageOpts   []option.ClientOption
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the http client used for http and https URLs.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithBackoff sets the base delay between retries, doubled at every attempt.
func WithBackoff(backoff time.Duration) Option {
	return func(f *Fetcher) {
		f.backoff = backoff
	}
}

// WithStorageClient sets the Cloud Storage client used for gs:// URLs.
func WithStorageClient(client *storage.Client) Option {
	return func(f *Fetcher) {
		f.storageOnce.Do(func() {})
		f.storageClient = client
	}
}

// WithStorageOptions adds client options used when the Cloud Storage client is created.
func WithStorageOptions(opts ...option.ClientOption) Option {
	return func(f *Fetcher) {
		f.storageOpts = append(f.storageOpts, opts...)
	}
}

// New returns a Fetcher writing into cfg.CacheDir, creating the directory when needed.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cacheDir, err := homedir.Expand(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	fetcher := &Fetcher{
		cacheDir:   cacheDir,
		reuseCache: cfg.ReuseCache,
		retries:    cfg.Retries,
		backoff:    defaultBackoff,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}

	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher, nil
}

// Fetch retrieves spec.URL and returns the local path of its content.
func (f *Fetcher) Fetch(ctx context.Context, spec config.FetchSpec) (string, error) {
	log := logger.Named(ctx, loggerName)

	parsed, err := url.Parse(spec.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFetch, spec.URL, err)
	}

	switch parsed.Scheme {
	case schemeHTTP, schemeHTTPS, schemeGCS:
	case schemeFile:
		return localPath(parsed.Path)
	case "":
		return localPath(spec.URL)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, parsed.Scheme)
	}

	destination := f.CachePath(spec)
	if f.reuseCache {
		if _, err := os.Stat(destination); err == nil {
			log.Debug("reusing cached resource", "url", spec.URL, "path", destination)
			return destination, nil
		}
	}

	start := time.Now()
	if parsed.Scheme == schemeGCS {
		err = f.download(destination, func(w io.Writer) error {
			return f.fetchObject(ctx, parsed, w)
		})
	} else {
		err = f.download(destination, func(w io.Writer) error {
			return f.fetchHTTP(ctx, spec, w)
		})
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetch, err)
	}

	log.Debug("resource fetched", "url", spec.URL, "path", destination, "duration", time.Since(start).String())
	return destination, nil
}

// CachePath returns the file used to cache spec, named by a hash of its URL. The
// extension comes from the ext fetch option or from the URL path.
func (f *Fetcher) CachePath(spec config.FetchSpec) string {
	sum := sha256.Sum256([]byte(spec.URL))
	name := hex.EncodeToString(sum[:])[:hashLength]

	extension := defaultExtension
	if ext, ok := spec.Opts["ext"].(string); ok && ext != "" {
		extension = strings.TrimPrefix(ext, ".")
	} else if parsed, err := url.Parse(spec.URL); err == nil {
		if ext := strings.TrimPrefix(path.Ext(parsed.Path), "."); ext != "" {
			extension = ext
		}
	}

	return filepath.Join(f.cacheDir, name+"."+extension)
}

// Close releases the Cloud Storage client, if one was created.
func (f *Fetcher) Close() error {
	if f.storageClient != nil {
		return f.storageClient.Close()
	}
	return nil
}

// download writes through a temporary file renamed into place once complete.
func (f *Fetcher) download(destination string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(f.cacheDir, filepath.Base(destination)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destination)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, spec config.FetchSpec, w io.Writer) error {
	log := logger.Named(ctx, loggerName)

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * f.backoff
			log.Warn("retrying fetch", "url", spec.URL, "attempt", attempt, "backoff", backoff.String(), "error", lastErr.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := f.doHTTP(ctx, spec, w)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(ctx, err) {
			return err
		}
		if seeker, ok := w.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return err
			}
			if truncater, ok := w.(interface{ Truncate(int64) error }); ok {
				if err := truncater.Truncate(0); err != nil {
					return err
				}
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (f *Fetcher) doHTTP(ctx context.Context, spec config.FetchSpec, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", info.UserAgent())
	if headers, ok := spec.Opts["headers"].(map[string]any); ok {
		for key, value := range headers {
			req.Header.Set(key, fmt.Sprint(value))
		}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPError{URL: spec.URL, StatusCode: resp.StatusCode}
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

func (f *Fetcher) fetchObject(ctx context.Context, object *url.URL, w io.Writer) error {
	client, err := f.storage(ctx)
	if err != nil {
		return err
	}

	reader, err := client.Bucket(object.Host).Object(strings.TrimPrefix(object.Path, "/")).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gs://%s%s: %w", object.Host, object.Path, err)
	}
	defer reader.Close()

	_, err = io.Copy(w, reader)
	return err
}

func (f *Fetcher) storage(ctx context.Context) (*storage.Client, error) {
	f.storageOnce.Do(func() {
		opts := append([]option.ClientOption{option.WithUserAgent(info.UserAgent())}, f.storageOpts...)
		f.storageClient, f.storageErr = storage.NewClient(ctx, opts...)
	})
	return f.storageClient, f.storageErr
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return true
}

func localPath(raw string) (string, error) {
	expanded, err := homedir.Expand(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFetch, raw, err)
	}

	absolute, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFetch, raw, err)
	}

	stat, err := os.Stat(absolute)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if stat.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrFetch, raw)
	}
	return absolute, nil
}
