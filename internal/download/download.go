package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds a single request including the body transfer.
const DefaultTimeout = 10 * time.Second

var (
	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrTLSDisabled is returned for https URLs when TLS has been disabled
	// by configuration.
	ErrTLSDisabled = errors.New("https is disabled by configuration")
	// ErrOpenDestination is returned when the destination file cannot be
	// created before the request is issued.
	ErrOpenDestination = errors.New("cannot open destination file")
	// ErrCloseDestination is returned when flushing the finished download
	// to disk fails.
	ErrCloseDestination = errors.New("cannot finalize destination file")
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected http status")
	// ErrEmptyResponse is returned when the server answered with success
	// but the destination file ended up missing or empty.
	ErrEmptyResponse = errors.New("empty response body")
)

// Downloader fetches URLs into local files.
type Downloader struct {
	// client issues the requests; its timeout covers the whole transfer.
	client *http.Client
	// userAgent is sent with every request when non-empty.
	userAgent string
	// tlsDisabled rejects https URLs before any network activity.
	tlsDisabled bool
}

// options collects the tunable downloader parameters.
type options struct {
	timeout     time.Duration
	userAgent   string
	tlsDisabled bool
}

// Option adjusts downloader behaviour.
type Option func(*options)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithTLSDisabled makes the downloader reject https URLs with ErrTLSDisabled.
func WithTLSDisabled(disabled bool) Option {
	return func(o *options) {
		o.tlsDisabled = disabled
	}
}

// New builds a Downloader with the provided options.
func New(opts ...Option) *Downloader {
	o := &options{
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Downloader{
		client: &http.Client{
			Timeout: o.timeout,
		},
		userAgent:   o.userAgent,
		tlsDisabled: o.tlsDisabled,
	}
}

// Fetch downloads rawURL into dest.
//
// The returned status is the HTTP status code when a response was received
// and zero otherwise, so callers can tell a 404 apart from transport or
// local I/O failures. On any error the destination file is removed.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string) (int, error) {
	if err := d.checkScheme(rawURL); err != nil {
		return 0, err
	}

	// Claim the destination before touching the network so a full disk or a
	// bad path fails fast and cheap.
	file, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", dest, err, ErrOpenDestination)
	}

	status, err := d.stream(ctx, rawURL, file)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(dest)

		return status, err
	}

	if err = file.Close(); err != nil {
		_ = os.Remove(dest)

		return status, fmt.Errorf("%s: %v: %w", dest, err, ErrCloseDestination)
	}

	// The transfer only counts when the file actually made it to disk.
	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(dest)

		return status, fmt.Errorf("%s: %w", rawURL, ErrEmptyResponse)
	}

	return status, nil
}

// FetchString downloads rawURL through the regular file path and returns its
// content; used for small remote text like manifests and version pointers.
func (d *Downloader) FetchString(ctx context.Context, rawURL string) (string, int, error) {
	tmp, err := os.CreateTemp("", "autohost-download-")
	if err != nil {
		return "", 0, fmt.Errorf("%v: %w", err, ErrOpenDestination)
	}

	path := tmp.Name()

	if err = tmp.Close(); err != nil {
		_ = os.Remove(path)

		return "", 0, fmt.Errorf("%s: %v: %w", path, err, ErrCloseDestination)
	}

	defer func() {
		_ = os.Remove(path)
	}()

	status, err := d.Fetch(ctx, rawURL, path)
	if err != nil {
		return "", status, err
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", status, fmt.Errorf("read %s: %w", path, err)
	}

	return string(contents), status, nil
}

// checkScheme rejects URLs the downloader will never be able to serve.
func (d *Downloader) checkScheme(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", rawURL, err, ErrUnsupportedScheme)
	}

	switch parsed.Scheme {
	case "http":
		return nil
	case "https":
		if d.tlsDisabled {
			return fmt.Errorf("%s: %w", rawURL, ErrTLSDisabled)
		}

		return nil
	default:
		return fmt.Errorf("%s: %w", rawURL, ErrUnsupportedScheme)
	}
}

// stream issues the request and copies the body into file as it arrives.
func (d *Downloader) stream(ctx context.Context, rawURL string, file *os.File) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	response, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", rawURL, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	status := response.StatusCode
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return status, fmt.Errorf("%s, %s: %w", rawURL, response.Status, ErrUnexpectedStatus)
	}

	if _, err = io.Copy(file, response.Body); err != nil {
		return status, fmt.Errorf("stream %s: %w", rawURL, err)
	}

	return status, nil
}
