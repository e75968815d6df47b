package fetcher

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

	"github.com/oshokin/launchpad/internal/logger"
)

// DefaultMaxRedirects bounds redirect chains when no option overrides it.
const DefaultMaxRedirects = 10

// destinationFileMode is used for downloaded files.
const destinationFileMode = 0o600

var (
	// ErrBadHTTPStatus is returned for any non-success, non-redirect response.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrTooManyRedirects is returned when the redirect chain exceeds the bound.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrInsecureScheme is returned for non-https locations unless plain http is allowed.
	ErrInsecureScheme = errors.New("insecure url scheme")
)

// Fetcher retrieves remote resources into local files.
type Fetcher struct {
	// client performs single requests; redirects are handled by Fetch itself.
	client *http.Client
	// maxRedirects is the number of redirects followed before giving up.
	maxRedirects int
	// timeout bounds a whole Fetch call when positive.
	timeout time.Duration
	// allowPlainHTTP permits http:// locations.
	allowPlainHTTP bool
}

// Option configures fetcher behaviour.
type Option func(*Fetcher)

// WithHTTPClient uses a copy of client for requests. Its redirect policy is replaced.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			copied := *client
			f.client = &copied
		}
	}
}

// WithMaxRedirects sets the redirect bound.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRedirects = n
		}
	}
}

// WithTimeout bounds the whole download, redirects included.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithPlainHTTP allows http:// locations.
func WithPlainHTTP(allow bool) Option {
	return func(f *Fetcher) {
		f.allowPlainHTTP = allow
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       new(http.Client),
		maxRedirects: DefaultMaxRedirects,
	}

	for _, opt := range opts {
		opt(f)
	}

	// Redirects are followed manually so the bound and scheme checks apply to every hop.
	f.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return f
}

// Fetch downloads rawURL into dest. On failure a partial dest may remain;
// removing it is the caller's job.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	current, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	for redirects := 0; ; redirects++ {
		if err = f.checkScheme(current); err != nil {
			return err
		}

		var (
			response *http.Response
			next     *url.URL
		)

		response, err = f.get(ctx, current)
		if err != nil {
			return err
		}

		next, err = redirectTarget(current, response)
		if err != nil {
			_ = response.Body.Close()
			return err
		}

		if next == nil {
			err = writeBody(response, dest)
			_ = response.Body.Close()

			if err != nil {
				return err
			}

			logger.InfoKV(ctx, "Download complete", "url", current.String(), "redirects", redirects, "path", dest)

			return nil
		}

		_ = response.Body.Close()

		if redirects >= f.maxRedirects {
			return fmt.Errorf("%s: %w (limit %d)", rawURL, ErrTooManyRedirects, f.maxRedirects)
		}

		logger.DebugKV(ctx, "Following redirect", "from", current.String(), "to", next.String())

		current = next
	}
}

// get issues a single GET request.
func (f *Fetcher) get(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target.Redacted(), err)
	}

	return response, nil
}

func (f *Fetcher) checkScheme(target *url.URL) error {
	switch target.Scheme {
	case "https":
		return nil
	case "http":
		if f.allowPlainHTTP {
			return nil
		}
	}

	return fmt.Errorf("%s: %w", target.Redacted(), ErrInsecureScheme)
}

// redirectTarget returns the next location for a redirect response, nil for
// a 200 response and an error for everything else.
func redirectTarget(current *url.URL, response *http.Response) (*url.URL, error) {
	status := response.StatusCode

	if status == http.StatusOK {
		return nil, nil //nolint:nilnil // A nil location means the body is the resource.
	}

	location := response.Header.Get("Location")
	if status >= http.StatusMultipleChoices && status < http.StatusBadRequest && location != "" {
		next, err := current.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse redirect location %q: %w", location, err)
		}

		return next, nil
	}

	return nil, fmt.Errorf("%s, %s: %w", current.Redacted(), response.Status, ErrBadHTTPStatus)
}

// writeBody copies the response body to dest, creating or truncating it.
func writeBody(response *http.Response, dest string) error {
	outputFile, err := os.OpenFile(filepath.Clean(dest), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, destinationFileMode)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err = io.Copy(outputFile, response.Body); err != nil {
		_ = outputFile.Close()
		return fmt.Errorf("write destination: %w", err)
	}

	if err = outputFile.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	return nil
}
