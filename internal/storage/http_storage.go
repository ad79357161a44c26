package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-naturalness-inspector/internal/imaging"
)

// ImageFetcher downloads and decodes a remote image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*imaging.Image, error)
}

const (
	maxAttempts     = 3
	defaultMaxBytes = 64 << 20
)

// HTTPImageFetcher implements ImageFetcher over plain HTTP(S). Transient
// failures (network errors and 5xx) are retried with linear backoff;
// 4xx responses fail immediately.
type HTTPImageFetcher struct {
	client   *http.Client
	backoff  time.Duration
	maxBytes int64
}

// HTTPOption customizes an HTTPImageFetcher.
type HTTPOption func(*HTTPImageFetcher)

// WithBackoff sets the base delay between attempts.
func WithBackoff(d time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) { h.backoff = d }
}

// WithMaxBytes caps the size of a downloaded body.
func WithMaxBytes(n int64) HTTPOption {
	return func(h *HTTPImageFetcher) { h.maxBytes = n }
}

// NewHTTPImageFetcher creates an HTTP image fetcher. timeout bounds a
// single attempt; zero means 30 seconds.
func NewHTTPImageFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Connection pooling sized for batches of images from a few hosts
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		backoff:  time.Second,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchImage downloads imageURL and decodes it.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*imaging.Image, error) {
	body, err := h.Open(ctx, imageURL, "image/jpeg, image/png, image/webp, image/gif, image/bmp, image/tiff, */*")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	img, _, err := imaging.Decode(body)
	if err != nil {
		if cb, ok := body.(*cappedBody); ok && cb.exceeded() {
			return nil, &imaging.InvalidImageError{Reason: fmt.Sprintf("image exceeds %d bytes", h.maxBytes)}
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Open performs the GET with retries and returns the response body. Reading
// past the configured size fails with *BodyTooLargeError. The caller
// closes it.
func (h *HTTPImageFetcher) Open(ctx context.Context, rawURL, accept string) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", "Go-Naturalness-Inspector/1.0")

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return &cappedBody{
				r:      io.LimitReader(resp.Body, h.maxBytes+1),
				Closer: resp.Body,
				limit:  h.maxBytes,
			}, nil
		}

		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		// 4xx client errors are non-retryable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("failed to fetch %s: client error: status code %d", rawURL, resp.StatusCode)
		}
		lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", rawURL, maxAttempts, lastErr)
}

// BodyTooLargeError reports a response body longer than the fetcher limit.
type BodyTooLargeError struct {
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeds %d bytes", e.Limit)
}

// cappedBody reads at most limit+1 bytes and fails the read that crosses
// limit instead of truncating silently.
type cappedBody struct {
	r io.Reader
	io.Closer
	limit int64
	n     int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.n += int64(n)
	if b.n > b.limit {
		return n - int(b.n-b.limit), &BodyTooLargeError{Limit: b.limit}
	}
	return n, err
}

func (b *cappedBody) exceeded() bool { return b.n > b.limit }
