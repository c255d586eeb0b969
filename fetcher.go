package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxImageBytes is the exclusive upper bound on the size of a postable image
const MaxImageBytes = 5_000_000

var (
	// ErrDownloadFailed covers transport errors and non-OK responses
	ErrDownloadFailed = errors.New("image download failed")
	// ErrImageTooLarge is returned for empty images and images of MaxImageBytes or more
	ErrImageTooLarge = errors.New("image empty or too large")
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Fetcher downloads raw image bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageFetcher downloads images over HTTP
type ImageFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int
}

// NewImageFetcher creates a fetcher whose requests time out after timeout
func NewImageFetcher(timeout time.Duration, userAgent string) *ImageFetcher {
	return &ImageFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  MaxImageBytes,
	}
}

// Fetch issues a single GET for url. Errors wrap ErrDownloadFailed or
// ErrImageTooLarge.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %w", ErrDownloadFailed, url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, &HTTPError{StatusCode: resp.StatusCode, URL: url})
	}

	// A body of maxBytes is already too large, so nothing past it is read
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %s: %w", ErrDownloadFailed, url, err)
	}

	if err := checkImageSize(len(body), f.maxBytes); err != nil {
		return nil, err
	}

	return body, nil
}

func checkImageSize(n, limit int) error {
	if n == 0 || n >= limit {
		return fmt.Errorf("%w: %d bytes", ErrImageTooLarge, n)
	}
	return nil
}

// statusForFetchError maps a fetch error to the status recorded for the image
func statusForFetchError(err error) Status {
	if errors.Is(err, ErrImageTooLarge) {
		return StatusImageTooLarge
	}
	return StatusDownloadFail
}
