package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newBodyServer(t *testing.T, size int) *httptest.Server {
	t.Helper()
	body := make([]byte, size)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewImageFetcher(t *testing.T) {
	fetcher := NewImageFetcher(5*time.Second, "test-agent")

	if fetcher.client == nil {
		t.Fatal("NewImageFetcher() did not initialize HTTP client")
	}
	if fetcher.client.Timeout != 5*time.Second {
		t.Errorf("client timeout = %v, want %v", fetcher.client.Timeout, 5*time.Second)
	}
	if fetcher.maxBytes != MaxImageBytes {
		t.Errorf("maxBytes = %d, want %d", fetcher.maxBytes, MaxImageBytes)
	}
}

func TestFetchSizeBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"empty body", 0, ErrImageTooLarge},
		{"one byte", 1, nil},
		{"typical image", 12_345, nil},
		{"just under limit", MaxImageBytes - 1, nil},
		{"at limit", MaxImageBytes, ErrImageTooLarge},
		{"over limit", MaxImageBytes + 10, ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newBodyServer(t, tt.size)
			fetcher := NewImageFetcher(10*time.Second, "")

			data, err := fetcher.Fetch(context.Background(), server.URL)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
				}
				if data != nil {
					t.Error("Fetch() should return nil data on error")
				}
				if got := statusForFetchError(err); got != StatusImageTooLarge {
					t.Errorf("statusForFetchError() = %v, want %v", got, StatusImageTooLarge)
				}
				return
			}

			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if len(data) != tt.size {
				t.Errorf("Fetch() returned %d bytes, want %d", len(data), tt.size)
			}
		})
	}
}

func TestFetchHTTPError(t *testing.T) {
	// Create test server that returns 404
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewImageFetcher(10*time.Second, "")

	data, err := fetcher.Fetch(context.Background(), server.URL)

	if data != nil {
		t.Error("Fetch() should return nil data on HTTP error")
	}
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed", err)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Fetch() should wrap HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("HTTPError.StatusCode = %d, want %d", httpErr.StatusCode, http.StatusNotFound)
	}
	if httpErr.URL != server.URL {
		t.Errorf("HTTPError.URL = %q, want %q", httpErr.URL, server.URL)
	}
	if got := statusForFetchError(err); got != StatusDownloadFail {
		t.Errorf("statusForFetchError() = %v, want %v", got, StatusDownloadFail)
	}
}

func TestFetchNonOKStatuses(t *testing.T) {
	for _, code := range []int{http.StatusNoContent, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer server.Close()

			_, err := NewImageFetcher(10*time.Second, "").Fetch(context.Background(), server.URL)
			if !errors.Is(err, ErrDownloadFailed) {
				t.Errorf("Fetch() error = %v, want ErrDownloadFailed", err)
			}
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewImageFetcher(10*time.Second, "").Fetch(context.Background(), url)

	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed", err)
	}
	if got := statusForFetchError(err); got != StatusDownloadFail {
		t.Errorf("statusForFetchError() = %v, want %v", got, StatusDownloadFail)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := NewImageFetcher(time.Second, "").Fetch(context.Background(), "://not-a-url")

	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("Fetch() error = %v, want ErrDownloadFailed", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := NewImageFetcher(50*time.Millisecond, "").Fetch(context.Background(), server.URL)

	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("Fetch() error = %v, want ErrDownloadFailed", err)
	}
}

func TestFetchSendsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("jpeg"))
	}))
	defer server.Close()

	_, err := NewImageFetcher(time.Second, "copostr/test").Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.HasPrefix(got, "copostr/") {
		t.Errorf("User-Agent = %q, want copostr/test", got)
	}
}
