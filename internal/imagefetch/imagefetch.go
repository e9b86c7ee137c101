// Package imagefetch implements the bounded HTTP image fetch: a single
// long-lived client, a total timeout, a byte cap, and a Content-Type check,
// decoding the body to an in-memory raster.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrNotAnImage is returned when the response Content-Type lacks "image".
	ErrNotAnImage = errors.New("imagefetch: response is not an image")
	// ErrTooLarge is returned when the body exceeds the configured byte cap.
	ErrTooLarge = errors.New("imagefetch: image exceeds max bytes")
	// ErrFetchFailed wraps a non-2xx response or transport error.
	ErrFetchFailed = errors.New("imagefetch: fetch failed")
)

// Fetcher holds the single long-lived HTTP client used for every image
// download, paced by a per-process token bucket so a burst of queued
// complaints cannot hammer the object store.
type Fetcher struct {
	client      *http.Client
	maxBytes    int64
	rateLimiter *rate.Limiter
}

// New builds a Fetcher with totalTimeout applied to every request and
// maxBytes as the accumulated-body cap. ratePerSec/burst configure the
// outbound pacing token bucket; a non-positive rate disables pacing.
func New(totalTimeout time.Duration, ratePerSec float64, burst int, maxBytes int64) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: totalTimeout,
		},
		maxBytes: maxBytes,
	}
	if ratePerSec > 0 {
		f.rateLimiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return f
}

// Fetch downloads url, enforcing the Content-Type and size cap, and decodes
// the body to an image.Image. The caller is responsible for any downscale
// before handing the raster to inference.
func (f *Fetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	if f.rateLimiter != nil {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("imagefetch: rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(ct), "image") {
		return nil, fmt.Errorf("%w: content-type %q", ErrNotAnImage, ct)
	}

	limited := io.LimitReader(resp.Body, f.maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, ErrTooLarge
	}

	img, _, err := image.Decode(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrNotAnImage, err)
	}
	return img, nil
}
