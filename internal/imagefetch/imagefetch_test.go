package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchDecodesImage(t *testing.T) {
	body := pngBytes(t, 16, 12)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, 0, 1<<20)
	img, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
		t.Fatalf("expected 16x12 raster, got %v", img.Bounds())
	}
}

func TestFetchRejectsNonImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, 0, 1<<20)
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("expected ErrNotAnImage, got %v", err)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	body := pngBytes(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, 0, 10)
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestFetchRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, 0, 1<<20)
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchRejectsUndecodableImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("not actually a png"))
	}))
	defer srv.Close()

	f := New(5*time.Second, 0, 0, 1<<20)
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("expected ErrNotAnImage for undecodable body, got %v", err)
	}
}

func TestDownscaleMaxDimNoopForSmallImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	if got := DownscaleMaxDim(img, 200); got != img {
		t.Fatal("expected small image returned unchanged")
	}
}

func TestDownscaleMaxDimPreservesAspectRatio(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	got := DownscaleMaxDim(img, 1000)
	if got.Bounds().Dx() != 1000 || got.Bounds().Dy() != 500 {
		t.Fatalf("expected 1000x500, got %v", got.Bounds())
	}
}

func TestResizeBoxExactDimensions(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 37, 53))
	got := ResizeBox(img, 9, 8)
	if got.Bounds().Dx() != 9 || got.Bounds().Dy() != 8 {
		t.Fatalf("expected exactly 9x8, got %v", got.Bounds())
	}
}
