package inference

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
)

func testImage(seed uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x) + seed, G: uint8(y), B: seed, A: 255})
		}
	}
	return img
}

func TestLocalDetectorIsDeterministic(t *testing.T) {
	d := &LocalDetector{}
	if err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	a, err := d.Infer(context.Background(), testImage(1))
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Infer(context.Background(), testImage(1))
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != len(b) {
		t.Fatalf("expected identical detection counts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical detections at %d, got %+v and %+v", i, a[i], b[i])
		}
	}
	if len(a) < 1 || len(a) > 3 {
		t.Fatalf("expected 1-3 detections, got %d", len(a))
	}
	for _, det := range a {
		if det.Confidence < 0 || det.Confidence > 1 {
			t.Fatalf("expected confidence in [0,1], got %v", det.Confidence)
		}
	}
}

func TestLocalClassifierTopLabelLeadsTopLabels(t *testing.T) {
	c := &LocalClassifier{}
	res, err := c.Infer(context.Background(), testImage(7))
	if err != nil {
		t.Fatal(err)
	}
	if res.Label == "" {
		t.Fatal("expected a non-empty top label")
	}
	if len(res.TopLabels) == 0 || res.TopLabels[0] != res.Label {
		t.Fatalf("expected TopLabels to lead with the top label, got %+v", res)
	}
	if len(res.TopLabels) > 3 {
		t.Fatalf("expected at most 3 labels, got %d", len(res.TopLabels))
	}
}

func TestLocalEmbedderProducesUnitVector(t *testing.T) {
	e := &LocalEmbedder{Dimensions: 32}
	vec, err := e.Infer(context.Background(), testImage(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 32 {
		t.Fatalf("expected 32 dimensions, got %d", len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-6 {
		t.Fatalf("expected L2-normalized vector, got norm %v", math.Sqrt(norm))
	}
}

func TestLocalEmbedderDistinguishesDifferentImages(t *testing.T) {
	e := &LocalEmbedder{Dimensions: 32}
	a, _ := e.Infer(context.Background(), testImage(3))
	b, _ := e.Infer(context.Background(), testImage(200))

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different images to embed differently")
	}
}
