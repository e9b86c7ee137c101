package model

import "testing"

func TestNormalizeCategory(t *testing.T) {
	if got := NormalizeCategory("  Pothole "); got != CategoryPothole {
		t.Fatalf("expected pothole, got %q", got)
	}
	if got := NormalizeCategory("WATER_LEAK"); got != CategoryWaterLeak {
		t.Fatalf("expected water_leak, got %q", got)
	}
}

func TestPointValid(t *testing.T) {
	var nilPt *Point
	if nilPt.Valid() {
		t.Fatal("expected nil point invalid")
	}
	if (&Point{Type: "Point"}).Valid() {
		t.Fatal("expected point without coordinates invalid")
	}
	pt := &Point{Type: "Point", Coordinates: []float64{77.59, 12.97}}
	if !pt.Valid() || pt.Lng() != 77.59 || pt.Lat() != 12.97 {
		t.Fatalf("expected valid lng/lat accessors, got %+v", pt)
	}
}

func TestFirstImageURL(t *testing.T) {
	c := Complaint{Images: []Image{{URL: ""}, {URL: "https://cdn.example/road.jpg"}, {URL: "https://cdn.example/second.jpg"}}}
	if got := c.FirstImageURL(); got != "https://cdn.example/road.jpg" {
		t.Fatalf("expected first non-empty url, got %q", got)
	}
	if got := (&Complaint{}).FirstImageURL(); got != "" {
		t.Fatalf("expected empty url for no images, got %q", got)
	}
}
