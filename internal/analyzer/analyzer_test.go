package analyzer

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func canvas(w, h int, rects ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestContrastDetector(t *testing.T) {
	img := canvas(200, 200, image.Rect(50, 50, 150, 150))

	regions, err := NewContrastDetector().Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected one region, got %d: %+v", len(regions), regions)
	}

	r := regions[0]
	if r.Rect.Dx() < 95 || r.Rect.Dy() < 95 || r.Rect.Dx() > 112 {
		t.Errorf("region does not match the square: %v", r.Rect)
	}
	if math.Abs(r.Box.X-0.25) > 0.03 || math.Abs(r.Box.W-0.5) > 0.06 {
		t.Errorf("normalized box off: %+v", r.Box)
	}
	if r.Confidence <= 0 || r.Confidence > 1 {
		t.Errorf("confidence out of range: %v", r.Confidence)
	}
}

func TestReadingOrderAndDownscale(t *testing.T) {
	// Кадр больше MaxSide: координаты должны вернуться в исходный масштаб.
	img := canvas(1600, 900,
		image.Rect(900, 100, 1400, 200), // правый верхний
		image.Rect(100, 110, 700, 210),  // левый верхний, та же строка
		image.Rect(100, 500, 1400, 800), // нижний блок
	)
	regions, err := NewContrastDetector().Detect(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(regions))
	}

	wantX := []int{100, 900, 100}
	for i, r := range regions {
		if d := r.Rect.Min.X - wantX[i]; d < -25 || d > 25 {
			t.Errorf("region %d starts at x=%d, want ~%d", i, r.Rect.Min.X, wantX[i])
		}
	}
	if regions[0].Kind != KindTextLine {
		t.Errorf("wide short region classified as %s", regions[0].Kind)
	}
}

func TestFlatImageHasNoRegions(t *testing.T) {
	regions, err := NewContrastDetector().Detect(canvas(64, 64))
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 0 {
		t.Errorf("expected nothing on a flat image, got %v", regions)
	}
}

func TestDilate(t *testing.T) {
	w, h := 7, 5
	mask := make([]bool, w*h)
	mask[2*w+3] = true

	out := dilate(mask, w, h, 1)
	count := 0
	for _, v := range out {
		if v {
			count++
		}
	}
	if count != 9 {
		t.Errorf("3x3 dilation of one pixel gave %d pixels", count)
	}
	if !out[1*w+2] || !out[3*w+4] || out[2*w+5] {
		t.Error("dilation shape is wrong")
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"contrast", false},
		{"", false},
		{"ocr", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if detector == nil {
				t.Error("Expected detector, got nil")
			}
		})
	}
}
