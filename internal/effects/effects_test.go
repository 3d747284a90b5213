package effects

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var gray = color.RGBA{R: 128, G: 128, B: 128, A: 255}

func TestGrainIsSeeded(t *testing.T) {
	a, b, c := solid(32, 8, gray), solid(32, 8, gray), solid(32, 8, gray)
	Grain(a, 7, 0.2)
	Grain(b, 7, 0.2)
	Grain(c, 8, 0.2)

	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("same seed must give the same grain")
	}
	if bytes.Equal(a.Pix, c.Pix) {
		t.Error("different seeds must give different grain")
	}
	if bytes.Equal(a.Pix, solid(32, 8, gray).Pix) {
		t.Error("grain did not change the image")
	}
}

func TestVignetteDarkensCornersOnly(t *testing.T) {
	img := solid(101, 101, gray)
	Vignette(img, 0.5)

	center := img.RGBAAt(50, 50)
	corner := img.RGBAAt(0, 0)
	if center.R != gray.R {
		t.Errorf("center changed: %v", center)
	}
	if corner.R >= center.R {
		t.Errorf("corner %v not darker than center %v", corner, center)
	}
	if corner.A != 255 {
		t.Errorf("alpha must stay opaque, got %d", corner.A)
	}
}

func TestDimOutside(t *testing.T) {
	img := solid(10, 10, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	DimOutside(img, image.Rect(2, 2, 5, 5), 0.5)

	if got := img.RGBAAt(3, 3).R; got != 200 {
		t.Errorf("inside hole changed to %d", got)
	}
	if got := img.RGBAAt(8, 8).R; got != 100 {
		t.Errorf("outside = %d, want 100", got)
	}
}

func TestFillRectClipsToBounds(t *testing.T) {
	img := solid(4, 4, color.RGBA{A: 255})
	FillRect(img, image.Rect(-5, -5, 2, 2), color.RGBA{R: 255, A: 255}, 1)

	if img.RGBAAt(1, 1).R != 255 || img.RGBAAt(2, 2).R != 0 {
		t.Errorf("unexpected fill: %v %v", img.RGBAAt(1, 1), img.RGBAAt(2, 2))
	}
}

func TestBoxBlurSpreadsAndKeepsFlatAreas(t *testing.T) {
	flat := solid(9, 9, gray)
	BoxBlur(flat, 2)
	if !bytes.Equal(flat.Pix, solid(9, 9, gray).Pix) {
		t.Error("blur changed a flat image")
	}

	img := solid(9, 9, color.RGBA{A: 255})
	img.SetRGBA(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	BoxBlur(img, 1)
	if c := img.RGBAAt(4, 4); c.R == 255 || c.R == 0 {
		t.Errorf("center not blurred: %v", c)
	}
	if c := img.RGBAAt(5, 5); c.R == 0 {
		t.Errorf("neighbour untouched: %v", c)
	}
	if c := img.RGBAAt(0, 0); c.R != 0 {
		t.Errorf("far pixel changed: %v", c)
	}
}

func TestBrightness(t *testing.T) {
	img := solid(1, 1, color.RGBA{R: 100, G: 200, B: 50, A: 255})
	Brightness(img, 1.5)
	if c := img.RGBAAt(0, 0); c != (color.RGBA{R: 150, G: 255, B: 75, A: 255}) {
		t.Errorf("got %v", c)
	}
}

func TestRadialLightAndDot(t *testing.T) {
	img := solid(20, 20, color.RGBA{A: 255})
	RadialLight(img, image.Rect(0, 0, 20, 20), color.RGBA{R: 255, A: 255}, 0.5)
	if img.RGBAAt(10, 10).R == 0 || img.RGBAAt(0, 0).R != 0 {
		t.Errorf("unexpected light: center %v corner %v", img.RGBAAt(10, 10), img.RGBAAt(0, 0))
	}

	Dot(img, 15, 15, 2, color.RGBA{G: 255, A: 255}, 1)
	if img.RGBAAt(15, 15).G != 255 {
		t.Errorf("dot center = %v", img.RGBAAt(15, 15))
	}
}
