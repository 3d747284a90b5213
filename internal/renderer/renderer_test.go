package renderer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/motion"
)

type solidLoader struct {
	c   color.RGBA
	err error
}

func (s solidLoader) Load(_ context.Context, _ model.Asset, _ float64) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = s.c.R, s.c.G, s.c.B, s.c.A
	}
	return img, nil
}

var whiteLoader = solidLoader{c: color.RGBA{R: 255, G: 255, B: 255, A: 255}}

func background(c string) compositor.Layer {
	return compositor.Layer{Kind: compositor.LayerBackground, Box: model.Box{W: 1, H: 1}, Style: motion.Visible(), Group: motion.Visible(), Color: c}
}

func assetLayer(group motion.Style) compositor.Layer {
	return compositor.Layer{
		Kind:   compositor.LayerAsset,
		Box:    model.Box{W: 1, H: 1},
		Style:  motion.Visible(),
		Group:  group,
		Camera: &motion.Camera{Scale: 1},
		Asset:  &model.Asset{URL: "slide.png", Kind: model.AssetImage},
	}
}

func frame(w, h int, layers ...compositor.Layer) compositor.Frame {
	return compositor.Frame{Width: w, Height: h, TotalFrames: 1, Layers: layers}
}

func render(t *testing.T, r *Rasterizer, f compositor.Frame) *image.RGBA {
	t.Helper()
	dst := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if err := r.Render(context.Background(), f, dst); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return dst
}

func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	return d >= -tol && d <= tol
}

func TestBackgroundFillsFrame(t *testing.T) {
	r := New(whiteLoader, nil, Options{})
	dst := render(t, r, frame(8, 4, background("#102030")))
	want := color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}
	for _, p := range []image.Point{{0, 0}, {7, 3}, {4, 2}} {
		if got := dst.RGBAAt(p.X, p.Y); got != want {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestAssetOpacityBlends(t *testing.T) {
	g := motion.Visible()
	g.Opacity = 0.5
	r := New(whiteLoader, nil, Options{})
	dst := render(t, r, frame(40, 20, background("#000000"), assetLayer(g)))

	if got := dst.RGBAAt(20, 10).R; !near(got, 128, 2) {
		t.Errorf("half transparent white over black = %d, want ~128", got)
	}
}

func TestWipeClipsScene(t *testing.T) {
	tr, err := motion.TransitionByName("wipe-left")
	if err != nil {
		t.Fatal(err)
	}
	g := tr.Style(motion.Incoming, 0.5)

	r := New(whiteLoader, nil, Options{})
	dst := render(t, r, frame(40, 20, background("#000000"), assetLayer(g)))

	if got := dst.RGBAAt(5, 10).R; got != 0 {
		t.Errorf("clipped half shows %d", got)
	}
	if got := dst.RGBAAt(35, 10).R; got != 255 {
		t.Errorf("visible half shows %d", got)
	}
}

func TestBlurAndFlashGoThroughScratch(t *testing.T) {
	for _, name := range []string{"blur", "flash"} {
		t.Run(name, func(t *testing.T) {
			tr, err := motion.TransitionByName(name)
			if err != nil {
				t.Fatal(err)
			}
			r := New(solidLoader{c: color.RGBA{R: 60, G: 60, B: 60, A: 255}}, nil, Options{})
			dst := render(t, r, frame(64, 36, background("#000000"), assetLayer(tr.Style(motion.Outgoing, 0.9))))
			if dst.RGBAAt(32, 18).R == 0 {
				t.Error("scene vanished")
			}
		})
	}
}

func TestSpotlightFollowsCamera(t *testing.T) {
	spot := compositor.Layer{
		Kind:   compositor.LayerSpotlight,
		Box:    model.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
		Style:  motion.Visible(),
		Group:  motion.Visible(),
		Amount: 0.5,
	}
	asset := assetLayer(motion.Visible())
	asset.Camera = &motion.Camera{Scale: 2}

	r := New(whiteLoader, nil, Options{})
	dst := render(t, r, frame(40, 20, background("#000000"), asset, spot))

	// Камера x2 растягивает бокс на весь кадр: затемнения нет.
	if got := dst.RGBAAt(1, 1).R; got != 255 {
		t.Errorf("corner dimmed under zoomed camera: %d", got)
	}

	asset.Camera = &motion.Camera{Scale: 1}
	dst = render(t, r, frame(40, 20, background("#000000"), asset, spot))
	if got := dst.RGBAAt(1, 1).R; !near(got, 128, 1) {
		t.Errorf("corner = %d, want ~128", got)
	}
	if got := dst.RGBAAt(20, 10).R; got != 255 {
		t.Errorf("spotlight center dimmed: %d", got)
	}
}

func TestHighlightStrokeProgress(t *testing.T) {
	hl := compositor.Layer{
		Kind:   compositor.LayerHighlight,
		Box:    model.Box{X: 0.1, Y: 0.2, W: 0.5, H: 0.5},
		Style:  motion.Visible(),
		Group:  motion.Visible(),
		Color:  "#ff0000",
		Amount: 0.25,
	}
	r := New(whiteLoader, nil, Options{})
	dst := render(t, r, frame(200, 100, background("#000000"), hl))

	// Четверть периметра 100x50: верхняя грань и часть правой.
	if got := dst.RGBAAt(50, 20); got.R != 255 {
		t.Errorf("top edge not drawn: %v", got)
	}
	if got := dst.RGBAAt(21, 68); got.R != 0 {
		t.Errorf("left edge drawn too early: %v", got)
	}
}

func TestComposedFrameRendersDeterministically(t *testing.T) {
	scenes := []model.Scene{
		{
			ID: "a", OrderIndex: 0, DurationMs: 1000, Transition: "fade", Headline: "Ship faster today",
			Subtext: "Render every format from one storyboard",
			Asset:   model.Asset{URL: "a.png", Kind: model.AssetImage},
			Motion: model.MotionConfig{
				AnimationStyle: "fade-up", StaggerFrames: 2, Effects: model.AllEffects,
				Camera:     model.CameraConfig{ZoomStart: 1, ZoomEnd: 1.2},
				Cursor:     &model.CursorPath{StartFrame: 0, EndFrame: 30, Points: []model.CursorPoint{{Frame: 0, X: 0.2, Y: 0.2}, {Frame: 20, X: 0.6, Y: 0.5}}, ClickFrames: []int{10}},
				Highlights: []model.Highlight{{StartFrame: 0, EndFrame: 30, Box: model.Box{X: 0.1, Y: 0.1, W: 0.3, H: 0.2}, Label: "new"}},
			},
		},
		{
			ID: "b", OrderIndex: 1, DurationMs: 1000, Transition: "spin", Headline: "Done",
			Asset:  model.Asset{URL: "b.png", Kind: model.AssetImage},
			Motion: model.MotionConfig{AnimationStyle: "blur-in"},
		},
	}
	brand := model.Brand{AccentColor: "#ff5a1f", LogoURL: "logo.png", CallToActionURL: "https://example.com", Seed: 9}
	c, err := compositor.New(scenes, brand, compositor.Options{FPS: 30, Width: 160, Height: 90, TransitionWindow: 6, Features: compositor.AllFeatures()})
	if err != nil {
		t.Fatal(err)
	}

	r := New(whiteLoader, nil, Options{Debug: true})
	for _, n := range []int{0, 12, 28, 31, c.TotalFrames() - 1} {
		a := render(t, r, c.Compose(n))
		b := render(t, r, c.Compose(n))
		if !bytes.Equal(a.Pix, b.Pix) {
			t.Errorf("frame %d differs between renders", n)
		}
	}
}

func TestRenderErrors(t *testing.T) {
	r := New(solidLoader{err: errors.New("boom")}, nil, Options{})
	f := frame(16, 9, background("#000000"), assetLayer(motion.Visible()))

	err := r.Render(context.Background(), f, image.NewRGBA(image.Rect(0, 0, 16, 9)))
	if err == nil || !strings.Contains(err.Error(), "asset") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected asset load error, got %v", err)
	}

	if err := r.Render(context.Background(), f, image.NewRGBA(image.Rect(0, 0, 8, 8))); err == nil {
		t.Error("expected size mismatch error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(whiteLoader, nil, Options{}).Render(ctx, f, image.NewRGBA(image.Rect(0, 0, 16, 9))); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#ff5a1f", color.RGBA{R: 0xff, G: 0x5a, B: 0x1f, A: 0xff}, false},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, false},
		{"00000080", color.RGBA{A: 0x80}, false},
		{"#12345", color.RGBA{}, true},
		{"#zzzzzz", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColor(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("wrapText = %q, want %q", got, want)
	}
	if wrapText("   ", 5) != nil {
		t.Error("blank text must produce no lines")
	}
}

func TestAroundRotatesAboutCenter(t *testing.T) {
	m := around(10, 10, 2, 90, 1, 0)
	x, y := apply(m, 10, 10)
	if math.Abs(x-11) > 1e-9 || math.Abs(y-10) > 1e-9 {
		t.Errorf("center moved to (%v,%v)", x, y)
	}
	x, y = apply(m, 11, 10)
	if math.Abs(x-11) > 1e-9 || math.Abs(y-12) > 1e-9 {
		t.Errorf("rotated point = (%v,%v), want (11,12)", x, y)
	}

	comp := mul(around(0, 0, 1, 0, 5, 0), fit(image.Rect(0, 0, 10, 10), rectF{x: 0, y: 0, w: 20, h: 20}))
	if x, y := apply(comp, 10, 10); x != 25 || y != 20 {
		t.Errorf("fit then shift = (%v,%v)", x, y)
	}
}
