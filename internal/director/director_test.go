package director

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/scenereel/internal/analyzer"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/source"
)

type fixedDetector []analyzer.Region

func (d fixedDetector) Detect(image.Image) ([]analyzer.Region, error) { return d, nil }

func region(x, y int, box model.Box, conf float64) analyzer.Region {
	return analyzer.Region{
		Rect:       image.Rect(x, y, x+int(box.W*1280), y+int(box.H*720)),
		Box:        box,
		Kind:       analyzer.KindBlock,
		Confidence: conf,
	}
}

func TestPlanSpotlights(t *testing.T) {
	d := NewDirector()
	d.Detector = fixedDetector{
		region(128, 360, model.Box{X: 0.1, Y: 0.5, W: 0.3, H: 0.2}, 1),   // нижний
		region(640, 72, model.Box{X: 0.5, Y: 0.1, W: 0.4, H: 0.2}, 1),    // правый верхний
		region(64, 80, model.Box{X: 0.05, Y: 0.11, W: 0.3, H: 0.1}, 0.8), // левый верхний, та же строка
		region(128, 576, model.Box{X: 0.1, Y: 0.8, W: 0.05, H: 0.05}, 1), // мелкий, отбрасывается
	}
	scene := model.Scene{ID: "s", DurationMs: 6000}

	spots, err := d.PlanSpotlights(image.NewRGBA(image.Rect(0, 0, 1280, 720)), scene, 30)
	if err != nil {
		t.Fatalf("PlanSpotlights failed: %v", err)
	}
	if len(spots) != 3 {
		t.Fatalf("expected 3 spotlights, got %d", len(spots))
	}

	// 180 кадров: 27 на вход и выход, 126 на три цели
	want := []struct {
		start, end int
		x          float64
		zoom       float64
	}{
		{27, 68, 0.05, 2.5},
		{69, 110, 0.5, 2.25},
		{111, 152, 0.1, 2.5},
	}
	for i, w := range want {
		s := spots[i]
		if s.StartFrame != w.start || s.EndFrame != w.end {
			t.Errorf("spot %d: frames [%d, %d], want [%d, %d]", i, s.StartFrame, s.EndFrame, w.start, w.end)
		}
		if s.Box.X != w.x {
			t.Errorf("spot %d: box x %v, want %v", i, s.Box.X, w.x)
		}
		if diff := s.Zoom - w.zoom; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("spot %d: zoom %v, want %v", i, s.Zoom, w.zoom)
		}
	}
}

func TestPlanSpotlightsKeepsManualTargets(t *testing.T) {
	manual := []model.Spotlight{{StartFrame: 0, EndFrame: 10, Box: model.Box{W: 0.5, H: 0.5}, Zoom: 2}}
	scene := model.Scene{DurationMs: 3000, Motion: model.MotionConfig{Spotlights: manual}}

	d := NewDirector()
	d.Detector = fixedDetector{region(0, 0, model.Box{W: 0.2, H: 0.2}, 1)}
	spots, err := d.PlanSpotlights(image.NewRGBA(image.Rect(0, 0, 64, 36)), scene, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(spots) != 1 || spots[0].Zoom != 2 {
		t.Errorf("manual spotlights replaced: %+v", spots)
	}
}

func TestPlanSpotlightsWithContrastDetector(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1600, 900))
	fill(img, img.Bounds(), color.RGBA{255, 255, 255, 255})
	fill(img, image.Rect(900, 100, 1400, 200), color.RGBA{0, 0, 0, 255})
	fill(img, image.Rect(100, 500, 1400, 800), color.RGBA{0, 0, 0, 255})

	spots, err := PlanSpotlights(img, model.Scene{DurationMs: 4000}, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(spots) != 2 {
		t.Fatalf("expected 2 spotlights, got %d", len(spots))
	}
	if spots[0].Box.Y > spots[1].Box.Y {
		t.Errorf("spotlights not in reading order: %+v", spots)
	}
	for i, s := range spots {
		if s.Zoom < 1 || s.Zoom > 2.5 {
			t.Errorf("spot %d: zoom %v outside [1, 2.5]", i, s.Zoom)
		}
	}

	none, err := PlanSpotlights(image.NewRGBA(image.Rect(0, 0, 64, 64)), model.Scene{DurationMs: 4000}, 30)
	if err != nil || none != nil {
		t.Errorf("flat image: expected no spotlights, got %v, %v", none, err)
	}
}

type stillLoader struct {
	img   image.Image
	calls int
}

func (l *stillLoader) Load(context.Context, model.Asset, float64) (image.Image, error) {
	l.calls++
	if l.img == nil {
		return nil, errors.New("missing")
	}
	return l.img, nil
}

func TestAutoSpotlight(t *testing.T) {
	sb := sampleStoryboard()
	d := NewDirector()
	d.Detector = fixedDetector{region(0, 0, model.Box{X: 0.2, Y: 0.2, W: 0.4, H: 0.3}, 1)}
	loader := &stillLoader{img: image.NewRGBA(image.Rect(0, 0, 128, 72))}

	changed, err := d.AutoSpotlight(context.Background(), sb, loader, 30)
	if err != nil {
		t.Fatal(err)
	}
	// у intro уже есть спотлайт
	if changed != 1 || loader.calls != 1 {
		t.Errorf("expected one scene planned with one load, got %d / %d", changed, loader.calls)
	}
	if len(sb.Scenes[0].Motion.Spotlights) != 1 {
		t.Errorf("outro has no spotlight: %+v", sb.Scenes[0].Motion)
	}

	if _, err := d.AutoSpotlight(context.Background(), sampleStoryboard(), &stillLoader{}, 30); err == nil {
		t.Error("expected the loader error")
	}
}

func TestFitDurations(t *testing.T) {
	cases := []struct {
		n, total, min int
	}{
		{1, 5000, 1000},
		{5, 30000, 1000},
		{12, 45000, 2000},
		{4, 3000, 1000}, // минимум больше среднего
	}
	for _, tc := range cases {
		got := FitDurations(tc.n, tc.total, tc.min, 42)
		if len(got) != tc.n {
			t.Fatalf("n=%d: got %d durations", tc.n, len(got))
		}
		sum := 0
		for _, d := range got {
			sum += d
			if d <= 0 {
				t.Errorf("n=%d: non-positive duration in %v", tc.n, got)
			}
		}
		if sum != tc.total {
			t.Errorf("n=%d: sum %d, want %d (%v)", tc.n, sum, tc.total, got)
		}
	}

	a := FitDurations(8, 40000, 1000, 1)
	b := FitDurations(8, 40000, 1000, 1)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different durations: %v vs %v", a, b)
		}
	}
	if FitDurations(0, 1000, 100, 1) != nil {
		t.Error("expected nil for zero scenes")
	}
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func TestScaffoldFromImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"02_pricing.png", "01_title-card.png", "03_contact.png"} {
		img := image.NewRGBA(image.Rect(0, 0, 16, 9))
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	src, err := source.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	sb, err := Scaffold(src, ScaffoldOptions{Name: "deck", TotalMs: 9000, Transition: "slide-left"})
	if err != nil {
		t.Fatalf("Scaffold failed: %v", err)
	}
	if len(sb.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(sb.Scenes))
	}
	if sb.Scenes[0].Headline != "01 title card" {
		t.Errorf("unexpected headline %q", sb.Scenes[0].Headline)
	}
	total := 0
	for i, s := range sb.Scenes {
		total += s.DurationMs
		if s.OrderIndex != i || s.Asset.Kind != model.AssetImage || s.Transition != "slide-left" {
			t.Errorf("scene %d: %+v", i, s)
		}
	}
	if total != 9000 {
		t.Errorf("durations sum to %d, want 9000", total)
	}
	if err := Validate(sb); err != nil {
		t.Errorf("scaffold is invalid: %v", err)
	}
}
