package director

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ivlev/scenereel/internal/analyzer"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/timeline"
)

// Director расставляет спотлайты по блокам, найденным на кадре сцены.
type Director struct {
	Detector   analyzer.Detector
	MaxTargets int
	// Padding - доля кадра, которую занимает блок после зума.
	Padding float64
	MinZoom float64
	MaxZoom float64
	// LeadIn - доля сцены в начале и в конце без спотлайтов.
	LeadIn float64
}

func NewDirector() *Director {
	return &Director{
		Detector:   analyzer.NewContrastDetector(),
		MaxTargets: 3,
		Padding:    0.9,
		MinZoom:    1.0,
		MaxZoom:    2.5,
		LeadIn:     0.15,
	}
}

// PlanSpotlights - то же, что NewDirector().PlanSpotlights.
func PlanSpotlights(img image.Image, scene model.Scene, fps int) ([]model.Spotlight, error) {
	return NewDirector().PlanSpotlights(img, scene, fps)
}

// PlanSpotlights возвращает спотлайты сцены. Заданные вручную остаются
// как есть; иначе до MaxTargets блоков в порядке чтения делят середину
// сцены поровну. Если блоков нет, результат пустой.
func (d *Director) PlanSpotlights(img image.Image, scene model.Scene, fps int) ([]model.Spotlight, error) {
	if len(scene.Motion.Spotlights) > 0 {
		return scene.Motion.Spotlights, nil
	}
	frames := timeline.FramesFor(scene.DurationMs, fps)
	regions, err := d.Detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detect regions: %w", err)
	}
	targets := d.selectTargets(regions, img.Bounds().Dy())
	if len(targets) == 0 {
		return nil, nil
	}

	start, dwell := d.calculateDwell(frames, len(targets))
	if dwell < 1 {
		return nil, nil
	}

	spots := make([]model.Spotlight, len(targets))
	for i, r := range targets {
		spots[i] = model.Spotlight{
			StartFrame: start + i*dwell,
			EndFrame:   start + (i+1)*dwell - 1,
			Box:        r.Box,
			Zoom:       d.calculateZoom(r.Box),
		}
	}
	return spots, nil
}

// selectTargets оставляет самые заметные области и возвращает их в
// порядке чтения.
func (d *Director) selectTargets(regions []analyzer.Region, height int) []analyzer.Region {
	sorted := make([]analyzer.Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return weight(sorted[i]) > weight(sorted[j])
	})
	if len(sorted) > d.MaxTargets {
		sorted = sorted[:d.MaxTargets]
	}
	// 20 пикселей на 720 строк
	analyzer.SortReadingOrder(sorted, max(height*20/720, 1))
	return sorted
}

func weight(r analyzer.Region) float64 {
	return r.Box.W * r.Box.H * r.Confidence
}

// calculateDwell делит середину сцены между n целями.
func (d *Director) calculateDwell(frames, n int) (start, dwell int) {
	lead := int(math.Round(float64(frames) * d.LeadIn))
	available := frames - 2*lead
	if available < n {
		return 0, frames / n
	}
	return lead, available / n
}

// calculateZoom подбирает зум, при котором блок занимает Padding кадра.
func (d *Director) calculateZoom(b model.Box) float64 {
	if b.W <= 0 || b.H <= 0 {
		return d.MinZoom
	}
	zoom := math.Min(d.Padding/b.W, d.Padding/b.H)
	return math.Max(d.MinZoom, math.Min(d.MaxZoom, zoom))
}

// StillLoader отдаёт кадр материала сцены в момент t секунд.
type StillLoader interface {
	Load(ctx context.Context, a model.Asset, t float64) (image.Image, error)
}

// AutoSpotlight расставляет спотлайты во всех сценах, где их нет.
// Возвращает число изменённых сцен.
func (d *Director) AutoSpotlight(ctx context.Context, sb *Storyboard, loader StillLoader, fps int) (int, error) {
	changed := 0
	for i := range sb.Scenes {
		s := &sb.Scenes[i]
		if len(s.Motion.Spotlights) > 0 || s.Asset.URL == "" {
			continue
		}
		img, err := loader.Load(ctx, s.Asset, 0)
		if err != nil {
			return changed, fmt.Errorf("scene %q: %w", s.ID, err)
		}
		spots, err := d.PlanSpotlights(img, *s, fps)
		if err != nil {
			return changed, fmt.Errorf("scene %q: %w", s.ID, err)
		}
		if len(spots) > 0 {
			s.Motion.Spotlights = spots
			changed++
		}
	}
	return changed, nil
}
