package director

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/source"
)

type ScaffoldOptions struct {
	Name string
	// TotalMs - общая длительность; 0 означает SceneMs на каждую сцену.
	TotalMs    int
	SceneMs    int
	MinSceneMs int
	Transition string
	Brand      model.Brand
	Seed       uint64
}

// Scaffold собирает черновой сториборд: одна сцена на страницу PDF или
// на картинку из папки.
func Scaffold(src source.Source, opts ScaffoldOptions) (*Storyboard, error) {
	var assets []model.Asset
	switch s := src.(type) {
	case *source.FitzPDFSource:
		for i := 0; i < s.PageCount(); i++ {
			assets = append(assets, model.Asset{URL: s.Path(), Kind: model.AssetPDF, Page: i})
		}
	case *source.ImageSource:
		for _, p := range s.Paths() {
			assets = append(assets, model.Asset{URL: p, Kind: model.AssetImage})
		}
	default:
		return nil, fmt.Errorf("unsupported source %T", src)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: source has no pages", model.ErrInvalidInput)
	}

	if opts.SceneMs <= 0 {
		opts.SceneMs = 4000
	}
	if opts.MinSceneMs <= 0 {
		opts.MinSceneMs = 1000
	}
	durations := make([]int, len(assets))
	if opts.TotalMs > 0 {
		durations = FitDurations(len(assets), opts.TotalMs, opts.MinSceneMs, opts.Seed)
	} else {
		for i := range durations {
			durations[i] = opts.SceneMs
		}
	}

	sb := &Storyboard{
		Version: Version,
		Project: ProjectSpec{
			Name:             opts.Name,
			TargetDurationMs: opts.TotalMs,
			Brand:            opts.Brand,
		},
	}
	for i, a := range assets {
		sb.Scenes = append(sb.Scenes, model.Scene{
			ID:         fmt.Sprintf("scene-%02d", i+1),
			OrderIndex: i,
			Headline:   headlineFor(a),
			DurationMs: durations[i],
			Transition: opts.Transition,
			Asset:      a,
		})
	}
	return Normalize(sb), nil
}

func headlineFor(a model.Asset) string {
	if a.Kind == model.AssetPDF {
		return fmt.Sprintf("Page %d", a.Page+1)
	}
	name := strings.TrimSuffix(filepath.Base(a.URL), filepath.Ext(a.URL))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}
