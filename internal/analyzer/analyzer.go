// Package analyzer ищет на кадре сцены области интереса (блоки текста,
// картинки), на которые можно навести спотлайт.
package analyzer

import (
	"fmt"
	"image"
	"sort"

	"github.com/ivlev/scenereel/internal/model"
)

const (
	KindTextLine = "text-line"
	KindBlock    = "block"
	KindFigure   = "figure"
)

// Region - найденная область. Rect в пикселях исходного изображения,
// Box - то же в долях кадра.
type Region struct {
	Rect       image.Rectangle
	Box        model.Box
	Kind       string
	Confidence float64 // 0.0-1.0
}

type Detector interface {
	Detect(img image.Image) ([]Region, error)
}

// NewDetector возвращает детектор по имени; пустое имя - contrast.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// SortReadingOrder упорядочивает области сверху вниз, слева направо.
// Области, чьи верхние края ближе rowTolerance пикселей, считаются одной
// строкой.
func SortReadingOrder(regions []Region, rowTolerance int) {
	sort.SliceStable(regions, func(i, j int) bool {
		dy := regions[i].Rect.Min.Y - regions[j].Rect.Min.Y
		if dy > rowTolerance || dy < -rowTolerance {
			return dy < 0
		}
		return regions[i].Rect.Min.X < regions[j].Rect.Min.X
	})
}

func normalize(r image.Rectangle, bounds image.Rectangle) model.Box {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	return model.Box{
		X: float64(r.Min.X-bounds.Min.X) / w,
		Y: float64(r.Min.Y-bounds.Min.Y) / h,
		W: float64(r.Dx()) / w,
		H: float64(r.Dy()) / h,
	}
}

func classify(r image.Rectangle, density float64) string {
	aspect := float64(r.Dx()) / float64(max(r.Dy(), 1))
	switch {
	case aspect >= 4:
		return KindTextLine
	case density < 0.15:
		return KindFigure
	default:
		return KindBlock
	}
}
