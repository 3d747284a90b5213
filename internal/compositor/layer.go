package compositor

import (
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/motion"
)

type LayerKind string

const (
	LayerBackground   LayerKind = "background"
	LayerAsset        LayerKind = "asset"
	LayerLightLeak    LayerKind = "light-leak"
	LayerVignette     LayerKind = "vignette"
	LayerGrain        LayerKind = "grain"
	LayerParticles    LayerKind = "particles"
	LayerHighlight    LayerKind = "highlight"
	LayerSpotlight    LayerKind = "spotlight"
	LayerGlow         LayerKind = "glow"
	LayerHeadline     LayerKind = "headline"
	LayerAccentBar    LayerKind = "accent-bar"
	LayerSubtext      LayerKind = "subtext"
	LayerCursor       LayerKind = "cursor"
	LayerCallToAction LayerKind = "call-to-action"
	LayerLogo         LayerKind = "logo"
	LayerProgressBar  LayerKind = "progress-bar"
)

// Point - частица в нормированных координатах.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Alpha float64 `json:"alpha"`
}

// Layer - одна инструкция отрисовки. Box нормирован к кадру; Style - свой
// стиль слоя, Group - стиль всей сцены, заданный переходом.
type Layer struct {
	Kind      LayerKind      `json:"kind"`
	SceneID   string         `json:"sceneId,omitempty"`
	Role      string         `json:"role,omitempty"`
	Box       model.Box      `json:"box"`
	Style     motion.Style   `json:"style"`
	Group     motion.Style   `json:"group"`
	Camera    *motion.Camera `json:"camera,omitempty"`
	Text      string         `json:"text,omitempty"`
	FontSize  float64        `json:"fontSize,omitempty"`
	Color     string         `json:"color,omitempty"`
	Asset     *model.Asset   `json:"asset,omitempty"`
	AssetTime float64        `json:"assetTime,omitempty"`
	Seed      uint64         `json:"seed,omitempty"`
	Points    []Point        `json:"points,omitempty"`
	Amount    float64        `json:"amount,omitempty"`
}

// Effective - итоговый стиль слоя с учётом стиля сцены.
func (l Layer) Effective() motion.Style {
	return l.Group.Compose(l.Style)
}

// Frame - полное описание одного кадра.
type Frame struct {
	Number      int     `json:"frame"`
	TotalFrames int     `json:"totalFrames"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SceneIndex  int     `json:"sceneIndex"`
	SceneID     string  `json:"sceneId"`
	Phase       string  `json:"phase"`
	Progress    float64 `json:"progress"`
	Layers      []Layer `json:"layers"`
}
