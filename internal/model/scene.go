package model

import (
	"slices"

	"github.com/google/uuid"
)

type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetVideo AssetKind = "video"
	AssetPDF   AssetKind = "pdf"
)

// Asset - ссылка на визуальный материал сцены.
type Asset struct {
	URL  string    `json:"url" yaml:"url"`
	Kind AssetKind `json:"kind" yaml:"kind"`
	// Page - номер страницы для PDF (с нуля).
	Page int `json:"page,omitempty" yaml:"page,omitempty"`
}

// Effect - включаемый визуальный эффект сцены.
type Effect string

const (
	EffectGrain     Effect = "grain"
	EffectParticles Effect = "particles"
	EffectVignette  Effect = "vignette"
	EffectGlow      Effect = "glow"
	EffectLightLeak Effect = "light-leak"
)

var AllEffects = []Effect{EffectGrain, EffectParticles, EffectVignette, EffectGlow, EffectLightLeak}

type SpringConfig struct {
	Damping          float64 `json:"damping" yaml:"damping"`
	Mass             float64 `json:"mass" yaml:"mass"`
	Stiffness        float64 `json:"stiffness" yaml:"stiffness"`
	OvershootAllowed bool    `json:"overshootAllowed" yaml:"overshoot_allowed"`
}

// DefaultSpring - недодемпфированная пружина, overshoot обрезается.
var DefaultSpring = SpringConfig{Damping: 10, Mass: 1, Stiffness: 100}

type CameraConfig struct {
	ZoomStart float64 `json:"zoomStart" yaml:"zoom_start"`
	ZoomEnd   float64 `json:"zoomEnd" yaml:"zoom_end"`
	// PanX/PanY в процентах кадра.
	PanX   float64 `json:"panX" yaml:"pan_x"`
	PanY   float64 `json:"panY" yaml:"pan_y"`
	Easing string  `json:"easing,omitempty" yaml:"easing,omitempty"`
}

// Координаты точек и прямоугольников нормированы в [0,1] относительно кадра.

type CursorPoint struct {
	Frame int     `json:"frame" yaml:"frame"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
}

type CursorPath struct {
	StartFrame  int           `json:"startFrame" yaml:"start_frame"`
	EndFrame    int           `json:"endFrame" yaml:"end_frame"`
	Points      []CursorPoint `json:"points" yaml:"points"`
	ClickFrames []int         `json:"clickFrames,omitempty" yaml:"click_frames,omitempty"`
}

type Box struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

func (b Box) Center() (float64, float64) { return b.X + b.W/2, b.Y + b.H/2 }

type Spotlight struct {
	StartFrame int     `json:"startFrame" yaml:"start_frame"`
	EndFrame   int     `json:"endFrame" yaml:"end_frame"`
	Box        Box     `json:"box" yaml:"box"`
	Zoom       float64 `json:"zoom" yaml:"zoom"`
	Label      string  `json:"label,omitempty" yaml:"label,omitempty"`
}

type Highlight struct {
	StartFrame int    `json:"startFrame" yaml:"start_frame"`
	EndFrame   int    `json:"endFrame" yaml:"end_frame"`
	Box        Box    `json:"box" yaml:"box"`
	Color      string `json:"color,omitempty" yaml:"color,omitempty"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty"`
}

type MotionConfig struct {
	AnimationStyle      string       `json:"animationStyle" yaml:"animation_style"`
	Spring              SpringConfig `json:"spring" yaml:"spring"`
	StaggerFrames       int          `json:"staggerFrames" yaml:"stagger_frames"`
	EntranceDelayFrames int          `json:"entranceDelayFrames" yaml:"entrance_delay_frames"`
	Effects             []Effect     `json:"effects,omitempty" yaml:"effects,omitempty"`
	Camera              CameraConfig `json:"camera" yaml:"camera"`
	Cursor              *CursorPath  `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	Spotlights          []Spotlight  `json:"spotlights,omitempty" yaml:"spotlights,omitempty"`
	Highlights          []Highlight  `json:"highlights,omitempty" yaml:"highlights,omitempty"`
}

func (m MotionConfig) HasEffect(e Effect) bool {
	return slices.Contains(m.Effects, e)
}

type Scene struct {
	ID         string       `json:"id" yaml:"id"`
	ProjectID  uuid.UUID    `json:"projectId" yaml:"-"`
	OrderIndex int          `json:"orderIndex" yaml:"order_index"`
	Headline   string       `json:"headline" yaml:"headline"`
	Subtext    string       `json:"subtext,omitempty" yaml:"subtext,omitempty"`
	DurationMs int          `json:"durationMs" yaml:"duration_ms"`
	Transition string       `json:"transition" yaml:"transition"`
	Asset      Asset        `json:"asset" yaml:"asset"`
	Motion     MotionConfig `json:"motion" yaml:"motion"`
}

// SortScenes возвращает копию, упорядоченную по OrderIndex.
func SortScenes(scenes []Scene) []Scene {
	out := slices.Clone(scenes)
	slices.SortStableFunc(out, func(a, b Scene) int { return a.OrderIndex - b.OrderIndex })
	return out
}
