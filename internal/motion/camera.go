package motion

import (
	"sort"

	"github.com/ivlev/scenereel/internal/model"
)

// Camera - трансформация ассета: масштаб и сдвиг в процентах кадра.
type Camera struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

// KenBurns считает медленный наезд/панораму. На progress=0 результат равен
// (zoomStart, 0, 0), на progress=1 - (zoomEnd, panX, panY).
func KenBurns(progress float64, easing Easing, zoomStart, zoomEnd, panX, panY float64) Camera {
	if easing == nil {
		easing = Linear
	}
	e := easing(Clamp01(progress))
	return Camera{
		Scale:      Lerp(zoomStart, zoomEnd, e),
		TranslateX: panX * e,
		TranslateY: panY * e,
	}
}

// CursorState - положение курсора на кадре.
type CursorState struct {
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	// Ripple - прогресс волны клика в [0,1], 0 если клика нет.
	Ripple float64 `json:"ripple"`
}

// ClickRippleFrames - длительность волны от клика.
const ClickRippleFrames = 12

// CursorAt интерполирует путь курсора между ключевыми точками с плавным
// easing. До первой точки курсор стоит в ней, после последней - в последней.
func CursorAt(path *model.CursorPath, frame int) CursorState {
	if path == nil || len(path.Points) == 0 || frame < path.StartFrame || frame > path.EndFrame {
		return CursorState{}
	}
	pts := append([]model.CursorPoint(nil), path.Points...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Frame < pts[j].Frame })

	st := CursorState{Visible: true}
	switch {
	case frame <= pts[0].Frame:
		st.X, st.Y = pts[0].X, pts[0].Y
	case frame >= pts[len(pts)-1].Frame:
		last := pts[len(pts)-1]
		st.X, st.Y = last.X, last.Y
	default:
		for i := 0; i < len(pts)-1; i++ {
			a, b := pts[i], pts[i+1]
			if frame >= a.Frame && frame < b.Frame {
				t := EaseInOutCubic(float64(frame-a.Frame) / float64(b.Frame-a.Frame))
				st.X = Lerp(a.X, b.X, t)
				st.Y = Lerp(a.Y, b.Y, t)
				break
			}
		}
	}

	for _, c := range path.ClickFrames {
		if frame >= c && frame < c+ClickRippleFrames {
			st.Ripple = float64(frame-c+1) / ClickRippleFrames
		}
	}
	return st
}

// overlaySpring - жёсткая пружина без overshoot для оверлеев.
var overlaySpring = model.SpringConfig{Damping: 20, Mass: 1, Stiffness: 170}

// SpotlightAt возвращает активный спотлайт и силу его проявления в [0,1]:
// пружина на входе и симметричная на выходе.
func SpotlightAt(spots []model.Spotlight, frame, fps int) (model.Spotlight, float64, bool) {
	for _, s := range spots {
		if frame < s.StartFrame || frame > s.EndFrame {
			continue
		}
		in := Spring(frame, fps, overlaySpring, s.StartFrame-1)
		out := Spring(s.EndFrame+1, fps, overlaySpring, frame)
		return s, min(in, out), true
	}
	return model.Spotlight{}, 0, false
}

// HighlightState - проявление рамки подсветки.
type HighlightState struct {
	Opacity float64 `json:"opacity"`
	// Draw - доля обводки, уже нарисованной по периметру.
	Draw float64 `json:"draw"`
}

// HighlightAt: рамка проявляется за 8 кадров и обводится за 12.
func HighlightAt(h model.Highlight, frame int) (HighlightState, bool) {
	if frame < h.StartFrame || frame > h.EndFrame {
		return HighlightState{}, false
	}
	fadeOut := Linear01(h.EndFrame-frame, 0, 8)
	return HighlightState{
		Opacity: min(Linear01(frame, h.StartFrame, 8), fadeOut),
		Draw:    EaseOutCubic(Linear01(frame, h.StartFrame, 12)),
	}, true
}
