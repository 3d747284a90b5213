package director

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/motion"
	"github.com/ivlev/scenereel/internal/renderer"
)

// DefaultZoomEnd - конечный зум Ken Burns, если камера не задана.
const DefaultZoomEnd = 1.15

// Validate проверяет сториборд целиком и возвращает все найденные
// проблемы сразу. Ошибка оборачивает model.ErrInvalidInput.
func Validate(sb *Storyboard) error {
	if sb == nil || len(sb.Scenes) == 0 {
		return fmt.Errorf("%w: storyboard has no scenes", model.ErrInvalidInput)
	}

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	brand := sb.Project.Brand
	for _, c := range []struct{ name, value string }{
		{"accent_color", brand.AccentColor},
		{"background_color", brand.BackgroundColor},
		{"text_color", brand.TextColor},
	} {
		if c.value == "" {
			continue
		}
		if _, err := renderer.ParseHexColor(c.value); err != nil {
			add("brand %s: %v", c.name, err)
		}
	}

	n := len(sb.Scenes)
	seenOrder := make([]bool, n)
	seenID := make(map[string]bool, n)
	for i, s := range sb.Scenes {
		where := fmt.Sprintf("scene %d", i)
		if s.ID != "" {
			where = fmt.Sprintf("scene %q", s.ID)
		}

		switch {
		case s.ID == "":
			add("%s: empty id", where)
		case seenID[s.ID]:
			add("%s: duplicate id", where)
		}
		seenID[s.ID] = true

		if s.OrderIndex < 0 || s.OrderIndex >= n {
			add("%s: order_index %d out of range 0..%d", where, s.OrderIndex, n-1)
		} else if seenOrder[s.OrderIndex] {
			add("%s: duplicate order_index %d", where, s.OrderIndex)
		} else {
			seenOrder[s.OrderIndex] = true
		}

		if s.DurationMs <= 0 {
			add("%s: duration_ms must be positive, got %d", where, s.DurationMs)
		}
		for _, err := range validateScene(s) {
			add("%s: %v", where, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", model.ErrInvalidInput, errors.Join(errs...))
}

func validateScene(s model.Scene) []error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	_, err := motion.TransitionByName(s.Transition)
	check(err)
	_, err = motion.TextAnimationByName(s.Motion.AnimationStyle)
	check(err)
	_, err = motion.EasingByName(s.Motion.Camera.Easing)
	check(err)

	switch s.Asset.Kind {
	case model.AssetImage, model.AssetVideo, model.AssetPDF:
	case "":
		if s.Asset.URL != "" {
			check(errors.New("asset kind is required"))
		}
	default:
		check(fmt.Errorf("unknown asset kind %q", s.Asset.Kind))
	}
	if s.Asset.Page < 0 {
		check(fmt.Errorf("negative asset page %d", s.Asset.Page))
	}

	for _, e := range s.Motion.Effects {
		if !slices.Contains(model.AllEffects, e) {
			check(fmt.Errorf("unknown effect %q", e))
		}
	}

	sp := s.Motion.Spring
	if sp != (model.SpringConfig{}) && sp != (model.SpringConfig{OvershootAllowed: true}) {
		if sp.Mass <= 0 {
			check(fmt.Errorf("spring mass must be positive, got %g", sp.Mass))
		}
		if sp.Stiffness <= 0 {
			check(fmt.Errorf("spring stiffness must be positive, got %g", sp.Stiffness))
		}
		if sp.Damping < 0 {
			check(fmt.Errorf("spring damping must not be negative, got %g", sp.Damping))
		}
		if sp.Damping == 0 && sp.OvershootAllowed {
			check(errors.New("spring damping must be positive when overshoot is allowed"))
		}
	}
	if s.Motion.StaggerFrames < 0 || s.Motion.EntranceDelayFrames < 0 {
		check(errors.New("stagger and entrance delay must not be negative"))
	}

	if c := s.Motion.Cursor; c != nil {
		check(frameBounds("cursor", c.StartFrame, c.EndFrame))
		if len(c.Points) == 0 {
			check(errors.New("cursor has no points"))
		}
	}
	for i, sl := range s.Motion.Spotlights {
		check(frameBounds(fmt.Sprintf("spotlight %d", i), sl.StartFrame, sl.EndFrame))
		check(boxBounds(fmt.Sprintf("spotlight %d", i), sl.Box))
		if sl.Zoom < 0 {
			check(fmt.Errorf("spotlight %d: negative zoom", i))
		}
	}
	for i, h := range s.Motion.Highlights {
		check(frameBounds(fmt.Sprintf("highlight %d", i), h.StartFrame, h.EndFrame))
		check(boxBounds(fmt.Sprintf("highlight %d", i), h.Box))
		if h.Color != "" {
			if _, err := renderer.ParseHexColor(h.Color); err != nil {
				check(fmt.Errorf("highlight %d: %w", i, err))
			}
		}
	}
	return errs
}

func frameBounds(what string, start, end int) error {
	if start < 0 || end < start {
		return fmt.Errorf("%s: invalid frame range [%d, %d]", what, start, end)
	}
	return nil
}

func boxBounds(what string, b model.Box) error {
	if b.W <= 0 || b.H <= 0 || b.X < 0 || b.Y < 0 || b.X+b.W > 1.0001 || b.Y+b.H > 1.0001 {
		return fmt.Errorf("%s: box %+v outside the frame", what, b)
	}
	return nil
}

// Normalize возвращает копию сториборда со сценами по порядку и
// заполненными значениями по умолчанию.
func Normalize(sb *Storyboard) *Storyboard {
	out := *sb
	if out.Version == "" {
		out.Version = Version
	}
	out.Scenes = model.SortScenes(sb.Scenes)
	for i := range out.Scenes {
		m := &out.Scenes[i].Motion
		if m.Spring.Mass == 0 && m.Spring.Stiffness == 0 && m.Spring.Damping == 0 {
			overshoot := m.Spring.OvershootAllowed
			m.Spring = model.DefaultSpring
			m.Spring.OvershootAllowed = overshoot
		}
		if m.Camera.ZoomStart == 0 && m.Camera.ZoomEnd == 0 {
			m.Camera.ZoomStart, m.Camera.ZoomEnd = 1, DefaultZoomEnd
		}
		if m.AnimationStyle == "" {
			m.AnimationStyle = "fade-up"
		}
		if out.Scenes[i].Transition == "" {
			out.Scenes[i].Transition = "fade"
		}
		m.Effects = slices.Clone(m.Effects)
		m.Spotlights = slices.Clone(m.Spotlights)
		m.Highlights = slices.Clone(m.Highlights)
	}
	return &out
}
