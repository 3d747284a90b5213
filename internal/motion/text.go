package motion

import (
	"fmt"
	"sort"

	"github.com/ivlev/scenereel/internal/model"
)

// TextUnit - на какие части делится заголовок для поэтапного появления.
type TextUnit int

const (
	UnitLine TextUnit = iota
	UnitWord
	UnitChar
)

// TextAnimation - стиль появления текста. Набор закрыт так же, как Transition.
// Style получает прогресс пружины p одной единицы текста (может быть > 1 при
// overshoot) и возвращает её стиль; при p=0 единица невидима.
type TextAnimation interface {
	Name() string
	Unit() TextUnit
	Style(p float64) Style
	textAnimation()
}

type textSealed struct{}

func (textSealed) textAnimation() {}

type fadeUp struct{ textSealed }

func (fadeUp) Name() string   { return "fade-up" }
func (fadeUp) Unit() TextUnit { return UnitWord }
func (fadeUp) Style(p float64) Style {
	s := Visible()
	s.Opacity = Clamp01(p)
	s.TranslateY = 40 * (1 - p)
	return s
}

type slideIn struct{ textSealed }

func (slideIn) Name() string   { return "slide-in" }
func (slideIn) Unit() TextUnit { return UnitWord }
func (slideIn) Style(p float64) Style {
	s := Visible()
	s.Opacity = Clamp01(p)
	s.TranslateX = -60 * (1 - p)
	return s
}

type pop struct{ textSealed }

func (pop) Name() string   { return "pop" }
func (pop) Unit() TextUnit { return UnitWord }
func (pop) Style(p float64) Style {
	s := Visible()
	s.Opacity = Clamp01(p * 2)
	s.Scale = Lerp(0.4, 1, p)
	return s
}

type typewriter struct{ textSealed }

func (typewriter) Name() string   { return "typewriter" }
func (typewriter) Unit() TextUnit { return UnitChar }
func (typewriter) Style(p float64) Style {
	s := Visible()
	if p <= 0 {
		s.Opacity = 0
	}
	return s
}

type wordByWord struct{ textSealed }

func (wordByWord) Name() string   { return "word-by-word" }
func (wordByWord) Unit() TextUnit { return UnitWord }
func (wordByWord) Style(p float64) Style {
	s := Visible()
	s.Opacity = Clamp01(p)
	return s
}

type blurIn struct{ textSealed }

func (blurIn) Name() string   { return "blur-in" }
func (blurIn) Unit() TextUnit { return UnitLine }
func (blurIn) Style(p float64) Style {
	s := Visible()
	s.Opacity = Clamp01(p)
	s.Blur = 12 * Clamp01(1-p)
	return s
}

var textAnimations = func() map[string]TextAnimation {
	all := []TextAnimation{fadeUp{}, slideIn{}, pop{}, typewriter{}, wordByWord{}, blurIn{}}
	m := make(map[string]TextAnimation, len(all))
	for _, a := range all {
		m[a.Name()] = a
	}
	return m
}()

// TextAnimationByName: пустое имя означает fade-up.
func TextAnimationByName(name string) (TextAnimation, error) {
	if name == "" {
		return fadeUp{}, nil
	}
	a, ok := textAnimations[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown animation style %q", model.ErrInvalidInput, name)
	}
	return a, nil
}

func TextAnimations() []TextAnimation {
	out := make([]TextAnimation, 0, len(textAnimations))
	for _, a := range textAnimations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
