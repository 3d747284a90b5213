package motion

import (
	"fmt"
	"math"

	"github.com/ivlev/scenereel/internal/model"
)

// Easing отображает [0,1] в [0,1] с Easing(0)=0 и Easing(1)=1.
type Easing func(t float64) float64

func Linear(t float64) float64 { return t }

func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

func EaseOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

func EaseInCubic(t float64) float64 { return t * t * t }

func EaseInOutSine(t float64) float64 {
	if t == 1 {
		return 1
	}
	return -(math.Cos(math.Pi*t) - 1) / 2
}

var easings = map[string]Easing{
	"":                 EaseInOutCubic,
	"linear":           Linear,
	"ease-in-out":      EaseInOutCubic,
	"ease-out":         EaseOutCubic,
	"ease-in":          EaseInCubic,
	"ease-in-out-sine": EaseInOutSine,
}

// EasingByName возвращает функцию по имени; пустое имя - ease-in-out.
func EasingByName(name string) (Easing, error) {
	e, ok := easings[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown easing %q", model.ErrInvalidInput, name)
	}
	return e, nil
}
