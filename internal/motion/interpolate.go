package motion

import (
	"fmt"

	"github.com/ivlev/scenereel/internal/model"
)

// Extrapolate - поведение за пределами входного диапазона.
type Extrapolate int

const (
	// Extend продолжает крайний линейный участок.
	Extend Extrapolate = iota
	// Clamp прижимает выход к крайнему значению.
	Clamp
	// Identity возвращает вход как есть.
	Identity
)

// Extrapolation настраивает левую и правую границы независимо.
type Extrapolation struct {
	Left  Extrapolate
	Right Extrapolate
}

var (
	ClampBoth  = Extrapolation{Left: Clamp, Right: Clamp}
	ExtendBoth = Extrapolation{Left: Extend, Right: Extend}
)

// Range - кусочно-линейное отображение in -> out.
type Range struct {
	in  []float64
	out []float64
}

// NewRange проверяет, что входы строго возрастают, а длины совпадают.
func NewRange(in, out []float64) (Range, error) {
	if len(in) < 2 || len(in) != len(out) {
		return Range{}, fmt.Errorf("%w: ranges need equal length >= 2, got %d and %d", model.ErrInvalidInput, len(in), len(out))
	}
	for i := 1; i < len(in); i++ {
		if !(in[i] > in[i-1]) {
			return Range{}, fmt.Errorf("%w: input range must be strictly increasing", model.ErrInvalidInput)
		}
	}
	return Range{in: append([]float64(nil), in...), out: append([]float64(nil), out...)}, nil
}

// MustRange - NewRange для констант; паникует на невалидных диапазонах.
func MustRange(in, out []float64) Range {
	r, err := NewRange(in, out)
	if err != nil {
		panic(err)
	}
	return r
}

// At отображает x с заданной экстраполяцией.
func (r Range) At(x float64, ex Extrapolation) float64 {
	n := len(r.in)
	if x < r.in[0] {
		switch ex.Left {
		case Clamp:
			return r.out[0]
		case Identity:
			return x
		}
		return segment(x, r.in[0], r.in[1], r.out[0], r.out[1])
	}
	if x > r.in[n-1] {
		switch ex.Right {
		case Clamp:
			return r.out[n-1]
		case Identity:
			return x
		}
		return segment(x, r.in[n-2], r.in[n-1], r.out[n-2], r.out[n-1])
	}
	for i := 1; i < n; i++ {
		if x <= r.in[i] {
			return segment(x, r.in[i-1], r.in[i], r.out[i-1], r.out[i])
		}
	}
	return r.out[n-1]
}

func segment(x, inA, inB, outA, outB float64) float64 {
	return Lerp(outA, outB, (x-inA)/(inB-inA))
}

// Interpolate - разовая интерполяция без предварительного Range.
func Interpolate(x float64, in, out []float64, ex Extrapolation) (float64, error) {
	r, err := NewRange(in, out)
	if err != nil {
		return 0, err
	}
	return r.At(x, ex), nil
}

// Lerp точен на концах: Lerp(a,b,0)=a, Lerp(a,b,1)=b.
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Clamp01 прижимает значение к [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Linear01 - доля кадра frame на отрезке [start, start+length), прижатая к [0,1].
func Linear01(frame, start, length int) float64 {
	if length <= 0 {
		if frame >= start {
			return 1
		}
		return 0
	}
	return Clamp01(float64(frame-start) / float64(length))
}
