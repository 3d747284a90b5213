package compositor

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
)

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// mix детерминированно сворачивает значения в один seed.
func mix(vals ...uint64) uint64 {
	h := uint64(0x6a09e667f3bcc908)
	for _, v := range vals {
		h = splitmix(h ^ v)
	}
	return h
}

const particleCount = 24

// particles - частицы, медленно всплывающие вверх. Начальные позиции
// зависят только от seed сцены, положение - от локального кадра.
func particles(seed uint64, local int) []Point {
	r := rand.New(rand.NewPCG(seed, splitmix(seed)))
	f := float64(local)
	out := make([]Point, particleCount)
	for i := range out {
		x0 := r.Float64()
		y0 := r.Float64()
		speed := 0.001 + 0.003*r.Float64()
		size := 0.002 + 0.004*r.Float64()
		phase := 2 * math.Pi * r.Float64()

		y := y0 - speed*f
		y -= math.Floor(y)
		out[i] = Point{
			X:     x0 + 0.01*math.Sin(phase+f*0.05),
			Y:     y,
			Size:  size,
			Alpha: 0.25 + 0.25*math.Sin(phase+f*0.03),
		}
	}
	return out
}
