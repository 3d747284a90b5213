package director

import (
	"math"
	"math/rand/v2"
)

// FitDurations раскладывает totalMs на n сцен. Каждая сцена отличается от
// предыдущей не больше чем на 15%, но не короче minMs; сумма ровно totalMs.
// Одинаковый seed даёт одинаковую раскладку.
func FitDurations(n, totalMs, minMs int, seed uint64) []int {
	if n <= 0 {
		return nil
	}
	if minMs*n > totalMs {
		minMs = totalMs / n
	}

	base := float64(totalMs) / float64(n)
	r := rand.New(rand.NewPCG(seed, 0x5ce4e))

	floor := float64(minMs) * 1.1
	durations := make([]float64, n)
	durations[0] = base * (1 + r.Float64()*0.3 - 0.15)
	for i := 1; i < n; i++ {
		durations[i] = durations[i-1] * (1 + r.Float64()*0.3 - 0.15)
		if durations[i] < floor {
			durations[i] = floor
		}
	}

	// Масштабируем, чтобы сумма была в точности totalMs
	sum := 0.0
	for _, d := range durations {
		sum += d
	}
	scale := float64(totalMs) / sum

	out := make([]int, n)
	acc := 0.0
	prev := 0
	for i, d := range durations {
		acc += d * scale
		edge := int(math.Round(acc))
		out[i] = max(edge-prev, minMs)
		prev += out[i]
	}
	// Остаток от округления уходит в самую длинную сцену
	diff := totalMs - prev
	longest := 0
	for i := range out {
		if out[i] > out[longest] {
			longest = i
		}
	}
	out[longest] += diff
	return out
}

// Retime подгоняет длительности сцен под общую длину totalMs.
func Retime(sb *Storyboard, totalMs, minMs int, seed uint64) {
	scenes := sb.Scenes
	fitted := FitDurations(len(scenes), totalMs, minMs, seed)
	for i := range scenes {
		scenes[i].DurationMs = fitted[i]
	}
}
