// Package timeline сопоставляет глобальный номер кадра со сценой.
// Все функции чистые: один и тот же вход всегда даёт один и тот же выход,
// поэтому превью и покадровый офлайн-рендер получают одинаковые позиции.
package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/scenereel/internal/model"
)

// Position - положение глобального кадра внутри сцены.
type Position struct {
	SceneIndex int
	LocalFrame int
	// Progress = LocalFrame / Frames, в [0,1]. За концом таймлайна равен 1.
	Progress float64
	// Frames - длительность сцены в кадрах.
	Frames int
}

// FramesFor переводит миллисекунды в кадры: round(ms/1000*fps).
func FramesFor(durationMs, fps int) int {
	if durationMs <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Round(float64(durationMs) / 1000 * float64(fps)))
}

// DurationsInFrames считает длительности сцен в кадрах (сцены уже упорядочены).
func DurationsInFrames(scenes []model.Scene, fps int) []int {
	out := make([]int, len(scenes))
	for i, s := range scenes {
		out[i] = FramesFor(s.DurationMs, fps)
	}
	return out
}

// Total - сумма длительностей.
func Total(durations []int) int {
	total := 0
	for _, d := range durations {
		if d > 0 {
			total += d
		}
	}
	return total
}

// Locate - линейный поиск сцены по кадру. Сцены нулевой длины не владеют
// ни одним кадром и пропускаются. Кадр < 0 прижимается к первому кадру первой
// сцены, кадр >= total - к последнему кадру последней сцены с Progress = 1.
func Locate(frame int, durations []int) (Position, error) {
	first, last := bounds(durations)
	if first < 0 {
		return Position{}, model.ErrEmptyTimeline
	}
	if frame < 0 {
		return Position{SceneIndex: first, Frames: durations[first]}, nil
	}

	start := 0
	for i, d := range durations {
		if d <= 0 {
			continue
		}
		if frame < start+d {
			local := frame - start
			return Position{
				SceneIndex: i,
				LocalFrame: local,
				Progress:   float64(local) / float64(d),
				Frames:     d,
			}, nil
		}
		start += d
	}
	return clampEnd(durations, last), nil
}

func bounds(durations []int) (first, last int) {
	first, last = -1, -1
	for i, d := range durations {
		if d <= 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last
}

func clampEnd(durations []int, last int) Position {
	d := durations[last]
	return Position{SceneIndex: last, LocalFrame: d - 1, Progress: 1, Frames: d}
}

// Timeline - предвычисленные префиксные суммы для поиска за O(log n).
// Неизменяем после создания, безопасен для конкурентного чтения.
type Timeline struct {
	durations []int
	starts    []int
	first     int
	last      int
	total     int
}

func New(durations []int) (*Timeline, error) {
	first, last := bounds(durations)
	if first < 0 {
		return nil, model.ErrEmptyTimeline
	}
	t := &Timeline{
		durations: make([]int, len(durations)),
		starts:    make([]int, len(durations)),
		first:     first,
		last:      last,
	}
	acc := 0
	for i, d := range durations {
		t.starts[i] = acc
		t.durations[i] = max(d, 0)
		acc += t.durations[i]
	}
	t.total = acc
	return t, nil
}

// FromScenes строит таймлайн по упорядоченным сценам.
func FromScenes(scenes []model.Scene, fps int) (*Timeline, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("%w: fps must be positive", model.ErrInvalidInput)
	}
	return New(DurationsInFrames(scenes, fps))
}

func (t *Timeline) TotalFrames() int { return t.total }
func (t *Timeline) SceneCount() int  { return len(t.durations) }

// Frames - длительность сцены i в кадрах.
func (t *Timeline) Frames(i int) int { return t.durations[i] }

// Start - глобальный номер первого кадра сцены i.
func (t *Timeline) Start(i int) int { return t.starts[i] }

// First и Last - индексы первой и последней сцен ненулевой длины.
func (t *Timeline) First() int { return t.first }
func (t *Timeline) Last() int  { return t.last }

// Next возвращает следующую сцену ненулевой длины или -1.
func (t *Timeline) Next(i int) int {
	for j := i + 1; j < len(t.durations); j++ {
		if t.durations[j] > 0 {
			return j
		}
	}
	return -1
}

// Prev возвращает предыдущую сцену ненулевой длины или -1.
func (t *Timeline) Prev(i int) int {
	for j := i - 1; j >= 0; j-- {
		if t.durations[j] > 0 {
			return j
		}
	}
	return -1
}

func (t *Timeline) Locate(frame int) Position {
	if frame < 0 {
		return Position{SceneIndex: t.first, Frames: t.durations[t.first]}
	}
	if frame >= t.total {
		return clampEnd(t.durations, t.last)
	}
	// Концы сцен не убывают; первая сцена с концом правее кадра всегда
	// ненулевой длины.
	i := sort.Search(len(t.durations), func(i int) bool {
		return t.starts[i]+t.durations[i] > frame
	})
	local := frame - t.starts[i]
	d := t.durations[i]
	return Position{SceneIndex: i, LocalFrame: local, Progress: float64(local) / float64(d), Frames: d}
}
