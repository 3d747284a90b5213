package motion

import (
	"fmt"
	"sort"

	"github.com/ivlev/scenereel/internal/model"
)

// Role - роль сцены в переходе.
type Role int

const (
	Outgoing Role = iota
	Incoming
)

func (r Role) String() string {
	if r == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// Inset - обрезка слоя с каждой стороны в процентах.
type Inset struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Style - визуальное состояние слоя или группы слоёв.
// Сдвиги - в процентах размера бокса, поворот - в градусах, размытие - в
// пикселях при высоте кадра 1080.
type Style struct {
	Opacity    float64 `json:"opacity"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
	Scale      float64 `json:"scale"`
	Rotate     float64 `json:"rotate"`
	Blur       float64 `json:"blur"`
	Brightness float64 `json:"brightness"`
	Clip       Inset   `json:"clip"`
}

// Visible - нейтральный стиль полностью видимого слоя.
func Visible() Style {
	return Style{Opacity: 1, Scale: 1, Brightness: 1}
}

// Compose накладывает стиль child поверх родительского s.
func (s Style) Compose(child Style) Style {
	return Style{
		Opacity:    s.Opacity * child.Opacity,
		TranslateX: s.TranslateX + child.TranslateX,
		TranslateY: s.TranslateY + child.TranslateY,
		Scale:      s.Scale * child.Scale,
		Rotate:     s.Rotate + child.Rotate,
		Blur:       s.Blur + child.Blur,
		Brightness: s.Brightness * child.Brightness,
		Clip: Inset{
			Top:    max(s.Clip.Top, child.Clip.Top),
			Right:  max(s.Clip.Right, child.Clip.Right),
			Bottom: max(s.Clip.Bottom, child.Clip.Bottom),
			Left:   max(s.Clip.Left, child.Clip.Left),
		},
	}
}

// Transition - переход между соседними сценами. Набор реализаций закрыт:
// новый переход добавляется типом в этом пакете и строкой в registry.
//
// Для любого перехода Style(Outgoing, 0) и Style(Incoming, 1) равны Visible();
// Style(Outgoing, 1) - конечное состояние уходящей сцены, Style(Incoming, 0) -
// начальное состояние входящей.
type Transition interface {
	Name() string
	Style(role Role, p float64) Style
	transition()
}

type sealed struct{}

func (sealed) transition() {}

type cut struct{ sealed }

func (cut) Name() string { return "none" }

// Мгновенная смена на середине окна перехода.
func (cut) Style(role Role, p float64) Style {
	s := Visible()
	visible := p < 0.5
	if role == Incoming {
		visible = p >= 0.5
	}
	if !visible {
		s.Opacity = 0
	}
	return s
}

type fade struct{ sealed }

func (fade) Name() string { return "fade" }

func (fade) Style(role Role, p float64) Style {
	s := Visible()
	if role == Outgoing {
		s.Opacity = 1 - p
	} else {
		s.Opacity = p
	}
	return s
}

// slide: уходящая сцена уезжает на (dx,dy)*100%, входящая приезжает с
// противоположной стороны.
type slide struct {
	sealed
	name   string
	dx, dy float64
}

func (t slide) Name() string { return t.name }

func (t slide) Style(role Role, p float64) Style {
	s := Visible()
	if role == Outgoing {
		s.TranslateX = t.dx * 100 * p
		s.TranslateY = t.dy * 100 * p
	} else {
		s.TranslateX = -t.dx * 100 * (1 - p)
		s.TranslateY = -t.dy * 100 * (1 - p)
	}
	return s
}

type zoom struct {
	sealed
	name string
	// from - масштаб входящей сцены в начале, to - уходящей в конце.
	from, to float64
}

func (t zoom) Name() string { return t.name }

func (t zoom) Style(role Role, p float64) Style {
	s := Visible()
	if role == Outgoing {
		s.Scale = Lerp(1, t.to, p)
		s.Opacity = 1 - p
	} else {
		s.Scale = Lerp(t.from, 1, p)
		s.Opacity = p
	}
	return s
}

// wipe: входящая сцена открывается шторкой с края side.
type wipe struct {
	sealed
	name string
	side int // 0 - справа налево, 1 - слева направо, 2 - снизу вверх, 3 - сверху вниз
}

func (t wipe) Name() string { return t.name }

func (t wipe) Style(role Role, p float64) Style {
	s := Visible()
	hidden := 100 * p
	if role == Incoming {
		hidden = 100 * (1 - p)
	}
	switch {
	case t.side == 0 && role == Incoming, t.side == 1 && role == Outgoing:
		s.Clip.Left = hidden
	case t.side == 0 && role == Outgoing, t.side == 1 && role == Incoming:
		s.Clip.Right = hidden
	case t.side == 2 && role == Incoming, t.side == 3 && role == Outgoing:
		s.Clip.Top = hidden
	default:
		s.Clip.Bottom = hidden
	}
	return s
}

type flash struct{ sealed }

func (flash) Name() string { return "flash" }

func (flash) Style(role Role, p float64) Style {
	s := Visible()
	if role == Outgoing {
		s.Brightness = Lerp(1, 4, p)
		s.Opacity = 1 - p
	} else {
		s.Brightness = Lerp(4, 1, p)
		s.Opacity = p
	}
	return s
}

type blur struct{ sealed }

func (blur) Name() string { return "blur" }

func (blur) Style(role Role, p float64) Style {
	s := Visible()
	if role == Outgoing {
		s.Blur = 20 * p
		s.Opacity = 1 - p
	} else {
		s.Blur = 20 * (1 - p)
		s.Opacity = p
	}
	return s
}

type spin struct{ sealed }

func (spin) Name() string { return "spin" }

func (spin) Style(role Role, p float64) Style {
	s := Visible()
	if role == Outgoing {
		s.Rotate = 90 * p
		s.Scale = Lerp(1, 0.5, p)
		s.Opacity = 1 - p
	} else {
		s.Rotate = -90 * (1 - p)
		s.Scale = Lerp(0.5, 1, p)
		s.Opacity = p
	}
	return s
}

var transitions = func() map[string]Transition {
	all := []Transition{
		cut{},
		fade{},
		slide{name: "slide-left", dx: -1},
		slide{name: "slide-right", dx: 1},
		slide{name: "slide-up", dy: -1},
		slide{name: "slide-down", dy: 1},
		zoom{name: "zoom-in", from: 0.8, to: 1.2},
		zoom{name: "zoom-out", from: 1.2, to: 0.8},
		wipe{name: "wipe-left", side: 0},
		wipe{name: "wipe-right", side: 1},
		wipe{name: "wipe-up", side: 2},
		wipe{name: "wipe-down", side: 3},
		flash{},
		blur{},
		spin{},
	}
	m := make(map[string]Transition, len(all))
	for _, t := range all {
		m[t.Name()] = t
	}
	return m
}()

// TransitionByName: пустое имя означает fade.
func TransitionByName(name string) (Transition, error) {
	if name == "" {
		return fade{}, nil
	}
	t, ok := transitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown transition %q", model.ErrInvalidInput, name)
	}
	return t, nil
}

// Transitions возвращает все переходы, отсортированные по имени.
func Transitions() []Transition {
	out := make([]Transition, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
