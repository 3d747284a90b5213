package compositor

import (
	"strings"
	"unicode/utf8"

	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/motion"
)

type textUnit struct {
	index int
	text  string
	box   model.Box
}

// headlineLayout - раскладка заголовка моноширинной сеткой: ширина символа
// 0.6 от кегля. Растеризатор рисует текст тем же шагом.
type headlineLayout struct {
	units    []textUnit
	count    int
	bounds   model.Box
	fontSize float64
	maxWidth float64
}

const (
	headlineLeft     = 0.08
	headlineMaxWidth = 0.84
	charAdvance      = 0.6
	lineSpacing      = 1.25
)

func layoutHeadline(text string, unit motion.TextUnit, width, height int) headlineLayout {
	fs, anchor := 0.065, 0.6
	switch {
	case width > height:
		fs, anchor = 0.075, 0.62
	case height > width:
		fs = 0.045
	}
	charW := fs * float64(height) * charAdvance / float64(width)
	lineH := fs * lineSpacing

	hl := headlineLayout{fontSize: fs, maxWidth: headlineMaxWidth}
	words := strings.Fields(text)
	if len(words) == 0 {
		hl.bounds = model.Box{X: headlineLeft, Y: anchor, W: 0, H: fs}
		return hl
	}

	var lines [][]string
	var cur []string
	curW := 0.0
	for _, w := range words {
		ww := float64(utf8.RuneCountInString(w)) * charW
		if len(cur) > 0 && curW+charW+ww > headlineMaxWidth {
			lines = append(lines, cur)
			cur, curW = nil, 0
		}
		if len(cur) > 0 {
			curW += charW
		}
		cur = append(cur, w)
		curW += ww
	}
	lines = append(lines, cur)

	top := anchor - float64(len(lines)-1)*lineH
	widest := 0.0
	idx := 0
	for li, line := range lines {
		y := top + float64(li)*lineH
		x := headlineLeft
		for wi, w := range line {
			if wi > 0 {
				x += charW
			}
			n := utf8.RuneCountInString(w)
			switch unit {
			case motion.UnitWord:
				hl.units = append(hl.units, textUnit{index: idx, text: w, box: model.Box{X: x, Y: y, W: float64(n) * charW, H: fs}})
				idx++
			case motion.UnitChar:
				k := 0
				for _, r := range w {
					hl.units = append(hl.units, textUnit{index: idx, text: string(r), box: model.Box{X: x + float64(k)*charW, Y: y, W: charW, H: fs}})
					idx++
					k++
				}
			}
			x += float64(n) * charW
		}
		lineW := x - headlineLeft
		widest = max(widest, lineW)
		if unit == motion.UnitLine {
			hl.units = append(hl.units, textUnit{index: li, text: strings.Join(line, " "), box: model.Box{X: headlineLeft, Y: y, W: lineW, H: fs}})
			idx++
		}
	}
	hl.count = idx
	hl.bounds = model.Box{X: headlineLeft, Y: top, W: widest, H: float64(len(lines)-1)*lineH + fs}
	return hl
}
