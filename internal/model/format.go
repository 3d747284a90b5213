package model

import (
	"fmt"
	"strings"
)

// Format - выходное соотношение сторон.
type Format string

const (
	FormatHorizontal Format = "horizontal"
	FormatVertical   Format = "vertical"
	FormatSquare     Format = "square"
)

// AllFormats в каноническом порядке. Этот порядок используется везде,
// где форматы перечисляются (сообщения об ошибках, fan-out).
var AllFormats = []Format{FormatHorizontal, FormatVertical, FormatSquare}

// Dimensions возвращает целевое разрешение формата.
func (f Format) Dimensions() (width, height int) {
	switch f {
	case FormatVertical:
		return 1080, 1920
	case FormatSquare:
		return 1080, 1080
	default:
		return 1920, 1080
	}
}

func (f Format) Valid() bool {
	for _, known := range AllFormats {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFormats разбирает список форматов из запроса. "all" (или пустой список)
// раскрывается во все форматы. Дубликаты схлопываются, порядок канонический.
func ParseFormats(raw []string) ([]Format, error) {
	if len(raw) == 0 {
		return append([]Format(nil), AllFormats...), nil
	}
	seen := make(map[Format]bool, len(AllFormats))
	for _, r := range raw {
		name := strings.ToLower(strings.TrimSpace(r))
		if name == "all" {
			return append([]Format(nil), AllFormats...), nil
		}
		f := Format(name)
		if !f.Valid() {
			return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, r)
		}
		seen[f] = true
	}
	out := make([]Format, 0, len(seen))
	for _, f := range AllFormats {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

// Quality - пресет качества кодирования.
type Quality string

const (
	QualityDraft    Quality = "draft"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// CRF для libx264 (чем меньше, тем лучше).
func (q Quality) CRF() int {
	switch q {
	case QualityDraft:
		return 30
	case QualityHigh:
		return 18
	default:
		return 23
	}
}

func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityStandard, nil
	case QualityDraft, QualityStandard, QualityHigh:
		return q, nil
	default:
		return "", fmt.Errorf("%w: unknown quality %q", ErrInvalidInput, s)
	}
}
