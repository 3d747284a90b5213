package compositor

import (
	"fmt"
	"sort"

	"github.com/ivlev/scenereel/internal/model"
)

// Features включает и выключает семейства слоёв. Эффекты сцены (grain,
// particles, ...) рисуются только если включены и здесь, и в самой сцене.
type Features struct {
	KenBurns     bool `json:"kenBurns" yaml:"ken_burns"`
	Effects      bool `json:"effects" yaml:"effects"`
	Cursor       bool `json:"cursor" yaml:"cursor"`
	Spotlight    bool `json:"spotlight" yaml:"spotlight"`
	Highlights   bool `json:"highlights" yaml:"highlights"`
	AccentBar    bool `json:"accentBar" yaml:"accent_bar"`
	Subtext      bool `json:"subtext" yaml:"subtext"`
	Logo         bool `json:"logo" yaml:"logo"`
	ProgressBar  bool `json:"progressBar" yaml:"progress_bar"`
	CallToAction bool `json:"callToAction" yaml:"call_to_action"`
}

func AllFeatures() Features {
	return Features{
		KenBurns:     true,
		Effects:      true,
		Cursor:       true,
		Spotlight:    true,
		Highlights:   true,
		AccentBar:    true,
		Subtext:      true,
		Logo:         true,
		ProgressBar:  true,
		CallToAction: true,
	}
}

var presets = map[string]Features{
	"full": AllFeatures(),
	"minimal": {
		KenBurns: true,
		Subtext:  true,
	},
	"product-demo": {
		KenBurns:   true,
		Cursor:     true,
		Spotlight:  true,
		Highlights: true,
		Subtext:    true,
		Logo:       true,
	},
	"social": {
		KenBurns:     true,
		Effects:      true,
		AccentBar:    true,
		Subtext:      true,
		Logo:         true,
		ProgressBar:  true,
		CallToAction: true,
	},
}

// FeaturesByName возвращает именованный пресет; пустое имя - "full".
func FeaturesByName(name string) (Features, error) {
	if name == "" {
		name = "full"
	}
	f, ok := presets[name]
	if !ok {
		return Features{}, fmt.Errorf("%w: unknown feature preset %q", model.ErrInvalidInput, name)
	}
	return f, nil
}

func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
