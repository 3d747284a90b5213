// Package payload собирает входные пропсы задачи рендера одного формата
// и решает, передать их в вызове целиком или через объектное хранилище.
package payload

import (
	"github.com/google/uuid"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/timeline"
)

// Webhook - куда удалённый рендерер шлёт уведомление о завершении.
type Webhook struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

// Correlation возвращается в уведомлении без изменений. Ему не доверяют:
// оно служит только для сопоставления.
type Correlation struct {
	ProjectID uuid.UUID    `json:"projectId"`
	RenderID  uuid.UUID    `json:"renderId"`
	Format    model.Format `json:"format"`
}

// InputProps - всё, что нужно рендереру для одного формата.
type InputProps struct {
	ProjectID        uuid.UUID           `json:"projectId"`
	RenderID         uuid.UUID           `json:"renderId"`
	Format           model.Format        `json:"format"`
	Width            int                 `json:"width"`
	Height           int                 `json:"height"`
	FPS              int                 `json:"fps"`
	DurationInFrames int                 `json:"durationInFrames"`
	TransitionWindow int                 `json:"transitionWindow"`
	Quality          model.Quality       `json:"quality"`
	CRF              int                 `json:"crf"`
	Brand            model.Brand         `json:"brand"`
	Features         compositor.Features `json:"features"`
	Scenes           []model.Scene       `json:"scenes"`
	OutputKey        string              `json:"outputKey"`
	Webhook          *Webhook            `json:"webhook,omitempty"`
	Correlation      Correlation         `json:"correlation"`
}

type BuildOptions struct {
	FPS              int
	TransitionWindow int
	Features         compositor.Features
	Webhook          *Webhook
}

// OutputKey - имя готового видео в хранилище.
func OutputKey(projectID uuid.UUID, f model.Format) string {
	return projectID.String() + "-" + string(f) + ".mp4"
}

// Build готовит пропсы формата f. Сцены сортируются по порядку показа.
func Build(p model.Project, scenes []model.Scene, renderID uuid.UUID, f model.Format, q model.Quality, opts BuildOptions) (InputProps, error) {
	if !f.Valid() {
		return InputProps{}, model.ErrInvalidInput
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = compositor.DefaultFPS
	}
	sorted := model.SortScenes(scenes)
	tl, err := timeline.FromScenes(sorted, fps)
	if err != nil {
		return InputProps{}, err
	}
	w, h := f.Dimensions()
	return InputProps{
		ProjectID:        p.ID,
		RenderID:         renderID,
		Format:           f,
		Width:            w,
		Height:           h,
		FPS:              fps,
		DurationInFrames: tl.TotalFrames(),
		TransitionWindow: opts.TransitionWindow,
		Quality:          q,
		CRF:              q.CRF(),
		Brand:            p.Brand,
		Features:         opts.Features,
		Scenes:           sorted,
		OutputKey:        OutputKey(p.ID, f),
		Webhook:          opts.Webhook,
		Correlation:      Correlation{ProjectID: p.ID, RenderID: renderID, Format: f},
	}, nil
}

// CompositorOptions - опции компоновщика, соответствующие пропсам.
func (p InputProps) CompositorOptions() compositor.Options {
	return compositor.Options{
		FPS:              p.FPS,
		Width:            p.Width,
		Height:           p.Height,
		TransitionWindow: p.TransitionWindow,
		Features:         p.Features,
	}
}
