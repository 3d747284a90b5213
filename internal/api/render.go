package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scenereel/internal/model"
)

// renderResponse - запись рендера в том виде, в каком её опрашивает UI.
// Ссылки на форматы плоские и равны null, пока формат не готов.
type renderResponse struct {
	ID               uuid.UUID          `json:"id"`
	ProjectID        uuid.UUID          `json:"projectId"`
	Status           model.RenderStatus `json:"status"`
	Progress         int                `json:"progress"`
	VideoURL         *string            `json:"video_url"`
	VideoURLVertical *string            `json:"video_url_vertical"`
	VideoURLSquare   *string            `json:"video_url_square"`
	ErrorMessage     *string            `json:"error_message"`
	CompletedAt      *time.Time         `json:"completed_at"`

	Formats      []model.Format          `json:"formats"`
	Quality      model.Quality           `json:"quality"`
	Renderer     model.Renderer          `json:"renderer"`
	FormatErrors map[model.Format]string `json:"formatErrors,omitempty"`
}

func newRenderResponse(r *model.Render) renderResponse {
	url := func(f model.Format) *string {
		if u, ok := r.OutputURLs[f]; ok {
			return &u
		}
		return nil
	}
	resp := renderResponse{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		Status:           r.Status,
		Progress:         r.Progress,
		VideoURL:         url(model.FormatHorizontal),
		VideoURLVertical: url(model.FormatVertical),
		VideoURLSquare:   url(model.FormatSquare),
		CompletedAt:      r.CompletedAt,
		Formats:          r.Formats,
		Quality:          r.Quality,
		Renderer:         r.Renderer,
		FormatErrors:     r.FormatErrors,
	}
	if r.ErrorMessage != "" {
		msg := r.ErrorMessage
		resp.ErrorMessage = &msg
	}
	return resp
}

// formatList принимает как массив форматов, так и одну строку ("all" или
// имя формата).
type formatList []string

func (l *formatList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = formatList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("formats must be a string or an array of strings: %w", err)
	}
	*l = list
	return nil
}
