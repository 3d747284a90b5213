package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RenderStatus string

const (
	RenderQueued     RenderStatus = "queued"
	RenderProcessing RenderStatus = "processing"
	RenderCompleted  RenderStatus = "completed"
	RenderFailed     RenderStatus = "failed"
)

// Renderer - бэкенд, который фактически выполняет рендер.
type Renderer string

const (
	RendererLambda    Renderer = "lambda"
	RendererLocal     Renderer = "local"
	RendererSimulated Renderer = "simulated"
	RendererNone      Renderer = "none"
)

// Outcome - результат одного формата.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeError || o == OutcomeTimeout
}

type Render struct {
	ID           uuid.UUID         `json:"id"`
	ProjectID    uuid.UUID         `json:"projectId"`
	Formats      []Format          `json:"formats"`
	Quality      Quality           `json:"quality"`
	OutputURLs   map[Format]string `json:"outputUrls"`
	FormatErrors map[Format]string `json:"formatErrors"`
	Status       RenderStatus      `json:"status"`
	Progress     int               `json:"progress"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Renderer     Renderer          `json:"renderer"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// NewRender создаёт запись в статусе queued.
func NewRender(id, projectID uuid.UUID, formats []Format, quality Quality, renderer Renderer, now time.Time) *Render {
	return &Render{
		ID:           id,
		ProjectID:    projectID,
		Formats:      slices.Clone(formats),
		Quality:      quality,
		OutputURLs:   map[Format]string{},
		FormatErrors: map[Format]string{},
		Status:       RenderQueued,
		Renderer:     renderer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *Render) Terminal() bool {
	return r.Status == RenderCompleted || r.Status == RenderFailed
}

func (r *Render) Requested(f Format) bool {
	return slices.Contains(r.Formats, f)
}

// FormatResult - одно уведомление о формате, приведённое к доменному виду.
type FormatResult struct {
	Format    Format
	Outcome   Outcome
	OutputURL string
	Errors    []string
}

// MergeResult описывает, что изменило применение FormatResult.
type MergeResult struct {
	// Changed - запись изменилась и её нужно сохранить.
	Changed bool
	// URLSet - был записан URL формата.
	URLSet bool
	// ErrorSet - была записана ошибка формата.
	ErrorSet bool
	// Finalized - запись перешла в терминальный статус этим применением.
	Finalized bool
	// Reason заполнен, когда изменений нет.
	Reason string
}

// Merge применяет результат одного формата к записи. Изменяются только поля
// этого формата и производные поля (status, progress, error_message),
// поэтому уведомления разных форматов не затирают друг друга.
//
// Терминальная запись не меняется никогда. URL записывается только если его
// ещё нет; ошибка - только если у формата нет ни URL, ни ошибки.
func (r *Render) Merge(res FormatResult, now time.Time) MergeResult {
	if r.Terminal() {
		return MergeResult{Reason: "render is terminal"}
	}
	if !r.Requested(res.Format) {
		return MergeResult{Reason: fmt.Sprintf("format %s was not requested", res.Format)}
	}
	if r.OutputURLs == nil {
		r.OutputURLs = map[Format]string{}
	}
	if r.FormatErrors == nil {
		r.FormatErrors = map[Format]string{}
	}

	var mr MergeResult
	switch res.Outcome {
	case OutcomeSuccess:
		if r.OutputURLs[res.Format] != "" {
			return MergeResult{Reason: "duplicate success"}
		}
		if res.OutputURL == "" {
			return MergeResult{Reason: "success without output url"}
		}
		r.OutputURLs[res.Format] = res.OutputURL
		mr.URLSet = true
	case OutcomeError, OutcomeTimeout:
		if r.OutputURLs[res.Format] != "" {
			return MergeResult{Reason: "format already succeeded"}
		}
		if _, ok := r.FormatErrors[res.Format]; ok {
			return MergeResult{Reason: "duplicate error"}
		}
		r.FormatErrors[res.Format] = describeFailure(res)
		mr.ErrorSet = true
	default:
		return MergeResult{Reason: fmt.Sprintf("unknown outcome %q", res.Outcome)}
	}

	mr.Changed = true
	r.UpdatedAt = now
	if r.Status == RenderQueued {
		r.Status = RenderProcessing
	}
	r.Progress = r.computeProgress()
	mr.Finalized = r.finalize(now)
	return mr
}

func (r *Render) computeProgress() int {
	if len(r.Formats) == 0 {
		return 0
	}
	done := 0
	for _, f := range r.Formats {
		if r.OutputURLs[f] != "" {
			done++
		}
	}
	return done * 100 / len(r.Formats)
}

// finalize переводит запись в терминальный статус, когда каждый формат
// получил URL или ошибку.
func (r *Render) finalize(now time.Time) bool {
	var failed []string
	for _, f := range orderedFormats(r.Formats) {
		if r.OutputURLs[f] != "" {
			continue
		}
		msg, ok := r.FormatErrors[f]
		if !ok {
			return false
		}
		failed = append(failed, fmt.Sprintf("%s (%s)", f, msg))
	}

	if len(failed) == 0 {
		r.Status = RenderCompleted
		r.ErrorMessage = ""
	} else {
		r.Status = RenderFailed
		r.ErrorMessage = "render failed for formats: " + strings.Join(failed, "; ")
	}
	t := now
	r.CompletedAt = &t
	return true
}

func describeFailure(res FormatResult) string {
	msgs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		if e = strings.TrimSpace(e); e != "" {
			msgs = append(msgs, e)
		}
	}
	if len(msgs) > 0 {
		return strings.Join(msgs, ", ")
	}
	if res.Outcome == OutcomeTimeout {
		return "timeout"
	}
	return "unknown error"
}

func orderedFormats(fs []Format) []Format {
	out := make([]Format, 0, len(fs))
	for _, f := range AllFormats {
		if slices.Contains(fs, f) {
			out = append(out, f)
		}
	}
	return out
}

// Notification - уведомление о завершении формата от удалённого рендера.
// Поля корреляции недоверенные и используются только для сопоставления.
type Notification struct {
	RenderID   uuid.UUID
	ProjectID  uuid.UUID
	Format     Format
	Outcome    Outcome
	OutputURL  string
	Errors     []string
	ExternalID string
}

func (n Notification) Result() FormatResult {
	return FormatResult{Format: n.Format, Outcome: n.Outcome, OutputURL: n.OutputURL, Errors: n.Errors}
}

// Correlation связывает внешний id задачи с рендером и форматом.
type Correlation struct {
	ExternalID string    `json:"externalId"`
	RenderID   uuid.UUID `json:"renderId"`
	ProjectID  uuid.UUID `json:"projectId"`
	Format     Format    `json:"format"`
	Renderer   Renderer  `json:"renderer"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Clone возвращает глубокую копию записи.
func (r *Render) Clone() *Render {
	c := *r
	c.Formats = slices.Clone(r.Formats)
	c.OutputURLs = make(map[Format]string, len(r.OutputURLs))
	for k, v := range r.OutputURLs {
		c.OutputURLs[k] = v
	}
	c.FormatErrors = make(map[Format]string, len(r.FormatErrors))
	for k, v := range r.FormatErrors {
		c.FormatErrors[k] = v
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
