// Package store хранит проекты, сцены, рендеры и корреляции внешних задач.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scenereel/internal/model"
)

type ProjectRepository interface {
	// CreateProject сохраняет проект вместе со сценами.
	CreateProject(ctx context.Context, p *model.Project, scenes []model.Scene) error
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// ListScenes возвращает сцены в порядке order_index.
	ListScenes(ctx context.Context, projectID uuid.UUID) ([]model.Scene, error)
	// StartRender делает рендер активным и переводит проект в rendering.
	StartRender(ctx context.Context, projectID, renderID uuid.UUID) error
	// FinishRender меняет статус проекта, только если renderID всё ещё
	// активный рендер. Возвращает false, если рендер уже вытеснен.
	FinishRender(ctx context.Context, projectID, renderID uuid.UUID, status model.ProjectStatus) (bool, error)
}

type RenderRepository interface {
	CreateRender(ctx context.Context, r *model.Render) error
	GetRender(ctx context.Context, id uuid.UUID) (*model.Render, error)
	// ApplyResult атомарно применяет результат формата (model.Render.Merge)
	// и сохраняет только затронутые поля.
	ApplyResult(ctx context.Context, id uuid.UUID, res model.FormatResult, now time.Time) (*model.Render, model.MergeResult, error)
	SetRenderer(ctx context.Context, id uuid.UUID, renderer model.Renderer) error
}

type CorrelationStore interface {
	Put(ctx context.Context, c model.Correlation) error
	// Get возвращает model.ErrNotFound для неизвестного id.
	Get(ctx context.Context, externalID string) (model.Correlation, error)
	ListByRender(ctx context.Context, renderID uuid.UUID) ([]model.Correlation, error)
}
