// Package aggregator сводит асинхронные уведомления по форматам в одну
// запись рендера и каскадно обновляет статус проекта.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/metrics"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/store"
)

// ErrCorrelationMiss - уведомление не сопоставилось ни с одним рендером.
// Такие уведомления подтверждаются и отбрасываются.
var ErrCorrelationMiss = errors.New("notification does not match a known render")

type Result string

const (
	Applied   Result = "applied"
	Duplicate Result = "duplicate"
	Ignored   Result = "ignored"
)

type Outcome struct {
	Result   Result
	Render   *model.Render
	Merge    model.MergeResult
	Cascaded bool
}

type Aggregator struct {
	renders      store.RenderRepository
	projects     store.ProjectRepository
	correlations store.CorrelationStore
	logger       *zap.Logger
	now          func() time.Time
}

func New(renders store.RenderRepository, projects store.ProjectRepository, correlations store.CorrelationStore, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		renders:      renders,
		projects:     projects,
		correlations: correlations,
		logger:       logger.Named("Aggregator"),
		now:          time.Now,
	}
}

// OnNotification применяет одно уведомление. Повтор того же уведомления
// ничего не меняет; уведомления разных форматов меняют только свои поля.
func (a *Aggregator) OnNotification(ctx context.Context, n model.Notification) (Outcome, error) {
	log := a.logger.With(
		zap.String("render_id", n.RenderID.String()),
		zap.String("format", string(n.Format)),
		zap.String("outcome", string(n.Outcome)),
	)

	n, err := a.resolve(ctx, n)
	if err != nil && !errors.Is(err, ErrCorrelationMiss) {
		log.Error("Failed to resolve notification", zap.Error(err))
		return Outcome{}, err
	}
	if err != nil {
		a.count(n.Outcome, Ignored)
		log.Warn("Notification ignored", zap.Error(err))
		return Outcome{Result: Ignored}, err
	}
	if !n.Outcome.Valid() || !n.Format.Valid() {
		a.count(n.Outcome, Ignored)
		return Outcome{Result: Ignored}, fmt.Errorf("%w: outcome %q format %q", model.ErrInvalidInput, n.Outcome, n.Format)
	}

	current, err := a.renders.GetRender(ctx, n.RenderID)
	if errors.Is(err, model.ErrNotFound) {
		a.count(n.Outcome, Ignored)
		log.Warn("Notification for unknown render")
		return Outcome{Result: Ignored}, fmt.Errorf("%w: render %s", ErrCorrelationMiss, n.RenderID)
	}
	if err != nil {
		return Outcome{}, err
	}
	if n.ProjectID != uuid.Nil && n.ProjectID != current.ProjectID {
		a.count(n.Outcome, Ignored)
		log.Warn("Notification project does not match render", zap.String("claimed_project_id", n.ProjectID.String()))
		return Outcome{Result: Ignored}, fmt.Errorf("%w: render %s belongs to another project", ErrCorrelationMiss, n.RenderID)
	}

	r, mr, err := a.renders.ApplyResult(ctx, n.RenderID, n.Result(), a.now())
	if err != nil {
		log.Error("Failed to apply notification", zap.Error(err))
		return Outcome{}, fmt.Errorf("apply notification: %w", err)
	}

	out := Outcome{Result: Applied, Render: r, Merge: mr}
	if !mr.Changed {
		out.Result = Ignored
		if _, ok := r.OutputURLs[n.Format]; ok {
			out.Result = Duplicate
		} else if _, ok := r.FormatErrors[n.Format]; ok {
			out.Result = Duplicate
		}
		a.count(n.Outcome, out.Result)
		log.Debug("Notification changed nothing", zap.String("reason", mr.Reason), zap.String("result", string(out.Result)))
		// Повтор после неудачного каскада: рендер уже терминальный, а проект
		// всё ещё ждёт его в rendering.
		if r.Terminal() {
			pending, err := a.cascadePending(ctx, r)
			if err != nil {
				log.Error("Failed to load project for cascade retry", zap.Error(err))
				return out, fmt.Errorf("load project: %w", err)
			}
			if pending {
				out.Cascaded, err = a.cascade(ctx, r, log)
				if err != nil {
					return out, err
				}
			}
		}
		return out, nil
	}
	a.count(n.Outcome, Applied)
	log.Info("Notification applied", zap.Int("progress", r.Progress), zap.String("status", string(r.Status)))

	if mr.Finalized {
		metrics.RenderCompletions.WithLabelValues(string(r.Status)).Inc()
		out.Cascaded, err = a.cascade(ctx, r, log)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// cascade переносит терминальный статус рендера на проект. FinishRender
// идемпотентен, поэтому повторный вызов безопасен.
func (a *Aggregator) cascade(ctx context.Context, r *model.Render, log *zap.Logger) (bool, error) {
	status := model.ProjectCompleted
	if r.Status == model.RenderFailed {
		status = model.ProjectFailed
	}
	// Проект берётся из записи рендера, не из уведомления.
	ok, err := a.projects.FinishRender(ctx, r.ProjectID, r.ID, status)
	if err != nil {
		log.Error("Failed to cascade render status to project", zap.Error(err))
		return false, fmt.Errorf("cascade project status: %w", err)
	}
	if !ok {
		log.Info("Render superseded, project status left unchanged", zap.String("project_id", r.ProjectID.String()))
	}
	return ok, nil
}

// cascadePending - рендер всё ещё активный, а проект так и остался в rendering.
func (a *Aggregator) cascadePending(ctx context.Context, r *model.Render) (bool, error) {
	p, err := a.projects.GetProject(ctx, r.ProjectID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Status == model.ProjectRendering && p.ActiveRenderID != nil && *p.ActiveRenderID == r.ID, nil
}

// resolve дополняет уведомление по внешнему id задачи. Если уведомление
// само называет рендер, корреляция обязана с ним совпасть.
func (a *Aggregator) resolve(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ExternalID == "" || a.correlations == nil {
		if n.RenderID == uuid.Nil {
			return n, fmt.Errorf("%w: no render id", ErrCorrelationMiss)
		}
		return n, nil
	}
	c, err := a.correlations.Get(ctx, n.ExternalID)
	if errors.Is(err, model.ErrNotFound) {
		if n.RenderID == uuid.Nil {
			return n, fmt.Errorf("%w: unknown job %s", ErrCorrelationMiss, n.ExternalID)
		}
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("lookup correlation: %w", err)
	}
	if n.RenderID != uuid.Nil && (n.RenderID != c.RenderID || (n.Format != "" && n.Format != c.Format)) {
		return n, fmt.Errorf("%w: job %s belongs to render %s/%s", ErrCorrelationMiss, n.ExternalID, c.RenderID, c.Format)
	}
	n.RenderID = c.RenderID
	n.Format = c.Format
	if n.ProjectID == uuid.Nil {
		n.ProjectID = c.ProjectID
	}
	return n, nil
}

func (a *Aggregator) count(o model.Outcome, r Result) {
	metrics.Notifications.WithLabelValues(string(o), string(r)).Inc()
}
