// Package dispatch запускает рендер проекта: по одной независимой задаче
// на формат, с выбором бэкенда и откатом на запасной при отсутствии настроек.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/metrics"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/payload"
	"github.com/ivlev/scenereel/internal/store"
)

var (
	ErrConfigurationMissing = errors.New("remote renderer is not configured")
	ErrRemoteInvocation     = errors.New("remote invocation failed")
	ErrRemoteLogical        = errors.New("remote renderer reported an error")
	ErrSerialization        = payload.ErrSerialization
	ErrAggregateFailure     = errors.New("no render job could be started")
)

const DefaultInvokeTimeout = 30 * time.Second

type Config struct {
	FPS              int
	TransitionWindow int
	Features         compositor.Features
	Webhook          *payload.Webhook
	// InvokeTimeout ограничивает запуск одной задачи формата.
	InvokeTimeout    time.Duration
	// DevFallback включает симуляцию, если ни одна задача не запустилась.
	DevFallback      bool
}

// Request - запрос на рендер проекта.
type Request struct {
	ProjectID uuid.UUID
	// RenderID можно задать заранее (идемпотентный повтор запроса).
	RenderID  uuid.UUID
	Formats   []model.Format
	Quality   model.Quality
}

type Dispatcher struct {
	backends     []Backend
	simulator    *Simulator
	codec        *payload.Codec
	projects     store.ProjectRepository
	renders      store.RenderRepository
	correlations store.CorrelationStore
	notifier     Notifier
	cfg          Config
	logger       *zap.Logger
	now          func() time.Time
}

// New: backends перечисляются в порядке предпочтения, nil пропускаются.
// Первый непустой становится основным.
func New(
	cfg Config,
	codec *payload.Codec,
	projects store.ProjectRepository,
	renders store.RenderRepository,
	correlations store.CorrelationStore,
	notifier Notifier,
	simulator *Simulator,
	logger *zap.Logger,
	backends ...Backend,
) *Dispatcher {
	if cfg.FPS <= 0 {
		cfg.FPS = compositor.DefaultFPS
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = DefaultInvokeTimeout
	}
	d := &Dispatcher{
		simulator:    simulator,
		codec:        codec,
		projects:     projects,
		renders:      renders,
		correlations: correlations,
		notifier:     notifier,
		cfg:          cfg,
		logger:       logger.Named("Dispatcher"),
		now:          time.Now,
	}
	for _, b := range backends {
		if b != nil && !isNilBackend(b) {
			d.backends = append(d.backends, b)
		}
	}
	return d
}

// isNilBackend ловит typed nil (*LambdaBackend)(nil) в интерфейсе.
func isNilBackend(b Backend) bool {
	switch v := b.(type) {
	case *LambdaBackend:
		return v == nil
	case *LocalBackend:
		return v == nil
	case *Simulator:
		return v == nil
	}
	return false
}

// primary - бэкенд, на котором стартует рендер.
func (d *Dispatcher) primary() (Backend, error) {
	if len(d.backends) > 0 {
		return d.backends[0], nil
	}
	if d.cfg.DevFallback && d.simulator != nil {
		return d.simulator, nil
	}
	return nil, ErrConfigurationMissing
}

type formatResult struct {
	format     model.Format
	externalID string
	err        error
}

func (r formatResult) outcome() model.Outcome {
	switch {
	case r.err == nil:
		return model.OutcomeSuccess
	case errors.Is(r.err, context.DeadlineExceeded):
		return model.OutcomeTimeout
	default:
		return model.OutcomeError
	}
}

// abandon закрывает рендер, который так и не стал активным: иначе запись
// навсегда осталась бы в queued.
func (d *Dispatcher) abandon(ctx context.Context, render *model.Render, cause error, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	for _, f := range render.Formats {
		res := model.FormatResult{Format: f, Outcome: model.OutcomeError, Errors: []string{"activate render: " + cause.Error()}}
		if _, _, err := d.renders.ApplyResult(ctx, render.ID, res, d.now()); err != nil {
			log.Error("Failed to mark abandoned render as failed", zap.String("format", string(f)), zap.Error(err))
			return
		}
	}
	metrics.RenderCompletions.WithLabelValues(string(model.RenderFailed)).Inc()
}

// Dispatch создаёт запись рендера и запускает задачи форматов параллельно.
// Ошибка одного формата не прерывает остальные. Если не запустилась ни
// одна задача, рендер уходит в симуляцию (DevFallback) или завершается
// как failed с ErrAggregateFailure.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*model.Render, error) {
	project, err := d.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	scenes, err := d.projects.ListScenes(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load scenes: %w", err)
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: project has no scenes", model.ErrInvalidInput)
	}
	formats := req.Formats
	if len(formats) == 0 {
		formats = model.AllFormats
	}
	quality := req.Quality
	if quality == "" {
		quality = model.QualityStandard
	}
	renderID := req.RenderID
	if renderID == uuid.Nil {
		renderID = uuid.New()
	}

	backend, backendErr := d.primary()
	rendererName := model.RendererNone
	if backendErr == nil {
		rendererName = backend.Name()
	}

	log := d.logger.With(
		zap.String("project_id", project.ID.String()),
		zap.String("render_id", renderID.String()),
		zap.String("renderer", string(rendererName)),
	)

	render := model.NewRender(renderID, project.ID, formats, quality, rendererName, d.now())
	if err := d.renders.CreateRender(ctx, render); err != nil {
		return nil, fmt.Errorf("create render: %w", err)
	}
	if err := d.projects.StartRender(ctx, project.ID, renderID); err != nil {
		log.Error("Failed to activate render", zap.Error(err))
		d.abandon(ctx, render, err, log)
		return nil, fmt.Errorf("activate render: %w", err)
	}

	var results []formatResult
	if backendErr != nil {
		log.Warn("No render backend configured", zap.Error(backendErr))
		for _, f := range formats {
			results = append(results, formatResult{format: f, err: backendErr})
		}
	} else {
		log.Info("Dispatching render", zap.Int("formats", len(formats)), zap.String("quality", string(quality)))
		results = d.fanOut(ctx, backend, project, scenes, renderID, formats, quality)
	}

	started := 0
	for _, r := range results {
		metrics.DispatchInvocations.WithLabelValues(string(rendererName), string(r.format), string(r.outcome())).Inc()
		if r.err == nil {
			started++
		}
	}

	if started == 0 && d.cfg.DevFallback && d.simulator != nil && rendererName != model.RendererSimulated {
		log.Warn("No render job started, falling back to simulation")
		if err := d.renders.SetRenderer(ctx, renderID, model.RendererSimulated); err != nil {
			return nil, fmt.Errorf("switch renderer: %w", err)
		}
		results = d.fanOut(ctx, d.simulator, project, scenes, renderID, formats, quality)
		started = 0
		for _, r := range results {
			if r.err == nil {
				started++
			}
		}
	}

	// Неудачные запуски проходят через тот же вход, что и уведомления.
	for _, r := range results {
		if r.err == nil {
			continue
		}
		log.Warn("Render job failed to start", zap.String("format", string(r.format)), zap.Error(r.err))
		n := model.Notification{
			RenderID:  renderID,
			ProjectID: project.ID,
			Format:    r.format,
			Outcome:   r.outcome(),
			Errors:    []string{r.err.Error()},
		}
		if n.Outcome == model.OutcomeTimeout {
			n.Errors = []string{fmt.Sprintf("timeout after %s", d.cfg.InvokeTimeout)}
		}
		if _, err := d.notifier.OnNotification(ctx, n); err != nil {
			log.Error("Failed to record start failure", zap.String("format", string(r.format)), zap.Error(err))
		}
	}

	current, err := d.renders.GetRender(ctx, renderID)
	if err != nil {
		return nil, fmt.Errorf("reload render: %w", err)
	}
	if started == 0 {
		log.Error("Render failed: no job started")
		return current, fmt.Errorf("%w: %s", ErrAggregateFailure, current.ErrorMessage)
	}
	log.Info("Render dispatched", zap.Int("started", started), zap.Int("failed", len(results)-started))
	return current, nil
}

// fanOut запускает по задаче на формат. Каждая задача получает свой
// таймаут; паника или ошибка одной не влияет на другие.
func (d *Dispatcher) fanOut(ctx context.Context, backend Backend, project *model.Project, scenes []model.Scene, renderID uuid.UUID, formats []model.Format, quality model.Quality) []formatResult {
	results := make([]formatResult, len(formats))
	var g errgroup.Group
	for i, f := range formats {
		g.Go(func() error {
			id, err := d.submit(ctx, backend, project, scenes, renderID, f, quality)
			results[i] = formatResult{format: f, externalID: id, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) submit(ctx context.Context, backend Backend, project *model.Project, scenes []model.Scene, renderID uuid.UUID, f model.Format, q model.Quality) (externalID string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRemoteInvocation, rec)
		}
	}()

	props, err := payload.Build(*project, scenes, renderID, f, q, payload.BuildOptions{
		FPS:              d.cfg.FPS,
		TransitionWindow: d.cfg.TransitionWindow,
		Features:         d.cfg.Features,
		Webhook:          d.cfg.Webhook,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, d.cfg.InvokeTimeout)
	defer cancel()

	ser, err := d.codec.Encode(jobCtx, props)
	if err != nil {
		return "", err
	}
	externalID, err = backend.Submit(jobCtx, Job{Props: props, Payload: ser})
	if err != nil {
		if jobCtx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", err
	}

	c := model.Correlation{
		ExternalID: externalID,
		RenderID:   renderID,
		ProjectID:  project.ID,
		Format:     f,
		Renderer:   backend.Name(),
		CreatedAt:  d.now(),
	}
	if err := d.correlations.Put(ctx, c); err != nil {
		// задача уже запущена; уведомление всё равно несёт renderId
		d.logger.Warn("Failed to record correlation", zap.String("external_id", externalID), zap.Error(err))
	}
	return externalID, nil
}
