package dispatch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/objectstore"
	"github.com/ivlev/scenereel/internal/payload"
)

// FormatRenderer рендерит один формат в локальный mp4 и возвращает путь.
type FormatRenderer interface {
	RenderFormat(ctx context.Context, props payload.InputProps) (string, error)
}

// LocalBackend - запасной рендерер на этой же машине. Задачи выполняются
// по одной, чтобы не делить CPU между форматами: каждый формат сам
// распараллеливается по кадрам.
type LocalBackend struct {
	renderer FormatRenderer
	store    objectstore.Store
	notifier Notifier
	ctx      context.Context
	sem      chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

var _ Backend = (*LocalBackend)(nil)

func NewLocalBackend(ctx context.Context, renderer FormatRenderer, store objectstore.Store, notifier Notifier, logger *zap.Logger) *LocalBackend {
	return &LocalBackend{
		renderer: renderer,
		store:    store,
		notifier: notifier,
		ctx:      ctx,
		sem:      make(chan struct{}, 1),
		logger:   logger.Named("LocalBackend"),
	}
}

func (b *LocalBackend) Name() model.Renderer { return model.RendererLocal }

func (b *LocalBackend) Submit(_ context.Context, job Job) (string, error) {
	externalID := "local-" + uuid.NewString()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		n := b.run(job.Props)
		n.ExternalID = externalID
		if _, err := b.notifier.OnNotification(b.ctx, n); err != nil {
			b.logger.Error("Failed to deliver local render result", zap.Error(err))
		}
	}()
	return externalID, nil
}

func (b *LocalBackend) run(p payload.InputProps) model.Notification {
	n := model.Notification{RenderID: p.RenderID, ProjectID: p.ProjectID, Format: p.Format}
	fail := func(err error) model.Notification {
		n.Outcome = model.OutcomeError
		if b.ctx.Err() != nil {
			n.Outcome = model.OutcomeTimeout
		}
		n.Errors = []string{err.Error()}
		return n
	}

	select {
	case b.sem <- struct{}{}:
		defer func() { <-b.sem }()
	case <-b.ctx.Done():
		return fail(b.ctx.Err())
	}

	log := b.logger.With(zap.String("render_id", p.RenderID.String()), zap.String("format", string(p.Format)))
	log.Info("Local render started", zap.Int("frames", p.DurationInFrames))

	path, err := b.renderer.RenderFormat(b.ctx, p)
	if err != nil {
		log.Error("Local render failed", zap.Error(err))
		return fail(err)
	}
	defer os.Remove(path)

	url, err := objectstore.PutFile(b.ctx, b.store, p.OutputKey, path, "video/mp4")
	if err != nil {
		log.Error("Upload failed", zap.Error(err))
		return fail(fmt.Errorf("upload %s: %w", p.OutputKey, err))
	}
	log.Info("Local render finished", zap.String("url", url))
	n.Outcome = model.OutcomeSuccess
	n.OutputURL = url
	return n
}

// Wait дожидается фоновых рендеров.
func (b *LocalBackend) Wait() { b.wg.Wait() }
