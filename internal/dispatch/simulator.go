package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/model"
)

type SimulatorConfig struct {
	// PublicBaseURL - префикс выдуманных URL готовых видео.
	PublicBaseURL string
	Steps         int
	StepDelay     time.Duration
}

// Simulator - dev-режим без настоящего рендера: через несколько шагов
// присылает успех по каждому формату через обычный вход уведомлений.
type Simulator struct {
	cfg      SimulatorConfig
	notifier Notifier
	ctx      context.Context
	wg       sync.WaitGroup
	logger   *zap.Logger
}

var _ Backend = (*Simulator)(nil)

// NewSimulator: ctx ограничивает жизнь фоновых задач (обычно контекст сервера).
func NewSimulator(ctx context.Context, cfg SimulatorConfig, notifier Notifier, logger *zap.Logger) *Simulator {
	if cfg.Steps <= 0 {
		cfg.Steps = 5
	}
	return &Simulator{cfg: cfg, notifier: notifier, ctx: ctx, logger: logger.Named("Simulator")}
}

func (s *Simulator) Name() model.Renderer { return model.RendererSimulated }

func (s *Simulator) Submit(_ context.Context, job Job) (string, error) {
	externalID := "sim-" + uuid.NewString()
	p := job.Props
	url := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + p.OutputKey

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for i := 0; i < s.cfg.Steps; i++ {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(s.cfg.StepDelay):
			}
			s.logger.Debug("Simulated render step",
				zap.String("render_id", p.RenderID.String()),
				zap.String("format", string(p.Format)),
				zap.Int("step", i+1),
				zap.Int("steps", s.cfg.Steps),
			)
		}
		n := model.Notification{
			RenderID:   p.RenderID,
			ProjectID:  p.ProjectID,
			Format:     p.Format,
			Outcome:    model.OutcomeSuccess,
			OutputURL:  url,
			ExternalID: externalID,
		}
		if _, err := s.notifier.OnNotification(s.ctx, n); err != nil {
			s.logger.Error("Simulated notification failed", zap.Error(err))
		}
	}()
	return externalID, nil
}

// Wait дожидается всех запущенных симуляций.
func (s *Simulator) Wait() { s.wg.Wait() }
