package dispatch

import (
	"context"

	"github.com/ivlev/scenereel/internal/aggregator"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/payload"
)

// Job - задача рендера одного формата.
type Job struct {
	Props   payload.InputProps
	Payload payload.Serialized
}

// Backend запускает задачу и возвращает внешний id. Завершение задачи
// приходит позже отдельным уведомлением.
type Backend interface {
	Name() model.Renderer
	Submit(ctx context.Context, job Job) (string, error)
}

// Notifier принимает уведомления о завершении форматов.
type Notifier interface {
	OnNotification(ctx context.Context, n model.Notification) (aggregator.Outcome, error)
}

var _ Notifier = (*aggregator.Aggregator)(nil)
