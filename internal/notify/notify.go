// Package notify принимает уведомления о завершении форматов: проверяет
// подпись, разбирает тело и передаёт агрегатору. Источники - вебхук и
// очередь RabbitMQ.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ivlev/scenereel/internal/aggregator"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/payload"
)

// Handler - получатель разобранных уведомлений.
type Handler interface {
	OnNotification(ctx context.Context, n model.Notification) (aggregator.Outcome, error)
}

// Message - тело уведомления. Корреляция приходит в correlation или,
// у некоторых рендереров, в customData.
type Message struct {
	Type        model.Outcome        `json:"type"`
	Format      model.Format         `json:"format,omitempty"`
	OutputURL   string               `json:"outputUrl,omitempty"`
	Errors      ErrorList            `json:"errors,omitempty"`
	RenderJobID string               `json:"renderJobId,omitempty"`
	Correlation *payload.Correlation `json:"correlation,omitempty"`
	CustomData  *payload.Correlation `json:"customData,omitempty"`
}

// ErrorList принимает и строки, и объекты вида {"message": "..."}.
type ErrorList []string

func (l *ErrorList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ErrorList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("error entry: %w", err)
		}
		if obj.Name != "" && obj.Message != "" {
			out = append(out, obj.Name+": "+obj.Message)
		} else {
			out = append(out, obj.Name+obj.Message)
		}
	}
	*l = out
	return nil
}

// Decode разбирает тело уведомления.
func Decode(body []byte) (model.Notification, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return model.Notification{}, fmt.Errorf("%w: empty notification", model.ErrInvalidInput)
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return model.Notification{}, fmt.Errorf("%w: decode notification: %v", model.ErrInvalidInput, err)
	}
	if !m.Type.Valid() {
		return model.Notification{}, fmt.Errorf("%w: unknown notification type %q", model.ErrInvalidInput, m.Type)
	}

	n := model.Notification{
		Format:     m.Format,
		Outcome:    m.Type,
		OutputURL:  m.OutputURL,
		Errors:     m.Errors,
		ExternalID: m.RenderJobID,
	}
	corr := m.Correlation
	if corr == nil {
		corr = m.CustomData
	}
	if corr != nil {
		n.RenderID = corr.RenderID
		n.ProjectID = corr.ProjectID
		if n.Format == "" {
			n.Format = corr.Format
		}
	}
	return n, nil
}

// Encode собирает тело уведомления с корреляцией.
func Encode(n model.Notification) ([]byte, error) {
	m := Message{
		Type:        n.Outcome,
		Format:      n.Format,
		OutputURL:   n.OutputURL,
		Errors:      n.Errors,
		RenderJobID: n.ExternalID,
		Correlation: &payload.Correlation{ProjectID: n.ProjectID, RenderID: n.RenderID, Format: n.Format},
	}
	return json.Marshal(m)
}

// Ignorable сообщает, что уведомление нужно подтвердить и забыть:
// оно не сопоставилось с рендером или некорректно.
func Ignorable(err error) bool {
	return errors.Is(err, aggregator.ErrCorrelationMiss) || errors.Is(err, model.ErrInvalidInput)
}
