package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/aggregator"
	"github.com/ivlev/scenereel/internal/model"
)

func TestDecode(t *testing.T) {
	renderID := uuid.New()
	projectID := uuid.New()

	t.Run("correlation", func(t *testing.T) {
		body := `{"type":"success","outputUrl":"https://cdn/x.mp4","renderJobId":"job-1",
			"correlation":{"projectId":"` + projectID.String() + `","renderId":"` + renderID.String() + `","format":"vertical"}}`
		n, err := Decode([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeSuccess, n.Outcome)
		assert.Equal(t, model.FormatVertical, n.Format)
		assert.Equal(t, renderID, n.RenderID)
		assert.Equal(t, projectID, n.ProjectID)
		assert.Equal(t, "job-1", n.ExternalID)
		assert.Equal(t, "https://cdn/x.mp4", n.OutputURL)
	})

	t.Run("custom data and error objects", func(t *testing.T) {
		body := `{"type":"error","format":"square",
			"errors":["plain", {"name":"TimeoutError","message":"took too long"}, {"message":"no name"}],
			"customData":{"renderId":"` + renderID.String() + `"}}`
		n, err := Decode([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, model.FormatSquare, n.Format)
		assert.Equal(t, renderID, n.RenderID)
		assert.Equal(t, []string{"plain", "TimeoutError: took too long", "no name"}, n.Errors)
	})

	t.Run("external id only", func(t *testing.T) {
		n, err := Decode([]byte(`{"type":"timeout","renderJobId":"job-9"}`))
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, n.RenderID)
		assert.Equal(t, "job-9", n.ExternalID)
	})

	for _, bad := range []string{"", "not json", `{"type":"done"}`, `{"type":"error","errors":"boom"}`} {
		_, err := Decode([]byte(bad))
		assert.ErrorIs(t, err, model.ErrInvalidInput, "body %q", bad)
	}
}

func TestEncodeDecode(t *testing.T) {
	in := model.Notification{
		RenderID:  uuid.New(),
		ProjectID: uuid.New(),
		Format:    model.FormatHorizontal,
		Outcome:   model.OutcomeError,
		Errors:    []string{"ffmpeg exited"},
	}
	body, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestVerifier(t *testing.T) {
	body := []byte(`{"type":"success"}`)
	good := Sign("s3cret", body)

	cases := []struct {
		name    string
		secret  string
		require bool
		header  string
		want    error
	}{
		{"valid signature", "s3cret", false, good, nil},
		{"missing signature", "s3cret", false, "", ErrSignatureMissing},
		{"wrong secret", "other", false, good, ErrSignatureInvalid},
		{"no prefix", "s3cret", false, good[len("sha256="):], ErrSignatureInvalid},
		{"not hex", "s3cret", false, "sha256=zz", ErrSignatureInvalid},
		{"no secret accepts unsigned", "", false, "", nil},
		{"no secret ignores header", "", false, "sha256=00", nil},
		{"required without secret", "", true, good, ErrSignatureMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := NewVerifier(tc.secret, tc.require, zap.NewNop())
			err := v.Verify(body, tc.header)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}

	v := NewVerifier("s3cret", false, zap.NewNop())
	assert.True(t, v.Enabled())
	assert.ErrorIs(t, v.Verify([]byte(`{"type":"error"}`), good), ErrSignatureInvalid, "body tampered")
}

type mockHandler struct{ mock.Mock }

func (m *mockHandler) OnNotification(ctx context.Context, n model.Notification) (aggregator.Outcome, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(aggregator.Outcome), args.Error(1)
}

// recorder запоминает ответ брокеру.
type recorder struct {
	acked, nacked, requeued bool
}

func (r *recorder) Ack(uint64, bool) error { r.acked = true; return nil }
func (r *recorder) Nack(_ uint64, _ bool, requeue bool) error {
	r.nacked, r.requeued = true, requeue
	return nil
}
func (r *recorder) Reject(_ uint64, requeue bool) error {
	r.nacked, r.requeued = true, requeue
	return nil
}

func delivery(body []byte, headers amqp.Table) (amqp.Delivery, *recorder) {
	r := &recorder{}
	return amqp.Delivery{Acknowledger: r, DeliveryTag: 1, Body: body, Headers: headers}, r
}

func TestConsumerHandleMessage(t *testing.T) {
	renderID := uuid.New()
	body, err := Encode(model.Notification{RenderID: renderID, Format: model.FormatSquare, Outcome: model.OutcomeSuccess, OutputURL: "u"})
	require.NoError(t, err)

	cases := []struct {
		name        string
		result      aggregator.Outcome
		err         error
		wantAck     bool
		wantRequeue bool
	}{
		{"applied", aggregator.Outcome{Result: aggregator.Applied}, nil, true, false},
		{"correlation miss", aggregator.Outcome{Result: aggregator.Ignored}, aggregator.ErrCorrelationMiss, true, false},
		{"store error", aggregator.Outcome{}, errors.New("connection refused"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := new(mockHandler)
			h.On("OnNotification", mock.Anything, mock.MatchedBy(func(n model.Notification) bool {
				return n.RenderID == renderID && n.Format == model.FormatSquare
			})).Return(tc.result, tc.err).Once()

			c := NewConsumer(nil, "render.notifications", h, nil, zap.NewNop())
			msg, rec := delivery(body, nil)
			c.handleMessage(context.Background(), msg)

			h.AssertExpectations(t)
			assert.Equal(t, tc.wantAck, rec.acked)
			assert.Equal(t, !tc.wantAck, rec.nacked)
			assert.Equal(t, tc.wantRequeue, rec.requeued)
		})
	}

	t.Run("malformed body is dropped", func(t *testing.T) {
		h := new(mockHandler)
		c := NewConsumer(nil, "q", h, nil, zap.NewNop())
		msg, rec := delivery([]byte("{"), nil)
		c.handleMessage(context.Background(), msg)
		h.AssertNotCalled(t, "OnNotification", mock.Anything, mock.Anything)
		assert.True(t, rec.nacked)
		assert.False(t, rec.requeued)
	})

	t.Run("signature checked when configured", func(t *testing.T) {
		h := new(mockHandler)
		h.On("OnNotification", mock.Anything, mock.Anything).Return(aggregator.Outcome{Result: aggregator.Applied}, nil).Once()
		c := NewConsumer(nil, "q", h, NewVerifier("k", false, zap.NewNop()), zap.NewNop())

		bad, rec := delivery(body, amqp.Table{SignatureHeader: "sha256=00"})
		c.handleMessage(context.Background(), bad)
		assert.True(t, rec.nacked)

		good, rec := delivery(body, amqp.Table{SignatureHeader: Sign("k", body)})
		c.handleMessage(context.Background(), good)
		assert.True(t, rec.acked)
		h.AssertExpectations(t)
	})
}
