package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/payload"
	"github.com/ivlev/scenereel/internal/sigv4"
)

type LambdaConfig struct {
	Credentials  sigv4.Credentials
	Region       string
	FunctionName string
	ServeURL     string
	Composition  string
	OutputBucket string
	// Endpoint заменяет https://lambda.<region>.amazonaws.com (тесты, localstack).
	Endpoint     string
}

// Configured сообщает, достаточно ли настроек для удалённого вызова.
func (c LambdaConfig) Configured() bool {
	return c.Credentials.Valid() && c.Region != "" && c.FunctionName != ""
}

// LambdaBackend вызывает функцию рендера напрямую через Invoke API с
// подписью SigV4.
type LambdaBackend struct {
	cfg    LambdaConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

var _ Backend = (*LambdaBackend)(nil)

func NewLambdaBackend(cfg LambdaConfig, logger *zap.Logger) (*LambdaBackend, error) {
	if !cfg.Configured() {
		return nil, ErrConfigurationMissing
	}
	if cfg.Composition == "" {
		cfg.Composition = "SceneReel"
	}
	return &LambdaBackend{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.Named("LambdaBackend"),
		now:    time.Now,
	}, nil
}

func (b *LambdaBackend) Name() model.Renderer { return model.RendererLambda }

// invokeRequest - тело вызова функции рендера.
type invokeRequest struct {
	Type        string             `json:"type"`
	ServeURL    string             `json:"serveUrl"`
	Composition string             `json:"composition"`
	InputProps  payload.Serialized `json:"inputProps"`
	Codec       string             `json:"codec"`
	CRF         int                `json:"crf"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	FPS         int                `json:"fps"`
	Frames      int                `json:"durationInFrames"`
	OutName     string             `json:"outName"`
	BucketName  string             `json:"bucketName,omitempty"`
	Webhook     *invokeWebhook     `json:"webhook,omitempty"`
}

type invokeWebhook struct {
	URL        string              `json:"url"`
	Secret     string              `json:"secret,omitempty"`
	CustomData payload.Correlation `json:"customData"`
}

type invokeResponse struct {
	Type         string `json:"type"`
	RenderID     string `json:"renderId"`
	BucketName   string `json:"bucketName"`
	Message      string `json:"message"`
	ErrorType    string `json:"errorType"`
	// Ответ при X-Amz-Function-Error.
	ErrorMessage string `json:"errorMessage"`
}

func (b *LambdaBackend) endpoint() string {
	if b.cfg.Endpoint != "" {
		return strings.TrimRight(b.cfg.Endpoint, "/")
	}
	return fmt.Sprintf("https://lambda.%s.amazonaws.com", b.cfg.Region)
}

func (b *LambdaBackend) Submit(ctx context.Context, job Job) (string, error) {
	p := job.Props
	reqBody := invokeRequest{
		Type:        "start",
		ServeURL:    b.cfg.ServeURL,
		Composition: b.cfg.Composition,
		InputProps:  job.Payload,
		Codec:       "h264",
		CRF:         p.CRF,
		Width:       p.Width,
		Height:      p.Height,
		FPS:         p.FPS,
		Frames:      p.DurationInFrames,
		OutName:     p.OutputKey,
		BucketName:  b.cfg.OutputBucket,
	}
	if p.Webhook != nil && p.Webhook.URL != "" {
		reqBody.Webhook = &invokeWebhook{URL: p.Webhook.URL, Secret: p.Webhook.Secret, CustomData: p.Correlation}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	endpoint := fmt.Sprintf("%s/2015-03-31/functions/%s/invocations", b.endpoint(), url.PathEscape(b.cfg.FunctionName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrRemoteInvocation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Amz-Invocation-Type", "RequestResponse")
	if err := sigv4.SignHTTP(req, body, b.cfg.Region, "lambda", b.cfg.Credentials, b.now()); err != nil {
		return "", fmt.Errorf("%w: sign request: %v", ErrRemoteInvocation, err)
	}

	log := b.logger.With(
		zap.String("render_id", p.RenderID.String()),
		zap.String("format", string(p.Format)),
		zap.String("function", b.cfg.FunctionName),
	)
	log.Debug("Invoking render function", zap.Int("payload_bytes", len(body)))

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", context.DeadlineExceeded
		}
		return "", fmt.Errorf("%w: %v", ErrRemoteInvocation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrRemoteInvocation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("Render function returned non-2xx status",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", raw),
		)
		return "", fmt.Errorf("%w: status %d: %s", ErrRemoteInvocation, resp.StatusCode, truncate(raw))
	}

	var out invokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRemoteInvocation, err)
	}
	if fe := resp.Header.Get("X-Amz-Function-Error"); fe != "" {
		return "", fmt.Errorf("%w: %s: %s", ErrRemoteLogical, fe, firstNonEmpty(out.ErrorMessage, out.Message, string(truncate(raw))))
	}
	if out.Type == "error" {
		return "", fmt.Errorf("%w: %s", ErrRemoteLogical, firstNonEmpty(out.Message, out.ErrorMessage, "unknown error"))
	}
	if out.RenderID == "" {
		return "", fmt.Errorf("%w: response has no render id", ErrRemoteLogical)
	}
	log.Info("Render job started", zap.String("external_id", out.RenderID))
	return out.RenderID, nil
}

func truncate(b []byte) []byte {
	if len(b) > 512 {
		return b[:512]
	}
	return b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
