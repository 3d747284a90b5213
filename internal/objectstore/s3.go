package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/sigv4"
)

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // пусто - https://s3.<region>.amazonaws.com
	// PathStyle: <endpoint>/<bucket>/<key> вместо <bucket>.<host>/<key> (MinIO).
	PathStyle bool

	Credentials sigv4.Credentials
	Timeout     time.Duration
}

// S3Store говорит с S3-совместимым API напрямую через подписанные запросы.
type S3Store struct {
	cfg    S3Config
	base   *url.URL
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

var _ Store = (*S3Store)(nil)

func NewS3Store(cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("s3 store: bucket and region are required")
	}
	if !cfg.Credentials.Valid() {
		return nil, fmt.Errorf("s3 store: %w", sigv4.ErrMissingCredentials)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("s3 store: parse endpoint: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &S3Store{
		cfg:    cfg,
		base:   base,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("S3Store"),
		now:    time.Now,
	}, nil
}

func (s *S3Store) Bucket() string { return s.cfg.Bucket }

func (s *S3Store) URL(key string) string {
	return s.objectURL(key).String()
}

func (s *S3Store) objectURL(key string) *url.URL {
	u := *s.base
	key = strings.TrimLeft(key, "/")
	if s.cfg.PathStyle {
		u.Path = "/" + s.cfg.Bucket + "/" + key
	} else {
		u.Host = s.cfg.Bucket + "." + u.Host
		u.Path = "/" + key
	}
	return &u
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := s.do(ctx, http.MethodPut, key, body, contentType)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("S3 put failed",
			zap.String("key", key),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", msg),
		)
		return "", fmt.Errorf("s3 put %s: status %d", key, resp.StatusCode)
	}
	s.logger.Debug("Object stored", zap.String("key", key), zap.Int("size_bytes", len(body)))
	return s.URL(key), nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, key, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	default:
		return nil, fmt.Errorf("s3 get %s: status %d", key, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: read body: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) do(ctx context.Context, method, key string, body []byte, contentType string) (*http.Response, error) {
	u := s.objectURL(key)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := sigv4.SignHTTP(req, body, s.cfg.Region, "s3", s.cfg.Credentials, s.now()); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("s3 %s %s: %w", method, key, err)
	}
	return resp, nil
}
