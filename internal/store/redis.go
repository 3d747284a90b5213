package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/model"
)

const (
	correlationKeyPrefix  = "scenereel:correlation:"
	renderJobsKeyPrefix   = "scenereel:render-jobs:"
	DefaultCorrelationTTL = 48 * time.Hour
)

// RedisCorrelations хранит корреляции как JSON под ключом внешнего id с TTL
// и набор внешних id на каждый рендер.
type RedisCorrelations struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ CorrelationStore = (*RedisCorrelations)(nil)

func NewRedisCorrelations(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCorrelations {
	if ttl <= 0 {
		ttl = DefaultCorrelationTTL
	}
	return &RedisCorrelations{client: client, ttl: ttl, logger: logger.Named("RedisCorrelations")}
}

func correlationKey(externalID string) string { return correlationKeyPrefix + externalID }
func renderJobsKey(id uuid.UUID) string       { return renderJobsKeyPrefix + id.String() }

func (s *RedisCorrelations) Put(ctx context.Context, c model.Correlation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal correlation: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, correlationKey(c.ExternalID), data, s.ttl)
		pipe.SAdd(ctx, renderJobsKey(c.RenderID), c.ExternalID)
		pipe.Expire(ctx, renderJobsKey(c.RenderID), s.ttl)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store correlation", zap.String("external_id", c.ExternalID), zap.Error(err))
		return fmt.Errorf("store correlation %s: %w", c.ExternalID, err)
	}
	return nil
}

func (s *RedisCorrelations) Get(ctx context.Context, externalID string) (model.Correlation, error) {
	data, err := s.client.Get(ctx, correlationKey(externalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Correlation{}, model.ErrNotFound
	}
	if err != nil {
		return model.Correlation{}, fmt.Errorf("get correlation %s: %w", externalID, err)
	}
	var c model.Correlation
	if err := json.Unmarshal(data, &c); err != nil {
		return model.Correlation{}, fmt.Errorf("decode correlation %s: %w", externalID, err)
	}
	return c, nil
}

func (s *RedisCorrelations) ListByRender(ctx context.Context, renderID uuid.UUID) ([]model.Correlation, error) {
	ids, err := s.client.SMembers(ctx, renderJobsKey(renderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list correlations of %s: %w", renderID, err)
	}
	sort.Strings(ids)
	out := make([]model.Correlation, 0, len(ids))
	for _, id := range ids {
		c, err := s.Get(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			// истёк TTL
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// NewRedisClient подключается и проверяет соединение.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
