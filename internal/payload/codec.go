package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/metrics"
	"github.com/ivlev/scenereel/internal/objectstore"
	"github.com/ivlev/scenereel/internal/sigv4"
)

const (
	TypePayload   = "payload"
	TypeBucketURL = "bucket-url"

	DefaultInlineThreshold = 200_000
	keyPrefix              = "input-props/"
)

var (
	ErrSerialization = errors.New("payload serialization failed")
	ErrHashMismatch  = errors.New("offloaded payload hash mismatch")
)

// Serialized - то, что уходит в тело вызова: либо сами пропсы строкой,
// либо ссылка на объект input-props/<sha256>.json.
type Serialized struct {
	Type       string `json:"type"`
	Payload    string `json:"payload,omitempty"`
	Hash       string `json:"hash,omitempty"`
	BucketName string `json:"bucketName,omitempty"`
}

// Key - ключ объекта для выгруженных пропсов.
func Key(hash string) string {
	return keyPrefix + hash + ".json"
}

// Codec сериализует пропсы. Всё, что длиннее порога, выгружается в
// хранилище под хешем содержимого.
type Codec struct {
	store     objectstore.Store
	threshold int
	logger    *zap.Logger
}

// NewCodec: threshold <= 0 - порог по умолчанию. store может быть nil,
// тогда большие пропсы отправляются целиком с предупреждением.
func NewCodec(store objectstore.Store, threshold int, logger *zap.Logger) *Codec {
	if threshold <= 0 {
		threshold = DefaultInlineThreshold
	}
	return &Codec{store: store, threshold: threshold, logger: logger.Named("PayloadCodec")}
}

func (c *Codec) Threshold() int { return c.threshold }

func (c *Codec) Encode(ctx context.Context, props InputProps) (Serialized, error) {
	data, err := json.Marshal(props)
	if err != nil {
		return Serialized{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	metrics.PayloadBytes.Observe(float64(len(data)))

	if len(data) <= c.threshold {
		return Serialized{Type: TypePayload, Payload: string(data)}, nil
	}
	if c.store == nil {
		c.logger.Warn("Payload exceeds inline threshold but no object store is configured",
			zap.Int("size_bytes", len(data)),
			zap.Int("threshold", c.threshold),
		)
		return Serialized{Type: TypePayload, Payload: string(data)}, nil
	}

	hash := sigv4.HashHex(data)
	if _, err := c.store.Put(ctx, Key(hash), data, "application/json"); err != nil {
		return Serialized{}, fmt.Errorf("offload payload: %w", err)
	}
	metrics.PayloadOffloads.Inc()
	c.logger.Info("Payload offloaded",
		zap.String("render_id", props.RenderID.String()),
		zap.String("format", string(props.Format)),
		zap.String("hash", hash),
		zap.Int("size_bytes", len(data)),
	)
	return Serialized{Type: TypeBucketURL, Hash: hash, BucketName: c.store.Bucket()}, nil
}

// Decode - обратная операция: достаёт выгруженные пропсы и сверяет хеш.
func (c *Codec) Decode(ctx context.Context, s Serialized) (InputProps, error) {
	var raw []byte
	switch s.Type {
	case TypePayload:
		raw = []byte(s.Payload)
	case TypeBucketURL:
		if c.store == nil {
			return InputProps{}, errors.New("offloaded payload without object store")
		}
		data, err := c.store.Get(ctx, Key(s.Hash))
		if err != nil {
			return InputProps{}, fmt.Errorf("fetch payload %s: %w", s.Hash, err)
		}
		if sigv4.HashHex(data) != s.Hash {
			return InputProps{}, ErrHashMismatch
		}
		raw = data
	default:
		return InputProps{}, fmt.Errorf("%w: unknown payload type %q", ErrSerialization, s.Type)
	}
	var props InputProps
	if err := json.Unmarshal(raw, &props); err != nil {
		return InputProps{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return props, nil
}
