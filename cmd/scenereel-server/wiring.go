package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/config"
	"github.com/ivlev/scenereel/internal/dispatch"
	"github.com/ivlev/scenereel/internal/engine"
	"github.com/ivlev/scenereel/internal/objectstore"
	"github.com/ivlev/scenereel/internal/sigv4"
	"github.com/ivlev/scenereel/internal/source"
	"github.com/ivlev/scenereel/internal/store"
)

type storage struct {
	projects     store.ProjectRepository
	renders      store.RenderRepository
	correlations store.CorrelationStore
	pool         *pgxpool.Pool
	redis        *redis.Client
}

func (s *storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}

// openStores: Postgres и Redis, если заданы, иначе хранилище в памяти.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	s := &storage{}
	mem := store.NewMemory()

	if cfg.Postgres.DSN != "" {
		if cfg.Postgres.Migrate {
			if err := store.Migrate(cfg.Postgres.DSN, logger); err != nil {
				return nil, err
			}
		}
		pool, err := store.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := store.NewPostgres(pool, logger)
		s.pool, s.projects, s.renders = pool, pg, pg
		logger.Info("Using postgres repositories")
	} else {
		s.projects, s.renders = mem, mem
		logger.Warn("DATABASE_URL is not set, projects and renders are kept in memory")
	}

	if cfg.Redis.Addr != "" {
		client, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		s.correlations = store.NewRedisCorrelations(client, cfg.Redis.CorrelationTTL, logger)
		logger.Info("Using redis correlation store", zap.String("addr", cfg.Redis.Addr))
	} else {
		s.correlations = mem
	}
	return s, nil
}

func credentials(cfg *config.Config) sigv4.Credentials {
	return sigv4.Credentials{
		AccessKeyID:     cfg.Lambda.AccessKeyID,
		SecretAccessKey: cfg.Lambda.SecretAccessKey,
		SessionToken:    cfg.Lambda.SessionToken,
	}
}

// openObjectStore: S3, если задан бакет, иначе локальная папка,
// которую сервер раздаёт по /objects.
func openObjectStore(cfg *config.Config, logger *zap.Logger) (objectstore.Store, error) {
	if cfg.ObjectStore.Bucket == "" {
		logger.Info("Using local object store", zap.String("dir", cfg.ObjectStore.LocalDir))
		return objectstore.NewDirStore(cfg.ObjectStore.LocalDir, cfg.App.PublicBaseURL+"/objects")
	}
	region := cfg.ObjectStore.Region
	if region == "" {
		region = cfg.Lambda.Region
	}
	return objectstore.NewS3Store(objectstore.S3Config{
		Bucket:      cfg.ObjectStore.Bucket,
		Region:      region,
		Endpoint:    cfg.ObjectStore.Endpoint,
		PathStyle:   cfg.ObjectStore.PathStyle,
		Credentials: credentials(cfg),
		Timeout:     30 * time.Second,
	}, logger)
}

type backends struct {
	lambda    *dispatch.LambdaBackend
	local     *dispatch.LocalBackend
	simulator *dispatch.Simulator
}

// list - порядок предпочтения: Lambda, затем локальный рендер. Симуляция
// подключается к диспетчеру отдельно, как запасной вариант.
func (b backends) list() []dispatch.Backend {
	var out []dispatch.Backend
	if b.lambda != nil {
		out = append(out, b.lambda)
	}
	if b.local != nil {
		out = append(out, b.local)
	}
	return out
}

func (b backends) wait() {
	if b.local != nil {
		b.local.Wait()
	}
	if b.simulator != nil {
		b.simulator.Wait()
	}
}

func newBackends(ctx context.Context, cfg *config.Config, objects objectstore.Store, notifier dispatch.Notifier, logger *zap.Logger) backends {
	var b backends

	lambda, err := dispatch.NewLambdaBackend(dispatch.LambdaConfig{
		Credentials:  credentials(cfg),
		Region:       cfg.Lambda.Region,
		FunctionName: cfg.Lambda.FunctionName,
		ServeURL:     cfg.Lambda.ServeURL,
		Composition:  cfg.Lambda.Composition,
		OutputBucket: cfg.ObjectStore.Bucket,
		Endpoint:     cfg.Lambda.Endpoint,
	}, logger)
	switch {
	case err == nil:
		b.lambda = lambda
	case errors.Is(err, dispatch.ErrConfigurationMissing):
		logger.Warn("Lambda renderer is not configured", zap.Error(err))
	default:
		logger.Error("Lambda renderer disabled", zap.Error(err))
	}

	if cfg.Render.LocalEnabled {
		loader := source.NewLoader(source.LoaderConfig{BaseDir: cfg.Render.AssetsDir}, logger)
		eng := engine.New(engine.Config{Workers: cfg.Render.Workers, WorkDir: cfg.Render.OutputDir}, loader, logger)
		b.local = dispatch.NewLocalBackend(ctx, eng, objects, notifier, logger)
	}

	if cfg.Render.DevSimulation {
		b.simulator = dispatch.NewSimulator(ctx, dispatch.SimulatorConfig{
			PublicBaseURL: cfg.App.PublicBaseURL + "/objects",
			StepDelay:     cfg.Render.SimulationStepDelay,
		}, notifier, logger)
	}
	return b
}

// connectRabbitMQ пытается подключиться с несколькими попытками.
func connectRabbitMQ(ctx context.Context, url string, logger *zap.Logger) (*amqp.Connection, error) {
	const maxRetries = 10
	retryDelay := 3 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ")
			go func() {
				closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
				if closeErr != nil {
					logger.Error("RabbitMQ connection closed", zap.Error(closeErr))
				}
			}()
			return conn, nil
		}
		lastErr = err
		logger.Warn("RabbitMQ is not reachable, retrying",
			zap.Error(err),
			zap.Int("retry", i+1),
			zap.Duration("delay", retryDelay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("rabbitmq: %d attempts failed: %w", maxRetries, lastErr)
}
