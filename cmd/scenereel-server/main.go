package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/aggregator"
	"github.com/ivlev/scenereel/internal/api"
	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/config"
	"github.com/ivlev/scenereel/internal/dispatch"
	"github.com/ivlev/scenereel/internal/logger"
	"github.com/ivlev/scenereel/internal/notify"
	"github.com/ivlev/scenereel/internal/payload"
)

func main() {
	// --- Конфигурация ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// --- Логгер ---
	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zl.Sync()
	zl.Info("Starting scenereel server", zap.String("env", cfg.App.Env), zap.String("port", cfg.App.HTTPPort))

	features, err := compositor.FeaturesByName(cfg.Render.Features)
	if err != nil {
		zl.Fatal("Invalid render features", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Хранилища ---
	stores, err := openStores(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	objects, err := openObjectStore(cfg, zl)
	if err != nil {
		zl.Fatal("Failed to open object store", zap.Error(err))
	}

	codec := payload.NewCodec(objects, cfg.Payload.InlineThreshold, zl)
	agg := aggregator.New(stores.renders, stores.projects, stores.correlations, zl)

	// --- Рендереры ---
	// фоновые задачи локального рендера и симуляции живут до остановки сервера
	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	renderers := newBackends(bgCtx, cfg, objects, agg, zl)
	dispatcher := dispatch.New(dispatch.Config{
		FPS:              cfg.Render.FPS,
		TransitionWindow: cfg.Render.TransitionWindowFrames,
		Features:         features,
		Webhook:          &payload.Webhook{URL: cfg.WebhookURL(), Secret: cfg.Webhook.Secret},
		InvokeTimeout:    cfg.Lambda.InvokeTimeout,
		DevFallback:      cfg.Render.DevSimulation,
	}, codec, stores.projects, stores.renders, stores.correlations, agg, renderers.simulator, zl, renderers.list()...)

	verifier := notify.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.RequireSignature, zl)
	if !verifier.Enabled() {
		zl.Warn("WEBHOOK_SECRET is not set, render notifications are accepted unsigned")
	}

	// --- HTTP ---
	handler := api.NewHandler(api.Config{
		FPS:              cfg.Render.FPS,
		TransitionWindow: cfg.Render.TransitionWindowFrames,
		Features:         features,
	}, stores.projects, stores.renders, dispatcher, agg, verifier, zl)
	router := api.NewRouter(handler, zl, api.RouterOptions{Metrics: cfg.App.Metrics})
	if cfg.ObjectStore.Bucket == "" {
		router.Static("/objects", cfg.ObjectStore.LocalDir)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// --- Очередь уведомлений ---
	var consumer *notify.Consumer
	if cfg.RabbitMQ.URL != "" {
		conn, err := connectRabbitMQ(ctx, cfg.RabbitMQ.URL, zl)
		if err != nil {
			zl.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer conn.Close()
		consumer = notify.NewConsumer(conn, cfg.RabbitMQ.NotificationQueue, agg, verifier, zl)
		if err := consumer.Start(ctx); err != nil {
			zl.Fatal("Failed to start notification consumer", zap.Error(err))
		}
	}

	// --- Ожидание сигнала ---
	select {
	case <-ctx.Done():
		zl.Info("Shutdown signal received")
	case err := <-serverErr:
		zl.Error("HTTP server failed", zap.Error(err))
	}

	// --- Graceful shutdown ---
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			zl.Error("Notification consumer stop failed", zap.Error(err))
		}
	}
	cancelBackground()
	renderers.wait()
	zl.Info("Server stopped")
}
