package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Render.FPS != 30 || cfg.Render.TransitionWindowFrames != 15 {
		t.Errorf("unexpected render defaults: %+v", cfg.Render)
	}
	if cfg.Payload.InlineThreshold != 200000 {
		t.Errorf("unexpected inline threshold %d", cfg.Payload.InlineThreshold)
	}
	if cfg.Redis.CorrelationTTL != 72*time.Hour || cfg.Lambda.InvokeTimeout != 30*time.Second {
		t.Errorf("unexpected durations: %v, %v", cfg.Redis.CorrelationTTL, cfg.Lambda.InvokeTimeout)
	}
	if got := cfg.WebhookURL(); got != "http://localhost:8080/api/webhooks/render" {
		t.Errorf("unexpected webhook url %s", got)
	}
}

func TestLoadDotEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	body := "RENDER_FPS=24\nWEBHOOK_SECRET=from-dotenv\nDEV_SIMULATION=true\n"
	if err := os.WriteFile(envFile, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(FileEnv, "")
	t.Setenv("WEBHOOK_SECRET", "from-env")
	// godotenv не перезаписывает уже заданные переменные
	t.Setenv("RENDER_FPS", "")
	os.Unsetenv("RENDER_FPS")
	t.Cleanup(func() { os.Unsetenv("DEV_SIMULATION") })

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Render.FPS != 24 {
		t.Errorf("expected fps from .env, got %d", cfg.Render.FPS)
	}
	if cfg.Webhook.Secret != "from-env" {
		t.Errorf("environment must win over .env, got %q", cfg.Webhook.Secret)
	}
	if !cfg.Render.DevSimulation {
		t.Error("expected dev simulation enabled")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenereel.yaml")
	body := "app:\n  http_port: \"9090\"\nrender:\n  fps: 60\n  local_enabled: true\nobject_store:\n  bucket: videos\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(FileEnv, path)
	t.Setenv("RENDER_WORKERS", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.HTTPPort != "9090" || cfg.Render.FPS != 60 || !cfg.Render.LocalEnabled || cfg.ObjectStore.Bucket != "videos" {
		t.Errorf("yaml values not applied: %+v %+v", cfg.App, cfg.Render)
	}
	if cfg.Render.Workers != 3 {
		t.Errorf("environment override not applied: %d", cfg.Render.Workers)
	}
	if cfg.Payload.InlineThreshold != 200000 {
		t.Errorf("defaults must fill gaps in yaml, got %d", cfg.Payload.InlineThreshold)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("RENDER_FPS", "0")
	t.Setenv("PAYLOAD_INLINE_THRESHOLD", "-5")
	_, err := Load(filepath.Join(t.TempDir(), "none.env"))
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"RENDER_FPS", "PAYLOAD_INLINE_THRESHOLD"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestHelp(t *testing.T) {
	help, err := Help()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(help, "WEBHOOK_SECRET") {
		t.Errorf("help does not list WEBHOOK_SECRET:\n%s", help)
	}
}
