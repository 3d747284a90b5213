// Package config читает настройки сервиса из окружения, .env и
// необязательного YAML-файла.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ivlev/scenereel/internal/logger"
)

// FileEnv - переменная с путём к YAML-файлу настроек.
const FileEnv = "SCENEREEL_CONFIG"

type Config struct {
	App         AppConfig         `yaml:"app"`
	Logger      logger.Config     `yaml:"logger"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Lambda      LambdaConfig      `yaml:"lambda"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Payload     PayloadConfig     `yaml:"payload"`
	Render      RenderConfig      `yaml:"render"`
	Webhook     WebhookConfig     `yaml:"webhook"`
}

type AppConfig struct {
	Env           string `env:"APP_ENV" env-default:"development" yaml:"env"`
	HTTPPort      string `env:"HTTP_PORT" env-default:"8080" yaml:"http_port"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080" yaml:"public_base_url"`
	Metrics       bool   `env:"METRICS_ENABLED" env-default:"true" yaml:"metrics"`
}

// PostgresConfig: пустой DSN - хранилище в памяти.
type PostgresConfig struct {
	DSN      string `env:"DATABASE_URL" yaml:"dsn"`
	MaxConns int32  `env:"DB_MAX_CONNS" env-default:"10" yaml:"max_conns"`
	Migrate  bool   `env:"DB_MIGRATE" env-default:"true" yaml:"migrate"`
}

// RedisConfig: пустой адрес - корреляции в памяти.
type RedisConfig struct {
	Addr           string        `env:"REDIS_ADDR" yaml:"addr"`
	Password       string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB             int           `env:"REDIS_DB" env-default:"0" yaml:"db"`
	CorrelationTTL time.Duration `env:"REDIS_CORRELATION_TTL" env-default:"72h" yaml:"correlation_ttl"`
}

type RabbitMQConfig struct {
	URL               string `env:"RABBITMQ_URL" yaml:"url"`
	NotificationQueue string `env:"RABBITMQ_NOTIFICATION_QUEUE" env-default:"scenereel.render.notifications" yaml:"notification_queue"`
}

type LambdaConfig struct {
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" yaml:"access_key_id"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" yaml:"secret_access_key"`
	SessionToken    string        `env:"AWS_SESSION_TOKEN" yaml:"session_token"`
	Region          string        `env:"AWS_REGION" env-default:"us-east-1" yaml:"region"`
	FunctionName    string        `env:"LAMBDA_FUNCTION_NAME" yaml:"function_name"`
	ServeURL        string        `env:"LAMBDA_SERVE_URL" yaml:"serve_url"`
	Composition     string        `env:"LAMBDA_COMPOSITION" env-default:"SceneReel" yaml:"composition"`
	InvokeTimeout   time.Duration `env:"LAMBDA_INVOKE_TIMEOUT" env-default:"30s" yaml:"invoke_timeout"`
	Endpoint        string        `env:"LAMBDA_ENDPOINT" yaml:"endpoint"`
}

// ObjectStoreConfig: без бакета используется локальная папка LocalDir.
type ObjectStoreConfig struct {
	Bucket    string `env:"S3_BUCKET" yaml:"bucket"`
	Region    string `env:"S3_REGION" yaml:"region"`
	Endpoint  string `env:"S3_ENDPOINT" yaml:"endpoint"`
	PathStyle bool   `env:"S3_PATH_STYLE" env-default:"false" yaml:"path_style"`
	LocalDir  string `env:"OBJECT_STORE_DIR" env-default:"data/objects" yaml:"local_dir"`
}

type PayloadConfig struct {
	InlineThreshold int `env:"PAYLOAD_INLINE_THRESHOLD" env-default:"200000" yaml:"inline_threshold"`
}

type RenderConfig struct {
	FPS                    int           `env:"RENDER_FPS" env-default:"30" yaml:"fps"`
	TransitionWindowFrames int           `env:"RENDER_TRANSITION_FRAMES" env-default:"15" yaml:"transition_window_frames"`
	Features               string        `env:"RENDER_FEATURES" env-default:"full" yaml:"features"`
	LocalEnabled           bool          `env:"LOCAL_RENDER_ENABLED" env-default:"false" yaml:"local_enabled"`
	DevSimulation          bool          `env:"DEV_SIMULATION" env-default:"false" yaml:"dev_simulation"`
	SimulationStepDelay    time.Duration `env:"DEV_SIMULATION_STEP_DELAY" env-default:"1s" yaml:"simulation_step_delay"`
	OutputDir              string        `env:"RENDER_OUTPUT_DIR" env-default:"tmp/scenereel" yaml:"output_dir"`
	Workers                int           `env:"RENDER_WORKERS" env-default:"0" yaml:"workers"`
	AssetsDir              string        `env:"RENDER_ASSETS_DIR" env-default:"." yaml:"assets_dir"`
}

type WebhookConfig struct {
	URL              string `env:"WEBHOOK_URL" yaml:"url"`
	Secret           string `env:"WEBHOOK_SECRET" yaml:"secret"`
	RequireSignature bool   `env:"WEBHOOK_REQUIRE_SIGNATURE" env-default:"false" yaml:"require_signature"`
}

// Load загружает .env (если есть), затем YAML-файл из SCENEREEL_CONFIG
// (если задан) и переменные окружения поверх него.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	var err error
	if path := os.Getenv(FileEnv); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя исправить по умолчанию.
func (c *Config) Validate() error {
	var errs []error
	if c.Render.FPS <= 0 {
		errs = append(errs, fmt.Errorf("RENDER_FPS must be positive, got %d", c.Render.FPS))
	}
	if c.Render.TransitionWindowFrames < 0 {
		errs = append(errs, fmt.Errorf("RENDER_TRANSITION_FRAMES must not be negative"))
	}
	if c.Payload.InlineThreshold <= 0 {
		errs = append(errs, fmt.Errorf("PAYLOAD_INLINE_THRESHOLD must be positive, got %d", c.Payload.InlineThreshold))
	}
	if c.Render.Workers < 0 {
		errs = append(errs, fmt.Errorf("RENDER_WORKERS must not be negative"))
	}
	return errors.Join(errs...)
}

// WebhookURL - адрес вебхука для удалённых рендереров.
func (c *Config) WebhookURL() string {
	if c.Webhook.URL != "" {
		return c.Webhook.URL
	}
	return c.App.PublicBaseURL + "/api/webhooks/render"
}

// Help возвращает описание всех переменных окружения.
func Help() (string, error) {
	return cleanenv.GetDescription(&Config{}, nil)
}
