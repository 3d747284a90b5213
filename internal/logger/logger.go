// Package logger собирает zap.Logger по конфигурации.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config - настройки логгера.
type Config struct {
	Level    string `env:"LOG_LEVEL" env-default:"info" yaml:"level"`
	Encoding string `env:"LOG_ENCODING" env-default:"json" yaml:"encoding"`
	// OutputPath: stdout, stderr или путь к файлу с ротацией.
	OutputPath string `env:"LOG_OUTPUT" env-default:"stdout" yaml:"output"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"100" yaml:"max_size_mb"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"5" yaml:"max_backups"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"14" yaml:"max_age_days"`
}

// New создает zap.Logger. Неизвестный уровень заменяется на info.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	name := strings.ToLower(cfg.Level)
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", cfg.Level, err)
		level.SetLevel(zap.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Encoding) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink, err := writer(cfg)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

func writer(cfg Config) (zapcore.WriteSyncer, error) {
	switch cfg.OutputPath {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return nil, fmt.Errorf("invalid log rotation settings: %+v", cfg)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}), nil
}
