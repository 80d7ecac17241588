package flowkit

import (
	"fmt"

	"github.com/dmitrymomot/flowkit/core/config"
	"github.com/dmitrymomot/flowkit/core/logger"
	"github.com/dmitrymomot/flowkit/core/response"
)

// Config holds the environment configuration of an App.
type Config struct {
	Name             string `env:"FLOWKIT_NAME"`
	BodyLimit        int64  `env:"FLOWKIT_BODY_LIMIT" envDefault:"1048576"`
	StreamFormat     string `env:"FLOWKIT_STREAM_FORMAT" envDefault:"sse"`
	ValidateResponse bool   `env:"FLOWKIT_VALIDATE_RESPONSE" envDefault:"false"`
	LogLevel         string `env:"FLOWKIT_LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"FLOWKIT_LOG_FORMAT" envDefault:"text"`
}

// LoadConfig reads Config from the environment and an optional .env file.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewFromConfig creates an App from cfg. opts are applied after the
// configuration, so they take precedence.
func NewFromConfig(cfg Config, opts ...Option) (*App, error) {
	format, err := response.ParseFormat(cfg.StreamFormat)
	if err != nil {
		return nil, fmt.Errorf("flowkit config: %w", err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("flowkit config: %w", err)
	}
	logFormat, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("flowkit config: %w", err)
	}

	base := []Option{
		WithLogger(logger.New(
			logger.WithLevel(level),
			logger.WithFormat(logFormat),
			logger.WithAttr(logger.Component("flowkit")),
		)),
		WithBodyLimit(cfg.BodyLimit),
		WithStreamFormat(format),
		WithResponseValidation(cfg.ValidateResponse),
	}
	if cfg.Name != "" {
		base = append(base, WithName(cfg.Name))
	}
	return New(append(base, opts...)...), nil
}
