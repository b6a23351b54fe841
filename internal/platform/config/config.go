// Package config loads the settings every service shares. Service specific
// settings live in each service's own internal/config package.
package config

import (
	"errors"
	"os"
	"strings"
)

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	// Env is APP_ENV; "prod" forbids in-memory fallbacks for stateful stores.
	Env  string
	HTTP HTTPConfig
}

// IsProd reports whether the service runs in production mode.
func (c AppConfig) IsProd() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		Env:         strings.TrimSpace(os.Getenv("APP_ENV")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		},
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	return cfg, nil
}
