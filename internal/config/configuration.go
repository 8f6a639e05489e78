// Package config loads process configuration from the environment (and an
// optional dotenv file) using viper, validates it with go-playground's
// validator, and logs the result with slog — the teacher's established
// ambient stack for configuration.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds every environment-configurable option named in spec.md §6.
type Config struct {
	// WebServer Configuration
	WebServerPort int    `mapstructure:"WEBSERVER_PORT" validate:"gt=0"`
	HostBaseURL   string `mapstructure:"HOST_BASE_URL"`

	// Credential Service
	SecretKey               string `mapstructure:"SECRET_KEY"`
	TokenExpiry              int    `mapstructure:"TOKEN_EXPIRY" validate:"gte=0"`
	CallbackBearer           string `mapstructure:"CALLBACK_BEARER"`
	CallbackDefaultSuccessURL string `mapstructure:"CALLBACK_DEFAULT_SUCCESS_URL"`
	CallbackDefaultErrorURL   string `mapstructure:"CALLBACK_DEFAULT_ERROR_URL"`
	DownloadRequireFilename  bool   `mapstructure:"DOWNLOAD_TOKEN_REQUIRE_FILENAME"`
	FocustAllowedOrigins     string `mapstructure:"FOCUST_ALLOWED_ORIGINS"`

	// Storage Layout
	UploadsRoot       string `mapstructure:"UPLOADS_ROOT"`
	OriginalsRoot     string `mapstructure:"ORIGINALS_ROOT"`
	HLSRoot           string `mapstructure:"HLS_ROOT"`
	PresentationsRoot string `mapstructure:"PRESENTATIONS_ROOT"`

	// Transcode Orchestrator
	TranscodeWorkers int `mapstructure:"TRANSCODE_WORKERS"`

	// Job-tracking store (ambient addition; optional)
	JobstoreDSN     string `mapstructure:"JOBSTORE_DSN"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`
}

// AllowedOrigins splits FocustAllowedOrigins on commas, trimming whitespace
// and dropping empty entries.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, part := range strings.Split(c.FocustAllowedOrigins, ",") {
		v := strings.TrimSpace(part)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag != "" {
			viper.BindEnv(tag)
		}
	}
	slog.Info("environment variables bound", "config", c)
}

// LoadConfig reads configuration from the environment, optionally layering
// in a dotenv file, applies defaults, and validates the result. Per
// spec.md §6, the dotenv file is loaded only if present; values already
// set in the environment take precedence over it.
func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info(".env file not found, using environment variables and defaults")
		} else {
			return nil, fmt.Errorf("read .env file: %w", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("WEBSERVER_PORT", 8080)
	viper.SetDefault("HOST_BASE_URL", "http://localhost:8080")
	viper.SetDefault("TOKEN_EXPIRY", 3600)
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("TRANSCODE_WORKERS", 0) // 0 means runtime.NumCPU() at wiring time
	viper.SetDefault("UPLOADS_ROOT", "uploads")
	viper.SetDefault("ORIGINALS_ROOT", "originals")
	viper.SetDefault("HLS_ROOT", "hls")
	viper.SetDefault("PRESENTATIONS_ROOT", "presentation_videos")

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	slog.Info("loaded configuration",
		"webserver_port", cfg.WebServerPort,
		"token_expiry", cfg.TokenExpiry,
		"transcode_workers", cfg.TranscodeWorkers,
		"jobstore_configured", cfg.JobstoreDSN != "",
	)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
