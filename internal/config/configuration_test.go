package config

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, 8080, cfg.WebServerPort)
	require.Equal(t, 3600, cfg.TokenExpiry)
	require.Equal(t, 10, cfg.DatabaseRetries)
	require.Equal(t, "uploads", cfg.UploadsRoot)
	require.Equal(t, "hls", cfg.HLSRoot)
}

func TestLoadConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SECRET_KEY", "prod-secret")
	t.Setenv("TOKEN_EXPIRY", "7200")
	t.Setenv("DOWNLOAD_TOKEN_REQUIRE_FILENAME", "true")
	t.Setenv("FOCUST_ALLOWED_ORIGINS", "https://focustagency.com, https://x.focustagency.com")
	t.Setenv("TRANSCODE_WORKERS", "4")

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prod-secret", cfg.SecretKey)
	require.Equal(t, 7200, cfg.TokenExpiry)
	require.True(t, cfg.DownloadRequireFilename)
	require.Equal(t, 4, cfg.TranscodeWorkers)
	require.Equal(t, []string{"https://focustagency.com", "https://x.focustagency.com"}, cfg.AllowedOrigins())
}
