package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_OverlaysOnlyPresentFields(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"database_dsn":           "postgres://json",
		"wordpress_url":          "https://json.example",
		"image_quality":          70,
		"media_link_ttl_seconds": 120,
	})
	os.Args = []string{"cmd", "-c", path}

	config := &Config{}
	config.LoadDefaults()
	parseJson(config)

	assert.Equal(t, "postgres://json", config.DatabaseDSN)
	assert.Equal(t, "https://json.example", config.WordPressURL)
	assert.Equal(t, 70, config.ImageQuality)
	assert.Equal(t, 120*time.Second, config.MediaLinkTTL)
	// absent in the file, keeps its default
	assert.Equal(t, ":8080", config.EndpointAddr)
}

func Test_parseJson_NoFlagLoadsNothing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd"}

	config := &Config{}
	config.LoadDefaults()
	before := *config
	parseJson(config)

	assert.Equal(t, before, *config)
}

func Test_parseJson_BadFilePanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	os.Args = []string{"cmd", "-c", path}

	config := &Config{}
	require.Panics(t, func() { parseJson(config) })
}

func Test_parseEnv_Overlay(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env")
	t.Setenv("WORDPRESS_PASSWORD", "hunter2")
	t.Setenv("IMAGE_QUALITY", "85")
	t.Setenv("MEDIA_LINK_TTL_SECONDS", "900")

	config := &Config{}
	config.LoadDefaults()
	parseEnv(config)

	assert.Equal(t, "postgres://env", config.DatabaseDSN)
	assert.Equal(t, "hunter2", config.WordPressPassword)
	assert.Equal(t, 85, config.ImageQuality)
	assert.Equal(t, 900*time.Second, config.MediaLinkTTL)
	assert.Equal(t, ":8080", config.EndpointAddr)
}
