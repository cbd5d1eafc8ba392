package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDR", "DATABASE_URL", "CMS_BASE_URL", "CMS_TOKEN", "CONTENT_FILE", "JWT_SECRET",
	"LIVES_TOTAL", "LIVES_WINDOW", "PASSING_SCORE", "LOG_LEVEL", "RECONCILE_BATCH", "RATE_LIMIT",
}

// clearEnv сбрасывает переменные и восстанавливает их после теста.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.LivesTotal)
	assert.Equal(t, 10*time.Hour, cfg.LivesWindow)
	assert.Equal(t, 70, cfg.PassingScore)
	assert.Equal(t, 500, cfg.ReconcileBatch)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	clearEnv(t)

	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("LIVES_TOTAL=3\nLIVES_WINDOW=90m\nCONTENT_FILE=content.json\n"), 0o600))

	// явное окружение важнее файла
	t.Setenv("LIVES_TOTAL", "7")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.LivesTotal)
	assert.Equal(t, 90*time.Minute, cfg.LivesWindow)
	assert.Equal(t, "content.json", cfg.ContentFile)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--lives-total=2", "--log-level=debug"}))

	assert.Equal(t, 2, cfg.LivesTotal)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("PASSING_SCORE", "seventy")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LivesTotal:     5,
			LivesWindow:    time.Hour,
			PassingScore:   70,
			ReconcileBatch: 10,
			ContentFile:    "content.json",
			LogLevel:       "info",
		}
	}

	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "zero lives", modify: func(c *Config) { c.LivesTotal = 0 }},
		{name: "negative window", modify: func(c *Config) { c.LivesWindow = -time.Hour }},
		{name: "score above 100", modify: func(c *Config) { c.PassingScore = 101 }},
		{name: "zero batch", modify: func(c *Config) { c.ReconcileBatch = 0 }},
		{name: "negative rate limit", modify: func(c *Config) { c.RateLimit = -1 }},
		{name: "no content", modify: func(c *Config) { c.ContentFile = "" }},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, valid().Validate())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateReconcile(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ok", cfg: Config{DatabaseURL: "postgres://localhost/progress", ReconcileBatch: 100}},
		{name: "no database", cfg: Config{ReconcileBatch: 100}, wantErr: true},
		{name: "zero batch", cfg: Config{DatabaseURL: "postgres://localhost/progress"}, wantErr: true},
		{
			name:    "bad log level",
			cfg:     Config{DatabaseURL: "postgres://localhost/progress", ReconcileBatch: 100, LogLevel: "loud"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.ValidateReconcile()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
