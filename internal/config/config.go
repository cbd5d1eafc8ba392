package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/letsssgooo/progress/internal/lives"
)

// Значения по умолчанию
const (
	DefaultHTTPAddr       = ":8080"
	DefaultPassingScore   = 70
	DefaultLogLevel       = "info"
	DefaultReconcileBatch = 500
	DefaultRateLimit      = 120
)

// ErrInvalidConfig - ошибка проверки конфигурации.
var ErrInvalidConfig = errors.New("invalid config")

// Config - настройки сервиса.
type Config struct {
	HTTPAddr       string
	DatabaseURL    string
	CMSBaseURL     string
	CMSToken       string
	ContentFile    string
	JWTSecret      string
	LivesTotal     int
	LivesWindow    time.Duration
	PassingScore   int
	LogLevel       string
	ReconcileBatch int
	RateLimit      int
}

// Load читает .env-файлы (если они есть), затем переменные окружения.
// Переменные окружения, заданные явно, не перезаписываются значениями из файлов.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Debug("env file not found", "file", file)
				continue
			}

			return nil, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", DefaultHTTPAddr),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CMSBaseURL:     getEnv("CMS_BASE_URL", ""),
		CMSToken:       getEnv("CMS_TOKEN", ""),
		ContentFile:    getEnv("CONTENT_FILE", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LivesTotal:     lives.DefaultTotal,
		LivesWindow:    lives.DefaultWindow,
		PassingScore:   DefaultPassingScore,
		ReconcileBatch: DefaultReconcileBatch,
		RateLimit:      DefaultRateLimit,
	}

	var err error

	if cfg.LivesTotal, err = getInt("LIVES_TOTAL", cfg.LivesTotal); err != nil {
		return nil, err
	}

	if cfg.PassingScore, err = getInt("PASSING_SCORE", cfg.PassingScore); err != nil {
		return nil, err
	}

	if cfg.ReconcileBatch, err = getInt("RECONCILE_BATCH", cfg.ReconcileBatch); err != nil {
		return nil, err
	}

	if cfg.RateLimit, err = getInt("RATE_LIMIT", cfg.RateLimit); err != nil {
		return nil, err
	}

	if raw, ok := os.LookupEnv("LIVES_WINDOW"); ok && raw != "" {
		if cfg.LivesWindow, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("%w: LIVES_WINDOW: %v", ErrInvalidConfig, err)
		}
	}

	return cfg, nil
}

// BindFlags регистрирует флаги, перекрывающие значения из окружения.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "address of http server")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "postgres dsn, in-memory storage if empty")
	fs.StringVar(&c.CMSBaseURL, "cms-url", c.CMSBaseURL, "base url of content api")
	fs.StringVar(&c.ContentFile, "content-file", c.ContentFile, "json file with courses and lectures")
	fs.IntVar(&c.LivesTotal, "lives-total", c.LivesTotal, "lives per window")
	fs.DurationVar(&c.LivesWindow, "lives-window", c.LivesWindow, "length of lives window")
	fs.IntVar(&c.PassingScore, "passing-score", c.PassingScore, "default passing score")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.IntVar(&c.ReconcileBatch, "batch", c.ReconcileBatch, "users per reconcile batch")
	fs.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "requests per minute per address, 0 disables")
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.LivesTotal <= 0 {
		return fmt.Errorf("%w: lives total must be positive", ErrInvalidConfig)
	}

	if c.LivesWindow <= 0 {
		return fmt.Errorf("%w: lives window must be positive", ErrInvalidConfig)
	}

	if c.PassingScore <= 0 || c.PassingScore > 100 {
		return fmt.Errorf("%w: passing score must be in (0, 100]", ErrInvalidConfig)
	}

	if c.ReconcileBatch <= 0 {
		return fmt.Errorf("%w: reconcile batch must be positive", ErrInvalidConfig)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}

	if c.CMSBaseURL == "" && c.ContentFile == "" {
		return fmt.Errorf("%w: need CMS_BASE_URL or CONTENT_FILE", ErrInvalidConfig)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ValidateReconcile проверяет настройки сверки. Сверка работает только с PostgreSQL.
func (c *Config) ValidateReconcile() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: reconcile needs DATABASE_URL", ErrInvalidConfig)
	}

	if c.ReconcileBatch <= 0 {
		return fmt.Errorf("%w: reconcile batch must be positive", ErrInvalidConfig)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLevel переводит строку в уровень slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}

	return def
}

func getInt(key string, def int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}

	return n, nil
}
