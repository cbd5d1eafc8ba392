package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/letsssgooo/progress/internal/config"
	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/lib/slogcustom"
	"github.com/letsssgooo/progress/internal/storage"
	"github.com/letsssgooo/progress/internal/storage/postgres"
)

// SetupLogger создаёт цветной логгер с уровнем из конфигурации.
func SetupLogger(out io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	return slog.New(slogcustom.NewCustomHandler(out, lvl)), nil
}

// OpenStorage открывает PostgreSQL, если задан DatabaseURL, иначе хранилище в памяти.
// Возвращаемую функцию нужно вызвать при завершении.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.Storage, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is empty, using in-memory storage")
		return storage.NewMemoryStorage(), func() {}, nil
	}

	st, err := postgres.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return st, st.Close, nil
}

// OpenDatabase открывает PostgreSQL. В отличие от OpenStorage не переключается на память.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*postgres.Storage, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is required", config.ErrInvalidConfig)
	}

	st, err := postgres.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return st, nil
}

// OpenContent возвращает клиент CMS или статический контент из файла.
func OpenContent(cfg *config.Config) (content.Source, error) {
	if cfg.CMSBaseURL != "" {
		slog.Info("using cms content", "url", cfg.CMSBaseURL)
		return content.NewHTTPSource(cfg.CMSBaseURL, cfg.CMSToken), nil
	}

	src, err := content.LoadFile(cfg.ContentFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}

	slog.Info("using static content", "file", cfg.ContentFile)

	return src, nil
}
