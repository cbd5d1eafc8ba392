package points

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/storage"
)

// DefaultBatchSize - размер пачки пользователей при сверке.
const DefaultBatchSize = 500

// ReconcileOptions - параметры сверки.
type ReconcileOptions struct {
	BatchSize int
	DryRun    bool
}

// Failure - ошибка сверки одного пользователя.
type Failure struct {
	UserID string
	Err    error
}

// Report - результат сверки.
type Report struct {
	Checked     int
	DryRun      bool
	Corrections []Drift
	Failures    []Failure
}

// ReconcileAll сверяет всех пользователей и исправляет итог, если он расходится с журналом.
// Ошибка одного пользователя не прерывает сверку: она попадает в Report.Failures.
// Повторный запуск ничего не меняет.
func (l *Ledger) ReconcileAll(ctx context.Context, opts ReconcileOptions) (*Report, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	report := &Report{DryRun: opts.DryRun}
	afterID := ""

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ids, err := l.st.ListUserIDs(ctx, afterID, opts.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list users after %q: %w", afterID, err)
		}

		if len(ids) == 0 {
			break
		}

		for _, userID := range ids {
			drift, err := l.reconcileUser(ctx, userID, opts.DryRun)
			report.Checked++

			if err != nil {
				slog.Error("reconcile failed", "user_id", userID, "err", err)
				report.Failures = append(report.Failures, Failure{UserID: userID, Err: err})

				continue
			}

			if drift.Delta != 0 {
				slog.Info("points drift",
					"user_id", userID,
					"expected", drift.Expected,
					"current", drift.Current,
					"delta", drift.Delta,
					"dry_run", opts.DryRun,
				)
				report.Corrections = append(report.Corrections, drift)
			}
		}

		afterID = ids[len(ids)-1]
	}

	return report, nil
}

// reconcileUser пересчитывает одного пользователя в его транзакции.
func (l *Ledger) reconcileUser(ctx context.Context, userID string, dryRun bool) (Drift, error) {
	var drift Drift

	err := l.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		var err error

		drift, err = l.Recompute(ctx, repo, userID)
		if err != nil {
			return err
		}

		if dryRun || drift.Delta == 0 {
			return nil
		}

		if err = repo.SetPoints(ctx, userID, drift.Expected); err != nil {
			return fmt.Errorf("failed to set points of user %s: %w", userID, err)
		}

		return repo.SavePointEvent(ctx, &models.PointEvent{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    drift.Delta,
			Reason:    ReasonReconcile,
			CreatedAt: l.now(),
		})
	})

	return drift, err
}

// ExportCSV экспортирует исправления и ошибки сверки в CSV.
func (r *Report) ExportCSV() ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"UserID", "Expected", "Current", "Delta", "Error"})

	for _, d := range r.Corrections {
		_ = w.Write([]string{
			d.UserID,
			strconv.Itoa(d.Expected),
			strconv.Itoa(d.Current),
			strconv.Itoa(d.Delta),
			"",
		})
	}

	for _, f := range r.Failures {
		_ = w.Write([]string{f.UserID, "", "", "", f.Err.Error()})
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush buffer: %w", err)
	}

	return buf.Bytes(), nil
}
