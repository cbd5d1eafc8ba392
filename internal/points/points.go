package points

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/storage"
)

// Очки за единицы прогресса
const (
	ExamPoints    = 10
	LecturePoints = 5
)

// Причины начислений
const (
	ReasonExam        = "exam"
	ReasonLecture     = "lecture"
	ReasonCertificate = "certificate"
	ReasonReconcile   = "reconcile"
)

// Ledger - единственная точка изменения User.Points.
// Points считается проекцией журнала: сертификаты, сданные экзамены и пройденные лекции.
type Ledger struct {
	st  storage.Storage
	now func() time.Time
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger создаёт Ledger поверх хранилища.
func NewLedger(st storage.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		st:  st,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Award начисляет (или списывает) amount очков и пишет запись в журнал.
// Итог не опускается ниже нуля. Должен вызываться в той же транзакции,
// что создаёт запись, за которую начисляются очки.
// Возвращает новый итог пользователя.
func (l *Ledger) Award(ctx context.Context, repo storage.Repo, userID string, amount int, reason string) (int, error) {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	if amount == 0 {
		return user.Points, nil
	}

	total, err := repo.AddPoints(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to add points to user %s: %w", userID, err)
	}

	event := &models.PointEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    total - user.Points,
		Reason:    reason,
		CreatedAt: l.now(),
	}

	if err = repo.SavePointEvent(ctx, event); err != nil {
		return 0, fmt.Errorf("failed to save point event of user %s: %w", userID, err)
	}

	slog.Debug("points awarded", "user_id", userID, "amount", event.Amount, "reason", reason, "total", total)

	return total, nil
}

// Drift - расхождение кэшированного итога с журналом.
type Drift struct {
	UserID   string `json:"user_id"`
	Expected int    `json:"expected"`
	Current  int    `json:"current"`
	Delta    int    `json:"delta"`
}

// Recompute выводит ожидаемый итог из журнала и сравнивает с кэшированным.
func (l *Ledger) Recompute(ctx context.Context, repo storage.Repo, userID string) (Drift, error) {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return Drift{}, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	certificatePoints, err := repo.SumCertificatePoints(ctx, userID)
	if err != nil {
		return Drift{}, fmt.Errorf("failed to sum certificate points of user %s: %w", userID, err)
	}

	passedExams, err := repo.CountPassedExams(ctx, userID)
	if err != nil {
		return Drift{}, fmt.Errorf("failed to count passed exams of user %s: %w", userID, err)
	}

	lectures, err := repo.CountUserLectures(ctx, userID)
	if err != nil {
		return Drift{}, fmt.Errorf("failed to count lectures of user %s: %w", userID, err)
	}

	expected := certificatePoints + ExamPoints*passedExams + LecturePoints*lectures

	return Drift{
		UserID:   userID,
		Expected: expected,
		Current:  user.Points,
		Delta:    expected - user.Points,
	}, nil
}

// Summary - текущий итог и очки за неделю.
type Summary struct {
	Current int `json:"current"`
	Weekly  int `json:"weekly"`
}

// Summary возвращает итог пользователя и сумму начислений с начала недели (понедельник, UTC).
// Оба значения читаются в одной транзакции пользователя.
func (l *Ledger) Summary(ctx context.Context, userID string) (Summary, error) {
	var summary Summary

	err := l.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		user, err := repo.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user %s: %w", userID, err)
		}

		weekly, err := repo.SumPointEvents(ctx, userID, WeekStart(l.now()))
		if err != nil {
			return fmt.Errorf("failed to sum weekly points of user %s: %w", userID, err)
		}

		summary = Summary{Current: user.Points, Weekly: weekly}

		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	return summary, nil
}

// WeekStart возвращает начало недели (понедельник 00:00 UTC), содержащей t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7

	return day.AddDate(0, 0, -offset)
}
