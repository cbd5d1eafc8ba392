package lives

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/storage"
)

// Значения по умолчанию
const (
	DefaultTotal  = 5
	DefaultWindow = 10 * time.Hour
)

// ErrInsufficientLives - у пользователя не осталось жизней.
var ErrInsufficientLives = errors.New("insufficient lives")

// Status - состояние жизней пользователя.
// NextResetAt - момент, когда самая старая жизнь в окне выйдет из него; nil, если окно пусто.
type Status struct {
	Remaining   int        `json:"remaining"`
	Total       int        `json:"total"`
	NextResetAt *time.Time `json:"next_reset_at"`
}

// ExhaustedError возвращается, когда жизни закончились. Содержит время восстановления.
type ExhaustedError struct {
	Status Status
}

func (e *ExhaustedError) Error() string {
	if e.Status.NextResetAt == nil {
		return ErrInsufficientLives.Error()
	}

	return fmt.Sprintf("%s, next reset at %s", ErrInsufficientLives, e.Status.NextResetAt.Format(time.RFC3339))
}

func (e *ExhaustedError) Unwrap() error {
	return ErrInsufficientLives
}

// Ledger считает жизни по скользящему окну потраченных попыток.
type Ledger struct {
	total  int
	window time.Duration
	now    func() time.Time
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger создаёт Ledger. Неположительные значения заменяются значениями по умолчанию.
func NewLedger(total int, window time.Duration, opts ...Option) *Ledger {
	if total <= 0 {
		total = DefaultTotal
	}

	if window <= 0 {
		window = DefaultWindow
	}

	l := &Ledger{
		total:  total,
		window: window,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Total возвращает максимальное число жизней.
func (l *Ledger) Total() int {
	return l.total
}

// Window возвращает длину окна.
func (l *Ledger) Window() time.Duration {
	return l.window
}

// Status возвращает состояние жизней на текущий момент.
func (l *Ledger) Status(ctx context.Context, repo storage.Repo, userID string) (Status, error) {
	return l.StatusAt(ctx, repo, userID, l.now())
}

// StatusAt возвращает состояние жизней на момент now. Ничего не записывает.
func (l *Ledger) StatusAt(ctx context.Context, repo storage.Repo, userID string, now time.Time) (Status, error) {
	damages, err := repo.ListDamages(ctx, userID, now.Add(-l.window))
	if err != nil {
		return Status{}, fmt.Errorf("failed to list damages of user %s: %w", userID, err)
	}

	status := Status{
		Remaining: max(l.total-len(damages), 0),
		Total:     l.total,
	}

	if len(damages) > 0 {
		resetAt := damages[0].CreatedAt.Add(l.window)
		status.NextResetAt = &resetAt
	}

	return status, nil
}

// Consume записывает потраченную жизнь. Не проверяет остаток.
func (l *Ledger) Consume(ctx context.Context, repo storage.Repo, userID string) (*models.Damage, error) {
	damage := &models.Damage{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: l.now(),
	}

	if err := repo.SaveDamage(ctx, damage); err != nil {
		return nil, fmt.Errorf("failed to save damage of user %s: %w", userID, err)
	}

	return damage, nil
}

// Spend проверяет остаток и тратит одну жизнь.
// Должен вызываться внутри storage.Storage.WithinUserTx, чтобы проверка и запись были атомарны.
// Возвращает состояние после списания или *ExhaustedError.
func (l *Ledger) Spend(ctx context.Context, repo storage.Repo, userID string) (Status, error) {
	now := l.now()

	status, err := l.StatusAt(ctx, repo, userID, now)
	if err != nil {
		return Status{}, err
	}

	if status.Remaining <= 0 {
		return status, &ExhaustedError{Status: status}
	}

	damage := &models.Damage{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
	}

	if err = repo.SaveDamage(ctx, damage); err != nil {
		return Status{}, fmt.Errorf("failed to save damage of user %s: %w", userID, err)
	}

	status.Remaining--
	if status.NextResetAt == nil {
		resetAt := now.Add(l.window)
		status.NextResetAt = &resetAt
	}

	return status, nil
}
