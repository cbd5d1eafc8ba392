package certificate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/points"
	"github.com/letsssgooo/progress/internal/storage"
)

// Ошибки выдачи сертификата
var (
	ErrCourseNotFound    = errors.New("course not found")
	ErrCourseIncomplete  = errors.New("course is not completed")
	ErrCertificateAbsent = errors.New("certificate not issued")
)

// IncompleteError возвращается, если пройдены не все лекции курса.
type IncompleteError struct {
	CourseID  string
	Completed int
	Total     int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: %d of %d lectures completed in course %s",
		ErrCourseIncomplete, e.Completed, e.Total, e.CourseID)
}

func (e *IncompleteError) Unwrap() error {
	return ErrCourseIncomplete
}

// Issuer выдаёт сертификаты. Для пары (пользователь, курс) существует не более одного сертификата,
// очки за курс начисляются только при его создании.
type Issuer struct {
	st      storage.Storage
	content content.Source
	points  *points.Ledger
	now     func() time.Time
}

// Option настраивает Issuer.
type Option func(*Issuer)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer создаёт новый Issuer.
func NewIssuer(st storage.Storage, src content.Source, pointsLedger *points.Ledger, opts ...Option) *Issuer {
	i := &Issuer{
		st:      st,
		content: src,
		points:  pointsLedger,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Get возвращает выданный сертификат. Ничего не создаёт.
func (i *Issuer) Get(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	cert, err := i.st.GetCertificate(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: course %s", ErrCertificateAbsent, courseID)
		}

		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	return cert, nil
}

// GetOrCreate возвращает сертификат пользователя по курсу, создавая его при первом вызове.
// Требует, чтобы все лекции курса были пройдены, иначе возвращает *IncompleteError.
// Повторные и конкурентные вызовы возвращают тот же сертификат без повторного начисления.
func (i *Issuer) GetOrCreate(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	if cert, err := i.st.GetCertificate(ctx, userID, courseID); err == nil {
		return cert, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	course, err := i.content.Course(ctx, courseID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
		}

		return nil, fmt.Errorf("failed to get course %s: %w", courseID, err)
	}

	var cert *models.Certificate

	err = i.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		existing, err := repo.GetCertificate(ctx, userID, courseID)
		switch {
		case err == nil:
			cert = existing
			return nil
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("failed to get certificate: %w", err)
		}

		if err = checkCompleted(ctx, repo, userID, course); err != nil {
			return err
		}

		candidate := &models.Certificate{
			ID:          uuid.NewString(),
			UserID:      userID,
			CourseID:    course.ID,
			CourseTitle: course.Title,
			Description: course.Description,
			Points:      course.Points,
			Workload:    course.Workload,
			IssuedAt:    i.now(),
		}

		if err = repo.SaveCertificate(ctx, candidate); err != nil {
			if !errors.Is(err, storage.ErrDuplicate) {
				return fmt.Errorf("failed to save certificate: %w", err)
			}

			// сертификат уже создан параллельным запросом
			cert, err = repo.GetCertificate(ctx, userID, courseID)
			if err != nil {
				return fmt.Errorf("failed to get certificate after duplicate: %w", err)
			}

			return nil
		}

		if _, err = i.points.Award(ctx, repo, userID, course.Points, points.ReasonCertificate); err != nil {
			return err
		}

		cert = candidate

		slog.Info("certificate issued", "user_id", userID, "course_id", courseID, "points", course.Points)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return cert, nil
}

// checkCompleted проверяет, что пользователь прошёл все лекции курса.
func checkCompleted(ctx context.Context, repo storage.Repo, userID string, course *content.Course) error {
	completed, err := repo.ListCompletedLectures(ctx, userID, course.ID)
	if err != nil {
		return fmt.Errorf("failed to list completed lectures: %w", err)
	}

	done := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		done[id] = struct{}{}
	}

	count := 0
	for _, id := range course.LectureIDs {
		if _, ok := done[id]; ok {
			count++
		}
	}

	if count < len(course.LectureIDs) {
		return &IncompleteError{CourseID: course.ID, Completed: count, Total: len(course.LectureIDs)}
	}

	return nil
}
