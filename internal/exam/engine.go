package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/lives"
	"github.com/letsssgooo/progress/internal/points"
	"github.com/letsssgooo/progress/internal/storage"
)

// Engine ведёт экзамен по состояниям created → in_progress → passed | failed.
// Все изменения одного пользователя выполняются в storage.Storage.WithinUserTx.
type Engine struct {
	st           storage.Storage
	content      content.Source
	lives        *lives.Ledger
	points       *points.Ledger
	passingScore int
	now          func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithPassingScore задаёт проходной балл по умолчанию.
func WithPassingScore(score int) Option {
	return func(e *Engine) {
		if score > 0 && score <= 100 {
			e.passingScore = score
		}
	}
}

// NewEngine создаёт новый Engine.
func NewEngine(
	st storage.Storage,
	src content.Source,
	livesLedger *lives.Ledger,
	pointsLedger *points.Ledger,
	opts ...Option,
) *Engine {
	e := &Engine{
		st:           st,
		content:      src,
		lives:        livesLedger,
		points:       pointsLedger,
		passingScore: DefaultPassingScore,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Lives возвращает состояние жизней пользователя.
func (e *Engine) Lives(ctx context.Context, userID string) (lives.Status, error) {
	return e.lives.Status(ctx, e.st, userID)
}

// Create создаёт экзамен по лекции, тратя одну жизнь.
// Если жизней нет, возвращает *lives.ExhaustedError и ничего не записывает.
func (e *Engine) Create(ctx context.Context, userID, lectureID string) (*Started, error) {
	lecture, err := e.assessment(ctx, lectureID)
	if err != nil {
		return nil, err
	}

	started := &Started{}

	err = e.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		existing, err := repo.FindExam(ctx, userID, lectureID)
		switch {
		case err == nil:
			if existing.Status == models.ExamStatusPassed {
				return ErrAlreadyPassed
			}

			return fmt.Errorf("%w: %s", ErrExamExists, existing.ID)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("failed to find exam: %w", err)
		}

		status, err := e.lives.Spend(ctx, repo, userID)
		if err != nil {
			return err
		}

		now := e.now()
		exam := models.Exam{
			ID:           uuid.NewString(),
			UserID:       userID,
			LectureID:    lecture.ID,
			CourseID:     lecture.CourseID,
			Status:       models.ExamStatusCreated,
			TimeLimit:    lecture.TimeLimit,
			PassingScore: lecture.PassingScore,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err = repo.SaveExam(ctx, &exam); err != nil {
			return fmt.Errorf("failed to save exam: %w", err)
		}

		started.Exam = exam
		started.Lives = status

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("exam created", "user_id", userID, "exam_id", started.Exam.ID, "lecture_id", lectureID)

	return started, nil
}

// Retry начинает новый цикл несданного экзамена, тратя одну жизнь.
func (e *Engine) Retry(ctx context.Context, examID, userID string) (*Started, error) {
	started := &Started{}

	err := e.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		exam, err := e.owned(ctx, repo, examID, userID)
		if err != nil {
			return err
		}

		if exam.Status == models.ExamStatusPassed {
			return ErrAlreadyPassed
		}

		status, err := e.lives.Spend(ctx, repo, userID)
		if err != nil {
			return err
		}

		exam.Status = models.ExamStatusCreated
		exam.Complete = false
		exam.Reproved = true
		exam.StartedAt = nil
		exam.UpdatedAt = e.now()

		if err = repo.UpdateExam(ctx, exam); err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}

		started.Exam = *exam
		started.Lives = status

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("exam retried", "user_id", userID, "exam_id", examID, "lives_remaining", started.Lives.Remaining)

	return started, nil
}

// Start возвращает экзамен с вопросами без правильных ответов.
// Экзамен в состоянии created переходит в in_progress.
func (e *Engine) Start(ctx context.Context, examID, userID string) (*View, error) {
	exam, err := e.owned(ctx, e.st, examID, userID)
	if err != nil {
		return nil, err
	}

	lecture, err := e.assessment(ctx, exam.LectureID)
	if err != nil {
		return nil, err
	}

	if exam.Status == models.ExamStatusCreated {
		err = e.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
			exam, err = repo.GetExam(ctx, examID)
			if err != nil {
				return fmt.Errorf("failed to get exam: %w", err)
			}

			if exam.Status != models.ExamStatusCreated {
				return nil
			}

			now := e.now()
			exam.Status = models.ExamStatusInProgress
			exam.StartedAt = &now
			exam.UpdatedAt = now

			return repo.UpdateExam(ctx, exam)
		})
		if err != nil {
			return nil, err
		}
	}

	questions := make([]content.Question, len(lecture.Questions))
	for i, q := range lecture.Questions {
		questions[i] = q.Public()
	}

	return &View{Exam: *exam, Questions: questions}, nil
}

// Submit проверяет ответы, сохраняет попытку и завершает цикл экзамена.
// При успехе отмечает лекцию и начисляет очки: 10 за экзамен и 5 за лекцию,
// если она ещё не была пройдена. Всё выполняется одной транзакцией.
func (e *Engine) Submit(
	ctx context.Context,
	examID, userID string,
	answers []Answer,
	timeSpent int,
) (*Result, error) {
	if err := validateSubmission(answers, timeSpent); err != nil {
		return nil, err
	}

	exam, err := e.owned(ctx, e.st, examID, userID)
	if err != nil {
		return nil, err
	}

	lecture, err := e.content.Lecture(ctx, exam.LectureID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, fmt.Errorf("%w: lecture %s", ErrAssessmentNotFound, exam.LectureID)
		}

		return nil, fmt.Errorf("failed to get lecture %s: %w", exam.LectureID, err)
	}

	breakdown, correct, err := grade(lecture.Questions, answers)
	if err != nil {
		return nil, err
	}

	total := len(lecture.Questions)
	score := float64(correct) * 100 / float64(total)

	passingScore := e.passingScore
	if exam.PassingScore > 0 {
		passingScore = exam.PassingScore
	}

	passed := score >= float64(passingScore)

	result := &Result{
		ExamID:         examID,
		Score:          score,
		Passed:         passed,
		CorrectAnswers: correct,
		TotalQuestions: total,
		TimeSpent:      timeSpent,
		Answers:        breakdown,
	}

	err = e.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		exam, err := repo.GetExam(ctx, examID)
		if err != nil {
			return fmt.Errorf("failed to get exam: %w", err)
		}

		if exam.Status.Terminal() {
			return fmt.Errorf("%w: status %s", ErrExamClosed, exam.Status)
		}

		now := e.now()
		attempt := &models.ExamAttempt{
			ID:             uuid.NewString(),
			ExamID:         examID,
			UserID:         userID,
			Answers:        breakdown,
			Score:          score,
			CorrectAnswers: correct,
			TotalQuestions: total,
			TimeSpent:      timeSpent,
			Passed:         passed,
			CreatedAt:      now,
		}

		if err = repo.SaveAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("failed to save attempt: %w", err)
		}

		exam.Complete = true
		exam.Reproved = !passed
		exam.UpdatedAt = now
		exam.Status = models.ExamStatusFailed
		if passed {
			exam.Status = models.ExamStatusPassed
		}

		if err = repo.UpdateExam(ctx, exam); err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}

		result.AttemptID = attempt.ID
		result.PointsAwarded = 0

		if !passed {
			return nil
		}

		awarded, err := e.completeLecture(ctx, repo, userID, exam.CourseID, exam.LectureID)
		if err != nil {
			return err
		}

		if _, err = e.points.Award(ctx, repo, userID, points.ExamPoints, points.ReasonExam); err != nil {
			return err
		}

		result.PointsAwarded = awarded + points.ExamPoints

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("exam submitted",
		"user_id", userID,
		"exam_id", examID,
		"score", score,
		"passed", passed,
		"points", result.PointsAwarded,
	)

	return result, nil
}

// CompleteLecture отмечает лекцию пройденной напрямую (без теста).
// Повторный вызов ничего не начисляет.
func (e *Engine) CompleteLecture(ctx context.Context, userID, lectureID string) (*LectureCompletion, error) {
	lecture, err := e.content.Lecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLectureNotFound, lectureID)
		}

		return nil, fmt.Errorf("failed to get lecture %s: %w", lectureID, err)
	}

	completion := &LectureCompletion{LectureID: lectureID}

	err = e.st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		awarded, err := e.completeLecture(ctx, repo, userID, lecture.CourseID, lecture.ID)
		if err != nil {
			return err
		}

		completion.Created = awarded > 0
		completion.PointsAwarded = awarded

		return nil
	})
	if err != nil {
		return nil, err
	}

	return completion, nil
}

// History возвращает страницу попыток экзамена, новые первыми.
func (e *Engine) History(
	ctx context.Context,
	examID, userID string,
	offset, limit int,
) ([]models.ExamAttempt, int, error) {
	if _, err := e.owned(ctx, e.st, examID, userID); err != nil {
		return nil, 0, err
	}

	attempts, total, err := e.st.ListAttempts(ctx, examID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

// completeLecture создаёт отметку о лекции и начисляет 5 очков, только если её ещё не было.
// Возвращает начисленные очки.
func (e *Engine) completeLecture(
	ctx context.Context,
	repo storage.Repo,
	userID, courseID, lectureID string,
) (int, error) {
	created, err := repo.SaveUserLecture(ctx, &models.UserLecture{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		LectureID: lectureID,
		CreatedAt: e.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save lecture completion: %w", err)
	}

	if !created {
		return 0, nil
	}

	if _, err = e.points.Award(ctx, repo, userID, points.LecturePoints, points.ReasonLecture); err != nil {
		return 0, err
	}

	return points.LecturePoints, nil
}

// owned возвращает экзамен, если он принадлежит пользователю.
func (e *Engine) owned(ctx context.Context, repo storage.Repo, examID, userID string) (*models.Exam, error) {
	exam, err := repo.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrExamNotFound, examID)
		}

		return nil, fmt.Errorf("failed to get exam %s: %w", examID, err)
	}

	if exam.UserID != userID {
		slog.Warn("exam access denied", "user_id", userID, "exam_id", examID, "owner_id", exam.UserID)
		return nil, ErrForbidden
	}

	return exam, nil
}

// assessment возвращает лекцию, у которой есть вопросы.
func (e *Engine) assessment(ctx context.Context, lectureID string) (*content.Lecture, error) {
	lecture, err := e.content.Lecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, fmt.Errorf("%w: lecture %s", ErrAssessmentNotFound, lectureID)
		}

		return nil, fmt.Errorf("failed to get lecture %s: %w", lectureID, err)
	}

	if len(lecture.Questions) == 0 {
		return nil, fmt.Errorf("%w: lecture %s has no questions", ErrAssessmentNotFound, lectureID)
	}

	return lecture, nil
}
