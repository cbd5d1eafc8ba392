package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/lives"
	"github.com/letsssgooo/progress/internal/points"
	"github.com/letsssgooo/progress/internal/storage"
)

var t0 = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func testQuestions(n int) []content.Question {
	questions := make([]content.Question, n)
	for i := range questions {
		questions[i] = content.Question{
			ID:     fmt.Sprintf("q%d", i+1),
			Prompt: fmt.Sprintf("question %d", i+1),
			Answers: []content.Answer{
				{Text: "right", IsCorrect: true},
				{Text: "wrong"},
			},
		}
	}

	return questions
}

// answers отвечает на вопросы q1..q10, первые correct из них верно.
func answers(correct int) []Answer {
	result := make([]Answer, 10)
	for i := range result {
		selected := "wrong"
		if i < correct {
			selected = " right "
		}

		result[i] = Answer{QuestionID: fmt.Sprintf("q%d", i+1), SelectedAnswer: selected}
	}

	return result
}

func testSource(t *testing.T) *content.StaticSource {
	t.Helper()

	src := content.NewStaticSource()
	require.NoError(t, src.AddCourse(content.Course{
		ID:         "go",
		Title:      "Go",
		Points:     40,
		LectureIDs: []string{"l1", "l2", "reading"},
	}))
	require.NoError(t, src.AddLecture(content.Lecture{ID: "l1", CourseID: "go", Title: "Basics", Questions: testQuestions(10)}))
	require.NoError(t, src.AddLecture(content.Lecture{
		ID:           "l2",
		CourseID:     "go",
		Title:        "Generics",
		PassingScore: 90,
		Questions:    testQuestions(10),
	}))
	require.NoError(t, src.AddLecture(content.Lecture{ID: "reading", CourseID: "go", Title: "Reading"}))

	return src
}

type fixture struct {
	engine *Engine
	st     storage.Storage
	mem    *storage.MemoryStorage
	points *points.Ledger
	now    *time.Time
}

func newFixture(t *testing.T, wrap func(*storage.MemoryStorage) storage.Storage, users ...string) *fixture {
	t.Helper()

	mem := storage.NewMemoryStorage()
	for _, id := range users {
		require.NoError(t, mem.CreateUser(context.Background(), &models.User{ID: id, CreatedAt: t0}))
	}

	var st storage.Storage = mem
	if wrap != nil {
		st = wrap(mem)
	}

	now := t0
	clock := func() time.Time { return now }

	pointsLedger := points.NewLedger(st, points.WithClock(clock))

	return &fixture{
		engine: NewEngine(
			st,
			testSource(t),
			lives.NewLedger(3, 10*time.Hour, lives.WithClock(clock)),
			pointsLedger,
			WithClock(clock),
		),
		st:     st,
		mem:    mem,
		points: pointsLedger,
		now:    &now,
	}
}

func (f *fixture) requireNoDrift(t *testing.T, userID string) {
	t.Helper()

	drift, err := f.points.Recompute(context.Background(), f.mem, userID)
	require.NoError(t, err)
	assert.Zero(t, drift.Delta, "drift %+v", drift)
	assert.GreaterOrEqual(t, drift.Current, 0)
}

func (f *fixture) userPoints(t *testing.T, userID string) int {
	t.Helper()

	user, err := f.mem.GetUser(context.Background(), userID)
	require.NoError(t, err)

	return user.Points
}

func TestSubmit_Scoring(t *testing.T) {
	testCases := []struct {
		name      string
		lectureID string
		correct   int
		score     float64
		passed    bool
		points    int
	}{
		{name: "seven of ten passes", lectureID: "l1", correct: 7, score: 70, passed: true, points: 15},
		{name: "six of ten fails", lectureID: "l1", correct: 6, score: 60, passed: false, points: 0},
		{name: "all correct", lectureID: "l1", correct: 10, score: 100, passed: true, points: 15},
		{name: "lecture passing score override", lectureID: "l2", correct: 8, score: 80, passed: false, points: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil, "u1")

			started, err := f.engine.Create(ctx, "u1", tc.lectureID)
			require.NoError(t, err)

			result, err := f.engine.Submit(ctx, started.Exam.ID, "u1", answers(tc.correct), 120)
			require.NoError(t, err)

			assert.InDelta(t, tc.score, result.Score, 0.001)
			assert.Equal(t, tc.passed, result.Passed)
			assert.Equal(t, tc.correct, result.CorrectAnswers)
			assert.Equal(t, 10, result.TotalQuestions)
			assert.Equal(t, 120, result.TimeSpent)
			assert.Equal(t, tc.points, result.PointsAwarded)
			assert.Len(t, result.Answers, 10)
			assert.True(t, result.Answers[0].IsCorrect)
			assert.Equal(t, "right", result.Answers[0].CorrectAnswer)

			exam, err := f.mem.GetExam(ctx, started.Exam.ID)
			require.NoError(t, err)
			assert.True(t, exam.Complete)
			assert.Equal(t, !tc.passed, exam.Reproved)

			assert.Equal(t, tc.points, f.userPoints(t, "u1"))
			f.requireNoDrift(t, "u1")
		})
	}
}

func TestSubmit_AfterDirectCompletionAwardsOnlyExam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1")

	completion, err := f.engine.CompleteLecture(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.True(t, completion.Created)
	assert.Equal(t, points.LecturePoints, completion.PointsAwarded)

	again, err := f.engine.CompleteLecture(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Zero(t, again.PointsAwarded)

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	result, err := f.engine.Submit(ctx, started.Exam.ID, "u1", answers(9), 60)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, points.ExamPoints, result.PointsAwarded)

	assert.Equal(t, 15, f.userPoints(t, "u1"))
	f.requireNoDrift(t, "u1")
}

func TestCreateAndRetry_ConsumeLives(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1")

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, started.Lives.Remaining)
	assert.Equal(t, models.ExamStatusCreated, started.Exam.Status)

	_, err = f.engine.Submit(ctx, started.Exam.ID, "u1", answers(1), 30)
	require.NoError(t, err)

	retried, err := f.engine.Retry(ctx, started.Exam.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Lives.Remaining)
	assert.True(t, retried.Exam.Reproved)
	assert.False(t, retried.Exam.Complete)
	assert.Equal(t, models.ExamStatusCreated, retried.Exam.Status)

	_, err = f.engine.Create(ctx, "u1", "l2")
	require.NoError(t, err)

	_, err = f.engine.Retry(ctx, started.Exam.ID, "u1")
	require.ErrorIs(t, err, lives.ErrInsufficientLives)

	var exhausted *lives.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.NotNil(t, exhausted.Status.NextResetAt)
	assert.Equal(t, t0.Add(10*time.Hour), *exhausted.Status.NextResetAt)

	status, err := f.engine.Lives(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, status.Remaining)

	// после окна жизни возвращаются
	*f.now = t0.Add(10*time.Hour + time.Second)

	_, err = f.engine.Retry(ctx, started.Exam.ID, "u1")
	require.NoError(t, err)
	f.requireNoDrift(t, "u1")
}

func TestCreate_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1")

	_, err := f.engine.Create(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrAssessmentNotFound)

	_, err = f.engine.Create(ctx, "u1", "reading")
	assert.ErrorIs(t, err, ErrAssessmentNotFound)

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	_, err = f.engine.Create(ctx, "u1", "l1")
	assert.ErrorIs(t, err, ErrExamExists)

	_, err = f.engine.Submit(ctx, started.Exam.ID, "u1", answers(10), 10)
	require.NoError(t, err)

	_, err = f.engine.Create(ctx, "u1", "l1")
	assert.ErrorIs(t, err, ErrAlreadyPassed)

	_, err = f.engine.Retry(ctx, started.Exam.ID, "u1")
	assert.ErrorIs(t, err, ErrAlreadyPassed)

	// отказы не тратят жизни
	status, err := f.engine.Lives(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Remaining)
}

func TestSubmit_ClosedExam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1")

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	_, err = f.engine.Submit(ctx, started.Exam.ID, "u1", answers(10), 10)
	require.NoError(t, err)

	_, err = f.engine.Submit(ctx, started.Exam.ID, "u1", answers(10), 10)
	require.ErrorIs(t, err, ErrExamClosed)

	assert.Equal(t, 15, f.userPoints(t, "u1"))

	attempts, total, err := f.engine.History(ctx, started.Exam.ID, "u1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, attempts, 1)
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1", "u2")

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	_, err = f.engine.Start(ctx, started.Exam.ID, "u2")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.Submit(ctx, started.Exam.ID, "u2", answers(10), 10)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.Retry(ctx, started.Exam.ID, "u2")
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = f.engine.History(ctx, started.Exam.ID, "u2", 0, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.Start(ctx, "missing", "u1")
	assert.ErrorIs(t, err, ErrExamNotFound)

	// u2 ничего не потратил, экзамен u1 не тронут
	status, err := f.engine.Lives(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 3, status.Remaining)

	exam, err := f.mem.GetExam(ctx, started.Exam.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusCreated, exam.Status)
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1")

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	*f.now = t0.Add(time.Minute)

	view, err := f.engine.Start(ctx, started.Exam.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ExamStatusInProgress, view.Exam.Status)
	require.NotNil(t, view.Exam.StartedAt)
	assert.Equal(t, t0.Add(time.Minute), *view.Exam.StartedAt)
	require.Len(t, view.Questions, 10)

	for _, q := range view.Questions {
		for _, a := range q.Answers {
			assert.False(t, a.IsCorrect)
		}
	}

	// повторный Start не сдвигает время начала
	*f.now = t0.Add(time.Hour)

	view, err = f.engine.Start(ctx, started.Exam.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), *view.Exam.StartedAt)
}

func TestSubmit_InvalidSubmission(t *testing.T) {
	testCases := []struct {
		name      string
		answers   []Answer
		timeSpent int
	}{
		{name: "empty answers", answers: nil, timeSpent: 10},
		{name: "zero time", answers: answers(10), timeSpent: 0},
		{name: "negative time", answers: answers(10), timeSpent: -5},
		{name: "missing question id", answers: []Answer{{SelectedAnswer: "right"}}, timeSpent: 10},
		{name: "missing selected answer", answers: []Answer{{QuestionID: "q1", SelectedAnswer: "  "}}, timeSpent: 10},
		{
			name:      "duplicate question",
			answers:   []Answer{{QuestionID: "q1", SelectedAnswer: "right"}, {QuestionID: "q1", SelectedAnswer: "wrong"}},
			timeSpent: 10,
		},
		{name: "unknown question", answers: []Answer{{QuestionID: "q42", SelectedAnswer: "right"}}, timeSpent: 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil, "u1")

			started, err := f.engine.Create(ctx, "u1", "l1")
			require.NoError(t, err)

			_, err = f.engine.Submit(ctx, started.Exam.ID, "u1", tc.answers, tc.timeSpent)
			require.ErrorIs(t, err, ErrInvalidSubmission)

			_, total, err := f.engine.History(ctx, started.Exam.ID, "u1", 0, 10)
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestSubmit_PartialAnswersCountAsWrong(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1")

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	result, err := f.engine.Submit(ctx, started.Exam.ID, "u1", answers(7)[:7], 10)
	require.NoError(t, err)
	assert.Equal(t, 7, result.CorrectAnswers)
	assert.Equal(t, 10, result.TotalQuestions)
	assert.True(t, result.Passed)
}

func TestSubmit_ConcurrentAwardsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "u1")

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		closed int
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.engine.Submit(ctx, started.Exam.ID, "u1", answers(10), 10)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrExamClosed):
				closed++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, closed)
	assert.Equal(t, 15, f.userPoints(t, "u1"))
	f.requireNoDrift(t, "u1")
}

var errBoom = errors.New("boom")

// failingStorage ломает запись в журнал очков внутри транзакции.
type failingStorage struct {
	*storage.MemoryStorage
}

func (f failingStorage) WithinUserTx(
	ctx context.Context,
	userID string,
	fn func(ctx context.Context, repo storage.Repo) error,
) error {
	return f.MemoryStorage.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		return fn(ctx, failingRepo{repo})
	})
}

type failingRepo struct {
	storage.Repo
}

func (failingRepo) SavePointEvent(context.Context, *models.PointEvent) error {
	return errBoom
}

func TestSubmit_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(m *storage.MemoryStorage) storage.Storage { return failingStorage{m} }, "u1")

	started, err := f.engine.Create(ctx, "u1", "l1")
	require.NoError(t, err)

	_, err = f.engine.Submit(ctx, started.Exam.ID, "u1", answers(10), 10)
	require.ErrorIs(t, err, errBoom)

	exam, err := f.mem.GetExam(ctx, started.Exam.ID)
	require.NoError(t, err)
	assert.False(t, exam.Complete)
	assert.Equal(t, models.ExamStatusCreated, exam.Status)

	_, total, err := f.mem.ListAttempts(ctx, started.Exam.ID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	lectures, err := f.mem.CountUserLectures(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, lectures)

	assert.Zero(t, f.userPoints(t, "u1"))
	f.requireNoDrift(t, "u1")
}

func TestCompleteLecture_Unknown(t *testing.T) {
	f := newFixture(t, nil, "u1")

	_, err := f.engine.CompleteLecture(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrLectureNotFound)
}
