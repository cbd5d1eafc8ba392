package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/storage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dsn := os.Getenv("PROGRESS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PROGRESS_TEST_DATABASE_URL is not set")
	}

	st, err := NewStorage(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

func newTestUser(t *testing.T, st *Storage) string {
	t.Helper()

	id := uuid.NewString()
	require.NoError(t, st.CreateUser(context.Background(), &models.User{ID: id, Name: "test", CreatedAt: time.Now().UTC()}))

	return id
}

func TestStorage_UsersAndPoints(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)
	userID := newTestUser(t, st)

	err := st.CreateUser(ctx, &models.User{ID: userID, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	total, err := st.AddPoints(ctx, userID, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, total)

	total, err = st.AddPoints(ctx, userID, -100)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = st.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_WithinUserTxRollback(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)
	userID := newTestUser(t, st)
	errBoom := errors.New("boom")

	err := st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		if _, err := repo.AddPoints(ctx, userID, 10); err != nil {
			return err
		}

		created, err := repo.SaveUserLecture(ctx, &models.UserLecture{
			ID: uuid.NewString(), UserID: userID, CourseID: "go", LectureID: "l1", CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		assert.True(t, created)

		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	user, err := st.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, user.Points)

	count, err := st.CountUserLectures(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = st.WithinUserTx(ctx, uuid.NewString(), func(context.Context, storage.Repo) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_UniqueRecords(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)
	userID := newTestUser(t, st)
	now := time.Now().UTC().Truncate(time.Microsecond)

	exam := &models.Exam{
		ID: uuid.NewString(), UserID: userID, LectureID: "l1", CourseID: "go",
		Status: models.ExamStatusCreated, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.SaveExam(ctx, exam))

	dup := *exam
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, st.SaveExam(ctx, &dup), storage.ErrDuplicate)

	found, err := st.FindExam(ctx, userID, "l1")
	require.NoError(t, err)
	assert.Equal(t, exam.ID, found.ID)

	for i := 0; i < 2; i++ {
		created, err := st.SaveUserLecture(ctx, &models.UserLecture{
			ID: uuid.NewString(), UserID: userID, CourseID: "go", LectureID: "l1", CreatedAt: now,
		})
		require.NoError(t, err)
		assert.Equal(t, i == 0, created)
	}

	cert := &models.Certificate{ID: uuid.NewString(), UserID: userID, CourseID: "go", Points: 40, IssuedAt: now}
	require.NoError(t, st.SaveCertificate(ctx, cert))

	again := *cert
	again.ID = uuid.NewString()
	assert.ErrorIs(t, st.SaveCertificate(ctx, &again), storage.ErrDuplicate)

	sum, err := st.SumCertificatePoints(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 40, sum)
}

func TestStorage_DuplicateCertificateKeepsTx(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)
	userID := newTestUser(t, st)
	now := time.Now().UTC().Truncate(time.Microsecond)

	winner := &models.Certificate{ID: uuid.NewString(), UserID: userID, CourseID: "go", Points: 40, IssuedAt: now}
	require.NoError(t, st.SaveCertificate(ctx, winner))

	err := st.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		loser := *winner
		loser.ID = uuid.NewString()
		require.ErrorIs(t, repo.SaveCertificate(ctx, &loser), storage.ErrDuplicate)

		// транзакция не прервана, чтение в ней же проходит
		got, err := repo.GetCertificate(ctx, userID, "go")
		if err != nil {
			return err
		}

		assert.Equal(t, winner.ID, got.ID)

		_, err = repo.AddPoints(ctx, userID, 5)

		return err
	})
	require.NoError(t, err)

	user, err := st.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, user.Points)
}

func TestStorage_AttemptsAndDamages(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)
	userID := newTestUser(t, st)
	now := time.Now().UTC().Truncate(time.Microsecond)

	examID := uuid.NewString()
	require.NoError(t, st.SaveExam(ctx, &models.Exam{
		ID: examID, UserID: userID, LectureID: "l1", Status: models.ExamStatusCreated, CreatedAt: now, UpdatedAt: now,
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, st.SaveAttempt(ctx, &models.ExamAttempt{
			ID:             uuid.NewString(),
			ExamID:         examID,
			UserID:         userID,
			Answers:        []models.AttemptAnswer{{QuestionID: "q1", SelectedAnswer: "a", CorrectAnswer: "a", IsCorrect: true}},
			Score:          float64(i * 10),
			TotalQuestions: 1,
			TimeSpent:      5,
			CreatedAt:      now.Add(time.Duration(i) * time.Minute),
		}))

		require.NoError(t, st.SaveDamage(ctx, &models.Damage{
			ID: uuid.NewString(), UserID: userID, CreatedAt: now.Add(time.Duration(i) * time.Hour),
		}))
	}

	attempts, total, err := st.ListAttempts(ctx, examID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, attempts, 2)
	assert.InDelta(t, 20.0, attempts[0].Score, 0.001)
	assert.Equal(t, "q1", attempts[0].Answers[0].QuestionID)

	for _, offset := range []int{-1, 3, 1 << 40} {
		attempts, total, err = st.ListAttempts(ctx, examID, offset, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, attempts)
	}

	damages, err := st.ListDamages(ctx, userID, now)
	require.NoError(t, err)
	require.Len(t, damages, 2)
	assert.True(t, damages[0].CreatedAt.Before(damages[1].CreatedAt))
}
