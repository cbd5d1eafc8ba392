package certificate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/points"
	"github.com/letsssgooo/progress/internal/storage"
)

var now = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func testSource(t *testing.T) *content.StaticSource {
	t.Helper()

	src := content.NewStaticSource()
	require.NoError(t, src.AddCourse(content.Course{
		ID:          "go",
		Title:       "Go",
		Description: "Go from scratch",
		Points:      40,
		Workload:    12,
		LectureIDs:  []string{"l1", "l2", "l3"},
	}))

	return src
}

func newTestIssuer(t *testing.T, st storage.Storage) (*Issuer, *points.Ledger) {
	t.Helper()

	clock := func() time.Time { return now }
	ledger := points.NewLedger(st, points.WithClock(clock))

	return NewIssuer(st, testSource(t), ledger, WithClock(clock)), ledger
}

func newMemory(t *testing.T, lectures ...string) *storage.MemoryStorage {
	t.Helper()

	ctx := context.Background()
	st := storage.NewMemoryStorage()
	require.NoError(t, st.CreateUser(ctx, &models.User{ID: "u1", CreatedAt: now}))

	for _, id := range lectures {
		_, err := st.SaveUserLecture(ctx, &models.UserLecture{ID: id, UserID: "u1", CourseID: "go", LectureID: id})
		require.NoError(t, err)
	}

	// очки за лекции, как если бы они были начислены движком
	_, err := st.AddPoints(ctx, "u1", points.LecturePoints*len(lectures))
	require.NoError(t, err)

	return st
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := newMemory(t, "l1", "l2", "l3")
	issuer, ledger := newTestIssuer(t, st)

	first, err := issuer.GetOrCreate(ctx, "u1", "go")
	require.NoError(t, err)
	assert.Equal(t, "Go", first.CourseTitle)
	assert.Equal(t, "Go from scratch", first.Description)
	assert.Equal(t, 40, first.Points)
	assert.Equal(t, 12, first.Workload)
	assert.Equal(t, now, first.IssuedAt)

	second, err := issuer.GetOrCreate(ctx, "u1", "go")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := issuer.Get(ctx, "u1", "go")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	user, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 55, user.Points)

	drift, err := ledger.Recompute(ctx, st, "u1")
	require.NoError(t, err)
	assert.Zero(t, drift.Delta)
}

func TestGetOrCreate_Incomplete(t *testing.T) {
	ctx := context.Background()
	st := newMemory(t, "l1", "l3")
	issuer, _ := newTestIssuer(t, st)

	_, err := issuer.GetOrCreate(ctx, "u1", "go")
	require.ErrorIs(t, err, ErrCourseIncomplete)

	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 2, incomplete.Completed)
	assert.Equal(t, 3, incomplete.Total)

	_, err = issuer.Get(ctx, "u1", "go")
	assert.ErrorIs(t, err, ErrCertificateAbsent)

	user, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, user.Points)
}

func TestGetOrCreate_UnknownCourse(t *testing.T) {
	issuer, _ := newTestIssuer(t, newMemory(t))

	_, err := issuer.GetOrCreate(context.Background(), "u1", "rust")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	ctx := context.Background()
	st := newMemory(t, "l1", "l2", "l3")
	issuer, _ := newTestIssuer(t, st)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{})
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			cert, err := issuer.GetOrCreate(ctx, "u1", "go")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			ids[cert.ID] = struct{}{}
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Len(t, ids, 1)

	sum, err := st.SumCertificatePoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, sum)

	user, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 55, user.Points)
}

// staleStorage первые stale чтений сертификата отвечает "не найден",
// как будто сертификат создан параллельно уже после проверки.
type staleStorage struct {
	*storage.MemoryStorage

	mu    sync.Mutex
	stale int
}

func (s *staleStorage) isStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale > 0 {
		s.stale--
		return true
	}

	return false
}

func (s *staleStorage) GetCertificate(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	if s.isStale() {
		return nil, storage.ErrNotFound
	}

	return s.MemoryStorage.GetCertificate(ctx, userID, courseID)
}

func (s *staleStorage) WithinUserTx(
	ctx context.Context,
	userID string,
	fn func(ctx context.Context, repo storage.Repo) error,
) error {
	return s.MemoryStorage.WithinUserTx(ctx, userID, func(ctx context.Context, repo storage.Repo) error {
		return fn(ctx, staleRepo{Repo: repo, parent: s})
	})
}

type staleRepo struct {
	storage.Repo
	parent *staleStorage
}

func (r staleRepo) GetCertificate(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	if r.parent.isStale() {
		return nil, storage.ErrNotFound
	}

	return r.Repo.GetCertificate(ctx, userID, courseID)
}

func TestGetOrCreate_DuplicateReturnsExisting(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(t, "l1", "l2", "l3")

	existing := &models.Certificate{ID: "winner", UserID: "u1", CourseID: "go", CourseTitle: "Go", Points: 40}
	require.NoError(t, mem.SaveCertificate(ctx, existing))

	st := &staleStorage{MemoryStorage: mem, stale: 2}
	issuer, _ := newTestIssuer(t, st)

	cert, err := issuer.GetOrCreate(ctx, "u1", "go")
	require.NoError(t, err)
	assert.Equal(t, "winner", cert.ID)

	// очки за сертификат не начислены повторно
	user, err := mem.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 15, user.Points)
}
