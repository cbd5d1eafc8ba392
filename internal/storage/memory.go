package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/letsssgooo/progress/internal/domain/models"
)

// MemoryStorage реализует Storage в памяти. Предназначен для тестов и локальной разработки.
// Атомарность по пользователю обеспечивается мьютексом пользователя и журналом отката.
// Чтения вне WithinUserTx не берут мьютекс пользователя и могут увидеть
// незавершённую единицу работы, поэтому согласованные чтения выполняются внутри WithinUserTx.
type MemoryStorage struct {
	memRepo
	locks sync.Map // ключ - userID, значение - *sync.Mutex
}

// NewMemoryStorage создаёт новый MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		memRepo: memRepo{st: newMemState()},
	}
}

// WithinUserTx выполняет fn под мьютексом пользователя.
// Пользователь должен существовать. При ошибке все изменения, сделанные через repo, откатываются.
func (s *MemoryStorage) WithinUserTx(
	ctx context.Context,
	userID string,
	fn func(ctx context.Context, repo Repo) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)

	mu.Lock()
	defer mu.Unlock()

	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	tx := memRepo{st: s.st, undo: &undoLog{}}

	if err := fn(ctx, tx); err != nil {
		tx.undo.rollback(s.st)
		return err
	}

	return nil
}

type memState struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	pointEvents  map[string][]models.PointEvent  // ключ - userID
	damages      map[string][]models.Damage      // ключ - userID
	exams        map[string]*models.Exam          // ключ - examID
	attempts     map[string][]models.ExamAttempt // ключ - examID
	userLectures map[string]map[string]models.UserLecture   // userID -> lectureID
	certificates map[string]map[string]*models.Certificate // userID -> courseID
}

func newMemState() *memState {
	return &memState{
		users:        make(map[string]*models.User),
		pointEvents:  make(map[string][]models.PointEvent),
		damages:      make(map[string][]models.Damage),
		exams:        make(map[string]*models.Exam),
		attempts:     make(map[string][]models.ExamAttempt),
		userLectures: make(map[string]map[string]models.UserLecture),
		certificates: make(map[string]map[string]*models.Certificate),
	}
}

// undoLog хранит обратные операции для отката транзакции.
type undoLog struct {
	steps []func(st *memState)
}

func (u *undoLog) push(step func(st *memState)) {
	if u == nil {
		return
	}

	u.steps = append(u.steps, step)
}

func (u *undoLog) rollback(st *memState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i](st)
	}

	u.steps = nil
}

// memRepo реализует Repo поверх memState. undo == nil вне транзакции.
type memRepo struct {
	st   *memState
	undo *undoLog
}

func (r memRepo) CreateUser(_ context.Context, user *models.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.users[user.ID]; ok {
		return ErrDuplicate
	}

	u := *user
	r.st.users[user.ID] = &u
	r.undo.push(func(st *memState) {
		delete(st.users, u.ID)
	})

	return nil
}

func (r memRepo) GetUser(_ context.Context, id string) (*models.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	user, ok := r.st.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	u := *user

	return &u, nil
}

func (r memRepo) AddPoints(_ context.Context, userID string, delta int) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[userID]
	if !ok {
		return 0, ErrNotFound
	}

	prev := user.Points
	user.Points = max(prev+delta, 0)
	r.undo.push(func(st *memState) {
		if u, ok := st.users[userID]; ok {
			u.Points = prev
		}
	})

	return user.Points, nil
}

func (r memRepo) SetPoints(_ context.Context, userID string, points int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[userID]
	if !ok {
		return ErrNotFound
	}

	prev := user.Points
	user.Points = points
	r.undo.push(func(st *memState) {
		if u, ok := st.users[userID]; ok {
			u.Points = prev
		}
	})

	return nil
}

func (r memRepo) ListUserIDs(_ context.Context, afterID string, limit int) ([]string, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	ids := make([]string, 0, len(r.st.users))
	for id := range r.st.users {
		if id > afterID {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

func (r memRepo) SavePointEvent(_ context.Context, event *models.PointEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	userID := event.UserID
	r.st.pointEvents[userID] = append(r.st.pointEvents[userID], *event)
	r.undo.push(func(st *memState) {
		events := st.pointEvents[userID]
		st.pointEvents[userID] = events[:len(events)-1]
	})

	return nil
}

func (r memRepo) SumPointEvents(_ context.Context, userID string, since time.Time) (int, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	sum := 0
	for _, event := range r.st.pointEvents[userID] {
		if !event.CreatedAt.Before(since) {
			sum += event.Amount
		}
	}

	return sum, nil
}

func (r memRepo) SaveDamage(_ context.Context, damage *models.Damage) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	userID := damage.UserID
	r.st.damages[userID] = append(r.st.damages[userID], *damage)
	r.undo.push(func(st *memState) {
		damages := st.damages[userID]
		st.damages[userID] = damages[:len(damages)-1]
	})

	return nil
}

func (r memRepo) ListDamages(_ context.Context, userID string, since time.Time) ([]models.Damage, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	result := make([]models.Damage, 0)
	for _, damage := range r.st.damages[userID] {
		if damage.CreatedAt.After(since) {
			result = append(result, damage)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r memRepo) SaveExam(_ context.Context, exam *models.Exam) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.exams[exam.ID]; ok {
		return ErrDuplicate
	}

	for _, e := range r.st.exams {
		if e.UserID == exam.UserID && e.LectureID == exam.LectureID {
			return ErrDuplicate
		}
	}

	e := *exam
	r.st.exams[exam.ID] = &e
	r.undo.push(func(st *memState) {
		delete(st.exams, e.ID)
	})

	return nil
}

func (r memRepo) GetExam(_ context.Context, id string) (*models.Exam, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	exam, ok := r.st.exams[id]
	if !ok {
		return nil, ErrNotFound
	}

	e := *exam

	return &e, nil
}

func (r memRepo) FindExam(_ context.Context, userID, lectureID string) (*models.Exam, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	for _, exam := range r.st.exams {
		if exam.UserID == userID && exam.LectureID == lectureID {
			e := *exam
			return &e, nil
		}
	}

	return nil, ErrNotFound
}

func (r memRepo) UpdateExam(_ context.Context, exam *models.Exam) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	prev, ok := r.st.exams[exam.ID]
	if !ok {
		return ErrNotFound
	}

	e := *exam
	r.st.exams[exam.ID] = &e
	r.undo.push(func(st *memState) {
		st.exams[prev.ID] = prev
	})

	return nil
}

func (r memRepo) CountPassedExams(_ context.Context, userID string) (int, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	count := 0
	for _, exam := range r.st.exams {
		if exam.UserID == userID && exam.Status == models.ExamStatusPassed {
			count++
		}
	}

	return count, nil
}

func (r memRepo) SaveAttempt(_ context.Context, attempt *models.ExamAttempt) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	a := *attempt
	a.Answers = append([]models.AttemptAnswer(nil), attempt.Answers...)

	examID := a.ExamID
	r.st.attempts[examID] = append(r.st.attempts[examID], a)
	r.undo.push(func(st *memState) {
		attempts := st.attempts[examID]
		st.attempts[examID] = attempts[:len(attempts)-1]
	})

	return nil
}

func (r memRepo) ListAttempts(
	_ context.Context,
	examID string,
	offset, limit int,
) ([]models.ExamAttempt, int, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	all := r.st.attempts[examID]
	total := len(all)

	if offset < 0 || offset >= total || limit <= 0 {
		return []models.ExamAttempt{}, total, nil
	}

	result := make([]models.ExamAttempt, 0, min(limit, total-offset))
	for i := total - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i])
	}

	return result, total, nil
}

func (r memRepo) SaveUserLecture(_ context.Context, ul *models.UserLecture) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	lectures, ok := r.st.userLectures[ul.UserID]
	if !ok {
		lectures = make(map[string]models.UserLecture)
		r.st.userLectures[ul.UserID] = lectures
	}

	if _, ok = lectures[ul.LectureID]; ok {
		return false, nil
	}

	lectures[ul.LectureID] = *ul
	userID, lectureID := ul.UserID, ul.LectureID
	r.undo.push(func(st *memState) {
		delete(st.userLectures[userID], lectureID)
	})

	return true, nil
}

func (r memRepo) ListCompletedLectures(_ context.Context, userID, courseID string) ([]string, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	ids := make([]string, 0)
	for lectureID, ul := range r.st.userLectures[userID] {
		if ul.CourseID == courseID {
			ids = append(ids, lectureID)
		}
	}

	sort.Strings(ids)

	return ids, nil
}

func (r memRepo) CountUserLectures(_ context.Context, userID string) (int, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	return len(r.st.userLectures[userID]), nil
}

func (r memRepo) SaveCertificate(_ context.Context, cert *models.Certificate) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	certs, ok := r.st.certificates[cert.UserID]
	if !ok {
		certs = make(map[string]*models.Certificate)
		r.st.certificates[cert.UserID] = certs
	}

	if _, ok = certs[cert.CourseID]; ok {
		return ErrDuplicate
	}

	c := *cert
	certs[cert.CourseID] = &c
	r.undo.push(func(st *memState) {
		delete(st.certificates[c.UserID], c.CourseID)
	})

	return nil
}

func (r memRepo) GetCertificate(_ context.Context, userID, courseID string) (*models.Certificate, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	cert, ok := r.st.certificates[userID][courseID]
	if !ok {
		return nil, ErrNotFound
	}

	c := *cert

	return &c, nil
}

func (r memRepo) SumCertificatePoints(_ context.Context, userID string) (int, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	sum := 0
	for _, cert := range r.st.certificates[userID] {
		sum += cert.Points
	}

	return sum, nil
}
