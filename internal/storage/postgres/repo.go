package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/storage"
)

// repo реализует storage.Repo поверх пула или транзакции.
type repo struct {
	q querier
}

func (r repo) CreateUser(ctx context.Context, user *models.User) error {
	query := `
	INSERT INTO users (id, name, points, created_at) VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.Exec(ctx, query, user.ID, user.Name, user.Points, user.CreatedAt)

	return mapErr(err)
}

func (r repo) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
	SELECT id, name, points, created_at FROM users WHERE id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &user.Points, &user.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	return &user, nil
}

func (r repo) AddPoints(ctx context.Context, userID string, delta int) (int, error) {
	query := `
	UPDATE users SET points = GREATEST(points + $2, 0) WHERE id = $1 RETURNING points
	`

	var points int
	if err := r.q.QueryRow(ctx, query, userID, delta).Scan(&points); err != nil {
		return 0, mapErr(err)
	}

	return points, nil
}

func (r repo) SetPoints(ctx context.Context, userID string, points int) error {
	query := `
	UPDATE users SET points = $2 WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, userID, points)
	if err != nil {
		return mapErr(err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}

	return nil
}

func (r repo) ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	query := `
	SELECT id FROM users WHERE id > $1 ORDER BY id LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r repo) SavePointEvent(ctx context.Context, event *models.PointEvent) error {
	query := `
	INSERT INTO point_events (id, user_id, amount, reason, created_at) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query, event.ID, event.UserID, event.Amount, event.Reason, event.CreatedAt)

	return mapErr(err)
}

func (r repo) SumPointEvents(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
	SELECT COALESCE(SUM(amount), 0) FROM point_events WHERE user_id = $1 AND created_at >= $2
	`

	var sum int
	if err := r.q.QueryRow(ctx, query, userID, since).Scan(&sum); err != nil {
		return 0, mapErr(err)
	}

	return sum, nil
}

func (r repo) SaveDamage(ctx context.Context, damage *models.Damage) error {
	query := `
	INSERT INTO damages (id, user_id, created_at) VALUES ($1, $2, $3)
	`

	_, err := r.q.Exec(ctx, query, damage.ID, damage.UserID, damage.CreatedAt)

	return mapErr(err)
}

func (r repo) ListDamages(ctx context.Context, userID string, since time.Time) ([]models.Damage, error) {
	query := `
	SELECT id, user_id, created_at FROM damages
	WHERE user_id = $1 AND created_at > $2
	ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query, userID, since)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	damages := make([]models.Damage, 0)
	for rows.Next() {
		var d models.Damage
		if err = rows.Scan(&d.ID, &d.UserID, &d.CreatedAt); err != nil {
			return nil, err
		}

		damages = append(damages, d)
	}

	return damages, rows.Err()
}

const examColumns = `id, user_id, lecture_id, course_id, status, complete, reproved,
	time_limit, passing_score, started_at, created_at, updated_at`

func scanExam(row interface{ Scan(dest ...interface{}) error }) (*models.Exam, error) {
	var e models.Exam
	err := row.Scan(
		&e.ID, &e.UserID, &e.LectureID, &e.CourseID, &e.Status, &e.Complete, &e.Reproved,
		&e.TimeLimit, &e.PassingScore, &e.StartedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	return &e, nil
}

func (r repo) SaveExam(ctx context.Context, exam *models.Exam) error {
	query := `
	INSERT INTO exams (` + examColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.Exec(ctx, query,
		exam.ID, exam.UserID, exam.LectureID, exam.CourseID, string(exam.Status), exam.Complete, exam.Reproved,
		exam.TimeLimit, exam.PassingScore, exam.StartedAt, exam.CreatedAt, exam.UpdatedAt,
	)

	return mapErr(err)
}

func (r repo) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`

	return scanExam(r.q.QueryRow(ctx, query, id))
}

func (r repo) FindExam(ctx context.Context, userID, lectureID string) (*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE user_id = $1 AND lecture_id = $2`

	return scanExam(r.q.QueryRow(ctx, query, userID, lectureID))
}

func (r repo) UpdateExam(ctx context.Context, exam *models.Exam) error {
	query := `
	UPDATE exams
	SET status = $2, complete = $3, reproved = $4, started_at = $5, updated_at = $6
	WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		exam.ID, string(exam.Status), exam.Complete, exam.Reproved, exam.StartedAt, exam.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exam %s: %w", exam.ID, storage.ErrNotFound)
	}

	return nil
}

func (r repo) CountPassedExams(ctx context.Context, userID string) (int, error) {
	query := `
	SELECT COUNT(*) FROM exams WHERE user_id = $1 AND status = $2
	`

	var count int
	if err := r.q.QueryRow(ctx, query, userID, string(models.ExamStatusPassed)).Scan(&count); err != nil {
		return 0, mapErr(err)
	}

	return count, nil
}

func (r repo) SaveAttempt(ctx context.Context, attempt *models.ExamAttempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	query := `
	INSERT INTO exam_attempts (id, exam_id, user_id, answers, score, correct_answers,
		total_questions, time_spent, passed, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.q.Exec(ctx, query,
		attempt.ID, attempt.ExamID, attempt.UserID, answers, attempt.Score, attempt.CorrectAnswers,
		attempt.TotalQuestions, attempt.TimeSpent, attempt.Passed, attempt.CreatedAt,
	)

	return mapErr(err)
}

func (r repo) ListAttempts(
	ctx context.Context,
	examID string,
	offset, limit int,
) ([]models.ExamAttempt, int, error) {
	var total int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM exam_attempts WHERE exam_id = $1`, examID).Scan(&total)
	if err != nil {
		return nil, 0, mapErr(err)
	}

	if offset < 0 || offset >= total || limit <= 0 {
		return []models.ExamAttempt{}, total, nil
	}

	query := `
	SELECT id, exam_id, user_id, answers, score, correct_answers, total_questions,
		time_spent, passed, created_at
	FROM exam_attempts
	WHERE exam_id = $1
	ORDER BY created_at DESC
	OFFSET $2 LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, examID, offset, limit)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	attempts := make([]models.ExamAttempt, 0, min(limit, total-offset))
	for rows.Next() {
		var (
			a       models.ExamAttempt
			answers []byte
		)

		err = rows.Scan(
			&a.ID, &a.ExamID, &a.UserID, &answers, &a.Score, &a.CorrectAnswers, &a.TotalQuestions,
			&a.TimeSpent, &a.Passed, &a.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		if err = json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, 0, fmt.Errorf("failed to decode answers of attempt %s: %w", a.ID, err)
		}

		attempts = append(attempts, a)
	}

	return attempts, total, rows.Err()
}

func (r repo) SaveUserLecture(ctx context.Context, ul *models.UserLecture) (bool, error) {
	query := `
	INSERT INTO user_lectures (id, user_id, course_id, lecture_id, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, lecture_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, ul.ID, ul.UserID, ul.CourseID, ul.LectureID, ul.CreatedAt)
	if err != nil {
		return false, mapErr(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r repo) ListCompletedLectures(ctx context.Context, userID, courseID string) ([]string, error) {
	query := `
	SELECT lecture_id FROM user_lectures WHERE user_id = $1 AND course_id = $2 ORDER BY lecture_id
	`

	rows, err := r.q.Query(ctx, query, userID, courseID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r repo) CountUserLectures(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM user_lectures WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, mapErr(err)
	}

	return count, nil
}

func (r repo) SaveCertificate(ctx context.Context, cert *models.Certificate) error {
	query := `
	INSERT INTO certificates (id, user_id, course_id, course_title, description, points, workload, issued_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, course_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query,
		cert.ID, cert.UserID, cert.CourseID, cert.CourseTitle, cert.Description,
		cert.Points, cert.Workload, cert.IssuedAt,
	)
	if err != nil {
		return mapErr(err)
	}

	// конфликт не прерывает транзакцию, поэтому существующий сертификат можно прочитать в ней же
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicate
	}

	return nil
}

func (r repo) GetCertificate(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	query := `
	SELECT id, user_id, course_id, course_title, description, points, workload, issued_at
	FROM certificates WHERE user_id = $1 AND course_id = $2
	`

	var c models.Certificate
	err := r.q.QueryRow(ctx, query, userID, courseID).Scan(
		&c.ID, &c.UserID, &c.CourseID, &c.CourseTitle, &c.Description, &c.Points, &c.Workload, &c.IssuedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	return &c, nil
}

func (r repo) SumCertificatePoints(ctx context.Context, userID string) (int, error) {
	var sum int
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(points), 0) FROM certificates WHERE user_id = $1`, userID).
		Scan(&sum)
	if err != nil {
		return 0, mapErr(err)
	}

	return sum, nil
}
