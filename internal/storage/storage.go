package storage

import (
	"context"
	"errors"
	"time"

	"github.com/letsssgooo/progress/internal/domain/models"
)

// Ошибки хранилища
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repo определяет операции чтения и записи над записями движка.
type Repo interface {
	// CreateUser сохраняет пользователя. ErrDuplicate, если он уже есть.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser возвращает пользователя по ID.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// AddPoints атомарно прибавляет delta к очкам пользователя, не опускаясь ниже нуля.
	// Возвращает новое значение.
	AddPoints(ctx context.Context, userID string, delta int) (int, error)

	// SetPoints перезаписывает очки пользователя.
	SetPoints(ctx context.Context, userID string, points int) error

	// ListUserIDs возвращает до limit идентификаторов пользователей больше afterID по возрастанию.
	ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error)

	// SavePointEvent сохраняет запись журнала начислений.
	SavePointEvent(ctx context.Context, event *models.PointEvent) error

	// SumPointEvents возвращает сумму начислений пользователя начиная с since.
	SumPointEvents(ctx context.Context, userID string, since time.Time) (int, error)

	// SaveDamage сохраняет потраченную жизнь.
	SaveDamage(ctx context.Context, damage *models.Damage) error

	// ListDamages возвращает жизни, потраченные начиная с since, от старых к новым.
	ListDamages(ctx context.Context, userID string, since time.Time) ([]models.Damage, error)

	// SaveExam сохраняет новый экзамен.
	SaveExam(ctx context.Context, exam *models.Exam) error

	// GetExam возвращает экзамен по ID.
	GetExam(ctx context.Context, id string) (*models.Exam, error)

	// FindExam возвращает экзамен пользователя по лекции.
	FindExam(ctx context.Context, userID, lectureID string) (*models.Exam, error)

	// UpdateExam обновляет состояние экзамена.
	UpdateExam(ctx context.Context, exam *models.Exam) error

	// CountPassedExams возвращает число сданных экзаменов пользователя.
	CountPassedExams(ctx context.Context, userID string) (int, error)

	// SaveAttempt сохраняет попытку.
	SaveAttempt(ctx context.Context, attempt *models.ExamAttempt) error

	// ListAttempts возвращает страницу попыток экзамена (новые первыми) и их общее число.
	ListAttempts(ctx context.Context, examID string, offset, limit int) ([]models.ExamAttempt, int, error)

	// SaveUserLecture сохраняет отметку о лекции.
	// Возвращает false без ошибки, если отметка уже была.
	SaveUserLecture(ctx context.Context, ul *models.UserLecture) (bool, error)

	// ListCompletedLectures возвращает ID пройденных лекций пользователя в курсе.
	ListCompletedLectures(ctx context.Context, userID, courseID string) ([]string, error)

	// CountUserLectures возвращает число всех пройденных лекций пользователя.
	CountUserLectures(ctx context.Context, userID string) (int, error)

	// SaveCertificate сохраняет сертификат. ErrDuplicate, если для (user, course) он уже есть.
	SaveCertificate(ctx context.Context, cert *models.Certificate) error

	// GetCertificate возвращает сертификат пользователя за курс.
	GetCertificate(ctx context.Context, userID, courseID string) (*models.Certificate, error)

	// SumCertificatePoints возвращает сумму очков всех сертификатов пользователя.
	SumCertificatePoints(ctx context.Context, userID string) (int, error)
}

// Storage определяет хранилище движка.
type Storage interface {
	Repo

	// WithinUserTx выполняет fn как одну атомарную единицу, сериализованную по пользователю.
	// Любая ошибка fn откатывает все записи, сделанные через переданный Repo.
	WithinUserTx(ctx context.Context, userID string, fn func(ctx context.Context, repo Repo) error) error
}
