package models

import (
	"time"
)

// Файл с моделями записей, которыми оперирует движок прогресса.
// Сервисы создают экземпляры моделей, заполняют их данными и
// передают в соответствующую функцию хранилища.

// User определяет модель пользователя.
// Points - кэшированная сумма очков, меняется только через points.Ledger.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Damage - неизменяемая запись о потраченной жизни.
type Damage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ExamStatus - статус экзамена.
type ExamStatus string

const (
	ExamStatusCreated    ExamStatus = "created"
	ExamStatusInProgress ExamStatus = "in_progress"
	ExamStatusPassed     ExamStatus = "passed"
	ExamStatusFailed     ExamStatus = "failed"
)

// Terminal сообщает, завершен ли текущий цикл экзамена.
func (s ExamStatus) Terminal() bool {
	return s == ExamStatusPassed || s == ExamStatusFailed
}

// Exam определяет модель экзамена по лекции для одного пользователя.
type Exam struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	LectureID    string     `json:"lecture_id"`
	CourseID     string     `json:"course_id"`
	Status       ExamStatus `json:"status"`
	Complete     bool       `json:"complete"`
	Reproved     bool       `json:"reproved"`
	TimeLimit    int        `json:"time_limit,omitempty"`    // секунды, 0 - без ограничения
	PassingScore int        `json:"passing_score,omitempty"` // 0 - значение по умолчанию
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AttemptAnswer - ответ на один вопрос внутри попытки.
type AttemptAnswer struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

// ExamAttempt - неизменяемая запись об одной отправке ответов.
type ExamAttempt struct {
	ID             string          `json:"id"`
	ExamID         string          `json:"exam_id"`
	UserID         string          `json:"user_id"`
	Answers        []AttemptAnswer `json:"answers"`
	Score          float64         `json:"score"`
	CorrectAnswers int             `json:"correct_answers"`
	TotalQuestions int             `json:"total_questions"`
	TimeSpent      int             `json:"time_spent"`
	Passed         bool            `json:"passed"`
	CreatedAt      time.Time       `json:"created_at"`
}

// UserLecture - отметка о прохождении лекции. Не больше одной на (user, lecture).
type UserLecture struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	LectureID string    `json:"lecture_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Certificate определяет модель сертификата за курс.
// Название и описание курса копируются при выдаче.
type Certificate struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	Workload    int       `json:"workload"`
	IssuedAt    time.Time `json:"issued_at"`
}

// PointEvent - запись журнала начислений очков.
type PointEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
