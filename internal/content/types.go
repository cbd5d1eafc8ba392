package content

import (
	"context"
	"errors"
	"time"
)

// Course представляет курс из CMS.
type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Points      int      `json:"points"`
	Workload    int      `json:"workload"`
	LectureIDs  []string `json:"lecture_ids"`
}

// Lecture представляет лекцию. Questions пуст, если у лекции нет теста.
type Lecture struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	Title        string     `json:"title"`
	TimeLimit    int        `json:"time_limit"`
	PassingScore int        `json:"passing_score"`
	Questions    []Question `json:"questions"`
}

// Question представляет вопрос теста. ID обязателен и стабилен.
type Question struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	CoverImage string   `json:"cover_image,omitempty"`
	Answers    []Answer `json:"answers"`
}

// Answer - вариант ответа.
type Answer struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// CorrectAnswer возвращает текст первого правильного варианта.
func (q Question) CorrectAnswer() (string, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.Text, true
		}
	}

	return "", false
}

// Public возвращает копию вопроса без отметок о правильных ответах.
func (q Question) Public() Question {
	answers := make([]Answer, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = Answer{Text: a.Text}
	}

	q.Answers = answers

	return q
}

// Source определяет интерфейс источника контента (CMS). Только чтение.
type Source interface {
	// Course возвращает курс по ID.
	Course(ctx context.Context, id string) (*Course, error)

	// Lecture возвращает лекцию по ID вместе с вопросами.
	Lecture(ctx context.Context, id string) (*Lecture, error)
}

// Ошибки контента
var (
	ErrNotFound   = errors.New("content not found")
	ErrValidation = errors.New("invalid content")
)

// Таймауты
const (
	timeoutRequest = 3 * time.Second
)
