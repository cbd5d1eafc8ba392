package exam

import (
	"errors"

	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/lives"
)

// DefaultPassingScore - проходной балл, если у экзамена он не задан.
const DefaultPassingScore = 70

// Ошибки экзамена
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrForbidden          = errors.New("exam belongs to another user")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrLectureNotFound    = errors.New("lecture not found")
	ErrInvalidSubmission  = errors.New("invalid submission")
	ErrInvalidExam        = errors.New("exam has no questions")
	ErrExamExists         = errors.New("exam for this lecture already exists")
	ErrAlreadyPassed      = errors.New("exam already passed")
	ErrExamClosed         = errors.New("exam is not open for submission")
)

// Answer - ответ пользователя на вопрос.
type Answer struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
}

// View - экзамен с вопросами без правильных ответов.
type View struct {
	Exam      models.Exam        `json:"exam"`
	Questions []content.Question `json:"questions"`
}

// Started - результат создания экзамена или новой попытки.
type Started struct {
	Exam  models.Exam  `json:"exam"`
	Lives lives.Status `json:"lives"`
}

// Result - результат отправки ответов.
type Result struct {
	AttemptID      string                 `json:"attempt_id"`
	ExamID         string                 `json:"exam_id"`
	Score          float64                `json:"score"`
	Passed         bool                   `json:"passed"`
	CorrectAnswers int                    `json:"correct_answers"`
	TotalQuestions int                    `json:"total_questions"`
	TimeSpent      int                    `json:"time_spent"`
	Answers        []models.AttemptAnswer `json:"answers"`
	PointsAwarded  int                    `json:"points_awarded"`
}

// LectureCompletion - результат прямого прохождения лекции.
type LectureCompletion struct {
	LectureID     string `json:"lecture_id"`
	Created       bool   `json:"created"`
	PointsAwarded int    `json:"points_awarded"`
}
