package exam

import (
	"fmt"
	"strings"

	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/domain/models"
)

func validateSubmission(answers []Answer, timeSpent int) error {
	if timeSpent <= 0 {
		return fmt.Errorf("%w: time spent must be positive", ErrInvalidSubmission)
	}

	if len(answers) == 0 {
		return fmt.Errorf("%w: need at least one answer", ErrInvalidSubmission)
	}

	seen := make(map[string]struct{}, len(answers))

	for i, answer := range answers {
		if strings.TrimSpace(answer.QuestionID) == "" {
			return fmt.Errorf("%w: missing question_id of %d answer", ErrInvalidSubmission, i)
		}

		if strings.TrimSpace(answer.SelectedAnswer) == "" {
			return fmt.Errorf("%w: missing selected_answer of %d answer", ErrInvalidSubmission, i)
		}

		if _, ok := seen[answer.QuestionID]; ok {
			return fmt.Errorf("%w: question %s answered twice", ErrInvalidSubmission, answer.QuestionID)
		}

		seen[answer.QuestionID] = struct{}{}
	}

	return nil
}

// grade сверяет ответы с ключом лекции. Вопрос без ответа считается неверным.
// Возвращает разбор по всем вопросам лекции и число верных ответов.
func grade(questions []content.Question, answers []Answer) ([]models.AttemptAnswer, int, error) {
	if len(questions) == 0 {
		return nil, 0, ErrInvalidExam
	}

	known := make(map[string]struct{}, len(questions))
	for _, question := range questions {
		known[question.ID] = struct{}{}
	}

	byID := make(map[string]string, len(answers))
	for _, answer := range answers {
		if _, ok := known[answer.QuestionID]; !ok {
			return nil, 0, fmt.Errorf("%w: unknown question %s", ErrInvalidSubmission, answer.QuestionID)
		}

		byID[answer.QuestionID] = answer.SelectedAnswer
	}

	breakdown := make([]models.AttemptAnswer, 0, len(questions))
	correct := 0

	for _, question := range questions {
		key, ok := question.CorrectAnswer()
		if !ok {
			return nil, 0, fmt.Errorf("%w: question %s has no correct answer", ErrInvalidExam, question.ID)
		}

		selected, answered := byID[question.ID]

		isCorrect := answered && strings.TrimSpace(selected) == strings.TrimSpace(key)
		if isCorrect {
			correct++
		}

		breakdown = append(breakdown, models.AttemptAnswer{
			QuestionID:     question.ID,
			SelectedAnswer: selected,
			CorrectAnswer:  key,
			IsCorrect:      isCorrect,
		})
	}

	return breakdown, correct, nil
}
