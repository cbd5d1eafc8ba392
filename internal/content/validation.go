package content

import (
	"fmt"
	"strings"
)

// validateCourse проверяет на корректность структуру курса.
func validateCourse(course *Course) error {
	if course.ID == "" {
		return fmt.Errorf("%w: missing field id of course", ErrValidation)
	}

	if course.Title == "" {
		return fmt.Errorf("%w: missing field title of course %s", ErrValidation, course.ID)
	}

	if course.Points < 0 {
		return fmt.Errorf("%w: points of course %s must not be negative", ErrValidation, course.ID)
	}

	if len(course.LectureIDs) == 0 {
		return fmt.Errorf("%w: course %s needs at least one lecture", ErrValidation, course.ID)
	}

	return nil
}

// validateLecture проверяет на корректность структуру лекции и её вопросов.
// Каждый вопрос должен иметь уникальный ID и ровно один правильный ответ.
func validateLecture(lecture *Lecture) error {
	if lecture.ID == "" {
		return fmt.Errorf("%w: missing field id of lecture", ErrValidation)
	}

	if lecture.CourseID == "" {
		return fmt.Errorf("%w: missing field course_id of lecture %s", ErrValidation, lecture.ID)
	}

	if lecture.PassingScore < 0 || lecture.PassingScore > 100 {
		return fmt.Errorf("%w: passing_score of lecture %s is out of range", ErrValidation, lecture.ID)
	}

	seen := make(map[string]struct{}, len(lecture.Questions))

	for i, question := range lecture.Questions {
		if strings.TrimSpace(question.ID) == "" {
			return fmt.Errorf("%w: missing field id of %d question", ErrValidation, i)
		}

		if _, ok := seen[question.ID]; ok {
			return fmt.Errorf("%w: duplicate question id %s", ErrValidation, question.ID)
		}
		seen[question.ID] = struct{}{}

		if question.Prompt == "" {
			return fmt.Errorf("%w: missing field prompt of question %s", ErrValidation, question.ID)
		}

		if len(question.Answers) < 2 {
			return fmt.Errorf("%w: amount of answers must be at least two in question %s", ErrValidation, question.ID)
		}

		correct := 0
		for _, answer := range question.Answers {
			if answer.IsCorrect {
				correct++
			}
		}

		if correct != 1 {
			return fmt.Errorf("%w: question %s must have exactly one correct answer", ErrValidation, question.ID)
		}
	}

	return nil
}
