package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/letsssgooo/progress/internal/certificate"
	"github.com/letsssgooo/progress/internal/exam"
	"github.com/letsssgooo/progress/internal/lives"
)

// Машинные коды ошибок
const (
	codeInsufficientLives  = "insufficient_lives"
	codeExamNotFound       = "exam_not_found"
	codeAssessmentNotFound = "assessment_not_found"
	codeLectureNotFound    = "lecture_not_found"
	codeCourseNotFound     = "course_not_found"
	codeCertificateAbsent  = "certificate_not_found"
	codeForbidden          = "forbidden"
	codeUnauthorized       = "unauthorized"
	codeInvalidSubmission  = "invalid_submission"
	codeInvalidExam        = "invalid_exam"
	codeCourseIncomplete   = "course_incomplete"
	codeExamExists         = "exam_exists"
	codeAlreadyPassed      = "already_passed"
	codeExamClosed         = "exam_closed"
	codeRateLimited        = "rate_limited"
	codeNotFound           = "not_found"
	codeInternal           = "internal_error"
)

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{lives.ErrInsufficientLives, fiber.StatusTooManyRequests, codeInsufficientLives},
	{exam.ErrExamNotFound, fiber.StatusNotFound, codeExamNotFound},
	{exam.ErrAssessmentNotFound, fiber.StatusNotFound, codeAssessmentNotFound},
	{exam.ErrLectureNotFound, fiber.StatusNotFound, codeLectureNotFound},
	{certificate.ErrCourseNotFound, fiber.StatusNotFound, codeCourseNotFound},
	{certificate.ErrCertificateAbsent, fiber.StatusNotFound, codeCertificateAbsent},
	{exam.ErrForbidden, fiber.StatusForbidden, codeForbidden},
	{exam.ErrInvalidSubmission, fiber.StatusBadRequest, codeInvalidSubmission},
	{exam.ErrInvalidExam, fiber.StatusBadRequest, codeInvalidExam},
	{certificate.ErrCourseIncomplete, fiber.StatusConflict, codeCourseIncomplete},
	{exam.ErrExamExists, fiber.StatusConflict, codeExamExists},
	{exam.ErrAlreadyPassed, fiber.StatusConflict, codeAlreadyPassed},
	{exam.ErrExamClosed, fiber.StatusConflict, codeExamClosed},
}

// errorHandler переводит ошибки обработчиков в ответ с кодом.
// Неизвестные ошибки логируются и отдаются без подробностей.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := codeNotFound
		switch fe.Code {
		case fiber.StatusUnauthorized:
			code = codeUnauthorized
		case fiber.StatusForbidden:
			code = codeForbidden
		case fiber.StatusTooManyRequests:
			code = codeRateLimited
		case fiber.StatusBadRequest:
			code = codeInvalidSubmission
		case fiber.StatusInternalServerError:
			code = codeInternal
		}

		return failure(c, fe.Code, code, fe.Message, nil)
	}

	for _, row := range errorTable {
		if !errors.Is(err, row.err) {
			continue
		}

		return failure(c, row.status, row.code, err.Error(), errorDetails(err))
	}

	slog.Error("request failed",
		"err", err,
		"method", c.Method(),
		"path", c.Path(),
		"request_id", c.Locals(locRequestID),
	)

	return failure(c, fiber.StatusInternalServerError, codeInternal, "internal error", nil)
}

// errorDetails достаёт данные из типизированных ошибок.
func errorDetails(err error) interface{} {
	var exhausted *lives.ExhaustedError
	if errors.As(err, &exhausted) {
		return fiber.Map{
			"remaining":     exhausted.Status.Remaining,
			"total":         exhausted.Status.Total,
			"next_reset_at": exhausted.Status.NextResetAt,
		}
	}

	var incomplete *certificate.IncompleteError
	if errors.As(err, &incomplete) {
		return fiber.Map{
			"completed": incomplete.Completed,
			"total":     incomplete.Total,
		}
	}

	return nil
}
