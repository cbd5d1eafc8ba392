package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/letsssgooo/progress/internal/exam"
)

type createExamRequest struct {
	LectureID string `json:"lecture_id" validate:"required,max=128"`
}

type answerRequest struct {
	QuestionID     string `json:"question_id" validate:"required,max=128"`
	SelectedAnswer string `json:"selected_answer" validate:"required"`
}

type submitRequest struct {
	Answers   []answerRequest `json:"answers" validate:"required,min=1,dive"`
	TimeSpent int             `json:"time_spent" validate:"required,gt=0"`
}

func (r submitRequest) toAnswers() []exam.Answer {
	answers := make([]exam.Answer, len(r.Answers))
	for i, a := range r.Answers {
		answers[i] = exam.Answer{QuestionID: a.QuestionID, SelectedAnswer: a.SelectedAnswer}
	}

	return answers
}

// requestContext ограничивает время работы обработчика.
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), timeoutRequest)
}

// bind разбирает и проверяет тело запроса. Возвращает false, если ответ с ошибкой уже записан.
func (s *Server) bind(c *fiber.Ctx, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, failure(c, fiber.StatusBadRequest, codeInvalidSubmission, "malformed body", nil)
	}

	if err := s.validate.Struct(dst); err != nil {
		return false, validationFailure(c, err)
	}

	return true, nil
}

func (s *Server) getLives(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	status, err := s.deps.Exams.Lives(ctx, c.Params("userID"))
	if err != nil {
		return err
	}

	return success(c, status)
}

func (s *Server) getPoints(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	summary, err := s.deps.Points.Summary(ctx, c.Params("userID"))
	if err != nil {
		return err
	}

	return success(c, summary)
}

func (s *Server) createExam(c *fiber.Ctx) error {
	var req createExamRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	started, err := s.deps.Exams.Create(ctx, c.Params("userID"), req.LectureID)
	if err != nil {
		return err
	}

	return successWithCode(c, fiber.StatusCreated, started)
}

func (s *Server) retryExam(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	started, err := s.deps.Exams.Retry(ctx, c.Params("examID"), c.Params("userID"))
	if err != nil {
		return err
	}

	return success(c, started)
}

func (s *Server) getExam(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := s.deps.Exams.Start(ctx, c.Params("examID"), c.Params("userID"))
	if err != nil {
		return err
	}

	return success(c, view)
}

func (s *Server) submitExam(c *fiber.Ctx) error {
	var req submitRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := s.deps.Exams.Submit(ctx, c.Params("examID"), c.Params("userID"), req.toAnswers(), req.TimeSpent)
	if err != nil {
		return err
	}

	return success(c, result)
}

func (s *Server) listAttempts(c *fiber.Ctx) error {
	p := resolvePaging(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	attempts, total, err := s.deps.Exams.History(ctx, c.Params("examID"), c.Params("userID"), p.offset(), p.PerPage)
	if err != nil {
		return err
	}

	return successWithMeta(c, attempts, buildMeta(p, total))
}

func (s *Server) completeLecture(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	completion, err := s.deps.Exams.CompleteLecture(ctx, c.Params("userID"), c.Params("lectureID"))
	if err != nil {
		return err
	}

	return success(c, completion)
}

func (s *Server) getCertificate(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	cert, err := s.deps.Certificates.Get(ctx, c.Params("userID"), c.Params("courseID"))
	if err != nil {
		return err
	}

	return success(c, cert)
}

func (s *Server) issueCertificate(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	cert, err := s.deps.Certificates.GetOrCreate(ctx, c.Params("userID"), c.Params("courseID"))
	if err != nil {
		return err
	}

	return success(c, cert)
}
