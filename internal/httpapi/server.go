package httpapi

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/exam"
	"github.com/letsssgooo/progress/internal/lives"
	"github.com/letsssgooo/progress/internal/points"
)

// ExamService - операции экзамена, нужные HTTP-слою.
type ExamService interface {
	Lives(ctx context.Context, userID string) (lives.Status, error)
	Create(ctx context.Context, userID, lectureID string) (*exam.Started, error)
	Retry(ctx context.Context, examID, userID string) (*exam.Started, error)
	Start(ctx context.Context, examID, userID string) (*exam.View, error)
	Submit(ctx context.Context, examID, userID string, answers []exam.Answer, timeSpent int) (*exam.Result, error)
	History(ctx context.Context, examID, userID string, offset, limit int) ([]models.ExamAttempt, int, error)
	CompleteLecture(ctx context.Context, userID, lectureID string) (*exam.LectureCompletion, error)
}

// CertificateService - выдача сертификатов.
type CertificateService interface {
	Get(ctx context.Context, userID, courseID string) (*models.Certificate, error)
	GetOrCreate(ctx context.Context, userID, courseID string) (*models.Certificate, error)
}

// PointsService - сводка очков пользователя.
type PointsService interface {
	Summary(ctx context.Context, userID string) (points.Summary, error)
}

// Deps - зависимости сервера.
type Deps struct {
	Exams        ExamService
	Certificates CertificateService
	Points       PointsService
	// Auth проверяет токен и привязку к :userID.
	Auth fiber.Handler
	// RateLimit - запросов в минуту с одного адреса, 0 отключает ограничение.
	RateLimit int
}

// Server - HTTP API прогресса пользователя.
type Server struct {
	app      *fiber.App
	deps     Deps
	validate *validator.Validate
}

// Таймаут обработки одного запроса
const timeoutRequest = 10 * time.Second

// NewServer создаёт сервер и регистрирует маршруты.
func NewServer(deps Deps) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			ErrorHandler:          errorHandler,
			Immutable:             true,
			DisableStartupMessage: true,
			ReadTimeout:           timeoutRequest,
			WriteTimeout:          timeoutRequest,
		}),
		deps:     deps,
		validate: validator.New(),
	}

	s.app.Use(requestLogger())
	s.app.Use(recover.New())

	if deps.RateLimit > 0 {
		s.app.Use(limiter.New(limiter.Config{
			Max:        deps.RateLimit,
			Expiration: time.Minute,
			LimitReached: func(*fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
			},
		}))
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return success(c, fiber.Map{"ok": true})
	})

	users := s.app.Group("/api/users/:userID", s.deps.Auth)

	users.Get("/lives", s.getLives)
	users.Get("/points", s.getPoints)

	users.Post("/exams", s.createExam)
	users.Get("/exams/:examID", s.getExam)
	users.Post("/exams/:examID/retry", s.retryExam)
	users.Post("/exams/:examID/submit", s.submitExam)
	users.Get("/exams/:examID/attempts", s.listAttempts)

	users.Post("/lectures/:lectureID/complete", s.completeLecture)

	users.Get("/courses/:courseID/certificate", s.getCertificate)
	users.Post("/courses/:courseID/certificate", s.issueCertificate)
}

// App возвращает fiber.App, например для тестов.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen запускает сервер. Блокирует до остановки.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
