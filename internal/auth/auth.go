package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/letsssgooo/progress/internal/domain/models"
	"github.com/letsssgooo/progress/internal/storage"
)

// JWTAuth проверяет токены HS256 и привязывает запрос к пользователю из пути.
type JWTAuth struct {
	secret []byte
	st     storage.Repo
	now    func() time.Time
}

// Option настраивает JWTAuth.
type Option func(*JWTAuth)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(a *JWTAuth) {
		a.now = now
	}
}

// NewJWTAuth создаёт JWTAuth. Пустой секрет недопустим.
func NewJWTAuth(secret string, st storage.Repo, opts ...Option) (*JWTAuth, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w, empty jwt secret", ErrValidation)
	}

	a := &JWTAuth{
		secret: []byte(secret),
		st:     st,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Issue подписывает токен для пользователя на ttl.
func (a *JWTAuth) Issue(userID, name string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify проверяет подпись и срок действия токена и возвращает его утверждения.
func (a *JWTAuth) Verify(raw string) (*Claims, error) {
	claims := &Claims{}

	// срок действия проверяется ниже по a.now
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.ExpiresAt == nil || !a.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}

	if _, err := ParseUserID(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	return claims, nil
}

// EnsureUser создаёт пользователя при первом входе.
func (a *JWTAuth) EnsureUser(ctx context.Context, userID, name string) error {
	ctx, cancel := context.WithTimeout(ctx, timeoutAuth)
	defer cancel()

	_, err := a.st.GetUser(ctx, userID)
	if err == nil {
		return nil
	}

	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	err = a.st.CreateUser(ctx, &models.User{ID: userID, Name: name, CreatedAt: a.now()})
	if err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("failed to create user %s: %w", userID, err)
	}

	if err == nil {
		slog.Info("user created", "user_id", userID)
	}

	return nil
}

// Middleware требует Bearer-токен, чей subject совпадает с параметром :userID.
func (a *JWTAuth) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := a.Verify(raw)
		if err != nil {
			slog.Debug("token rejected", "err", err, "path", c.Path())
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		if pathID := c.Params("userID"); pathID != "" && pathID != claims.Subject {
			slog.Warn("access denied",
				"token_user_id", claims.Subject,
				"path_user_id", pathID,
				"path", c.Path(),
			)

			return fiber.NewError(fiber.StatusForbidden, ErrForbidden.Error())
		}

		if err = a.EnsureUser(c.UserContext(), claims.Subject, claims.Name); err != nil {
			return err
		}

		c.Locals(LocUserID, claims.Subject)

		return c.Next()
	}
}
