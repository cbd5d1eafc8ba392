package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Ошибки авторизации
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("token does not belong to user")
	ErrValidation   = errors.New("validation error")
)

// LocUserID - ключ fiber.Ctx.Locals с ID пользователя из токена.
const LocUserID = "user_id"

// Таймаут создания пользователя при первом входе
const timeoutAuth = 500 * time.Millisecond

// Claims - утверждения токена доступа. Subject - ID пользователя.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
