package auth

import (
	"fmt"
	"regexp"
	"strings"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ParseUserID проверяет ID пользователя из токена или пути запроса.
func ParseUserID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("%w, missing user id", ErrValidation)
	}

	if !userIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w, user id may contain only letters, digits, '-' and '_'", ErrValidation)
	}

	return id, nil
}

// bearerToken достаёт токен из заголовка Authorization.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])

	return token, token != ""
}
