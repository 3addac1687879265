package session

import (
	"net/http"
	"time"
)

// Session - данные пользователя из проверенного токена
type Session struct {
	Email     string
	Role      string
	Token     string
	ExpiresAt time.Time
}

// Checker - проверка сессии по запросу
//
//go:generate mockgen -source=session.go -destination=../mocks/mock_session.go -package=mocks
type Checker interface {
	// CheckSession - проверяет bearer-токен запроса
	// Возвращает *Session в случае успеха, иначе ErrNoAuth или ErrBadToken
	CheckSession(r *http.Request) (*Session, error)
}
