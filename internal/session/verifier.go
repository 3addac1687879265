package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"

	errorspkg "storefront-cart/internal/types/errors"
)

// Claims - claims токена auth-service
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.StandardClaims
}

// Verifier проверяет токены auth-service локально, по общему секрету
type Verifier struct {
	Logger      *zap.SugaredLogger
	tokenSecret string
}

func NewVerifier(tokenSecret string, logger *zap.SugaredLogger) *Verifier {
	return &Verifier{
		Logger:      logger,
		tokenSecret: tokenSecret,
	}
}

func (v *Verifier) CheckSession(r *http.Request) (*Session, error) {
	const bearerPrefix = "Bearer "

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, bearerPrefix) {
		return nil, errorspkg.ErrNoAuth
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if tokenStr == "" {
		return nil, errorspkg.ErrNoAuth
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			v.Logger.Warnf("Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(v.tokenSecret), nil
	})
	if err != nil || !token.Valid {
		v.Logger.Warnf("Invalid JWT token: %v", err)
		return nil, errorspkg.ErrBadToken
	}

	if claims.Email == "" {
		v.Logger.Warn("Missing email claim in JWT")
		return nil, errorspkg.ErrBadToken
	}

	sess := &Session{
		Email: claims.Email,
		Role:  claims.Role,
		Token: tokenStr,
	}
	if claims.ExpiresAt != 0 {
		sess.ExpiresAt = time.Unix(claims.ExpiresAt, 0)
	}

	return sess, nil
}

// NewToken подписывает токен в формате auth-service. Нужен для тестов и локального запуска
func NewToken(secret, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		Role:  role,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	})
	return token.SignedString([]byte(secret))
}
