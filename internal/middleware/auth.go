package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"storefront-cart/internal/session"
	myErr "storefront-cart/internal/types/errors"
)

type sessionKey struct{}

// Auth пропускает дальше только запросы с валидным bearer-токеном
func Auth(sm session.Checker, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sm.CheckSession(r)
			if err != nil {
				logger.Debugw("unauthorized request", "path", r.URL.Path, "err", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="cart"`)
				myErr.SendErrorTo(w, err, http.StatusUnauthorized, logger)
				return
			}

			ctx := ContextWithSession(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ContextWithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func GetSessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session.Session)
	return s, ok && s != nil
}
