package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrBadID     = errors.New("bad id")
	ErrNoAuth    = errors.New("authorization required")
	ErrBadToken  = errors.New("invalid token")
	ErrPersist   = errors.New("failed to persist cart")
	ErrEmptyCart = errors.New("cart is empty")

	ErrExceedsStock  = errors.New("requested quantity exceeds available stock")
	ErrInvalidAmount = errors.New("invalid amount")

	ErrUpstream        = errors.New("upstream service error")
	ErrBadStockValue   = errors.New("unparseable stock value")
	ErrOrderRejected   = errors.New("order rejected by order service")
	ErrNoCartInContext = errors.New("cart scope missing in context")

	ErrInvalidJSONPayload = errors.New("invalid JSON payload")
)

type ErrorServer struct {
	Message string `json:"message"`
}

func (e *ErrorServer) Error() string {
	return e.Message
}

/*
NewErrorServer
Функция имеет возможность принимать "nil ошибку"
при получении nil наша функция понимает, что нам
просто надо отдать саксесс клиенту
*/
func NewErrorServer(err error) ErrorServer {
	if err == nil {
		return ErrorServer{
			Message: "success",
		}
	}

	return ErrorServer{
		Message: err.Error(),
	}
}

func SendErrorTo(w http.ResponseWriter, err error, statusCode int, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if errEncode := json.NewEncoder(w).Encode(NewErrorServer(err)); errEncode != nil {
		logger.Error(errEncode)
	}
}

// StatusFor подбирает HTTP статус для доменной ошибки
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadID), errors.Is(err, ErrInvalidJSONPayload), errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoAuth), errors.Is(err, ErrBadToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrExceedsStock), errors.Is(err, ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrOrderRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
