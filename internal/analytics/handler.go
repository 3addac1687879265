package analytics

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	myErr "storefront-cart/internal/types/errors"
)

const (
	defaultTop = 10
	maxTop     = 100
)

type Handler struct {
	service AnalyticsService
	logger  *zap.SugaredLogger
}

func NewHandler(service AnalyticsService, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// GetPopularProducts - GET /products/popular?top=N
func (h *Handler) GetPopularProducts(w http.ResponseWriter, r *http.Request) {
	topN := defaultTop
	if topParam := r.URL.Query().Get("top"); topParam != "" {
		n, err := strconv.Atoi(topParam)
		if err != nil || n <= 0 {
			myErr.SendErrorTo(w, myErr.ErrInvalidAmount, http.StatusBadRequest, h.logger)
			return
		}
		topN = min(n, maxTop)
	}

	top, err := h.service.TopProducts(r.Context(), topN)
	if err != nil {
		h.logger.Errorf("Failed to get popular products: %v", err)
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.logger)
		return
	}

	if len(top) == 0 {
		top = []ProductScore{} // Пустой массив вместо null
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(top); err != nil {
		h.logger.Errorf("Failed to encode response: %v", err)
	}
}
