package analytics

import (
	"context"

	"storefront-cart/internal/kafka"
)

// AnalyticsRepo - интерфейс репозитория популярности товаров в корзинах.
type AnalyticsRepo interface {
	UpdateScores(ctx context.Context, weights map[string]int) error
	TopProducts(ctx context.Context, limit int) ([]ProductScore, error)
}

// AnalyticsService - интерфейс сервиса аналитики корзин.
type AnalyticsService interface {
	ProcessEvent(ctx context.Context, event kafka.Event) error
	TopProducts(ctx context.Context, limit int) ([]ProductScore, error)
}

// ProductScore товар и его накопленный вес
type ProductScore struct {
	ProductID string `json:"product_id"`
	Score     int64  `json:"score"`
}
