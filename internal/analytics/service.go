package analytics

import (
	"context"

	"go.uber.org/zap"

	"storefront-cart/internal/kafka"
)

// Веса событий корзины
const (
	addWeight    = 2
	updateWeight = 1
	removeWeight = -1
)

type Service struct {
	repo   AnalyticsRepo
	logger *zap.SugaredLogger
}

func NewService(repo AnalyticsRepo, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ProcessEvent(ctx context.Context, event kafka.Event) error {
	if event.ProductID == "" {
		return nil // clear и checkout без товара не учитываем
	}

	weights := make(map[string]int)
	switch event.Type {
	case kafka.AddToCart:
		weights[event.ProductID] += addWeight
	case kafka.UpdateQuantity:
		weights[event.ProductID] += updateWeight
	case kafka.RemoveFromCart:
		weights[event.ProductID] += removeWeight
	}

	if len(weights) == 0 {
		return nil
	}

	return s.repo.UpdateScores(ctx, weights)
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]ProductScore, error) {
	return s.repo.TopProducts(ctx, limit)
}
