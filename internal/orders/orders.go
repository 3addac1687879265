package orders

import (
	"context"
)

// Line позиция заказа в формате order-service
type Line struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Request тело POST /orders
type Request struct {
	Products []Line `json:"products"`
}

// Submitter отправка заказа
//
//go:generate mockgen -source=orders.go -destination=../mocks/mock_orders.go -package=mocks
type Submitter interface {
	// Submit отправляет заказ от имени владельца токена
	Submit(ctx context.Context, token string, req Request) error
}
