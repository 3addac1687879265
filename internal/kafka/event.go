package kafka

import "time"

type EventType string

const (
	AddToCart      EventType = "add_to_cart"
	RemoveFromCart EventType = "remove_from_cart"
	UpdateQuantity EventType = "update_quantity"
	ClearCart      EventType = "clear_cart"
	Checkout       EventType = "checkout"
)

// Event событие изменения корзины. Origin id инстанса, который его отправил
type Event struct {
	CartID    string    `json:"cart_id"`
	Type      EventType `json:"type"`
	ProductID string    `json:"product_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}
