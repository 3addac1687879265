package stock

import (
	myErr "storefront-cart/internal/types/errors"
)

// MinQuantity нижняя граница количества в корзине
const MinQuantity = 1

// Availability состояние товара для отображения
type Availability string

const (
	Unknown    Availability = "unknown"
	InStock    Availability = "in_stock"
	OutOfStock Availability = "out_of_stock"
)

func (s Snapshot) Availability(productID string) Availability {
	available, ok := s.Get(productID)
	switch {
	case !ok:
		return Unknown
	case available <= 0:
		return OutOfStock
	default:
		return InStock
	}
}

// CanIncrease разрешен ли "+" для позиции с текущим количеством current.
// Пока остаток неизвестен, увеличивать нельзя.
func (s Snapshot) CanIncrease(productID string, current int) bool {
	available, ok := s.Get(productID)
	return ok && current < available
}

// CheckQuantity проверяет переход current -> requested.
// Уменьшение разрешено всегда (до MinQuantity), увеличение только в пределах известного остатка.
func (s Snapshot) CheckQuantity(productID string, current, requested int) error {
	if requested < MinQuantity {
		return myErr.ErrInvalidAmount
	}
	if requested <= current {
		return nil
	}

	available, ok := s.Get(productID)
	if !ok || requested > available {
		return myErr.ErrExceedsStock
	}
	return nil
}
