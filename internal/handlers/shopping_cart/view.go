package handlers

import (
	"github.com/shopspring/decimal"

	"storefront-cart/internal/shopping_cart"
	"storefront-cart/internal/stock"
)

// ItemView позиция корзины вместе с остатком
type ItemView struct {
	ProductID    string             `json:"product_id"`
	Name         string             `json:"name"`
	UnitPrice    decimal.Decimal    `json:"unit_price"`
	Quantity     int                `json:"quantity"`
	LineTotal    decimal.Decimal    `json:"line_total"`
	Stock        *int               `json:"stock"`
	Availability stock.Availability `json:"availability"`
	CanIncrease  bool               `json:"can_increase"`
	OutOfStock   bool               `json:"out_of_stock"`
}

// CartView ответ GET /api/cart
type CartView struct {
	CartID    string          `json:"cart_id"`
	Items     []ItemView      `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// MutationResponse ответ на изменение корзины
type MutationResponse struct {
	Outcome string   `json:"outcome"`
	Cart    CartView `json:"cart"`
}

// ProductView товар каталога с остатком
type ProductView struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
	InStock bool            `json:"in_stock"`
}

func newCartView(cartID string, items []shopping_cart.LineItem, snapshot stock.Snapshot) CartView {
	view := CartView{
		CartID: cartID,
		Items:  make([]ItemView, 0, len(items)),
		Total:  decimal.Zero,
	}

	for _, li := range items {
		iv := ItemView{
			ProductID:    li.ProductID,
			Name:         li.Name,
			UnitPrice:    li.UnitPrice,
			Quantity:     li.Quantity,
			LineTotal:    li.Total(),
			Availability: snapshot.Availability(li.ProductID),
			CanIncrease:  snapshot.CanIncrease(li.ProductID, li.Quantity),
		}
		if available, ok := snapshot.Get(li.ProductID); ok {
			iv.Stock = &available
			iv.OutOfStock = available <= 0
		}

		view.Items = append(view.Items, iv)
		view.ItemCount += li.Quantity
		view.Total = view.Total.Add(iv.LineTotal)
	}

	return view
}
