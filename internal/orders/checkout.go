package orders

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront-cart/internal/shopping_cart"
	myErr "storefront-cart/internal/types/errors"
	"storefront-cart/internal/types/product"
)

// Checkout оформляет заказ из корзины и снимает заказанное только после успеха
type Checkout struct {
	Submitter Submitter
	Logger    *zap.SugaredLogger
}

func NewCheckout(s Submitter, logger *zap.SugaredLogger) *Checkout {
	return &Checkout{
		Submitter: s,
		Logger:    logger,
	}
}

// Place отправляет текущие позиции корзины. При ошибке корзина остается как есть
func (c *Checkout) Place(ctx context.Context, cart shopping_cart.CartStore, token string) ([]shopping_cart.LineItem, error) {
	items := cart.Items(ctx)
	if len(items) == 0 {
		return nil, myErr.ErrEmptyCart
	}

	req := Request{Products: make([]Line, 0, len(items))}
	for _, li := range items {
		id, err := product.Product{ID: li.ProductID}.NumericID()
		if err != nil {
			return nil, fmt.Errorf("%w: product %q is not orderable", myErr.ErrBadID, li.ProductID)
		}
		req.Products = append(req.Products, Line{ProductID: id, Quantity: li.Quantity})
	}

	if err := c.Submitter.Submit(ctx, token, req); err != nil {
		return nil, err
	}

	// снимаем только отправленное: добавленное во время запроса в заказ не попало.
	// Заказ принят, ошибка записи корзины его уже не отменяет
	if _, err := cart.Deduct(ctx, items); err != nil {
		c.Logger.Warnf("order placed but cart was not updated: %v", err)
	}

	return items, nil
}
