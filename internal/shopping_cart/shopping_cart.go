package shopping_cart

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront-cart/internal/types/product"
)

// StorageKey ключ, под которым корзина лежит в хранилище своей области
const StorageKey = "cart"

// LineItem позиция корзины. Name и UnitPrice фиксируются в момент добавления
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Total стоимость позиции
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Outcome результат мутации: изменила ли она корзину
type Outcome int

const (
	NoOp Outcome = iota
	Changed
)

func (o Outcome) String() string {
	if o == Changed {
		return "changed"
	}
	return "noop"
}

// ChangeKind вид изменения корзины
type ChangeKind string

const (
	ChangeAdd      ChangeKind = "add"
	ChangeSet      ChangeKind = "set_quantity"
	ChangeRemove   ChangeKind = "remove"
	ChangeClear    ChangeKind = "clear"
	ChangeDeduct   ChangeKind = "deduct"
	ChangeHydrated ChangeKind = "hydrated"
)

// Change сигнал "корзина изменилась"
type Change struct {
	Kind      ChangeKind
	ProductID string
	Quantity  int
}

// CartStore интерфейс хранилища корзины одной области
type CartStore interface {
	// Hydrate загружает сохраненную корзину, выполняется ровно один раз
	Hydrate(ctx context.Context)
	// AddItem добавляет товар или увеличивает количество на delta
	AddItem(ctx context.Context, p product.Product, delta int) (Outcome, error)
	// SetQuantity задает количество, quantity < 1 игнорируется
	SetQuantity(ctx context.Context, productID string, quantity int) (Outcome, error)
	// RemoveItem удаляет позицию, если она есть
	RemoveItem(ctx context.Context, productID string) (Outcome, error)
	// Clear очищает корзину и сохраняет пустое состояние
	Clear(ctx context.Context) (Outcome, error)
	// Deduct вычитает из корзины заказанные позиции, добавленное позже остается
	Deduct(ctx context.Context, ordered []LineItem) (Outcome, error)
	// Items возвращает копию позиций в порядке добавления
	Items(ctx context.Context) []LineItem
	// ProductIDs возвращает множество id товаров в корзине
	ProductIDs(ctx context.Context) []string
	// Contains проверяет наличие товара без гидрации
	Contains(productID string) bool
}
