package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront-cart/internal/catalog"
	"storefront-cart/internal/contextutil"
	"storefront-cart/internal/kafka"
	"storefront-cart/internal/orders"
	"storefront-cart/internal/shopping_cart"
	"storefront-cart/internal/stock"
	myErr "storefront-cart/internal/types/errors"
	"storefront-cart/internal/types/product"
)

const productLookupConcurrency = 8

// ShoppingCartHandler ручки корзины текущей области
type ShoppingCartHandler struct {
	Logger        *zap.SugaredLogger
	Catalog       catalog.Catalog
	Stock         stock.Lookup
	Orders        *orders.Checkout
	EventProducer kafka.EventProducer
	InstanceID    string
}

// NewShoppingCartHandler конструктор
func NewShoppingCartHandler(
	log *zap.SugaredLogger,
	c catalog.Catalog,
	s stock.Lookup,
	co *orders.Checkout,
	ep kafka.EventProducer,
	instanceID string,
) *ShoppingCartHandler {
	return &ShoppingCartHandler{
		Logger:        log,
		Catalog:       c,
		Stock:         s,
		Orders:        co,
		EventProducer: ep,
		InstanceID:    instanceID,
	}
}

// GetCart - GET /api/cart
func (h *ShoppingCartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := contextutil.GetCartFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.Logger)
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(r.Context(), cart))
}

// AddItem - POST /api/cart/items
// Тело: {"product_id": "1", "quantity": 2}
// Товар берется из каталога, количество проверяется по живому остатку
func (h *ShoppingCartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cart, err := contextutil.GetCartFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.Logger)
		return
	}

	var req AddItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		myErr.SendErrorTo(w, err, http.StatusBadRequest, h.Logger)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.Catalog.GetByID(r.Context(), req.ProductID)
	if err != nil {
		myErr.SendErrorTo(w, err, myErr.StatusFor(err), h.Logger)
		return
	}

	// недоступный inventory считаем нулевым остатком, как и при обновлении остатков
	available, err := h.Stock.Stock(r.Context(), p.ID)
	if err != nil {
		h.Logger.Warnw("stock lookup failed on add", "product_id", p.ID, "err", err)
		available = 0
	}
	check := stock.Snapshot{p.ID: available}
	outcome, err := cart.Store.AddItemWithin(r.Context(), *p, req.Quantity, func(current, requested int) error {
		return check.CheckQuantity(p.ID, current, requested)
	})
	h.respondMutation(w, r, cart, outcome, err, kafka.Event{
		Type:      kafka.AddToCart,
		ProductID: p.ID,
		Quantity:  req.Quantity,
	}, http.StatusCreated)
}

// SetQuantity - PUT /api/cart/items/{productID}
// Тело: {"quantity": 3}. quantity < 1 ничего не меняет
func (h *ShoppingCartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	cart, productID, ok := h.cartAndProduct(w, r)
	if !ok {
		return
	}

	var req SetQuantityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		myErr.SendErrorTo(w, err, http.StatusBadRequest, h.Logger)
		return
	}

	h.changeQuantity(w, r, cart, productID, func(int) int { return req.Quantity })
}

// Increment - POST /api/cart/items/{productID}/increment
func (h *ShoppingCartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	cart, productID, ok := h.cartAndProduct(w, r)
	if !ok {
		return
	}

	h.changeQuantity(w, r, cart, productID, func(current int) int { return current + 1 })
}

// Decrement - POST /api/cart/items/{productID}/decrement
// Ниже одной штуки не опускается, для удаления есть DELETE
func (h *ShoppingCartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	cart, productID, ok := h.cartAndProduct(w, r)
	if !ok {
		return
	}

	h.changeQuantity(w, r, cart, productID, func(current int) int {
		return max(stock.MinQuantity, current-1)
	})
}

// RemoveItem - DELETE /api/cart/items/{productID}
func (h *ShoppingCartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, productID, ok := h.cartAndProduct(w, r)
	if !ok {
		return
	}

	outcome, err := cart.Store.RemoveItem(r.Context(), productID)
	h.respondMutation(w, r, cart, outcome, err, kafka.Event{
		Type:      kafka.RemoveFromCart,
		ProductID: productID,
	}, http.StatusOK)
}

// ClearCart - DELETE /api/cart
func (h *ShoppingCartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := contextutil.GetCartFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.Logger)
		return
	}

	outcome, err := cart.Store.Clear(r.Context())
	h.respondMutation(w, r, cart, outcome, err, kafka.Event{Type: kafka.ClearCart}, http.StatusOK)
}

// RefreshStock - POST /api/cart/stock/refresh
// Синхронно перезапрашивает остатки по всем товарам корзины
func (h *ShoppingCartHandler) RefreshStock(w http.ResponseWriter, r *http.Request) {
	cart, err := contextutil.GetCartFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.Logger)
		return
	}

	cart.Stock.Refresh(r.Context(), cart.Store.ProductIDs(r.Context()))
	h.writeJSON(w, http.StatusOK, h.view(r.Context(), cart))
}

// Checkout - POST /api/cart/checkout
// Отправляет заказ от имени пользователя, корзина очищается только после успеха
func (h *ShoppingCartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	cart, err := contextutil.GetCartFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.Logger)
		return
	}
	token, err := contextutil.GetTokenFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusUnauthorized, h.Logger)
		return
	}

	placed, err := h.Orders.Place(r.Context(), cart.Store, token)
	if err != nil {
		myErr.SendErrorTo(w, err, myErr.StatusFor(err), h.Logger)
		return
	}

	h.publish(r.Context(), cart, kafka.Event{Type: kafka.Checkout, Quantity: totalQuantity(placed)})

	email, _ := contextutil.GetEmailFromContext(r.Context())
	h.Logger.Infow("order placed", "cart_id", cart.ID, "email", email, "lines", len(placed))

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"items":  newCartView(cart.ID, placed, cart.Stock.Snapshot()).Items,
	})
}

// Logout - POST /api/session/logout
// Выход пользователя очищает корзину его области
func (h *ShoppingCartHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cart, err := contextutil.GetCartFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.Logger)
		return
	}

	outcome, err := cart.Store.Clear(r.Context())
	if outcome == shopping_cart.Changed {
		h.publish(r.Context(), cart, kafka.Event{Type: kafka.ClearCart})
	}
	if err != nil {
		myErr.SendErrorTo(w, err, myErr.StatusFor(err), h.Logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListProducts - GET /api/products
// Каталог с остатками для витрины. Ошибка inventory показывается как нулевой остаток
func (h *ShoppingCartHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.List(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, myErr.StatusFor(err), h.Logger)
		return
	}

	views := make([]ProductView, len(products))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(productLookupConcurrency)
	for i, p := range products {
		g.Go(func() error {
			views[i] = h.productView(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	h.writeJSON(w, http.StatusOK, views)
}

func (h *ShoppingCartHandler) productView(ctx context.Context, p product.Product) ProductView {
	available, err := h.Stock.Stock(ctx, p.ID)
	if err != nil || available < 0 {
		h.Logger.Debugw("stock lookup failed for listing", "product_id", p.ID, "err", err)
		available = 0
	}

	return ProductView{
		ID:      p.ID,
		Name:    p.Name,
		Price:   p.Price,
		Stock:   available,
		InStock: available > 0,
	}
}

func (h *ShoppingCartHandler) changeQuantity(
	w http.ResponseWriter,
	r *http.Request,
	cart *shopping_cart.Cart,
	productID string,
	next func(current int) int,
) {
	current := quantityOf(cart.Store.Items(r.Context()), productID)
	if current == 0 {
		myErr.SendErrorTo(w, myErr.ErrNotFound, http.StatusNotFound, h.Logger)
		return
	}

	// остаток сверяется с количеством, прочитанным под блокировкой корзины
	snapshot := cart.Stock.Snapshot()
	var requested int
	outcome, err := cart.Store.UpdateQuantity(r.Context(), productID,
		func(current int) int {
			requested = next(current)
			return requested
		},
		func(current, requested int) error {
			return snapshot.CheckQuantity(productID, current, requested)
		},
	)
	h.respondMutation(w, r, cart, outcome, err, kafka.Event{
		Type:      kafka.UpdateQuantity,
		ProductID: productID,
		Quantity:  requested,
	}, http.StatusOK)
}

func (h *ShoppingCartHandler) respondMutation(
	w http.ResponseWriter,
	r *http.Request,
	cart *shopping_cart.Cart,
	outcome shopping_cart.Outcome,
	err error,
	event kafka.Event,
	status int,
) {
	if outcome == shopping_cart.Changed {
		h.publish(r.Context(), cart, event)
	}
	if err != nil {
		// при ошибке записи изменение в памяти уже применено
		myErr.SendErrorTo(w, err, myErr.StatusFor(err), h.Logger)
		return
	}

	if outcome == shopping_cart.NoOp {
		status = http.StatusOK
	}
	h.writeJSON(w, status, MutationResponse{
		Outcome: outcome.String(),
		Cart:    h.view(r.Context(), cart),
	})
}

func (h *ShoppingCartHandler) publish(ctx context.Context, cart *shopping_cart.Cart, event kafka.Event) {
	event.CartID = cart.ID
	event.Origin = h.InstanceID
	event.Timestamp = time.Now().UTC()

	if err := h.EventProducer.SendEvent(ctx, event); err != nil {
		h.Logger.Warnf("failed to send %s event: %v", event.Type, err)
	}
}

func (h *ShoppingCartHandler) cartAndProduct(w http.ResponseWriter, r *http.Request) (*shopping_cart.Cart, string, bool) {
	cart, err := contextutil.GetCartFromContext(r.Context())
	if err != nil {
		myErr.SendErrorTo(w, err, http.StatusInternalServerError, h.Logger)
		return nil, "", false
	}

	productID := mux.Vars(r)["productID"]
	if productID == "" {
		myErr.SendErrorTo(w, myErr.ErrBadID, http.StatusBadRequest, h.Logger)
		return nil, "", false
	}

	return cart, productID, true
}

func (h *ShoppingCartHandler) view(ctx context.Context, cart *shopping_cart.Cart) CartView {
	return newCartView(cart.ID, cart.Store.Items(ctx), cart.Stock.Snapshot())
}

func (h *ShoppingCartHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Warnw("error writing response", "err", err)
	}
}

func quantityOf(items []shopping_cart.LineItem, productID string) int {
	for _, li := range items {
		if li.ProductID == productID {
			return li.Quantity
		}
	}
	return 0
}

func totalQuantity(items []shopping_cart.LineItem) int {
	n := 0
	for _, li := range items {
		n += li.Quantity
	}
	return n
}
