package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-cart/internal/shopping_cart"
	myErr "storefront-cart/internal/types/errors"
)

// CartIDHeader заголовок с id области корзины
const CartIDHeader = "X-Cart-ID"

type cartKey struct{}

// CartScope достает корзину области из реестра. Без заголовка выдается новая область,
// ее id возвращается в том же заголовке
func CartScope(registry *shopping_cart.Registry, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cartID := r.Header.Get(CartIDHeader)
			if cartID == "" {
				cartID = uuid.NewString()
				cartScopesIssuedTotal.Inc()
			} else {
				parsed, err := uuid.Parse(cartID)
				if err != nil {
					logger.Debugw("bad cart id", "cart_id", cartID, "err", err)
					myErr.SendErrorTo(w, myErr.ErrBadID, http.StatusBadRequest, logger)
					return
				}
				cartID = parsed.String()
			}

			w.Header().Set(CartIDHeader, cartID)

			cart := registry.Get(r.Context(), cartID)
			next.ServeHTTP(w, r.WithContext(ContextWithCart(r.Context(), cart)))
		})
	}
}

func ContextWithCart(ctx context.Context, cart *shopping_cart.Cart) context.Context {
	return context.WithValue(ctx, cartKey{}, cart)
}

func GetCartFromContext(ctx context.Context) (*shopping_cart.Cart, bool) {
	c, ok := ctx.Value(cartKey{}).(*shopping_cart.Cart)
	return c, ok && c != nil
}
