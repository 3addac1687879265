package contextutil

import (
	"context"

	"storefront-cart/internal/middleware"
	"storefront-cart/internal/shopping_cart"
	myErr "storefront-cart/internal/types/errors"
)

// GetEmailFromContext извлекает email пользователя из контекста
func GetEmailFromContext(ctx context.Context) (string, bool) {
	sess, ok := middleware.GetSessionFromContext(ctx)
	if !ok {
		return "", false
	}
	return sess.Email, true
}

// GetTokenFromContext извлекает bearer-токен, с которым пришел запрос
func GetTokenFromContext(ctx context.Context) (string, error) {
	sess, ok := middleware.GetSessionFromContext(ctx)
	if !ok {
		return "", myErr.ErrNoAuth
	}
	return sess.Token, nil
}

// GetCartFromContext корзина области текущего запроса
func GetCartFromContext(ctx context.Context) (*shopping_cart.Cart, error) {
	cart, ok := middleware.GetCartFromContext(ctx)
	if !ok {
		return nil, myErr.ErrNoCartInContext
	}
	return cart, nil
}
