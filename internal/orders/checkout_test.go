package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront-cart/internal/mocks"
	"storefront-cart/internal/orders"
	"storefront-cart/internal/shopping_cart"
	"storefront-cart/internal/storage"
	myErr "storefront-cart/internal/types/errors"
	"storefront-cart/internal/types/product"
)

func filledStore(t *testing.T) *shopping_cart.Store {
	t.Helper()

	store := shopping_cart.NewStore(storage.NewMemoryStorage(), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	_, err := store.AddItem(ctx, product.Product{ID: "1", Name: "Widget", Price: decimal.RequireFromString("9.99")}, 2)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, product.Product{ID: "7", Name: "Gadget", Price: decimal.NewFromInt(3)}, 1)
	require.NoError(t, err)

	return store
}

func TestCheckout_Place(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mocks.NewMockSubmitter(ctrl)
	checkout := orders.NewCheckout(submitter, zaptest.NewLogger(t).Sugar())
	store := filledStore(t)
	ctx := context.Background()

	submitter.EXPECT().
		Submit(gomock.Any(), "tok", orders.Request{Products: []orders.Line{
			{ProductID: 1, Quantity: 2},
			{ProductID: 7, Quantity: 1},
		}}).
		Return(nil)

	placed, err := checkout.Place(ctx, store, "tok")
	require.NoError(t, err)
	assert.Len(t, placed, 2)
	assert.Empty(t, store.Items(ctx))
}

func TestCheckout_Place_KeepsItemsAddedDuringSubmit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mocks.NewMockSubmitter(ctrl)
	checkout := orders.NewCheckout(submitter, zaptest.NewLogger(t).Sugar())
	store := filledStore(t)
	ctx := context.Background()

	submitter.EXPECT().
		Submit(gomock.Any(), "tok", orders.Request{Products: []orders.Line{
			{ProductID: 1, Quantity: 2},
			{ProductID: 7, Quantity: 1},
		}}).
		DoAndReturn(func(ctx context.Context, _ string, _ orders.Request) error {
			// пока заказ в полете, в корзину добавляют новый товар и еще один Widget
			_, err := store.AddItem(ctx, product.Product{ID: "9", Name: "Lamp", Price: decimal.NewFromInt(4)}, 4)
			require.NoError(t, err)
			_, err = store.AddItem(ctx, product.Product{ID: "1", Name: "Widget", Price: decimal.RequireFromString("9.99")}, 1)
			require.NoError(t, err)
			return nil
		})

	placed, err := checkout.Place(ctx, store, "tok")
	require.NoError(t, err)
	assert.Len(t, placed, 2)

	left := store.Items(ctx)
	require.Len(t, left, 2)
	assert.Equal(t, "1", left[0].ProductID)
	assert.Equal(t, 1, left[0].Quantity)
	assert.Equal(t, "9", left[1].ProductID)
	assert.Equal(t, 4, left[1].Quantity)
}

func TestCheckout_Place_FailureKeepsCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mocks.NewMockSubmitter(ctrl)
	checkout := orders.NewCheckout(submitter, zaptest.NewLogger(t).Sugar())
	store := filledStore(t)
	ctx := context.Background()

	submitter.EXPECT().Submit(gomock.Any(), "tok", gomock.Any()).Return(myErr.ErrOrderRejected)

	_, err := checkout.Place(ctx, store, "tok")
	assert.ErrorIs(t, err, myErr.ErrOrderRejected)
	assert.Len(t, store.Items(ctx), 2)
}

func TestCheckout_Place_EmptyCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mocks.NewMockSubmitter(ctrl)
	checkout := orders.NewCheckout(submitter, zaptest.NewLogger(t).Sugar())
	store := shopping_cart.NewStore(storage.NewMemoryStorage(), zaptest.NewLogger(t).Sugar())

	_, err := checkout.Place(context.Background(), store, "tok")
	assert.ErrorIs(t, err, myErr.ErrEmptyCart)
}

func TestCheckout_Place_NonNumericProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mocks.NewMockSubmitter(ctrl)
	checkout := orders.NewCheckout(submitter, zaptest.NewLogger(t).Sugar())
	store := shopping_cart.NewStore(storage.NewMemoryStorage(), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	_, err := store.AddItem(ctx, product.Product{ID: "sku-a", Name: "A", Price: decimal.NewFromInt(1)}, 1)
	require.NoError(t, err)

	_, err = checkout.Place(ctx, store, "tok")
	assert.ErrorIs(t, err, myErr.ErrBadID)
	assert.Len(t, store.Items(ctx), 1)
}

func TestCheckout_Place_PersistFailureStillSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStorage(ctrl)
	submitter := mocks.NewMockSubmitter(ctrl)
	checkout := orders.NewCheckout(submitter, zaptest.NewLogger(t).Sugar())
	store := shopping_cart.NewStore(st, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	gomock.InOrder(
		st.EXPECT().Get(gomock.Any(), shopping_cart.StorageKey).Return(nil, myErr.ErrNotFound),
		st.EXPECT().Set(gomock.Any(), shopping_cart.StorageKey, gomock.Any()).Return(nil),
		submitter.EXPECT().Submit(gomock.Any(), "", gomock.Any()).Return(nil),
		st.EXPECT().Set(gomock.Any(), shopping_cart.StorageKey, gomock.Any()).Return(errors.New("disk full")),
	)

	_, err := store.AddItem(ctx, product.Product{ID: "1", Name: "Widget", Price: decimal.NewFromInt(1)}, 1)
	require.NoError(t, err)

	placed, err := checkout.Place(ctx, store, "")
	require.NoError(t, err)
	assert.Len(t, placed, 1)
	assert.Empty(t, store.Items(ctx))
}
