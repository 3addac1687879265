package shopping_cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront-cart/internal/stock"
	"storefront-cart/internal/storage"
	myErr "storefront-cart/internal/types/errors"
	"storefront-cart/internal/types/product"
)

func setup(t *testing.T) (*Store, *storage.MemoryStorage) {
	t.Helper()

	st := storage.NewMemoryStorage()
	logger := zaptest.NewLogger(t).Sugar()
	return NewStore(st, logger), st
}

func widget() product.Product {
	return product.Product{ID: "1", Name: "Widget", Price: decimal.RequireFromString("9.99")}
}

func TestStore_WidgetScenario(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	outcome, err := store.AddItem(ctx, widget(), 1)
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)

	items := store.Items(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("9.99").Equal(items[0].UnitPrice))

	_, err = store.AddItem(ctx, widget(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Items(ctx)[0].Quantity)

	outcome, err = store.SetQuantity(ctx, "1", 0)
	require.NoError(t, err)
	assert.Equal(t, NoOp, outcome)
	assert.Equal(t, 3, store.Items(ctx)[0].Quantity)

	outcome, err = store.RemoveItem(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)
	assert.Empty(t, store.Items(ctx))
}

func TestStore_AddItem_SumsDeltas(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	deltas := []int{1, 4, 2, 7}
	sum := 0
	for _, d := range deltas {
		_, err := store.AddItem(ctx, widget(), d)
		require.NoError(t, err)
		sum += d
	}

	items := store.Items(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, sum, items[0].Quantity)
}

func TestStore_AddItem_InvalidArguments(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, product.Product{Name: "no id"}, 1)
	assert.ErrorIs(t, err, myErr.ErrBadID)

	outcome, err := store.AddItem(ctx, widget(), 0)
	assert.NoError(t, err)
	assert.Equal(t, NoOp, outcome)
	assert.Empty(t, store.Items(ctx))
}

func TestStore_AddItem_KeepsPriceSnapshot(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, widget(), 1)
	require.NoError(t, err)

	repriced := widget()
	repriced.Price = decimal.RequireFromString("19.99")
	repriced.Name = "Widget v2"
	_, err = store.AddItem(ctx, repriced, 1)
	require.NoError(t, err)

	item := store.Items(ctx)[0]
	assert.Equal(t, "Widget", item.Name)
	assert.True(t, decimal.RequireFromString("9.99").Equal(item.UnitPrice))
	assert.Equal(t, 2, item.Quantity)
}

func TestStore_SetQuantity(t *testing.T) {
	tests := []struct {
		name             string
		productID        string
		quantity         int
		expectedOutcome  Outcome
		expectedQuantity int
	}{
		{name: "zero is ignored", productID: "1", quantity: 0, expectedOutcome: NoOp, expectedQuantity: 2},
		{name: "negative is ignored", productID: "1", quantity: -3, expectedOutcome: NoOp, expectedQuantity: 2},
		{name: "unknown product", productID: "404", quantity: 5, expectedOutcome: NoOp, expectedQuantity: 2},
		{name: "same quantity", productID: "1", quantity: 2, expectedOutcome: NoOp, expectedQuantity: 2},
		{name: "replace quantity", productID: "1", quantity: 9, expectedOutcome: Changed, expectedQuantity: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := setup(t)
			ctx := context.Background()
			_, err := store.AddItem(ctx, widget(), 2)
			require.NoError(t, err)

			outcome, err := store.SetQuantity(ctx, tt.productID, tt.quantity)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedOutcome, outcome)
			assert.Equal(t, tt.expectedQuantity, store.Items(ctx)[0].Quantity)
			assert.Len(t, store.Items(ctx), 1)
		})
	}
}

func TestStore_SetQuantity_BareStoreIgnoresStock(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, product.Product{ID: "7", Name: "Lamp", Price: decimal.NewFromInt(3)}, 2)
	require.NoError(t, err)

	// остаток 2, но сама корзина количество не ограничивает
	outcome, err := store.SetQuantity(ctx, "7", 3)
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)
	assert.Equal(t, 3, store.Items(ctx)[0].Quantity)

	snap := stock.Snapshot{"7": 2}
	assert.ErrorIs(t, snap.CheckQuantity("7", 2, 3), myErr.ErrExceedsStock)
}

func TestStore_AddItemWithin_ConcurrentAddsRespectStock(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	snap := stock.Snapshot{"1": 5}
	check := func(current, requested int) error {
		return snap.CheckQuantity("1", current, requested)
	}

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.AddItemWithin(ctx, widget(), 1, check)
			switch {
			case err == nil && outcome == Changed:
				accepted.Add(1)
			case errors.Is(err, myErr.ErrExceedsStock):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, accepted.Load())
	assert.EqualValues(t, 15, rejected.Load())
	require.Len(t, store.Items(ctx), 1)
	assert.Equal(t, 5, store.Items(ctx)[0].Quantity)
}

func TestStore_UpdateQuantity(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	_, err := store.AddItem(ctx, widget(), 2)
	require.NoError(t, err)

	snap := stock.Snapshot{"1": 3}
	check := func(current, requested int) error {
		return snap.CheckQuantity("1", current, requested)
	}
	inc := func(current int) int { return current + 1 }

	outcome, err := store.UpdateQuantity(ctx, "1", inc, check)
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)

	outcome, err = store.UpdateQuantity(ctx, "1", inc, check)
	assert.ErrorIs(t, err, myErr.ErrExceedsStock)
	assert.Equal(t, NoOp, outcome)
	assert.Equal(t, 3, store.Items(ctx)[0].Quantity)

	outcome, err = store.UpdateQuantity(ctx, "1", func(int) int { return 0 }, check)
	require.NoError(t, err)
	assert.Equal(t, NoOp, outcome)

	outcome, err = store.UpdateQuantity(ctx, "missing", inc, check)
	require.NoError(t, err)
	assert.Equal(t, NoOp, outcome)
}

func TestStore_RemoveItem_Idempotent(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, widget(), 1)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, product.Product{ID: "2", Name: "Gadget", Price: decimal.NewFromInt(5)}, 1)
	require.NoError(t, err)

	outcome, err := store.RemoveItem(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)
	before := store.Items(ctx)

	outcome, err = store.RemoveItem(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, NoOp, outcome)
	assert.Equal(t, before, store.Items(ctx))
}

func TestStore_Clear(t *testing.T) {
	store, st := setup(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, widget(), 3)
	require.NoError(t, err)

	outcome, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)
	assert.Empty(t, store.Items(ctx))

	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))

	outcome, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoOp, outcome)
	assert.Empty(t, store.Items(ctx))
}

func TestStore_Deduct(t *testing.T) {
	store, st := setup(t)
	ctx := context.Background()
	gadget := product.Product{ID: "2", Name: "Gadget", Price: decimal.NewFromInt(3)}

	_, err := store.AddItem(ctx, widget(), 3)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, gadget, 1)
	require.NoError(t, err)

	outcome, err := store.Deduct(ctx, []LineItem{
		{ProductID: "1", Quantity: 2},
		{ProductID: "2", Quantity: 1},
		{ProductID: "missing", Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)

	items := store.Items(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ProductID)
	assert.Equal(t, 1, items[0].Quantity)

	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	var stored []LineItem
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].Quantity)

	outcome, err = store.Deduct(ctx, []LineItem{{ProductID: "2", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, NoOp, outcome)
}

func TestStore_PersistHydrateRoundTrip(t *testing.T) {
	store, st := setup(t)
	ctx := context.Background()

	_, _ = store.AddItem(ctx, widget(), 2)
	_, _ = store.AddItem(ctx, product.Product{ID: "2", Name: "Gadget", Price: decimal.RequireFromString("0.10")}, 1)
	_, _ = store.AddItem(ctx, product.Product{ID: "3", Name: "Gizmo", Price: decimal.RequireFromString("120")}, 4)
	_, _ = store.SetQuantity(ctx, "2", 6)
	_, _ = store.RemoveItem(ctx, "3")

	reloaded := NewStore(st, zaptest.NewLogger(t).Sugar())
	reloaded.Hydrate(ctx)

	want := store.Items(ctx)
	got := reloaded.Items(ctx)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].UnitPrice.Equal(got[i].UnitPrice))
	}
}

func TestStore_Hydrate(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		expected []LineItem
	}{
		{
			name:     "corrupt json",
			stored:   `{not json`,
			expected: []LineItem{},
		},
		{
			name:     "wrong shape",
			stored:   `{"product_id":"1"}`,
			expected: []LineItem{},
		},
		{
			name:   "duplicates merged, invalid dropped",
			stored: `[{"product_id":"1","name":"Widget","unit_price":"9.99","quantity":1},{"product_id":"1","name":"Widget","unit_price":"9.99","quantity":2},{"product_id":"","quantity":4},{"product_id":"5","quantity":0}]`,
			expected: []LineItem{
				{ProductID: "1", Name: "Widget", UnitPrice: decimal.RequireFromString("9.99"), Quantity: 3},
			},
		},
		{
			name:   "numeric price accepted",
			stored: `[{"product_id":"2","name":"Gadget","unit_price":4.5,"quantity":1}]`,
			expected: []LineItem{
				{ProductID: "2", Name: "Gadget", UnitPrice: decimal.RequireFromString("4.5"), Quantity: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, st := setup(t)
			ctx := context.Background()
			require.NoError(t, st.Set(ctx, StorageKey, []byte(tt.stored)))

			store.Hydrate(ctx)
			got := store.Items(ctx)

			require.Len(t, got, len(tt.expected))
			for i := range tt.expected {
				assert.Equal(t, tt.expected[i].ProductID, got[i].ProductID)
				assert.Equal(t, tt.expected[i].Quantity, got[i].Quantity)
				assert.True(t, tt.expected[i].UnitPrice.Equal(got[i].UnitPrice))
			}
		})
	}
}

func TestStore_OperationsHydrateFirst(t *testing.T) {
	store, st := setup(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, StorageKey,
		[]byte(`[{"product_id":"1","name":"Widget","unit_price":"9.99","quantity":2}]`)))

	// без явного Hydrate мутация не затирает сохраненную корзину
	_, err := store.AddItem(ctx, widget(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Items(ctx)[0].Quantity)
}

func TestStore_PersistedFormat(t *testing.T) {
	store, st := setup(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, widget(), 1)
	require.NoError(t, err)

	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)

	var stored []map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "1", stored[0]["product_id"])
	assert.Equal(t, "Widget", stored[0]["name"])
	assert.EqualValues(t, 1, stored[0]["quantity"])
}

func TestStore_SubscribeSignalsChanges(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	store.Hydrate(ctx)

	changes, unsubscribe := store.Subscribe()
	defer unsubscribe()

	_, _ = store.AddItem(ctx, widget(), 2)
	_, _ = store.SetQuantity(ctx, "1", 0)
	_, _ = store.RemoveItem(ctx, "1")

	first := <-changes
	assert.Equal(t, ChangeAdd, first.Kind)
	assert.Equal(t, "1", first.ProductID)
	assert.Equal(t, 2, first.Quantity)

	// no-op не порождает сигнала
	second := <-changes
	assert.Equal(t, ChangeRemove, second.Kind)

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %v", c)
	default:
	}
}

func TestStore_Total(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	_, _ = store.AddItem(ctx, widget(), 3)
	_, _ = store.AddItem(ctx, product.Product{ID: "2", Name: "Gadget", Price: decimal.RequireFromString("0.03")}, 1)

	assert.Equal(t, "30", store.Total(ctx).StringFixed(0))
	assert.True(t, decimal.RequireFromString("30.00").Equal(store.Total(ctx)))
}
