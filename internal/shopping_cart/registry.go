package shopping_cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-cart/internal/kafka"
	"storefront-cart/internal/stock"
	"storefront-cart/internal/storage"
)

// Cart живая корзина одной области: хранилище позиций и остатки по ним
type Cart struct {
	ID    string
	Store *Store
	Stock *stock.Reconciler

	stop     context.CancelFunc
	done     chan struct{}
	lastSeen time.Time
}

// Close останавливает наблюдение за остатками
func (c *Cart) Close() {
	c.stop()
	<-c.done
}

// RegistryConfig параметры реконсиляции для новых корзин
type RegistryConfig struct {
	StockConcurrency   int
	StockLookupTimeout time.Duration
}

// Registry создает корзину на область один раз и держит ее, пока область активна
type Registry struct {
	Storage storage.Storage
	Lookup  stock.Lookup
	Logger  *zap.SugaredLogger

	cfg RegistryConfig
	now func() time.Time

	mu    sync.Mutex
	carts map[string]*Cart
}

func NewRegistry(
	s storage.Storage,
	lookup stock.Lookup,
	logger *zap.SugaredLogger,
	cfg RegistryConfig,
) *Registry {
	return &Registry{
		Storage: s,
		Lookup:  lookup,
		Logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		carts:   make(map[string]*Cart),
	}
}

// Get возвращает корзину области cartID и при первом обращении запускает
// обновление остатков. Гидрация идет вне блокировки реестра, так что медленное
// хранилище задерживает только свою область. Отмена запроса гидрацию не прерывает.
func (r *Registry) Get(ctx context.Context, cartID string) *Cart {
	c := r.getOrCreate(cartID)
	c.Store.Hydrate(context.WithoutCancel(ctx))
	return c
}

func (r *Registry) getOrCreate(cartID string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.carts[cartID]; ok {
		c.lastSeen = r.now()
		return c
	}

	store := NewStore(storage.Scope(r.Storage, cartID), r.Logger.With("cart_id", cartID))
	reconciler := stock.NewReconciler(
		r.Lookup,
		store,
		r.Logger.With("cart_id", cartID),
		r.cfg.StockConcurrency,
		r.cfg.StockLookupTimeout,
	)

	changes, unsubscribe := store.Subscribe()

	watchCtx, cancel := context.WithCancel(context.Background())
	c := &Cart{
		ID:       cartID,
		Store:    store,
		Stock:    reconciler,
		stop:     cancel,
		done:     make(chan struct{}),
		lastSeen: r.now(),
	}

	go func() {
		defer close(c.done)
		defer unsubscribe()
		watchStock(watchCtx, store, reconciler, changes)
	}()

	r.carts[cartID] = c
	return c
}

// Evict выбрасывает корзину из памяти, следующий Get заново прочитает хранилище
func (r *Registry) Evict(cartID string) bool {
	r.mu.Lock()
	c, ok := r.carts[cartID]
	delete(r.carts, cartID)
	r.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// Sweep выбрасывает корзины, к которым не обращались дольше idle
func (r *Registry) Sweep(idle time.Duration) int {
	deadline := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Cart
	for id, c := range r.carts {
		if c.lastSeen.Before(deadline) {
			stale = append(stale, c)
			delete(r.carts, id)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	return len(stale)
}

// InvalidationHandler обработчик событий корзин из kafka: корзины, измененные
// другим инстансом, выбрасываются и при следующем обращении перечитываются из хранилища
func (r *Registry) InvalidationHandler(instanceID string) func(context.Context, kafka.Event) error {
	return func(_ context.Context, event kafka.Event) error {
		if event.Origin == instanceID || event.CartID == "" {
			return nil
		}
		if r.Evict(event.CartID) {
			r.Logger.Debugw("cart evicted by foreign change",
				"cart_id", event.CartID,
				"origin", event.Origin,
				"type", event.Type,
			)
		}
		return nil
	}
}

// Len количество корзин в памяти
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

// Close останавливает все корзины
func (r *Registry) Close() {
	r.mu.Lock()
	carts := r.carts
	r.carts = make(map[string]*Cart)
	r.mu.Unlock()

	for _, c := range carts {
		c.Close()
	}
}

// watchStock обновляет остатки, когда меняется набор товаров корзины.
// Изменение только количества повторного запроса не вызывает. Refresh идут
// строго по очереди, после каждого набор перечитывается: сигналы, пропущенные
// во время медленного запроса, не теряют последнее изменение набора.
func watchStock(ctx context.Context, store *Store, reconciler *stock.Reconciler, changes <-chan Change) {
	var known []string

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}

			for ctx.Err() == nil {
				ids := store.ProductIDs(ctx)
				if known != nil && stock.SameSet(known, ids) {
					break
				}
				known = ids
				reconciler.Refresh(ctx, ids)
			}
		}
	}
}
