package stock

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency   = 8
	DefaultLookupTimeout = 3 * time.Second
)

// Lookup внешний источник остатков
type Lookup interface {
	Stock(ctx context.Context, productID string) (int, error)
}

// Membership то, что реконсилеру нужно знать о корзине
type Membership interface {
	Contains(productID string) bool
}

// Snapshot доступный остаток по id товара. Отсутствие ключа значит "неизвестно".
type Snapshot map[string]int

// Get возвращает остаток и признак того, что он известен
func (s Snapshot) Get(productID string) (int, bool) {
	v, ok := s[productID]
	return v, ok
}

// Reconciler держит актуальные остатки по товарам корзины
type Reconciler struct {
	Lookup Lookup
	Cart   Membership
	Logger *zap.SugaredLogger

	concurrency   int
	lookupTimeout time.Duration

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewReconciler(
	lookup Lookup,
	cart Membership,
	logger *zap.SugaredLogger,
	concurrency int,
	lookupTimeout time.Duration,
) *Reconciler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}

	return &Reconciler{
		Lookup:        lookup,
		Cart:          cart,
		Logger:        logger,
		concurrency:   concurrency,
		lookupTimeout: lookupTimeout,
		snapshot:      make(Snapshot),
	}
}

// Refresh запрашивает остаток по каждому уникальному id и ждет завершения всех запросов.
// Ошибка запроса превращается в 0, повторов нет. Результаты применяются по мере прихода,
// результат по товару, которого уже нет в корзине, отбрасывается.
func (r *Reconciler) Refresh(ctx context.Context, productIDs []string) {
	ids := distinct(productIDs)
	r.prune(ids)

	g := &errgroup.Group{}
	g.SetLimit(r.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			r.apply(id, r.lookup(ctx, id))
			return nil
		})
	}

	_ = g.Wait()
}

// Snapshot возвращает копию текущих остатков
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(Snapshot, len(r.snapshot))
	for k, v := range r.snapshot {
		out[k] = v
	}
	return out
}

func (r *Reconciler) lookup(ctx context.Context, productID string) int {
	lctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	available, err := r.Lookup.Stock(lctx, productID)
	if err != nil {
		r.Logger.Warnw("stock lookup failed, treating as out of stock",
			"product_id", productID,
			"err", err,
		)
		return 0
	}
	if available < 0 {
		return 0
	}
	return available
}

func (r *Reconciler) apply(productID string, available int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Cart != nil && !r.Cart.Contains(productID) {
		delete(r.snapshot, productID)
		return
	}
	r.snapshot[productID] = available
}

// prune выбрасывает из снимка товары, которых больше нет в корзине.
// Решает членство в корзине, а не набор ids: устаревший Refresh с меньшим
// набором не должен стирать остатки, записанные более новым.
func (r *Reconciler) prune(ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.snapshot {
		if r.Cart != nil {
			if !r.Cart.Contains(id) {
				delete(r.snapshot, id)
			}
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(r.snapshot, id)
		}
	}
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SameSet сравнивает множества id без учета порядка и повторов
func SameSet(a, b []string) bool {
	da, db := distinct(a), distinct(b)
	if len(da) != len(db) {
		return false
	}
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}
