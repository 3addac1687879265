package shopping_cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-cart/internal/storage"
	myErr "storefront-cart/internal/types/errors"
	"storefront-cart/internal/types/product"
)

var cartMutationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(cartMutationsTotal)
}

const subscriberBuffer = 16

// Store корзина одной области. Все операции сериализуются мьютексом,
// поэтому применяются в порядке вызова.
type Store struct {
	Storage storage.Storage
	Logger  *zap.SugaredLogger

	mu       sync.Mutex
	hydrated bool
	items    map[string]*LineItem
	order    []string

	subMu       sync.Mutex
	subscribers map[int]chan Change
	nextSubID   int
}

func NewStore(s storage.Storage, logger *zap.SugaredLogger) *Store {
	return &Store{
		Storage:     s,
		Logger:      logger,
		items:       make(map[string]*LineItem),
		subscribers: make(map[int]chan Change),
	}
}

// Hydrate загружает корзину из хранилища. После успешной загрузки повторные
// вызовы ничего не делают. Отсутствующие или битые данные дают пустую корзину,
// а ошибка самого хранилища оставляет корзину незагруженной до следующего вызова.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		s.Logger.Warnf("cart hydration deferred: %v", err)
	}
}

func (s *Store) hydrateLocked(ctx context.Context) error {
	if s.hydrated {
		return nil
	}

	data, err := s.Storage.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, myErr.ErrNotFound) {
			// сохраненная корзина может существовать, пустой ее не перезаписываем
			return fmt.Errorf("%w: failed to load stored cart: %v", myErr.ErrUpstream, err)
		}
		s.hydrated = true
		s.notify(Change{Kind: ChangeHydrated})
		return nil
	}
	s.hydrated = true

	var stored []LineItem
	if err := json.Unmarshal(data, &stored); err != nil {
		s.Logger.Warnf("stored cart is corrupt, starting empty: %v", err)
		s.notify(Change{Kind: ChangeHydrated})
		return nil
	}

	// дубликаты склеиваем, позиции без id или с quantity < 1 отбрасываем
	for _, li := range stored {
		if li.ProductID == "" || li.Quantity < 1 {
			continue
		}
		if existing, ok := s.items[li.ProductID]; ok {
			existing.Quantity += li.Quantity
			continue
		}
		item := li
		s.items[li.ProductID] = &item
		s.order = append(s.order, li.ProductID)
	}

	s.notify(Change{Kind: ChangeHydrated})
	return nil
}

func (s *Store) AddItem(ctx context.Context, p product.Product, delta int) (Outcome, error) {
	return s.AddItemWithin(ctx, p, delta, nil)
}

// QuantityCheck решает, допустим ли переход позиции от current к requested.
// Вызывается под блокировкой корзины, поэтому не должен ходить в сеть.
type QuantityCheck func(current, requested int) error

// AddItemWithin добавляет delta штук, если check пропускает итоговое количество.
// Текущее количество читается и проверяется в той же критической секции,
// что и запись, поэтому параллельные добавления не проскакивают мимо остатка.
func (s *Store) AddItemWithin(ctx context.Context, p product.Product, delta int, check QuantityCheck) (Outcome, error) {
	if p.ID == "" {
		return NoOp, myErr.ErrBadID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		return NoOp, err
	}

	if delta < 1 {
		cartMutationsTotal.WithLabelValues(string(ChangeAdd), NoOp.String()).Inc()
		return NoOp, nil
	}

	current := 0
	if existing, ok := s.items[p.ID]; ok {
		current = existing.Quantity
	}
	if check != nil {
		if err := check(current, current+delta); err != nil {
			cartMutationsTotal.WithLabelValues(string(ChangeAdd), NoOp.String()).Inc()
			return NoOp, err
		}
	}

	if existing, ok := s.items[p.ID]; ok {
		existing.Quantity += delta
	} else {
		s.items[p.ID] = &LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  delta,
		}
		s.order = append(s.order, p.ID)
	}

	return s.commit(ctx, Change{Kind: ChangeAdd, ProductID: p.ID, Quantity: s.items[p.ID].Quantity})
}

func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) (Outcome, error) {
	return s.UpdateQuantity(ctx, productID, func(int) int { return quantity }, nil)
}

// UpdateQuantity ставит позиции количество next(current). Отсутствующая позиция
// и next < 1 ничего не меняют. check вызывается только для допустимых
// количеств и под той же блокировкой, что и запись.
func (s *Store) UpdateQuantity(
	ctx context.Context,
	productID string,
	next func(current int) int,
	check QuantityCheck,
) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		return NoOp, err
	}

	item, ok := s.items[productID]
	if !ok {
		cartMutationsTotal.WithLabelValues(string(ChangeSet), NoOp.String()).Inc()
		return NoOp, nil
	}

	quantity := next(item.Quantity)
	if quantity < 1 || item.Quantity == quantity {
		cartMutationsTotal.WithLabelValues(string(ChangeSet), NoOp.String()).Inc()
		return NoOp, nil
	}
	if check != nil {
		if err := check(item.Quantity, quantity); err != nil {
			cartMutationsTotal.WithLabelValues(string(ChangeSet), NoOp.String()).Inc()
			return NoOp, err
		}
	}

	item.Quantity = quantity
	return s.commit(ctx, Change{Kind: ChangeSet, ProductID: productID, Quantity: quantity})
}

func (s *Store) RemoveItem(ctx context.Context, productID string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		return NoOp, err
	}

	if _, ok := s.items[productID]; !ok {
		cartMutationsTotal.WithLabelValues(string(ChangeRemove), NoOp.String()).Inc()
		return NoOp, nil
	}

	delete(s.items, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return s.commit(ctx, Change{Kind: ChangeRemove, ProductID: productID})
}

// Clear всегда сохраняет пустое состояние, даже если корзина уже пуста
func (s *Store) Clear(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		return NoOp, err
	}

	outcome := NoOp
	if len(s.items) > 0 {
		outcome = Changed
	}

	s.items = make(map[string]*LineItem)
	s.order = nil

	err := s.persist(ctx)
	cartMutationsTotal.WithLabelValues(string(ChangeClear), outcome.String()).Inc()
	if outcome == Changed {
		s.notify(Change{Kind: ChangeClear})
	}
	return outcome, err
}

// Deduct вычитает ordered из корзины одной операцией. Позиция удаляется, если
// в корзине ее не больше, чем заказано; иначе остается разница. Товары и
// количества, добавленные после снятия ordered, не трогаются.
func (s *Store) Deduct(ctx context.Context, ordered []LineItem) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		return NoOp, err
	}

	changed := false
	for _, li := range ordered {
		item, ok := s.items[li.ProductID]
		if !ok || li.Quantity < 1 {
			continue
		}
		changed = true

		if item.Quantity > li.Quantity {
			item.Quantity -= li.Quantity
			continue
		}
		delete(s.items, li.ProductID)
		for i, id := range s.order {
			if id == li.ProductID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}

	if !changed {
		cartMutationsTotal.WithLabelValues(string(ChangeDeduct), NoOp.String()).Inc()
		return NoOp, nil
	}
	return s.commit(ctx, Change{Kind: ChangeDeduct})
}

func (s *Store) Items(ctx context.Context) []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		s.Logger.Warnf("reading cart before hydration: %v", err)
	}

	return s.snapshotLocked()
}

func (s *Store) ProductIDs(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateLocked(ctx); err != nil {
		s.Logger.Warnf("reading cart before hydration: %v", err)
	}

	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

func (s *Store) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[productID]
	return ok
}

// Total сумма корзины
func (s *Store) Total(ctx context.Context) decimal.Decimal {
	total := decimal.Zero
	for _, li := range s.Items(ctx) {
		total = total.Add(li.Total())
	}
	return total
}

// Subscribe возвращает канал сигналов об изменениях и функцию отписки.
// Медленный подписчик пропускает сигналы, а не блокирует корзину.
func (s *Store) Subscribe() (<-chan Change, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Change, subscriberBuffer)
	s.subscribers[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

func (s *Store) commit(ctx context.Context, change Change) (Outcome, error) {
	// в памяти изменение остается даже при ошибке записи,
	// следующая успешная мутация перепишет состояние целиком
	err := s.persist(ctx)
	cartMutationsTotal.WithLabelValues(string(change.Kind), Changed.String()).Inc()
	s.notify(change)
	return Changed, err
}

func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.snapshotLocked())
	if err != nil {
		return fmt.Errorf("%w: %v", myErr.ErrPersist, err)
	}

	if err := s.Storage.Set(ctx, StorageKey, data); err != nil {
		s.Logger.Errorf("failed to persist cart: %v", err)
		return fmt.Errorf("%w: %v", myErr.ErrPersist, err)
	}

	return nil
}

func (s *Store) snapshotLocked() []LineItem {
	out := make([]LineItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

func (s *Store) notify(change Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- change:
		default:
			s.Logger.Debugw("cart subscriber is lagging, change dropped", "kind", change.Kind)
		}
	}
}
