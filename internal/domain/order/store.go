package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sentinel errors for store mutations.
var (
	// ErrNotFound is returned when a mutation references an unknown order ID.
	ErrNotFound = errors.New("order not found")
	// ErrUnknownStatus is returned when a mutation names a status outside the enum.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrNotReady is returned by AcceptDelivery when the order is not in the
	// dispatch queue yet (or anymore).
	ErrNotReady = errors.New("order is not ready for delivery")
	// ErrDeliveryTaken is returned by AcceptDelivery when another courier got
	// there first.
	ErrDeliveryTaken = errors.New("delivery already taken by another courier")
)

// IllegalTransitionError indicates a checked transition that is not in the
// legal-successor table.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s → %s", e.From, e.To)
}

// Snapshotter persists and restores the full order list. Implementations must
// treat the list as an opaque ordered collection; the store saves after every
// mutation and loads once during Hydrate.
type Snapshotter interface {
	Load(ctx context.Context) ([]Order, error)
	Save(ctx context.Context, orders []Order) error
}

// Subscriber receives the full order snapshot after every mutation. The same
// callback is invoked once immediately on Subscribe.
type Subscriber func(orders []Order)

// Store is the single source of truth for all orders in the process. Every
// read returns a deep-copied snapshot, every mutation goes through one of the
// four mutation methods, persists the list, and fans out to subscribers.
//
// The store is safe for concurrent use. Subscriber callbacks run synchronously
// on the mutating goroutine but outside the store lock, so a subscriber may
// call back into the store. A panicking subscriber is recovered and logged;
// it never prevents delivery to the remaining subscribers.
type Store struct {
	lg   *zap.Logger
	snap Snapshotter

	mu      sync.Mutex
	orders  []Order
	subs    map[uint64]Subscriber
	nextSub uint64

	now func() time.Time
}

// NewStore creates an empty store backed by the given snapshotter. Call
// Hydrate before serving traffic to restore previously persisted orders.
func NewStore(snap Snapshotter, lg *zap.Logger) *Store {
	return &Store{
		lg:   lg.Named("orderstore"),
		snap: snap,
		subs: make(map[uint64]Subscriber),
		now:  time.Now,
	}
}

// Hydrate replaces the in-memory list with the persisted snapshot. It is meant
// to run once at startup, before subscribers attach.
func (s *Store) Hydrate(ctx context.Context) error {
	orders, err := s.snap.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load snapshot")
	}

	s.mu.Lock()
	s.orders = orders
	n := len(orders)
	s.mu.Unlock()

	s.lg.Info("hydrated", zap.Int("orders", n))
	return nil
}

// Flush writes the current list to the snapshotter. Run during shutdown for a
// final durable write; per-mutation saves are best effort.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	snapshot := s.cloneLocked()
	s.mu.Unlock()

	if err := s.snap.Save(ctx, snapshot); err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	return nil
}

// List returns a snapshot of every order, oldest first.
func (s *Store) List() []Order {
	return s.filter(func(Order) bool { return true })
}

// Get returns a snapshot of a single order by ID.
func (s *Store) Get(id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Order{}, ErrNotFound
	}
	return s.orders[i].Clone(), nil
}

// ListForCustomer returns orders placed by the named customer.
func (s *Store) ListForCustomer(name string) []Order {
	return s.filter(func(o Order) bool { return o.Customer.Name == name })
}

// ListForRestaurant returns orders addressed to the named restaurant.
func (s *Store) ListForRestaurant(name string) []Order {
	return s.filter(func(o Order) bool { return o.Restaurant.Name == name })
}

// ListForCourier returns orders assigned to the named courier.
func (s *Store) ListForCourier(name string) []Order {
	return s.filter(func(o Order) bool { return o.Courier != nil && o.Courier.Name == name })
}

// ListAvailableForDelivery returns the courier dispatch queue: orders that are
// ready and have no courier assigned yet.
func (s *Store) ListAvailableForDelivery() []Order {
	return s.filter(Order.AvailableForDelivery)
}

// Create appends a new order built from draft. The ID, pending status, and
// creation stamps are assigned here; whatever the caller put in those fields
// is discarded. Line items and totals are stored as given, not re-validated.
// Returns the assigned ID.
func (s *Store) Create(ctx context.Context, draft Order) (string, error) {
	now := s.now()

	o := draft.Clone()
	o.ID = newOrderID(now)
	o.Status = StatusPending
	o.Courier = nil
	o.CreatedDate = now.Format("02/01/2006")
	o.CreatedTime = now.Format("15:04")

	s.mu.Lock()
	s.orders = append(s.orders, o)
	snapshot, subs := s.publishLocked()
	s.mu.Unlock()

	s.lg.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("restaurant", o.Restaurant.Name),
		zap.String("payment", string(o.Payment)),
	)

	s.persist(ctx, snapshot)
	s.notify(subs, snapshot)
	return o.ID, nil
}

// SetStatus replaces an order's status without consulting the legal-successor
// table. This is the admin override path; role-gated callers should prefer
// Transition. When courier is non-nil it is assigned alongside the status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, courier *Courier) error {
	if !status.Valid() {
		return errors.Wrapf(ErrUnknownStatus, "%q", status)
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	prev := s.orders[i].Status
	s.orders[i].Status = status
	if courier != nil {
		c := *courier
		s.orders[i].Courier = &c
	}
	snapshot, subs := s.publishLocked()
	s.mu.Unlock()

	s.lg.Info("status set",
		zap.String("order_id", id),
		zap.String("from", string(prev)),
		zap.String("to", string(status)),
	)

	s.persist(ctx, snapshot)
	s.notify(subs, snapshot)
	return nil
}

// Transition moves an order to next only when the legal-successor table
// allows it, returning an IllegalTransitionError otherwise.
func (s *Store) Transition(ctx context.Context, id string, next Status) error {
	if !next.Valid() {
		return errors.Wrapf(ErrUnknownStatus, "%q", next)
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	prev := s.orders[i].Status
	if !prev.CanTransition(next) {
		s.mu.Unlock()
		return &IllegalTransitionError{From: prev, To: next}
	}
	s.orders[i].Status = next
	snapshot, subs := s.publishLocked()
	s.mu.Unlock()

	s.lg.Info("status transition",
		zap.String("order_id", id),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)

	s.persist(ctx, snapshot)
	s.notify(subs, snapshot)
	return nil
}

// AcceptDelivery claims a ready order for the given courier and moves it to
// out_for_delivery. The expected-status check and the courier-unset check run
// under the store lock, so two couriers racing for the same order cannot both
// win: the loser gets ErrDeliveryTaken (or ErrNotReady when the order has
// already moved on).
func (s *Store) AcceptDelivery(ctx context.Context, id string, courier Courier) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	if s.orders[i].Courier != nil {
		s.mu.Unlock()
		return ErrDeliveryTaken
	}
	if s.orders[i].Status != StatusReady {
		s.mu.Unlock()
		return ErrNotReady
	}

	c := courier
	s.orders[i].Courier = &c
	s.orders[i].Status = StatusOutForDelivery
	snapshot, subs := s.publishLocked()
	s.mu.Unlock()

	s.lg.Info("delivery accepted",
		zap.String("order_id", id),
		zap.String("courier", courier.Name),
	)

	s.persist(ctx, snapshot)
	s.notify(subs, snapshot)
	return nil
}

// Subscribe registers fn and invokes it once, synchronously, with the current
// snapshot before returning. It returns an unsubscribe function; after that
// function returns, fn is never invoked again.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snapshot := s.cloneLocked()
	s.mu.Unlock()

	s.invoke(fn, snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// indexLocked returns the position of the order with the given ID, or -1.
func (s *Store) indexLocked(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}

// cloneLocked deep-copies the current list.
func (s *Store) cloneLocked() []Order {
	snapshot := make([]Order, len(s.orders))
	for i := range s.orders {
		snapshot[i] = s.orders[i].Clone()
	}
	return snapshot
}

// publishLocked prepares the snapshot and subscriber set for post-mutation
// persistence and fan-out, both of which run outside the lock.
func (s *Store) publishLocked() ([]Order, []Subscriber) {
	snapshot := s.cloneLocked()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return snapshot, subs
}

// filter returns a snapshot of all orders matching pred, preserving order.
func (s *Store) filter(pred func(Order) bool) []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Order, 0)
	for i := range s.orders {
		if pred(s.orders[i]) {
			out = append(out, s.orders[i].Clone())
		}
	}
	return out
}

// persist mirrors the snapshot to durable storage. Failures are logged, not
// returned: the in-memory mutation already happened and stays authoritative.
func (s *Store) persist(ctx context.Context, snapshot []Order) {
	if err := s.snap.Save(ctx, snapshot); err != nil {
		s.lg.Error("snapshot save failed", zap.Error(err), zap.Int("orders", len(snapshot)))
	}
}

// notify fans the snapshot out to every subscriber, each one isolated from
// the others' panics. Each subscriber gets its own copy.
func (s *Store) notify(subs []Subscriber, snapshot []Order) {
	for _, fn := range subs {
		own := make([]Order, len(snapshot))
		for i := range snapshot {
			own[i] = snapshot[i].Clone()
		}
		s.invoke(fn, own)
	}
}

func (s *Store) invoke(fn Subscriber, snapshot []Order) {
	defer func() {
		if rec := recover(); rec != nil {
			s.lg.Error("subscriber panicked", zap.Any("panic", rec))
		}
	}()
	fn(snapshot)
}

// newOrderID builds a timestamp-derived opaque ID: a sortable UTC stamp plus
// a random suffix to keep IDs unique within the same second.
func newOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return now.UTC().Format("20060102150405") + "-" + suffix
}
