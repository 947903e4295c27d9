package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/api/metrics"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// DefaultLoadTimeout bounds how long the store reports loading when a
// collection never delivers its first snapshot.
const DefaultLoadTimeout = 3 * time.Second

const (
	slotUsers = iota
	slotItineraries
	slotCustomers
	slotBookings
	slotCount
)

var slotNames = [slotCount]string{"users", "itineraries", "customers", "bookings"}

// Snapshot is the latest delivered contents of the four collections.
type Snapshot struct {
	Users       []domain.User      `json:"users"`
	Itineraries []domain.Itinerary `json:"itineraries"`
	Customers   []domain.Customer  `json:"customers"`
	Bookings    []domain.Booking   `json:"bookings"`
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Users:       slices.Clone(s.Users),
		Itineraries: slices.Clone(s.Itineraries),
		Customers:   slices.Clone(s.Customers),
		Bookings:    slices.Clone(s.Bookings),
	}
}

// DataStoreDeps are the external collaborators of the DataStore.
// Guard is optional.
type DataStoreDeps struct {
	Users       ports.Collection[domain.User]
	Itineraries ports.Collection[domain.Itinerary]
	Customers   ports.Collection[domain.Customer]
	Bookings    ports.Collection[domain.Booking]
	Blobs       ports.BlobStorage
	Guard       ports.BookingGuard
}

// DataStore keeps the latest snapshot of users, itineraries, customers and
// bookings in memory and routes every write to the remote collections.
// Snapshots change only when a subscription delivers; writes are never
// applied locally.
type DataStore struct {
	users       ports.Collection[domain.User]
	itineraries ports.Collection[domain.Itinerary]
	customers   ports.Collection[domain.Customer]
	bookings    ports.Collection[domain.Booking]
	blobs       ports.BlobStorage
	guard       ports.BookingGuard

	loadTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
	newID       func() string

	mu          sync.RWMutex
	snap        Snapshot
	active      bool
	loading     bool
	loaded      chan struct{}
	gen         uint64
	barrier     *loadBarrier
	activatedAt time.Time
	unsubs      []ports.Unsubscribe

	lmu          sync.Mutex
	listeners    map[int]func()
	nextListener int
}

// NewDataStore builds an inactive store. Call Activate to start the subscriptions.
func NewDataStore(deps DataStoreDeps, loadTimeout time.Duration, log zerolog.Logger) *DataStore {
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	return &DataStore{
		users:       deps.Users,
		itineraries: deps.Itineraries,
		customers:   deps.Customers,
		bookings:    deps.Bookings,
		blobs:       deps.Blobs,
		guard:       deps.Guard,
		loadTimeout: loadTimeout,
		log:         log.With().Str("component", "datastore").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		listeners:   make(map[int]func()),
	}
}

// Activate opens one subscription per collection. Any previous activation is
// torn down first and the loading state starts over. Loading clears when all
// four collections have delivered once, or after the load timeout.
func (s *DataStore) Activate(ctx context.Context) error {
	s.Deactivate()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.active = true
	s.loading = true
	s.loaded = make(chan struct{})
	s.snap = Snapshot{}
	s.activatedAt = time.Now()
	s.barrier = newLoadBarrier(slotCount, s.loadTimeout, func() { s.loadTimedOut(gen) })
	s.mu.Unlock()

	subs := make([]ports.Unsubscribe, 0, slotCount)
	open := []func() (ports.Unsubscribe, error){
		func() (ports.Unsubscribe, error) {
			return watch(ctx, s, gen, slotUsers, s.users, func(sn *Snapshot, d []domain.User) { sn.Users = d })
		},
		func() (ports.Unsubscribe, error) {
			return watch(ctx, s, gen, slotItineraries, s.itineraries, func(sn *Snapshot, d []domain.Itinerary) { sn.Itineraries = d })
		},
		func() (ports.Unsubscribe, error) {
			return watch(ctx, s, gen, slotCustomers, s.customers, func(sn *Snapshot, d []domain.Customer) { sn.Customers = d })
		},
		func() (ports.Unsubscribe, error) {
			return watch(ctx, s, gen, slotBookings, s.bookings, func(sn *Snapshot, d []domain.Booking) { sn.Bookings = d })
		},
	}
	for i, subscribe := range open {
		unsub, err := subscribe()
		if err != nil {
			for _, u := range subs {
				u()
			}
			s.Deactivate()
			return fmt.Errorf("activate data store: subscribe %s: %w", slotNames[i], err)
		}
		subs = append(subs, unsub)
	}

	s.mu.Lock()
	if s.gen != gen {
		// A concurrent Activate replaced this one.
		s.mu.Unlock()
		for _, u := range subs {
			u()
		}
		return nil
	}
	s.unsubs = subs
	s.mu.Unlock()

	s.log.Info().Dur("load_timeout", s.loadTimeout).Msg("data store activated")
	return nil
}

// Deactivate cancels all subscriptions and the load timer. Snapshots that
// arrive afterwards are dropped.
func (s *DataStore) Deactivate() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	unsubs := s.unsubs
	s.unsubs = nil
	if s.barrier != nil {
		s.barrier.stop()
	}
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	if wasActive {
		s.log.Info().Msg("data store deactivated")
	}
}

func watch[T any](
	ctx context.Context,
	s *DataStore,
	gen uint64,
	slot int,
	c ports.Collection[T],
	apply func(*Snapshot, []T),
) (ports.Unsubscribe, error) {
	return c.Subscribe(ctx, func(docs []T) {
		if docs == nil {
			docs = []T{}
		}
		s.deliver(gen, slot, len(docs), func(sn *Snapshot) { apply(sn, docs) })
	})
}

func (s *DataStore) deliver(gen uint64, slot, n int, apply func(*Snapshot)) {
	name := slotNames[slot]

	s.mu.Lock()
	if !s.active || gen != s.gen {
		s.mu.Unlock()
		s.log.Debug().Str("collection", name).Msg("dropped snapshot from stale subscription")
		return
	}
	apply(&s.snap)
	released := s.barrier.arrive(slot)
	if released {
		s.finishLoadLocked()
	}
	elapsed := time.Since(s.activatedAt)
	s.mu.Unlock()

	metrics.SnapshotsAppliedTotal.WithLabelValues(name).Inc()
	metrics.SnapshotSize.WithLabelValues(name).Set(float64(n))
	s.log.Debug().Str("collection", name).Int("documents", n).Msg("snapshot applied")
	if released {
		metrics.InitialLoadDuration.WithLabelValues("complete").Observe(elapsed.Seconds())
		s.log.Info().Dur("elapsed", elapsed).Msg("initial load complete")
	}
	s.notify()
}

func (s *DataStore) loadTimedOut(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	s.finishLoadLocked()
	missing := s.barrier.missing()
	s.mu.Unlock()

	names := make([]string, 0, len(missing))
	for _, i := range missing {
		names = append(names, slotNames[i])
	}
	metrics.InitialLoadDuration.WithLabelValues("timeout").Observe(s.loadTimeout.Seconds())
	s.log.Warn().
		Str("pending", strings.Join(names, ",")).
		Dur("timeout", s.loadTimeout).
		Msg("initial load timed out, serving partial data")
	s.notify()
}

// finishLoadLocked clears loading and wakes WaitLoaded callers. Callers hold s.mu.
func (s *DataStore) finishLoadLocked() {
	s.loading = false
	select {
	case <-s.loaded:
	default:
		close(s.loaded)
	}
}

// Loading reports whether the initial load is still in progress.
func (s *DataStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Active reports whether the store holds live subscriptions.
func (s *DataStore) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// WaitLoaded blocks until loading clears or ctx is done.
func (s *DataStore) WaitLoaded(ctx context.Context) error {
	s.mu.RLock()
	active, loaded := s.active, s.loaded
	s.mu.RUnlock()
	if !active || loaded == nil {
		return domain.ErrStoreClosed
	}
	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnChange registers fn to run after every applied snapshot and when loading
// clears. fn runs on the delivering goroutine and must not block.
func (s *DataStore) OnChange(fn func()) ports.Unsubscribe {
	s.lmu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *DataStore) notify() {
	s.lmu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ── Readers ───────────────────────────────────────────────────────────────────

// Snapshot returns a copy of all four collections.
func (s *DataStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

func (s *DataStore) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Users)
}

func (s *DataStore) Itineraries() []domain.Itinerary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Itineraries)
}

func (s *DataStore) Customers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Customers)
}

func (s *DataStore) Bookings() []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Bookings)
}

func (s *DataStore) User(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.snap.Users, func(u domain.User) bool { return u.ID == id })
}

func (s *DataStore) Itinerary(id string) (domain.Itinerary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.snap.Itineraries, func(it domain.Itinerary) bool { return it.ID == id })
}

func (s *DataStore) Customer(id string) (domain.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.snap.Customers, func(c domain.Customer) bool { return c.ID == id })
}

// CustomerByEmail finds the customer record a signed-in customer owns.
func (s *DataStore) CustomerByEmail(email string) (domain.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.snap.Customers, func(c domain.Customer) bool { return strings.EqualFold(c.Email, email) })
}

func (s *DataStore) Booking(id string) (domain.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.snap.Bookings, func(b domain.Booking) bool { return b.ID == id })
}

// BookingsForCustomer returns the customer's bookings in snapshot order.
func (s *DataStore) BookingsForCustomer(customerID string) []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.snap.Bookings {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	return out
}

func find[T any](items []T, match func(T) bool) (T, bool) {
	for _, it := range items {
		if match(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}
