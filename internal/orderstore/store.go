// Package orderstore is the in-memory registry of Orders keyed by
// client_id. It is the one shared mutable store the order pipeline
// depends on — everything else in the runtime is actor-local.
//
// FindAndUpdate is the atomicity primitive the status state machine is
// built on: it locates an order, checks a predicate against it, and
// applies an update, all while holding that order's shard lock, so two
// concurrent callers racing on the same client_id can never both succeed
// against an overlapping predicate.
//
// Orders are not persisted across restarts: just a sharded, mutex-guarded
// map, no file I/O.
package orderstore

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/LaoKpa/tai/pkg/types"
)

// ErrNotFound is returned when no order with the given client_id exists
// at all. Find callers distinguish this from a found-but-predicate-failed
// outcome.
var ErrNotFound = errors.New("order: not found")

const shardCount = 32

type shard struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*types.Order
}

// Store is the Order registry. Orders are partitioned across a fixed
// number of shards by client_id so that FindAndUpdate on unrelated orders
// never serializes against each other — only operations on the *same*
// client_id contend, and the contention is exactly the mutex the status
// state machine needs.
type Store struct {
	shards [shardCount]*shard
}

// New creates an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{orders: make(map[uuid.UUID]*types.Order)}
	}
	return s
}

func (s *Store) shardFor(id uuid.UUID) *shard {
	return s.shards[id[0]%shardCount]
}

// Add inserts a freshly constructed order with status=enqueued, generating
// a client_id if the caller left it unset. Returns the stored snapshot.
func (s *Store) Add(order types.Order) *types.Order {
	if order.ClientID == uuid.Nil {
		order.ClientID = uuid.New()
	}
	order.Status = types.StatusEnqueued

	sh := s.shardFor(order.ClientID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	stored := order.Clone()
	sh.orders[order.ClientID] = stored
	return stored.Clone()
}

// Find returns the current snapshot for client_id, or ErrNotFound.
func (s *Store) Find(clientID uuid.UUID) (*types.Order, error) {
	sh := s.shardFor(clientID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	order, ok := sh.orders[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

// FindAndUpdate atomically locates the order with the given client_id,
// evaluates predicate against it, and — only if predicate reports true —
// applies update and stores the result. It returns the pre- and
// post-update snapshots.
//
// If no order with client_id exists at all, it returns ErrNotFound. If the
// order exists but predicate returns false (e.g. status isn't the expected
// one), it returns ErrPredicateFailed; callers that need to report the
// actual status call Find afterward.
func (s *Store) FindAndUpdate(clientID uuid.UUID, predicate func(*types.Order) bool, update func(*types.Order)) (old, new *types.Order, err error) {
	sh := s.shardFor(clientID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, ok := sh.orders[clientID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if !predicate(current) {
		return nil, nil, ErrPredicateFailed
	}

	old = current.Clone()
	update(current)
	new = current.Clone()
	return old, new, nil
}

// ErrPredicateFailed is returned by FindAndUpdate when the order exists but
// does not satisfy the predicate (e.g. wrong status for the requested
// transition).
var ErrPredicateFailed = errors.New("order: predicate failed")

// Clear removes every order. Test hook only.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.orders = make(map[uuid.UUID]*types.Order)
		sh.mu.Unlock()
	}
}
