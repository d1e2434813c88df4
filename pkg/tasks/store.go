package tasks

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/pkg/storage"
)

const storageKey = "todos"

// ErrEmptyTitle is returned by Create for a blank title. The check runs
// before anything is touched on disk.
var ErrEmptyTitle = errors.New("tasks: title must not be empty")

// Store is the durable todo collection. All mutations are serialized by
// a single mutex and re-read the persisted state before applying, so a
// slow write can never be clobbered by a mutation that saw a stale
// in-memory snapshot.
type Store struct {
	mu  sync.Mutex
	kv  storage.Store
	log *slog.Logger
	now func() time.Time

	subs   map[int]func()
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for degraded-read reporting.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock overrides the time source. Tests use this to pin IDs,
// CreatedAt values and histogram buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store backed by kv.
func NewStore(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:   kv,
		log:  slog.Default(),
		now:  time.Now,
		subs: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to be called after every successful mutation.
// The returned function removes the subscription. Components that render
// todos subscribe and reload on each tick; components that mutate never
// need to know who is listening.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Load returns the persisted collection. A missing or malformed payload
// degrades to an empty collection; it never fails the caller.
func (s *Store) Load() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []Todo {
	data, err := s.kv.Get(storageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNoKey) {
			s.log.Warn("could not read todo collection, starting empty", "err", err)
		}
		return nil
	}
	todos, err := decodePayload(data)
	if err != nil {
		s.log.Warn("todo collection is corrupt, starting empty", "err", err)
		return nil
	}
	return todos
}

func (s *Store) saveLocked(todos []Todo) error {
	data, err := encodePayload(todos)
	if err != nil {
		return fmt.Errorf("tasks: encode collection: %w", err)
	}
	if err := s.kv.Put(storageKey, data); err != nil {
		return fmt.Errorf("tasks: persist collection: %w", err)
	}
	return nil
}

// Create validates, appends and persists a new todo, returning it. The
// write must succeed for the todo to exist; a storage failure is
// returned to the caller and leaves the persisted collection untouched.
func (s *Store) Create(in CreateInput) (Todo, error) {
	if in.Title == "" {
		return Todo{}, ErrEmptyTitle
	}

	s.mu.Lock()
	todos := s.loadLocked()

	now := s.now()
	prio := in.Priority
	if !prio.valid() {
		prio = PriorityMedium
	}
	todo := Todo{
		ID:          s.newID(todos, now),
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    prio,
		Completed:   false,
		CreatedAt:   now,
	}
	todos = append(todos, todo)

	if err := s.saveLocked(todos); err != nil {
		s.mu.Unlock()
		return Todo{}, err
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs)
	return todo, nil
}

// newID derives an ID from the creation timestamp, bumping until it is
// unused so two creations in the same nanosecond cannot collide.
func (s *Store) newID(todos []Todo, now time.Time) string {
	used := make(map[string]bool, len(todos))
	for _, t := range todos {
		used[t.ID] = true
	}
	n := now.UnixNano()
	for {
		id := strconv.FormatInt(n, 10)
		if !used[id] {
			return id
		}
		n++
	}
}

// ToggleCompleted flips the completion flag for the matching item and
// persists the collection. An unknown id leaves the collection unchanged
// and is not an error.
func (s *Store) ToggleCompleted(id string) ([]Todo, error) {
	s.mu.Lock()
	todos := s.loadLocked()

	found := false
	for i := range todos {
		if todos[i].ID == id {
			todos[i].Completed = !todos[i].Completed
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return todos, nil
	}

	if err := s.saveLocked(todos); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs)
	return todos, nil
}

// PriorityView returns the collection sorted by priority descending,
// ties broken by CreatedAt descending (newest first). Recomputed on
// every call.
func (s *Store) PriorityView() []Todo {
	todos := s.Load()
	sort.SliceStable(todos, func(i, j int) bool {
		ri, rj := todos[i].Priority.rank(), todos[j].Priority.rank()
		if ri != rj {
			return ri > rj
		}
		return todos[i].CreatedAt.After(todos[j].CreatedAt)
	})
	return todos
}

// All returns the flat projection: same items and fields as
// PriorityView, in the same order it was constructed with.
func (s *Store) All() []Todo {
	return s.PriorityView()
}

func (s *Store) snapshotSubs() []func() {
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the store lock so a subscriber may call back into
// the store.
func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
