// Package capture holds notifications back while a focus session runs
// and releases them for review afterwards.
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/pkg/storage"
)

const queueKey = "captured"

// Item is one held notification.
type Item struct {
	ID         string    `json:"id"`
	App        string    `json:"app"`
	Title      string    `json:"title"`
	Category   Category  `json:"category"`
	CapturedAt time.Time `json:"capturedAt"`
	Muted      bool      `json:"muted"`
}

// Queue is the persisted captured-notification queue. The hold gate
// decides whether an offered notification is captured or delivered
// immediately; the focus tracker's Running method is the usual gate.
type Queue struct {
	mu   sync.Mutex
	kv   storage.Store
	log  *slog.Logger
	now  func() time.Time
	gate func() bool
}

// Option configures a Queue.
type Option func(*Queue)

func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithHoldGate sets the predicate consulted on every Offer.
func WithHoldGate(gate func() bool) Option {
	return func(q *Queue) { q.gate = gate }
}

func NewQueue(kv storage.Store, opts ...Option) *Queue {
	q := &Queue{
		kv:   kv,
		log:  slog.Default(),
		now:  time.Now,
		gate: func() bool { return true },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Offer presents a notification for triage. When the gate is closed the
// notification passes through untouched (held = false). When open, it is
// categorized, muted and appended to the persisted queue.
func (q *Queue) Offer(app, title string) (Item, bool, error) {
	if !q.gate() {
		return Item{}, false, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cats := loadCategories(q.kv)
	cat, ok := cats.lookup(app)
	if !ok {
		cat = defaultCategory(app)
		cats.Apps[normalizeApp(app)] = cat
		if err := cats.save(q.kv); err != nil {
			q.log.Warn("could not persist app category assignment", "app", app, "err", err)
		}
	}

	item := Item{
		ID:         strconv.FormatInt(q.now().UnixNano(), 10),
		App:        app,
		Title:      title,
		Category:   cat,
		CapturedAt: q.now(),
		Muted:      true,
	}

	items := q.pendingLocked()
	items = append(items, item)
	if err := q.saveLocked(items); err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

// Assign pins an app to a category, overriding the seeded default for
// future captures.
func (q *Queue) Assign(app string, cat Category) error {
	if !validCategory(cat) {
		return fmt.Errorf("%w: %s", ErrBadCategory, cat)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	cats := loadCategories(q.kv)
	cats.Apps[normalizeApp(app)] = cat
	return cats.save(q.kv)
}

// Pending returns the held notifications in capture order. Missing or
// corrupt state degrades to empty.
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

// Release drains the queue and returns the held notifications, oldest
// first. Called when the focus session ends or the user reviews the
// queue.
func (q *Queue) Release() ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.pendingLocked()
	if len(items) == 0 {
		return nil, nil
	}
	if err := q.saveLocked(nil); err != nil {
		return nil, err
	}
	return items, nil
}

// Sections groups pending items by the local calendar day of capture,
// the same YYYY-MM-DD key space the calendar views use.
func (q *Queue) Sections(loc *time.Location) map[string][]Item {
	sections := make(map[string][]Item)
	for _, item := range q.Pending() {
		key := item.CapturedAt.In(loc).Format("2006-01-02")
		sections[key] = append(sections[key], item)
	}
	return sections
}

func (q *Queue) pendingLocked() []Item {
	data, err := q.kv.Get(queueKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNoKey) {
			q.log.Warn("could not read captured queue, starting empty", "err", err)
		}
		return nil
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		q.log.Warn("captured queue is corrupt, starting empty", "err", err)
		return nil
	}
	return items
}

func (q *Queue) saveLocked(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("capture: encode queue: %w", err)
	}
	if err := q.kv.Put(queueKey, data); err != nil {
		return fmt.Errorf("capture: persist queue: %w", err)
	}
	return nil
}
