// Package focus tracks focus (do-not-disturb) sessions and their
// persisted history.
package focus

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/pkg/storage"
)

const (
	MinMinutes     = 5
	MaxMinutes     = 120
	StepMinutes    = 5
	DefaultMinutes = 25
)

const storageKey = "focus_sessions"

// ClampMinutes snaps a requested duration onto the supported range:
// multiples of five between 5 and 120 minutes.
func ClampMinutes(m int) int {
	if m < MinMinutes {
		return MinMinutes
	}
	if m > MaxMinutes {
		return MaxMinutes
	}
	return m - m%StepMinutes
}

// Session is one focus block. EndedAt is set when the session stops;
// Completed distinguishes a full run from an early stop.
type Session struct {
	ID        string     `json:"id"`
	TodoID    string     `json:"todoId,omitempty"`
	Minutes   int        `json:"minutes"`
	DND       bool       `json:"dnd"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Completed bool       `json:"completed"`
}

// StartInput carries the caller-supplied fields for a new session.
type StartInput struct {
	TodoID  string
	Minutes int
	DND     bool
}

// ErrNoActiveSession is returned by Stop and Complete when nothing runs.
var ErrNoActiveSession = errors.New("focus: no active session")

// Tracker owns the single active session and the persisted history.
type Tracker struct {
	mu     sync.Mutex
	kv     storage.Store
	log    *slog.Logger
	now    func() time.Time
	active *Session
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(kv storage.Store, opts ...Option) *Tracker {
	t := &Tracker{kv: kv, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a session, stopping any running one first (the original
// behavior of tapping start while a timer runs). Minutes are clamped.
func (t *Tracker) Start(in StartInput) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		if _, err := t.finishLocked(false); err != nil {
			return Session{}, err
		}
	}

	now := t.now()
	s := &Session{
		ID:        strconv.FormatInt(now.UnixNano(), 10),
		TodoID:    in.TodoID,
		Minutes:   ClampMinutes(in.Minutes),
		DND:       in.DND,
		StartedAt: now,
	}
	t.active = s
	return *s, nil
}

// Active returns a copy of the running session, or nil.
func (t *Tracker) Active() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	s := *t.active
	return &s
}

// Running reports whether a session is in progress. The capture queue
// uses this as its hold gate.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil
}

// Remaining returns the time left on the active session, zero when the
// session has run out or nothing is active.
func (t *Tracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return 0
	}
	deadline := t.active.StartedAt.Add(time.Duration(t.active.Minutes) * time.Minute)
	left := deadline.Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}

// Stop ends the active session early and records it as not completed.
func (t *Tracker) Stop() (Session, error) {
	return t.finish(false)
}

// Complete ends the active session as fully run.
func (t *Tracker) Complete() (Session, error) {
	return t.finish(true)
}

func (t *Tracker) finish(completed bool) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return Session{}, ErrNoActiveSession
	}
	return t.finishLocked(completed)
}

func (t *Tracker) finishLocked(completed bool) (Session, error) {
	now := t.now()
	s := t.active
	s.EndedAt = &now
	s.Completed = completed

	history := t.historyLocked()
	history = append(history, *s)
	if err := t.saveLocked(history); err != nil {
		return Session{}, err
	}
	t.active = nil
	return *s, nil
}

// History returns all finished sessions, oldest first. Missing or
// corrupt history degrades to empty.
func (t *Tracker) History() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.historyLocked()
}

func (t *Tracker) historyLocked() []Session {
	data, err := t.kv.Get(storageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNoKey) {
			t.log.Warn("could not read focus history, starting empty", "err", err)
		}
		return nil
	}
	sessions, err := decodeSessions(data)
	if err != nil {
		t.log.Warn("focus history is corrupt, starting empty", "err", err)
		return nil
	}
	return sessions
}

func (t *Tracker) saveLocked(sessions []Session) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return fmt.Errorf("focus: encode history: %w", err)
	}
	if err := t.kv.Put(storageKey, data); err != nil {
		return fmt.Errorf("focus: persist history: %w", err)
	}
	return nil
}

// Streak counts consecutive calendar days with at least one completed
// session, walking back from today. A day without a completed session
// breaks the streak; today itself may still be empty without breaking
// yesterday's run.
func (t *Tracker) Streak() int {
	t.mu.Lock()
	history := t.historyLocked()
	now := t.now()
	t.mu.Unlock()

	days := make(map[string]bool)
	for _, s := range history {
		if s.Completed {
			days[s.StartedAt.Format("2006-01-02")] = true
		}
	}

	streak := 0
	day := now
	if !days[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
	}
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
