package alerting

import (
	"context"
	"sync"
	"time"
)

// Key identifies one alert condition: one target, one alert class, one item
// (mount point, tablespace name, backup job id, ...). Condition keys are
// independent; no cross-key locking exists anywhere in this package.
type Key struct {
	TargetID  string
	AlertType string
	Item      string
}

func (k Key) String() string { return k.TargetID + "|" + k.AlertType + "|" + k.Item }

const (
	statusOK    = "ok"
	statusAlert = "alert"
)

// DebounceStore applies the per-condition notification state machine as one
// atomic read-modify-write. Transition returns true when a notification
// should be sent for this evaluation:
//
//	absent -> alert            send, record created
//	absent -> ok               no record (bounded growth)
//	ok     -> alert            send immediately, window not consulted
//	alert  -> alert, < window  suppressed, record untouched
//	alert  -> alert, >= window send follow-up, window resets
//	alert  -> ok               silent clear, record flips to ok/now
//	ok     -> ok               timestamp refreshed so purge keeps the entry
type DebounceStore interface {
	Transition(ctx context.Context, key Key, active bool, window time.Duration, now time.Time) (bool, error)
	// PurgeStale drops entries not touched since the cutoff. Backends with
	// native expiry may implement this as a no-op.
	PurgeStale(ctx context.Context, cutoff time.Time) (int, error)
}

type debounceEntry struct {
	transitionAt time.Time
	status       string
}

// MemoryDebounceStore is the in-process DebounceStore. A single mutex guards
// the map; transitions are cheap enough that per-key locking buys nothing.
type MemoryDebounceStore struct {
	mu      sync.Mutex
	entries map[string]debounceEntry
}

func NewMemoryDebounceStore() *MemoryDebounceStore {
	return &MemoryDebounceStore{entries: map[string]debounceEntry{}}
}

func (m *MemoryDebounceStore) Transition(ctx context.Context, key Key, active bool, window time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	e, exists := m.entries[k]

	if !exists {
		if active {
			m.entries[k] = debounceEntry{transitionAt: now, status: statusAlert}
			return true, nil
		}
		return false, nil
	}

	if active {
		if e.status == statusOK {
			m.entries[k] = debounceEntry{transitionAt: now, status: statusAlert}
			return true, nil
		}
		if now.Sub(e.transitionAt) >= window {
			m.entries[k] = debounceEntry{transitionAt: now, status: statusAlert}
			return true, nil
		}
		return false, nil
	}

	// condition cleared or still fine: never notify, keep the entry fresh
	m.entries[k] = debounceEntry{transitionAt: now, status: statusOK}
	return false, nil
}

func (m *MemoryDebounceStore) PurgeStale(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.transitionAt.Before(cutoff) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// entryForTesting exposes a copy of one entry to package tests.
func (m *MemoryDebounceStore) entryForTesting(key Key) (time.Time, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key.String()]
	return e.transitionAt, e.status, ok
}
