package monitor

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrDuplicateFingerprint means the payload is already being watched;
	// re-registration is rejected, not merged.
	ErrDuplicateFingerprint = errors.New("monitor: fingerprint already registered")

	// ErrNotMonitored means the fingerprint is unknown to the registry.
	ErrNotMonitored = errors.New("monitor: fingerprint not monitored")

	// ErrCheckInFlight means a status check for this fingerprint is already
	// running; at most one check is in flight per fingerprint.
	ErrCheckInFlight = errors.New("monitor: check already in flight")
)

// Registry owns every watched payment. All access goes through its lock; the
// per-fingerprint in-flight set serializes a periodic tick against a
// force-check on the same payment.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	sessions map[string][]string // fingerprints per session, insertion order
	inFlight map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		sessions: make(map[string][]string),
		inFlight: make(map[string]struct{}),
	}
}

// Register starts watching a fresh payload. Status and counters are reset
// regardless of what the seed carries.
func (r *Registry) Register(e Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.Fingerprint]; ok {
		return nil, ErrDuplicateFingerprint
	}
	e.Status = StatusMonitoring
	e.CheckCount = 0
	e.LastCheckAt = time.Time{}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	stored := e
	r.entries[e.Fingerprint] = &stored
	r.sessions[e.SessionID] = append(r.sessions[e.SessionID], e.Fingerprint)

	out := stored
	return &out, nil
}

// Unregister stops watching a fingerprint. Removing an unknown fingerprint
// is a no-op.
func (r *Registry) Unregister(fingerprint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(fingerprint)
}

func (r *Registry) removeLocked(fingerprint string) {
	e, ok := r.entries[fingerprint]
	if !ok {
		return
	}
	delete(r.entries, fingerprint)

	fps := r.sessions[e.SessionID]
	for i, fp := range fps {
		if fp == fingerprint {
			fps = append(fps[:i], fps[i+1:]...)
			break
		}
	}
	if len(fps) == 0 {
		delete(r.sessions, e.SessionID)
	} else {
		r.sessions[e.SessionID] = fps
	}
}

// Get returns a snapshot of one entry.
func (r *Registry) Get(fingerprint string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[fingerprint]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ListBySession returns a session's entries in registration order.
func (r *Registry) ListBySession(sessionID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fps := r.sessions[sessionID]
	out := make([]Entry, 0, len(fps))
	for _, fp := range fps {
		if e, ok := r.entries[fp]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// ListAll returns a snapshot of every watched entry.
func (r *Registry) ListAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

// Stats are the live aggregates exposed by the facade. Resolved entries are
// evicted in the same transition, so Paid only ever reflects the transient
// window inside a tick; historical totals live in the ledger.
type Stats struct {
	Sessions   int `json:"sessions"`
	Active     int `json:"active"`
	Paid       int `json:"paid"`
	Monitoring int `json:"monitoring"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		Sessions: len(r.sessions),
		Active:   len(r.entries),
	}
	for _, e := range r.entries {
		switch e.Status {
		case StatusPaid:
			s.Paid++
		case StatusMonitoring:
			s.Monitoring++
		}
	}
	return s
}

// beginCheck reserves the per-fingerprint check slot and returns a snapshot
// to run the check against. Callers must endCheck when done.
func (r *Registry) beginCheck(fingerprint string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[fingerprint]
	if !ok {
		return Entry{}, ErrNotMonitored
	}
	if _, busy := r.inFlight[fingerprint]; busy {
		return Entry{}, ErrCheckInFlight
	}
	r.inFlight[fingerprint] = struct{}{}
	return *e, nil
}

func (r *Registry) endCheck(fingerprint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, fingerprint)
}

// settle marks a payment PAID, counting the check that confirmed it, and
// removes it. Must only be called while holding the in-flight slot.
func (r *Registry) settle(fingerprint string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[fingerprint]
	if !ok {
		return Entry{}, false
	}
	e.CheckCount++
	e.LastCheckAt = time.Now()
	e.Status = StatusPaid
	out := *e
	r.removeLocked(fingerprint)
	return out, true
}

// expire marks a payment EXPIRED and removes it. No check is counted: expiry
// happens instead of a remote lookup.
func (r *Registry) expire(fingerprint string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[fingerprint]
	if !ok {
		return Entry{}, false
	}
	e.Status = StatusExpired
	out := *e
	r.removeLocked(fingerprint)
	return out, true
}

// rearm records an inconclusive check and keeps the entry watched.
func (r *Registry) rearm(fingerprint string, at time.Time) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[fingerprint]
	if !ok {
		return Entry{}, false
	}
	e.CheckCount++
	e.LastCheckAt = at
	return *e, true
}
