// Package messageid implements the duplicate-suppression store used by
// the controlled flood: a map of (origin, sequence) pairs to the time
// each was first seen, aged out on a fixed retention window. A
// mutex-guarded map driven by a single background ticker, with narrow
// methods instead of a leaked map.
package messageid

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Retention is how long a message id is remembered before it is aged
// out, per spec: a reply path has at most ~60s to land.
const Retention = 60 * time.Second

// SweepInterval is how often the background aging task wakes up.
const SweepInterval = 60 * time.Second

// ID identifies a single flood message.
type ID struct {
	Origin   int32
	Sequence int32
}

// Store tracks message ids seen by one super-peer. Zero value is not
// usable; construct with New.
type Store struct {
	mu    sync.Mutex
	seen  map[ID]time.Time
	log   *log.Entry
	now   func() time.Time
	close chan struct{}
	once  sync.Once
}

// New constructs a Store and starts its background aging goroutine.
func New(logger *log.Entry) *Store {
	s := &Store{
		seen:  make(map[ID]time.Time),
		log:   logger,
		now:   time.Now,
		close: make(chan struct{}),
	}
	go s.ageLoop()
	return s
}

// SeenOrRecord reports whether id was already present in the store. If
// it was not present, it is recorded with the current time and false is
// returned (i.e. the caller should process the message). If it was
// already present, true is returned and the caller must drop the
// message without reprocessing it.
func (s *Store) SeenOrRecord(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = s.now()
	return false
}

// Has reports whether id is currently retained, without recording it.
// Used by callers that want to distinguish a fresh message from a
// duplicate for metrics purposes before invoking SeenOrRecord.
func (s *Store) Has(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Count returns the number of message ids currently retained, for the
// "m" inspector command and metrics export.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Snapshot returns a copy of the ids currently retained, for the "m"
// inspector command.
func (s *Store) Snapshot() []ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ID, 0, len(s.seen))
	for id := range s.seen {
		out = append(out, id)
	}
	return out
}

// Close stops the background aging goroutine.
func (s *Store) Close() {
	s.once.Do(func() { close(s.close) })
}

func (s *Store) ageLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.close:
			return
		}
	}
}

func (s *Store) evictExpired() {
	cutoff := s.now().Add(-Retention)

	s.mu.Lock()
	evicted := 0
	for id, seen := range s.seen {
		if seen.Before(cutoff) {
			delete(s.seen, id)
			evicted++
		}
	}
	remaining := len(s.seen)
	s.mu.Unlock()

	if evicted > 0 && s.log != nil {
		s.log.WithFields(log.Fields{
			"evicted":   evicted,
			"remaining": remaining,
		}).Debug("aged out message ids")
	}
}
