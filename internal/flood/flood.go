// Package flood implements the controlled, duplicate-suppressed
// broadcast that Query, Invalidate, and Compare messages all share: look
// up the message id, apply a local effect if it hasn't been seen, and
// -- while TTL remains -- fan out to every neighbor in parallel,
// collecting whatever they return. The fan-out uses golang.org/x/sync's
// errgroup to dispatch concurrent work across a bounded-TTL neighbor
// graph.
package flood

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rsjudka/overlay/internal/messageid"
)

// DialTimeout bounds a single neighbor dial+round-trip so one
// unreachable peer cannot hold up a query past the message-id retention
// window.
const DialTimeout = 5 * time.Second

// Neighbor identifies one super-peer adjacent in the peer graph.
type Neighbor struct {
	ID   int32
	Addr string
}

// ForwardFunc dials a neighbor, sends the flood message at the given
// (already decremented) ttl, and returns whatever ids that neighbor's
// subtree reports back.
type ForwardFunc func(ctx context.Context, n Neighbor, ttl int32) ([]int32, error)

// Engine drives the controlled flood for one super-peer.
type Engine struct {
	originID  int32
	neighbors []Neighbor
	ids       *messageid.Store
	seq       int32
	log       *log.Entry
}

// New constructs an Engine. Neighbor order is shuffled once at
// construction: duplicate suppression makes visitation order
// immaterial for correctness.
func New(originID int32, neighbors []Neighbor, ids *messageid.Store, logger *log.Entry) *Engine {
	shuffled := make([]Neighbor, len(neighbors))
	copy(shuffled, neighbors)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	return &Engine{
		originID:  originID,
		neighbors: shuffled,
		ids:       ids,
		log:       logger,
	}
}

// OriginID returns the super-peer id that originates new message ids
// from this engine.
func (e *Engine) OriginID() int32 {
	return e.originID
}

// NextSequence allocates a fresh sequence number for a message this
// super-peer originates.
func (e *Engine) NextSequence() int32 {
	return atomic.AddInt32(&e.seq, 1)
}

// Neighbors returns the (shuffled, fixed) neighbor list.
func (e *Engine) Neighbors() []Neighbor {
	out := make([]Neighbor, len(e.neighbors))
	copy(out, e.neighbors)
	return out
}

// Dispatch realizes the shared semantics of Query/Invalidate/Compare: on
// a duplicate id, do nothing and return nil. Otherwise record the id,
// run the local effect, and -- if ttl > 0 -- forward to every neighbor
// in parallel with ttl-1, collecting their results alongside the local
// ones.
//
// local is always invoked exactly once per distinct id, never on a
// duplicate; it performs whatever local side effect the caller needs
// (an index lookup for Query, a local invalidation for
// Invalidate/Compare) and returns any ids to report back to the sender.
func (e *Engine) Dispatch(ctx context.Context, id messageid.ID, ttl int32, local func() []int32, forward ForwardFunc) []int32 {
	if e.ids.SeenOrRecord(id) {
		return nil
	}

	results := local()

	if ttl <= 0 || len(e.neighbors) == 0 {
		return results
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range e.neighbors {
		n := n
		g.Go(func() error {
			dialCtx, cancel := context.WithTimeout(gctx, DialTimeout)
			defer cancel()

			hits, err := forward(dialCtx, n, ttl-1)
			if err != nil {
				if e.log != nil {
					e.log.WithError(err).WithField("neighbor", n.ID).Debug("flood forward failed")
				}
				return nil
			}
			mu.Lock()
			results = append(results, hits...)
			mu.Unlock()
			return nil
		})
	}
	// errors from individual neighbors are already logged and swallowed
	// above; Wait only propagates a context cancellation, which callers
	// are not expected to trigger mid-flood.
	_ = g.Wait()

	return results
}
