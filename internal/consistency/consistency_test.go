package consistency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsjudka/overlay/internal/fileindex"
	"github.com/rsjudka/overlay/internal/flood"
	"github.com/rsjudka/overlay/internal/messageid"
	"github.com/rsjudka/overlay/internal/pending"
)

type notifyCall struct {
	leafID   int32
	originID int32
	filename string
	version  int64
}

func newTestDeps(t *testing.T, ttr time.Duration) (*Dependencies, *[]notifyCall, *int32) {
	t.Helper()

	ids := messageid.New(nil)
	t.Cleanup(ids.Close)

	idx := fileindex.New()
	idx.Register(1, "f.txt") // origin
	idx.Register(2, "f.txt") // cache holder

	var mu sync.Mutex
	var calls []notifyCall
	notify := func(ctx context.Context, leafID int32, originID int32, filename string, version int64) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, notifyCall{leafID, originID, filename, version})
		return nil
	}

	var forwardCount int32
	forward := func(id messageid.ID, originID int32, filename string, version int64) flood.ForwardFunc {
		return func(ctx context.Context, n flood.Neighbor, ttl int32) ([]int32, error) {
			forwardCount++
			return nil, nil
		}
	}

	deps := &Dependencies{
		Index:             idx,
		Flood:             flood.New(1, []flood.Neighbor{{ID: 2, Addr: "x"}}, ids, nil),
		Pending:           pending.New(),
		NotifyLeaf:        notify,
		ForwardInvalidate: forward,
		ForwardCompare:    forward,
		TTL:               2,
		TTR:               ttr,
	}
	return deps, &calls, &forwardCount
}

func TestPushOnOriginModifiedNotifiesOtherLeavesOnly(t *testing.T) {
	deps, calls, _ := newTestDeps(t, 0)
	s := New(Push, *deps)

	s.OnOriginModified(context.Background(), 1, "f.txt", 200)

	require.Len(t, *calls, 1)
	assert.Equal(t, int32(2), (*calls)[0].leafID)
	assert.Equal(t, int64(200), (*calls)[0].version)
}

func TestPushBroadcastsToNeighbors(t *testing.T) {
	deps, _, forwardCount := newTestDeps(t, 0)
	s := New(Push, *deps)

	s.OnOriginModified(context.Background(), 1, "f.txt", 200)

	assert.Equal(t, int32(1), *forwardCount)
}

func TestPullOriginIsPassive(t *testing.T) {
	deps, calls, forwardCount := newTestDeps(t, 0)
	s := New(PullOrigin, *deps)

	s.OnOriginModified(context.Background(), 1, "f.txt", 200)
	s.HandleBroadcast(context.Background(), messageid.ID{Origin: 9, Sequence: 1}, 2, 1, "f.txt", 200)

	assert.Empty(t, *calls)
	assert.Equal(t, int32(0), *forwardCount)
	stop := s.Start(context.Background())
	stop()
}

func TestPullPeerQueuesUntilDrain(t *testing.T) {
	deps, calls, forwardCount := newTestDeps(t, 10*time.Millisecond)
	s := New(PullPeer, *deps)

	s.OnOriginModified(context.Background(), 1, "f.txt", 200)

	assert.Empty(t, *calls, "no immediate notification before TTR drain")
	assert.Equal(t, 1, deps.Pending.Len())

	stop := s.Start(context.Background())
	defer stop()

	require.Eventually(t, func() bool {
		return len(*calls) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), *forwardCount)
	assert.Equal(t, 0, deps.Pending.Len())
}

func TestHandleBroadcastDuplicateIDIsSuppressed(t *testing.T) {
	deps, calls, forwardCount := newTestDeps(t, 0)
	s := New(Push, *deps)

	id := messageid.ID{Origin: 9, Sequence: 1}
	s.HandleBroadcast(context.Background(), id, 1, 1, "f.txt", 200)
	s.HandleBroadcast(context.Background(), id, 1, 1, "f.txt", 200)

	assert.Len(t, *calls, 1)
	assert.Equal(t, int32(1), *forwardCount)
}
