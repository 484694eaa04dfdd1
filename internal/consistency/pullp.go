package consistency

import (
	"context"
	"time"

	"github.com/rsjudka/overlay/internal/messageid"
	"github.com/rsjudka/overlay/internal/pending"
)

// pullPeerScheme implements PULL-P: origin modifications are queued and
// drained by a TTR-interval background task, which then behaves exactly
// like PUSH's broadcast (local leaf invalidation + peer-graph flood),
// just batched and delayed instead of immediate.
type pullPeerScheme struct {
	deps Dependencies
}

func (p *pullPeerScheme) Method() Method { return PullPeer }

func (p *pullPeerScheme) OnOriginModified(_ context.Context, originID int32, filename string, version int64) {
	p.deps.Pending.Append(pending.Modification{
		Filename: filename,
		OriginID: originID,
		Version:  version,
	})
}

func (p *pullPeerScheme) HandleBroadcast(ctx context.Context, id messageid.ID, ttl int32, originID int32, filename string, version int64) {
	p.broadcast(ctx, id, ttl, originID, filename, version)
}

func (p *pullPeerScheme) broadcast(ctx context.Context, id messageid.ID, ttl int32, originID int32, filename string, version int64) {
	p.deps.Flood.Dispatch(ctx, id, ttl, func() []int32 {
		notifyAttachedLeaves(ctx, p.deps, originID, filename, version)
		return nil
	}, p.deps.ForwardCompare(id, originID, filename, version))
}

// Start launches the TTR-interval drain loop: every TTR seconds, every
// pending modification is locally invalidated and broadcast as a
// Compare message, then the queue is cleared.
func (p *pullPeerScheme) Start(ctx context.Context) func() {
	stopCh := make(chan struct{})
	ticker := time.NewTicker(p.deps.TTR)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.drain(ctx)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { close(stopCh) }
}

func (p *pullPeerScheme) drain(ctx context.Context) {
	mods := p.deps.Pending.Drain()
	for _, m := range mods {
		id := messageid.ID{Origin: p.deps.Flood.OriginID(), Sequence: p.deps.Flood.NextSequence()}
		p.broadcast(ctx, id, p.deps.TTL, m.OriginID, m.Filename, m.Version)
	}
}
