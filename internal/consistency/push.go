package consistency

import (
	"context"

	"github.com/rsjudka/overlay/internal/messageid"
)

// pushScheme implements PUSH: every origin modification is immediately
// propagated to attached leaves and flooded to the peer graph.
type pushScheme struct {
	deps Dependencies
}

func (p *pushScheme) Method() Method { return Push }

func (p *pushScheme) Start(context.Context) func() {
	return func() {}
}

func (p *pushScheme) OnOriginModified(ctx context.Context, originID int32, filename string, version int64) {
	id := messageid.ID{Origin: p.deps.Flood.OriginID(), Sequence: p.deps.Flood.NextSequence()}
	p.broadcast(ctx, id, p.deps.TTL, originID, filename, version)
}

func (p *pushScheme) HandleBroadcast(ctx context.Context, id messageid.ID, ttl int32, originID int32, filename string, version int64) {
	p.broadcast(ctx, id, ttl, originID, filename, version)
}

func (p *pushScheme) broadcast(ctx context.Context, id messageid.ID, ttl int32, originID int32, filename string, version int64) {
	p.deps.Flood.Dispatch(ctx, id, ttl, func() []int32 {
		notifyAttachedLeaves(ctx, p.deps, originID, filename, version)
		return nil
	}, p.deps.ForwardInvalidate(id, originID, filename, version))
}
