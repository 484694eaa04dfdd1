// Package consistency implements the three interchangeable
// cache-consistency schemes a super-peer can run: PUSH, PULL-N (pull
// from origin node, passive at the super-peer), and PULL-P (pull from
// peer graph). Exactly one scheme is selected at startup from
// configuration and wired together once at construction time, rather
// than branched on per request.
package consistency

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rsjudka/overlay/internal/fileindex"
	"github.com/rsjudka/overlay/internal/flood"
	"github.com/rsjudka/overlay/internal/messageid"
	"github.com/rsjudka/overlay/internal/pending"
)

// Method selects which consistency scheme a super-peer runs.
type Method int

const (
	Push Method = iota
	PullOrigin
	PullPeer
)

// String implements fmt.Stringer for log output and the config parser's
// error messages.
func (m Method) String() string {
	switch m {
	case Push:
		return "push"
	case PullOrigin:
		return "pull-n"
	case PullPeer:
		return "pull-p"
	default:
		return "unknown"
	}
}

// NotifyLeafFunc opens a short-lived invalidate link to leafID and sends
// the new version of an invalidated origin file.
type NotifyLeafFunc func(ctx context.Context, leafID int32, originID int32, filename string, version int64) error

// BroadcastForwardFunc builds the flood.ForwardFunc that forwards one
// specific Invalidate/Compare message to a neighbor. flood.ForwardFunc
// itself only carries the neighbor and the already-decremented ttl, so
// the message's own id/origin/filename/version are bound here once per
// broadcast and closed over by the returned flood.ForwardFunc.
type BroadcastForwardFunc func(id messageid.ID, originID int32, filename string, version int64) flood.ForwardFunc

// Dependencies wires a Scheme to the rest of the super-peer process.
type Dependencies struct {
	Index             *fileindex.Index
	Flood             *flood.Engine
	Pending           *pending.Queue
	NotifyLeaf        NotifyLeafFunc
	ForwardInvalidate BroadcastForwardFunc
	ForwardCompare    BroadcastForwardFunc
	TTL               int32
	TTR               time.Duration
	Logger            *log.Entry
}

// Scheme is the super-peer side of one consistency strategy.
type Scheme interface {
	// Method reports which strategy this Scheme implements.
	Method() Method

	// OnOriginModified is invoked when a Deregister carries a version
	// other than wire.NoVersion: the origin leaf reports that one of its
	// own files changed.
	OnOriginModified(ctx context.Context, originID int32, filename string, version int64)

	// HandleBroadcast processes an inbound Invalidate or Compare message
	// forwarded by a neighbor, applying duplicate suppression, the local
	// invalidation effect, and further forwarding while ttl remains.
	HandleBroadcast(ctx context.Context, id messageid.ID, ttl int32, originID int32, filename string, version int64)

	// Start begins any background loop the scheme needs and returns a
	// func that stops it. PUSH and PULL-N return a no-op.
	Start(ctx context.Context) (stop func())
}

// New constructs the Scheme selected by method.
func New(method Method, deps Dependencies) Scheme {
	switch method {
	case Push:
		return &pushScheme{deps: deps}
	case PullOrigin:
		return &pullOriginScheme{}
	case PullPeer:
		return &pullPeerScheme{deps: deps}
	default:
		panic("consistency: unknown method")
	}
}

// notifyAttachedLeaves opens an invalidate link to every leaf other than
// originID that currently indexes filename. Shared by PUSH and PULL-P:
// both locally invalidate their attached leaves before forwarding.
func notifyAttachedLeaves(ctx context.Context, deps Dependencies, originID int32, filename string, version int64) {
	for _, leafID := range deps.Index.Lookup(filename) {
		if leafID == originID {
			continue
		}
		if err := deps.NotifyLeaf(ctx, leafID, originID, filename, version); err != nil {
			if deps.Logger != nil {
				deps.Logger.WithError(err).WithFields(log.Fields{
					"leaf":     leafID,
					"filename": filename,
				}).Warn("failed to notify leaf of invalidation")
			}
		}
	}
}
