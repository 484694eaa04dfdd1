package consistency

import (
	"context"

	"github.com/rsjudka/overlay/internal/messageid"
)

// pullOriginScheme implements PULL-N: the super-peer takes no part in
// consistency at all. Leaves poll their cached files' origins directly;
// see internal/leaf/poll.go.
type pullOriginScheme struct{}

func (p *pullOriginScheme) Method() Method { return PullOrigin }

func (p *pullOriginScheme) Start(context.Context) func() {
	return func() {}
}

func (p *pullOriginScheme) OnOriginModified(context.Context, int32, string, int64) {}

func (p *pullOriginScheme) HandleBroadcast(context.Context, messageid.ID, int32, int32, string, int64) {
}
