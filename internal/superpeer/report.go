package superpeer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rsjudka/overlay/internal/messageid"
	"github.com/rsjudka/overlay/internal/pending"
)

// formatIndex renders a FileIndex snapshot as the free-text report sent
// back for the "l" inspector command.
func formatIndex(snap map[string][]int32) string {
	if len(snap) == 0 {
		return "(empty)"
	}
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		ids := append([]int32(nil), snap[name]...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		fmt.Fprintf(&b, "%s: %v\n", name, ids)
	}
	return b.String()
}

// formatMessageIDs renders a MessageId store snapshot for the "m"
// inspector command.
func formatMessageIDs(ids []messageid.ID) string {
	if len(ids) == 0 {
		return "(empty)"
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Origin != ids[j].Origin {
			return ids[i].Origin < ids[j].Origin
		}
		return ids[i].Sequence < ids[j].Sequence
	})

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "(%d, %d)\n", id.Origin, id.Sequence)
	}
	return b.String()
}

// formatPending renders the PendingModifications queue for the "d"
// inspector command (PULL-P only; empty for PUSH/PULL-N).
func formatPending(mods []pending.Modification) string {
	if len(mods) == 0 {
		return "(empty)"
	}
	var b strings.Builder
	for _, m := range mods {
		fmt.Fprintf(&b, "%s origin=%d version=%d\n", m.Filename, m.OriginID, m.Version)
	}
	return b.String()
}
