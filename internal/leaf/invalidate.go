package leaf

import (
	"net"
	"os"

	"github.com/rsjudka/overlay/internal/wire"
)

// ServeInvalidate handles an inbound invalidate push from a super-peer:
// (origin_leaf_id, filename, new_version). A match is only invalidated
// if its stored version differs from
// new_version; the cached bytes are unlinked immediately so a stale
// copy can never be served, leaving the next registration tick to send
// the deregister that erases the entry.
func ServeInvalidate(conn net.Conn, remoteDir string, remote *RemoteCatalog) error {
	originID, err := wire.ReadInt32(conn)
	if err != nil {
		return err
	}
	filename, err := wire.ReadFilename(conn)
	if err != nil {
		return err
	}
	version, err := wire.ReadInt64(conn)
	if err != nil {
		return err
	}
	if rf, ok := remote.Invalidate(originID, filename, version); ok {
		os.Remove(PathIn(remoteDir, rf.LocalName))
	}
	return nil
}
