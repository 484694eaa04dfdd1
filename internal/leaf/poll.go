package leaf

import (
	"context"
	"net"

	"github.com/rsjudka/overlay/internal/wire"
)

// PollOrigin opens a one-shot poll link to addr and asks whether
// (filename, version) still matches a LocalFile there. This is the
// PULL-N poll.
func PollOrigin(ctx context.Context, addr, filename string, version int64) (bool, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := wire.WriteByte(conn, wire.RoleLeaf); err != nil {
		return false, err
	}
	if err := wire.WriteByte(conn, wire.ReqPoll); err != nil {
		return false, err
	}
	if err := wire.WriteFilename(conn, filename); err != nil {
		return false, err
	}
	if err := wire.WriteInt64(conn, version); err != nil {
		return false, err
	}
	return wire.ReadBool(conn)
}

// ServePoll answers an inbound poll request against local. The check
// treats version equality strictly.
func ServePoll(conn net.Conn, local *LocalCatalog) error {
	filename, err := wire.ReadFilename(conn)
	if err != nil {
		return err
	}
	version, err := wire.ReadInt64(conn)
	if err != nil {
		return err
	}
	return wire.WriteBool(conn, local.Lookup(filename, version))
}
