package leaf

import (
	"net"

	"github.com/rsjudka/overlay/internal/wire"
)

// Search issues a NodeSearch request for filename over sess, the
// leaf's established link to its super-peer. This backs the "s"
// command.
func Search(sess *Session, filename string) ([]int32, error) {
	var ids []int32
	err := sess.Do(func(conn net.Conn) error {
		if err := wire.WriteByte(conn, wire.ReqSearch); err != nil {
			return err
		}
		if err := wire.WriteFilename(conn, filename); err != nil {
			return err
		}
		got, err := wire.ReadIDList(conn)
		if err != nil {
			return err
		}
		ids = got
		return nil
	})
	return ids, err
}
