package leaf

import (
	"net"

	"github.com/rsjudka/overlay/internal/wire"
)

// Inspect forwards one of the "l"/"m"/"d" inspector commands to
// the super-peer over sess and returns its free-text report.
func Inspect(sess *Session, reqType byte) (string, error) {
	var report string
	err := sess.Do(func(conn net.Conn) error {
		if err := wire.WriteByte(conn, reqType); err != nil {
			return err
		}
		got, err := wire.ReadReport(conn)
		if err != nil {
			return err
		}
		report = got
		return nil
	})
	return report, err
}
