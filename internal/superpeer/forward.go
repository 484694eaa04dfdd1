package superpeer

import (
	"context"
	"fmt"

	"github.com/rsjudka/overlay/internal/consistency"
	"github.com/rsjudka/overlay/internal/flood"
	"github.com/rsjudka/overlay/internal/messageid"
	"github.com/rsjudka/overlay/internal/wire"
)

// forwardQuery builds the flood.ForwardFunc used to forward one Query
// message (identified by id, carrying filename) to a neighbor.
func (s *Server) forwardQuery(id messageid.ID, filename string) flood.ForwardFunc {
	return func(ctx context.Context, n flood.Neighbor, ttl int32) ([]int32, error) {
		conn, err := s.dialer.DialContext(ctx, "tcp", n.Addr)
		if err != nil {
			return nil, fmt.Errorf("superpeer: dial neighbor %d: %w", n.ID, err)
		}
		defer conn.Close()

		if err := wire.WriteByte(conn, wire.RolePeer); err != nil {
			return nil, err
		}
		if err := wire.WriteByte(conn, wire.ReqQuery); err != nil {
			return nil, err
		}
		if err := wire.WriteInt32(conn, ttl); err != nil {
			return nil, err
		}
		if err := wire.WriteInt32(conn, id.Origin); err != nil {
			return nil, err
		}
		if err := wire.WriteInt32(conn, id.Sequence); err != nil {
			return nil, err
		}
		if err := wire.WriteFilename(conn, filename); err != nil {
			return nil, err
		}
		if s.Counters != nil {
			s.Counters.MessagesForwarded.Inc()
		}
		return wire.ReadIDList(conn)
	}
}

// forwardBroadcast returns a consistency.BroadcastForwardFunc that
// forwards an Invalidate or Compare message (reqType selects which) to
// a neighbor, carrying the broadcast's id/origin/filename/version.
// Invalidate and Compare share an identical wire layout; reqType is the
// only difference the receiving super-peer needs to dispatch correctly.
func (s *Server) forwardBroadcast(reqType byte) consistency.BroadcastForwardFunc {
	return func(id messageid.ID, originID int32, filename string, version int64) flood.ForwardFunc {
		return func(ctx context.Context, n flood.Neighbor, ttl int32) ([]int32, error) {
			conn, err := s.dialer.DialContext(ctx, "tcp", n.Addr)
			if err != nil {
				return nil, fmt.Errorf("superpeer: dial neighbor %d: %w", n.ID, err)
			}
			defer conn.Close()

			if err := wire.WriteByte(conn, wire.RolePeer); err != nil {
				return nil, err
			}
			if err := wire.WriteByte(conn, reqType); err != nil {
				return nil, err
			}
			if err := wire.WriteInt32(conn, ttl); err != nil {
				return nil, err
			}
			if err := wire.WriteInt32(conn, id.Origin); err != nil {
				return nil, err
			}
			if err := wire.WriteInt32(conn, id.Sequence); err != nil {
				return nil, err
			}
			if err := wire.WriteFilename(conn, filename); err != nil {
				return nil, err
			}
			if err := wire.WriteInt64(conn, version); err != nil {
				return nil, err
			}
			if s.Counters != nil {
				s.Counters.MessagesForwarded.Inc()
			}
			// Invalidate/Compare carry no id-list result; the single ack
			// byte just confirms the dialog completed.
			if _, err := wire.ReadByte(conn); err != nil {
				return nil, err
			}
			return nil, nil
		}
	}
}

// notifyLeaf opens a short-lived invalidate link to leafID and sends
// the new version of an invalidated origin file, for PUSH and PULL-P.
func (s *Server) notifyLeaf(ctx context.Context, leafID int32, originID int32, filename string, version int64) error {
	addr, ok := s.LeafAddr[leafID]
	if !ok {
		return fmt.Errorf("superpeer: no known address for leaf %d", leafID)
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("superpeer: dial leaf %d: %w", leafID, err)
	}
	defer conn.Close()

	if err := wire.WriteByte(conn, wire.RolePeer); err != nil {
		return err
	}
	if err := wire.WriteInt32(conn, originID); err != nil {
		return err
	}
	if err := wire.WriteFilename(conn, filename); err != nil {
		return err
	}
	if err := wire.WriteInt64(conn, version); err != nil {
		return err
	}
	if s.Counters != nil {
		s.Counters.InvalidationsSent.Inc()
	}
	return nil
}
