package superpeer

import (
	"context"
	"io"
	"net"

	"github.com/rsjudka/overlay/internal/messageid"
	"github.com/rsjudka/overlay/internal/wire"
)

// handlePeerDialog serves one one-shot peer-to-peer transaction: a
// single request-type byte, its fields, a response, then the connection
// closes. Peer dialogs are never reentrant, per DESIGN.md's "session
// vs. transaction" distinction.
func (s *Server) handlePeerDialog(ctx context.Context, conn net.Conn) {
	req, err := wire.ReadByte(conn)
	if err != nil {
		s.warn(err, "failed to read peer request byte")
		return
	}

	switch req {
	case wire.ReqQuery:
		s.servePeerQuery(ctx, conn)
	case wire.ReqInvalidate, wire.ReqCompare:
		s.servePeerBroadcast(ctx, conn)
	default:
		if s.Log != nil {
			s.Log.WithField("request", req).Warn("superpeer: unknown peer request byte")
		}
	}
}

func (s *Server) servePeerQuery(ctx context.Context, conn net.Conn) {
	ttl, originID, seq, filename, err := readQueryFields(conn)
	if err != nil {
		s.warn(err, "query: read fields")
		return
	}

	id := messageid.ID{Origin: originID, Sequence: seq}
	results := s.dispatchQuery(ctx, id, ttl, filename)
	if err := wire.WriteIDList(conn, results); err != nil {
		s.warn(err, "query: write result")
	}
}

func (s *Server) servePeerBroadcast(ctx context.Context, conn net.Conn) {
	ttl, originID, seq, filename, version, err := readBroadcastFields(conn)
	if err != nil {
		s.warn(err, "invalidate/compare: read fields")
		return
	}

	id := messageid.ID{Origin: originID, Sequence: seq}
	dup := s.IDs.Has(id)
	s.Scheme.HandleBroadcast(ctx, id, ttl, originID, filename, version)
	s.recordBroadcastMetric(dup)

	if err := wire.WriteByte(conn, 1); err != nil {
		s.warn(err, "invalidate/compare: write ack")
	}
}

// dispatchQuery runs NodeSearch's flood for filename, whether the query
// originates locally (a leaf's search, ttl=s.TTL, a fresh id) or arrives
// from a neighbor forwarding an in-flight flood (id/ttl as received).
func (s *Server) dispatchQuery(ctx context.Context, id messageid.ID, ttl int32, filename string) []int32 {
	dup := s.IDs.Has(id)
	results := s.Flood.Dispatch(ctx, id, ttl, func() []int32 {
		return s.Index.Lookup(filename)
	}, s.forwardQuery(id, filename))
	s.recordBroadcastMetric(dup)
	if s.Counters != nil {
		s.Counters.IndexSize.Set(float64(s.Index.Len()))
	}
	return results
}

func (s *Server) recordBroadcastMetric(dup bool) {
	if s.Counters == nil {
		return
	}
	if dup {
		s.Counters.MessagesDeduped.Inc()
	}
}

func readQueryFields(conn net.Conn) (ttl, originID, seq int32, filename string, err error) {
	if ttl, err = wire.ReadInt32(conn); err != nil {
		return
	}
	if originID, err = wire.ReadInt32(conn); err != nil {
		return
	}
	if seq, err = wire.ReadInt32(conn); err != nil {
		return
	}
	filename, err = wire.ReadFilename(conn)
	return
}

func readBroadcastFields(conn net.Conn) (ttl, originID, seq int32, filename string, version int64, err error) {
	if ttl, err = wire.ReadInt32(conn); err != nil {
		return
	}
	if originID, err = wire.ReadInt32(conn); err != nil {
		return
	}
	if seq, err = wire.ReadInt32(conn); err != nil {
		return
	}
	if filename, err = wire.ReadFilename(conn); err != nil {
		return
	}
	version, err = wire.ReadInt64(conn)
	return
}

// handleLeafSession serves a leaf's long-lived link: the leaf id is
// sent once, then a loop reads one request byte at a time until the
// leaf disconnects. Register/Deregister bursts from the registration
// tick and on-demand Search/inspector requests from the interactive
// client all multiplex over this one reentrant session, in the order
// the leaf sent them, in the order sent.
func (s *Server) handleLeafSession(ctx context.Context, conn net.Conn) {
	leafID, err := wire.ReadInt32(conn)
	if err != nil {
		s.warn(err, "leaf session: read leaf id")
		return
	}
	defer s.Index.Cleanup(leafID)

	for {
		req, err := wire.ReadByte(conn)
		if err != nil {
			if err != io.EOF && s.Log != nil {
				s.Log.WithError(err).WithField("leaf", leafID).Debug("leaf session: closed")
			}
			return
		}

		switch req {
		case wire.ReqRegister:
			s.serveRegister(ctx, conn, leafID)
		case wire.ReqDeregister:
			s.serveDeregister(ctx, conn, leafID)
		case wire.ReqSearch:
			s.serveSearch(ctx, conn, leafID)
		case wire.ReqInspectIndex:
			s.serveInspectIndex(conn)
		case wire.ReqInspectMessageIDs:
			s.serveInspectMessageIDs(conn)
		case wire.ReqInspectPending:
			s.serveInspectPending(conn)
		default:
			if s.Log != nil {
				s.Log.WithField("request", req).Warn("superpeer: unknown leaf request byte")
			}
			return
		}
	}
}

func (s *Server) serveRegister(_ context.Context, conn net.Conn, leafID int32) {
	filename, err := wire.ReadFilename(conn)
	if err != nil {
		s.warn(err, "register: read filename")
		return
	}
	if _, err := wire.ReadInt64(conn); err != nil {
		s.warn(err, "register: read version")
		return
	}
	s.Index.Register(leafID, filename)
	if s.Counters != nil {
		s.Counters.IndexSize.Set(float64(s.Index.Len()))
	}
}

func (s *Server) serveDeregister(ctx context.Context, conn net.Conn, leafID int32) {
	filename, err := wire.ReadFilename(conn)
	if err != nil {
		s.warn(err, "deregister: read filename")
		return
	}
	version, err := wire.ReadInt64(conn)
	if err != nil {
		s.warn(err, "deregister: read version")
		return
	}

	s.Index.Deregister(leafID, filename)
	if s.Counters != nil {
		s.Counters.IndexSize.Set(float64(s.Index.Len()))
	}

	if version != wire.NoVersion {
		s.Scheme.OnOriginModified(ctx, leafID, filename, version)
		if s.Counters != nil {
			s.Counters.PendingQueueDepth.Set(float64(s.Pending.Len()))
		}
	}
}

func (s *Server) serveSearch(ctx context.Context, conn net.Conn, _ int32) {
	filename, err := wire.ReadFilename(conn)
	if err != nil {
		s.warn(err, "search: read filename")
		return
	}

	id := messageid.ID{Origin: s.ID, Sequence: s.Flood.NextSequence()}
	results := s.dispatchQuery(ctx, id, s.TTL, filename)
	if err := wire.WriteIDList(conn, results); err != nil {
		s.warn(err, "search: write result")
	}
}

func (s *Server) serveInspectIndex(conn net.Conn) {
	if err := wire.WriteReport(conn, formatIndex(s.Index.Snapshot())); err != nil {
		s.warn(err, "inspect index: write report")
	}
}

func (s *Server) serveInspectMessageIDs(conn net.Conn) {
	if err := wire.WriteReport(conn, formatMessageIDs(s.IDs.Snapshot())); err != nil {
		s.warn(err, "inspect message ids: write report")
	}
}

func (s *Server) serveInspectPending(conn net.Conn) {
	if err := wire.WriteReport(conn, formatPending(s.Pending.Snapshot())); err != nil {
		s.warn(err, "inspect pending: write report")
	}
}
