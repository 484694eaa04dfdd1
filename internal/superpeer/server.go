// Package superpeer wires the file index, the controlled flood engine,
// and the selected consistency scheme into the super-peer process: the
// accept loop that dispatches inbound leaf and peer dialogs, and the
// outbound dials that forward a flood message or push an invalidate to
// an attached leaf. The accept loop follows the standard
// net.Listen + go handle(conn) pattern, one worker per connection;
// static neighbor/leaf addresses are resolved from a parsed
// config.Config once at construction time.
package superpeer

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rsjudka/overlay/internal/config"
	"github.com/rsjudka/overlay/internal/consistency"
	"github.com/rsjudka/overlay/internal/fileindex"
	"github.com/rsjudka/overlay/internal/flood"
	"github.com/rsjudka/overlay/internal/messageid"
	"github.com/rsjudka/overlay/internal/metrics"
	"github.com/rsjudka/overlay/internal/pending"
	"github.com/rsjudka/overlay/internal/wire"
)

// Server is one super-peer process.
type Server struct {
	ID       int32
	Index    *fileindex.Index
	Flood    *flood.Engine
	Scheme   consistency.Scheme
	IDs      *messageid.Store
	Pending  *pending.Queue
	Counters *metrics.Counters
	TTL      int32
	LeafAddr map[int32]string
	Log      *log.Entry

	dialer net.Dialer
}

// New builds a Server for super-peer id from cfg. Neighbor and leaf
// addresses are resolved once, here, against cfg's static membership
// lists; the topology never changes at runtime.
func New(id int32, cfg *config.Config, counters *metrics.Counters, logger *log.Entry) (*Server, error) {
	self, ok := cfg.SuperPeers[id]
	if !ok {
		return nil, fmt.Errorf("superpeer: id %d not present in configuration", id)
	}

	leafAddr := make(map[int32]string, len(self.LeafPorts))
	for _, port := range self.LeafPorts {
		for _, lr := range cfg.Leaves {
			if lr.Port == port {
				leafAddr[lr.ID] = addrForPort(port)
			}
		}
	}

	var neighbors []flood.Neighbor
	for _, port := range self.PeerPorts {
		for peerID, pr := range cfg.SuperPeers {
			if pr.Port == port {
				neighbors = append(neighbors, flood.Neighbor{ID: peerID, Addr: addrForPort(port)})
			}
		}
	}

	ids := messageid.New(logger)

	s := &Server{
		ID:       id,
		Index:    fileindex.New(),
		IDs:      ids,
		Pending:  pending.New(),
		Counters: counters,
		TTL:      cfg.TTL,
		LeafAddr: leafAddr,
		Log:      logger,
	}
	s.Flood = flood.New(id, neighbors, ids, logger)
	s.Scheme = consistency.New(cfg.Method, consistency.Dependencies{
		Index:             s.Index,
		Flood:             s.Flood,
		Pending:           s.Pending,
		NotifyLeaf:        s.notifyLeaf,
		ForwardInvalidate: s.forwardBroadcast(wire.ReqInvalidate),
		ForwardCompare:    s.forwardBroadcast(wire.ReqCompare),
		TTL:               cfg.TTL,
		TTR:               cfg.TTR,
		Logger:            logger,
	})
	return s, nil
}

func addrForPort(port int32) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
}

// Start launches the consistency scheme's background loop (only PULL-P
// runs one; PUSH and PULL-N return a no-op stop func).
func (s *Server) Start(ctx context.Context) (stop func()) {
	return s.Scheme.Start(ctx)
}

// Close stops the message-id aging goroutine.
func (s *Server) Close() {
	s.IDs.Close()
}

// Serve accepts connections on ln until Accept returns an error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	if s.Log != nil {
		s.Log.WithField("conn_id", connID).WithField("remote", conn.RemoteAddr()).Debug("superpeer: connection accepted")
		defer s.Log.WithField("conn_id", connID).Debug("superpeer: connection closed")
	}

	role, err := wire.ReadByte(conn)
	if err != nil {
		s.warn(err, "failed to read role byte")
		return
	}

	switch role {
	case wire.RolePeer:
		s.handlePeerDialog(ctx, conn)
	case wire.RoleLeaf:
		s.handleLeafSession(ctx, conn)
	default:
		if s.Log != nil {
			s.Log.WithField("role", role).Warn("superpeer: unknown role byte")
		}
	}
}

func (s *Server) warn(err error, msg string) {
	if s.Log != nil {
		s.Log.WithError(err).Warn("superpeer: " + msg)
	}
}
