package leaf

import (
	"net"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rsjudka/overlay/internal/wire"
)

// Server is the leaf's inbound listener, serving obtain, poll, and
// invalidate dialogs behind one accept loop, one worker per connection.
type Server struct {
	LeafID    int32
	LocalDir  string
	RemoteDir string
	Local     *LocalCatalog
	Remote    *RemoteCatalog
	Log       *log.Entry
}

// Serve accepts connections on ln until Accept returns an error,
// typically because ln was closed.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	if s.Log != nil {
		s.Log.WithField("conn_id", connID).WithField("remote", conn.RemoteAddr()).Debug("leaf: connection accepted")
		defer s.Log.WithField("conn_id", connID).Debug("leaf: connection closed")
	}

	role, err := wire.ReadByte(conn)
	if err != nil {
		s.warn(err, "failed to read role byte")
		return
	}

	switch role {
	case wire.RolePeer:
		if err := ServeInvalidate(conn, s.RemoteDir, s.Remote); err != nil {
			s.warn(err, "invalidate dialog failed")
		}
	case wire.RoleLeaf:
		s.handleLeafDialog(conn)
	default:
		if s.Log != nil {
			s.Log.WithField("role", role).Warn("leaf: unknown role byte")
		}
	}
}

func (s *Server) handleLeafDialog(conn net.Conn) {
	req, err := wire.ReadByte(conn)
	if err != nil {
		s.warn(err, "failed to read request byte")
		return
	}

	switch req {
	case wire.ReqObtain:
		if err := ServeObtain(conn, s.LocalDir, s.RemoteDir, s.Local, s.Remote, s.LeafID); err != nil {
			s.warn(err, "obtain dialog failed")
		}
	case wire.ReqPoll:
		if err := ServePoll(conn, s.Local); err != nil {
			s.warn(err, "poll dialog failed")
		}
	default:
		if s.Log != nil {
			s.Log.WithField("request", req).Warn("leaf: unknown request byte")
		}
	}
}

func (s *Server) warn(err error, msg string) {
	if s.Log != nil {
		s.Log.WithError(err).Warn("leaf: " + msg)
	}
}
