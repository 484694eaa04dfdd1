package leaf

import (
	"net"
	"sync"
)

// Session wraps the leaf's single long-lived link to its super-peer.
// Registration-tick bursts (Registrar.Run) and on-demand interactive
// commands (Search, Inspect) all share this one TCP stream; Do
// serializes each request (and its response, if any) against the
// others so that bytes belonging to one logical request are never
// interleaved with another's: registration actions on one
// leaf->super-peer link are processed in the order sent.
type Session struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewSession wraps an already-established leaf->super-peer link. The
// role byte and leaf id must already have been sent on conn (see
// DialRegistration).
func NewSession(conn net.Conn) *Session {
	return &Session{conn: conn}
}

// Do runs fn with exclusive access to the session's connection.
func (s *Session) Do(fn func(net.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.conn)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
