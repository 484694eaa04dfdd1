package leaf

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rsjudka/overlay/internal/consistency"
	"github.com/rsjudka/overlay/internal/wire"
)

// TickInterval is the registration tick cadence.
const TickInterval = 5 * time.Second

// DialRegistration opens the leaf's long-lived registration link to its
// super-peer, sending the role byte and leaf id once up front.
func DialRegistration(addr string, leafID int32) (net.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("leaf: dial super-peer %s: %w", addr, err)
	}
	if err := wire.WriteByte(conn, wire.RoleLeaf); err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.WriteInt32(conn, leafID); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// ResolveLeafFunc resolves a leaf id to its dialable obtain/poll address,
// for the PULL-N poller.
type ResolveLeafFunc func(leafID int32) (string, bool)

// Registrar runs the leaf's registration tick: it rescans its local
// directory, reports register/deregister actions for local and cached
// files, and drives the PULL-N poller.
type Registrar struct {
	LocalDir    string
	RemoteDir   string
	Local       *LocalCatalog
	Remote      *RemoteCatalog
	Method      consistency.Method
	TTR         time.Duration
	ResolveLeaf ResolveLeafFunc
	Log         *log.Entry
	Now         func() time.Time
}

// NewRegistrar constructs a Registrar with its defaults filled in.
func NewRegistrar(localDir, remoteDir string, local *LocalCatalog, remote *RemoteCatalog, method consistency.Method, ttr time.Duration, resolve ResolveLeafFunc, logger *log.Entry) *Registrar {
	return &Registrar{
		LocalDir:    localDir,
		RemoteDir:   remoteDir,
		Local:       local,
		Remote:      remote,
		Method:      method,
		TTR:         ttr,
		ResolveLeaf: resolve,
		Log:         logger,
		Now:         time.Now,
	}
}

// Run drives the registration tick over sess every interval until ctx
// is canceled or a write to the session's connection fails. A write
// failure aborts the link for good; the link is not auto-reconnected.
// Each tick runs under the session's lock so it never interleaves with
// an interactive Search/Inspect command sharing the same link.
func (r *Registrar) Run(ctx context.Context, sess *Session, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := sess.Do(func(conn net.Conn) error { return r.tick(ctx, conn) })
			if err != nil {
				if r.Log != nil {
					r.Log.WithError(err).Warn("leaf: registration tick aborted")
				}
				return err
			}
		}
	}
}

func (r *Registrar) tick(ctx context.Context, conn net.Conn) error {
	next, err := ScanDirectory(r.LocalDir)
	if err != nil {
		if r.Log != nil {
			r.Log.WithError(err).Warn("leaf: scan local directory failed")
		}
		next = make(map[string]LocalFile)
	}
	prev := r.Local.Replace(next)

	for filename, prevFile := range prev {
		newFile, ok := next[filename]
		switch {
		case ok && newFile.Version == prevFile.Version:
			if err := sendRegister(conn, filename); err != nil {
				return err
			}
		case ok:
			if err := sendDeregister(conn, filename, newFile.Version); err != nil {
				return err
			}
		default:
			if err := sendDeregister(conn, filename, 0); err != nil {
				return err
			}
		}
	}

	for localName, rf := range r.Remote.Snapshot() {
		if r.Method == consistency.PullOrigin && r.Now().Sub(rf.LastPollTime) >= r.TTR {
			rf = r.pollAndUpdate(ctx, localName, rf)
		}

		if rf.Valid {
			if err := sendRegister(conn, rf.OriginName); err != nil {
				return err
			}
			continue
		}
		if err := sendDeregister(conn, rf.OriginName, wire.NoVersion); err != nil {
			return err
		}
		r.Remote.Delete(localName)
		os.Remove(PathIn(r.RemoteDir, localName))
	}

	return nil
}

func (r *Registrar) pollAndUpdate(ctx context.Context, localName string, rf RemoteFile) RemoteFile {
	addr, ok := r.ResolveLeaf(rf.OriginLeafID)
	valid := ok
	if ok {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		v, err := PollOrigin(pctx, addr, rf.OriginName, rf.Version)
		cancel()
		if err != nil {
			if r.Log != nil {
				r.Log.WithError(err).WithField("origin", rf.OriginLeafID).Warn("leaf: poll origin unreachable")
			}
			valid = false
		} else {
			valid = v
		}
	}

	rf.LastPollTime = r.Now()
	rf.Valid = valid
	r.Remote.Update(localName, func(RemoteFile) RemoteFile { return rf })
	return rf
}

func sendRegister(w net.Conn, filename string) error {
	if err := wire.WriteByte(w, wire.ReqRegister); err != nil {
		return err
	}
	if err := wire.WriteFilename(w, filename); err != nil {
		return err
	}
	return wire.WriteInt64(w, wire.NoVersion)
}

func sendDeregister(w net.Conn, filename string, version int64) error {
	if err := wire.WriteByte(w, wire.ReqDeregister); err != nil {
		return err
	}
	if err := wire.WriteFilename(w, filename); err != nil {
		return err
	}
	return wire.WriteInt64(w, version)
}
