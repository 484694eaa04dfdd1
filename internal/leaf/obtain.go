package leaf

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rsjudka/overlay/internal/wire"
)

// Obtain downloads filename from the leaf listening at addr, and
// records the result in remote. now is injected for deterministic
// tests; production callers pass time.Now.
func Obtain(ctx context.Context, addr, filename, remoteDir string, remote *RemoteCatalog, now func() time.Time) (RemoteFile, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return RemoteFile{}, fmt.Errorf("leaf: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := wire.WriteByte(conn, wire.RoleLeaf); err != nil {
		return RemoteFile{}, err
	}
	if err := wire.WriteByte(conn, wire.ReqObtain); err != nil {
		return RemoteFile{}, err
	}
	if err := wire.WriteFilename(conn, filename); err != nil {
		return RemoteFile{}, err
	}

	size, err := wire.ReadSizeHeader(conn)
	if err != nil {
		return RemoteFile{}, err
	}
	switch size {
	case wire.SizeNotFound:
		return RemoteFile{}, fmt.Errorf("leaf: %s not found on %s", filename, addr)
	case wire.SizeStatError:
		return RemoteFile{}, fmt.Errorf("leaf: %s unreadable on %s", filename, addr)
	}

	originID, err := wire.ReadInt32(conn)
	if err != nil {
		return RemoteFile{}, err
	}
	version, err := wire.ReadInt64(conn)
	if err != nil {
		return RemoteFile{}, err
	}

	localName := localNameFor(remote.Snapshot(), originID, filename)

	out, err := os.Create(PathIn(remoteDir, localName))
	if err != nil {
		return RemoteFile{}, fmt.Errorf("leaf: create %s: %w", localName, err)
	}
	defer out.Close()
	if err := wire.CopyChunked(out, conn, size); err != nil {
		return RemoteFile{}, fmt.Errorf("leaf: receive %s: %w", filename, err)
	}

	rf := RemoteFile{
		LocalName:    localName,
		OriginName:   filename,
		OriginLeafID: originID,
		Version:      version,
		LastPollTime: now(),
		Valid:        true,
	}
	remote.Put(rf)
	return rf, nil
}

// localNameFor applies the name-collision policy: a cache
// entry already tracking (originLeafID, originName) is updated in
// place; a different origin's file of the same name is suffixed with
// -origin-<id> so the two do not collide on disk.
func localNameFor(existing map[string]RemoteFile, originLeafID int32, originName string) string {
	for _, rf := range existing {
		if rf.OriginLeafID == originLeafID && rf.OriginName == originName {
			return rf.LocalName
		}
	}
	for _, rf := range existing {
		if rf.OriginName == originName && rf.OriginLeafID != originLeafID {
			return suffixedName(originName, originLeafID)
		}
	}
	return originName
}

func suffixedName(name string, originID int32) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s-origin-%d%s", base, originID, ext)
}

// ServeObtain answers an inbound obtain request on behalf of selfLeafID:
// LocalFiles take priority over RemoteFiles, and only valid cache
// entries are servable.
func ServeObtain(conn net.Conn, localDir, remoteDir string, local *LocalCatalog, remote *RemoteCatalog, selfLeafID int32) error {
	filename, err := wire.ReadFilename(conn)
	if err != nil {
		return err
	}

	if lf, ok := local.Find(filename); ok {
		return sendFile(conn, PathIn(localDir, lf.Filename), selfLeafID, lf.Version)
	}
	if rf, ok := remote.FindServable(filename); ok {
		return sendFile(conn, PathIn(remoteDir, rf.LocalName), rf.OriginLeafID, rf.Version)
	}
	return wire.WriteSizeHeader(conn, wire.SizeNotFound)
}

func sendFile(conn net.Conn, path string, originID int32, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return wire.WriteSizeHeader(conn, wire.SizeStatError)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return wire.WriteSizeHeader(conn, wire.SizeStatError)
	}

	if err := wire.WriteSizeHeader(conn, info.Size()); err != nil {
		return err
	}
	if err := wire.WriteInt32(conn, originID); err != nil {
		return err
	}
	if err := wire.WriteInt64(conn, version); err != nil {
		return err
	}
	return wire.CopyChunked(conn, f, info.Size())
}
