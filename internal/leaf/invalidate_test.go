package leaf

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsjudka/overlay/internal/wire"
)

func sendInvalidate(t *testing.T, addr string, originID int32, filename string, version int64) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteByte(conn, wire.RolePeer))
	require.NoError(t, wire.WriteInt32(conn, originID))
	require.NoError(t, wire.WriteFilename(conn, filename))
	require.NoError(t, wire.WriteInt64(conn, version))
}

func TestServeInvalidateUnlinksOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	remote := NewRemoteCatalog()
	remote.Put(RemoteFile{LocalName: "a.txt", OriginName: "a.txt", OriginLeafID: 1, Version: 1, Valid: true})

	srv := &Server{LocalDir: dir, RemoteDir: dir, Local: NewLocalCatalog(), Remote: remote}
	addr := startServer(t, srv)

	sendInvalidate(t, addr, 1, "a.txt", 2)

	require.Eventually(t, func() bool {
		rf, ok := remote.Get("a.txt")
		return ok && !rf.Valid
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)
}

func TestServeInvalidateNoOpOnMatchingVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	remote := NewRemoteCatalog()
	remote.Put(RemoteFile{LocalName: "a.txt", OriginName: "a.txt", OriginLeafID: 1, Version: 1, Valid: true})

	srv := &Server{LocalDir: dir, RemoteDir: dir, Local: NewLocalCatalog(), Remote: remote}
	addr := startServer(t, srv)

	sendInvalidate(t, addr, 1, "a.txt", 1)

	time.Sleep(50 * time.Millisecond)
	rf, ok := remote.Get("a.txt")
	require.True(t, ok)
	assert.True(t, rf.Valid)
}
