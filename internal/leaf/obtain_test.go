package leaf

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go srv.Serve(ln)
	return ln.Addr().String()
}

func TestObtainServesLocalFileAndCreatesRemoteEntry(t *testing.T) {
	serverDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(serverDir, "a.txt"), []byte("hello world"), 0o644))

	srv := &Server{
		LeafID:    7,
		LocalDir:  serverDir,
		RemoteDir: serverDir,
		Local:     NewLocalCatalog(),
		Remote:    NewRemoteCatalog(),
	}
	srv.Local.Replace(map[string]LocalFile{"a.txt": {Filename: "a.txt", Version: 42}})
	addr := startServer(t, srv)

	clientDir := t.TempDir()
	remote := NewRemoteCatalog()
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rf, err := Obtain(context.Background(), addr, "a.txt", clientDir, remote, func() time.Time { return fixedNow })
	require.NoError(t, err)
	assert.Equal(t, "a.txt", rf.LocalName)
	assert.Equal(t, int32(7), rf.OriginLeafID)
	assert.Equal(t, int64(42), rf.Version)
	assert.True(t, rf.Valid)
	assert.Equal(t, fixedNow, rf.LastPollTime)

	got, err := os.ReadFile(filepath.Join(clientDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	stored, ok := remote.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, rf, stored)
}

func TestObtainMissingFileReturnsError(t *testing.T) {
	srv := &Server{LocalDir: t.TempDir(), Local: NewLocalCatalog(), Remote: NewRemoteCatalog()}
	addr := startServer(t, srv)

	_, err := Obtain(context.Background(), addr, "missing.txt", t.TempDir(), NewRemoteCatalog(), time.Now)
	assert.Error(t, err)
}

func TestObtainServesCachedCopyOnlyWhenValid(t *testing.T) {
	serverDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(serverDir, "cached.txt"), []byte("cached bytes"), 0o644))

	remote := NewRemoteCatalog()
	remote.Put(RemoteFile{LocalName: "cached.txt", OriginName: "cached.txt", OriginLeafID: 3, Version: 9, Valid: false})

	srv := &Server{LeafID: 5, LocalDir: serverDir, RemoteDir: serverDir, Local: NewLocalCatalog(), Remote: remote}
	addr := startServer(t, srv)

	_, err := Obtain(context.Background(), addr, "cached.txt", t.TempDir(), NewRemoteCatalog(), time.Now)
	assert.Error(t, err, "invalid cache entries must not be served")

	remote.Update("cached.txt", func(rf RemoteFile) RemoteFile {
		rf.Valid = true
		return rf
	})

	rf, err := Obtain(context.Background(), addr, "cached.txt", t.TempDir(), NewRemoteCatalog(), time.Now)
	require.NoError(t, err)
	assert.Equal(t, int32(3), rf.OriginLeafID, "server preserves the true origin of a served cache entry")
	assert.Equal(t, int64(9), rf.Version)
}

func TestLocalNameForCollisionPolicy(t *testing.T) {
	existing := map[string]RemoteFile{
		"doc.txt": {LocalName: "doc.txt", OriginName: "doc.txt", OriginLeafID: 1},
	}
	assert.Equal(t, "doc.txt", localNameFor(existing, 1, "doc.txt"), "same origin updates in place")
	assert.Equal(t, "doc-origin-2.txt", localNameFor(existing, 2, "doc.txt"), "different origin gets suffixed")
	assert.Equal(t, "new.txt", localNameFor(existing, 3, "new.txt"), "no collision keeps the plain name")
}
