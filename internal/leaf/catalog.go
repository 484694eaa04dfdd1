// Package leaf implements the leaf node: its local/remote file
// catalogs, the registration stream to its super-peer, the obtain
// client/server, and the PULL-N poll responder. The catalog types use a
// mutex-guarded map behind narrow methods, generalized to the two
// catalogs RemoteFiles shares between the registration loop and the
// poller.
package leaf

import (
	"sync"
	"time"
)

// LocalFile is one file the leaf itself owns, discovered by scanning
// its local directory.
type LocalFile struct {
	Filename string
	Version  int64
}

// RemoteFile is a leaf's cache entry for a file obtained from another
// leaf.
type RemoteFile struct {
	LocalName    string
	OriginName   string
	OriginLeafID int32
	Version      int64
	LastPollTime time.Time
	Valid        bool
}

// LocalCatalog holds the leaf's own files.
type LocalCatalog struct {
	mu    sync.Mutex
	files map[string]LocalFile
}

// NewLocalCatalog constructs an empty LocalCatalog.
func NewLocalCatalog() *LocalCatalog {
	return &LocalCatalog{files: make(map[string]LocalFile)}
}

// Replace swaps in a freshly scanned set of files and returns the
// previous set, so the caller can diff old against new.
func (c *LocalCatalog) Replace(next map[string]LocalFile) map[string]LocalFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.files
	c.files = next
	return prev
}

// Snapshot returns a copy of the current local files, for the "f"
// inspector command.
func (c *LocalCatalog) Snapshot() map[string]LocalFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]LocalFile, len(c.files))
	for k, v := range c.files {
		out[k] = v
	}
	return out
}

// Lookup reports whether filename exists in the catalog with exactly
// version, per the PULL-N poll responder's strict equality check.
func (c *LocalCatalog) Lookup(filename string, version int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	lf, ok := c.files[filename]
	return ok && lf.Version == version
}

// Find returns the LocalFile for filename, if present, for the obtain
// server.
func (c *LocalCatalog) Find(filename string) (LocalFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lf, ok := c.files[filename]
	return lf, ok
}

// RemoteCatalog holds the leaf's cached downloads. Shared between the
// registration tick and the PULL-N poller.
type RemoteCatalog struct {
	mu    sync.Mutex
	files map[string]RemoteFile
}

// NewRemoteCatalog constructs an empty RemoteCatalog.
func NewRemoteCatalog() *RemoteCatalog {
	return &RemoteCatalog{files: make(map[string]RemoteFile)}
}

// Put inserts or updates the cache entry keyed by its local name.
func (c *RemoteCatalog) Put(rf RemoteFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[rf.LocalName] = rf
}

// Get returns the cache entry for localName, if present.
func (c *RemoteCatalog) Get(localName string) (RemoteFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rf, ok := c.files[localName]
	return rf, ok
}

// FindByOrigin returns the cache entry whose (origin leaf, origin name)
// lineage matches, used both by the name-collision check on obtain and
// by local invalidation.
func (c *RemoteCatalog) FindByOrigin(originLeafID int32, originName string) (RemoteFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rf := range c.files {
		if rf.OriginLeafID == originLeafID && rf.OriginName == originName {
			return rf, true
		}
	}
	return RemoteFile{}, false
}

// FindServable returns a valid cache entry whose origin name matches
// filename, for the obtain server's fallback to cached copies.
func (c *RemoteCatalog) FindServable(filename string) (RemoteFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rf := range c.files {
		if rf.OriginName == filename && rf.Valid {
			return rf, true
		}
	}
	return RemoteFile{}, false
}

// Invalidate marks the cache entry matching (originLeafID, originName,
// version-mismatch) invalid: a match is only invalidated if its stored
// version differs from newVersion. Returns the invalidated entry and
// whether one was found.
func (c *RemoteCatalog) Invalidate(originLeafID int32, originName string, newVersion int64) (RemoteFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, rf := range c.files {
		if rf.OriginLeafID == originLeafID && rf.OriginName == originName && rf.Version != newVersion {
			rf.Valid = false
			c.files[key] = rf
			return rf, true
		}
	}
	return RemoteFile{}, false
}

// Delete removes localName from the catalog.
func (c *RemoteCatalog) Delete(localName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, localName)
}

// Snapshot returns a copy of the current remote files, for the "f"
// inspector command and the registration tick's iteration.
func (c *RemoteCatalog) Snapshot() map[string]RemoteFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]RemoteFile, len(c.files))
	for k, v := range c.files {
		out[k] = v
	}
	return out
}

// Update applies fn to the entry at localName while holding the lock, if
// it is present, and stores the result back. Used by the poller to flip
// LastPollTime/Valid atomically with respect to the registration tick.
func (c *RemoteCatalog) Update(localName string, fn func(RemoteFile) RemoteFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rf, ok := c.files[localName]
	if !ok {
		return
	}
	c.files[localName] = fn(rf)
}
