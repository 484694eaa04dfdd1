package leaf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCatalogReplaceReturnsPrevious(t *testing.T) {
	c := NewLocalCatalog()
	first := map[string]LocalFile{"a.txt": {Filename: "a.txt", Version: 1}}
	prev := c.Replace(first)
	assert.Empty(t, prev)

	second := map[string]LocalFile{"b.txt": {Filename: "b.txt", Version: 2}}
	prev = c.Replace(second)
	assert.Equal(t, first, prev)
	assert.Equal(t, second, c.Snapshot())
}

func TestLocalCatalogLookupStrictVersionEquality(t *testing.T) {
	c := NewLocalCatalog()
	c.Replace(map[string]LocalFile{"a.txt": {Filename: "a.txt", Version: 5}})

	assert.True(t, c.Lookup("a.txt", 5))
	assert.False(t, c.Lookup("a.txt", 6))
	assert.False(t, c.Lookup("missing.txt", 5))
}

func TestRemoteCatalogFindByOrigin(t *testing.T) {
	c := NewRemoteCatalog()
	c.Put(RemoteFile{LocalName: "a.txt", OriginName: "a.txt", OriginLeafID: 1, Version: 1})

	rf, ok := c.FindByOrigin(1, "a.txt")
	require.True(t, ok)
	assert.Equal(t, "a.txt", rf.LocalName)

	_, ok = c.FindByOrigin(2, "a.txt")
	assert.False(t, ok)
}

func TestRemoteCatalogFindServableRequiresValid(t *testing.T) {
	c := NewRemoteCatalog()
	c.Put(RemoteFile{LocalName: "a.txt", OriginName: "a.txt", OriginLeafID: 1, Valid: false})

	_, ok := c.FindServable("a.txt")
	assert.False(t, ok)

	c.Put(RemoteFile{LocalName: "a.txt", OriginName: "a.txt", OriginLeafID: 1, Valid: true})
	rf, ok := c.FindServable("a.txt")
	require.True(t, ok)
	assert.Equal(t, "a.txt", rf.LocalName)
}

func TestRemoteCatalogInvalidateOnVersionMismatch(t *testing.T) {
	c := NewRemoteCatalog()
	c.Put(RemoteFile{LocalName: "a.txt", OriginName: "a.txt", OriginLeafID: 1, Version: 1, Valid: true})

	_, ok := c.Invalidate(1, "a.txt", 1)
	assert.False(t, ok, "matching version is not a modification")

	rf, ok := c.Invalidate(1, "a.txt", 2)
	require.True(t, ok)
	assert.False(t, rf.Valid)

	stored, _ := c.Get("a.txt")
	assert.False(t, stored.Valid)
}

func TestRemoteCatalogUpdateNoOpOnMissingKey(t *testing.T) {
	c := NewRemoteCatalog()
	c.Update("missing", func(rf RemoteFile) RemoteFile {
		t.Fatal("fn should not be called for a missing key")
		return rf
	})
}

func TestRemoteCatalogUpdateAppliesFn(t *testing.T) {
	c := NewRemoteCatalog()
	now := time.Now()
	c.Put(RemoteFile{LocalName: "a.txt", Valid: true})
	c.Update("a.txt", func(rf RemoteFile) RemoteFile {
		rf.Valid = false
		rf.LastPollTime = now
		return rf
	})

	rf, ok := c.Get("a.txt")
	require.True(t, ok)
	assert.False(t, rf.Valid)
	assert.Equal(t, now, rf.LastPollTime)
}
