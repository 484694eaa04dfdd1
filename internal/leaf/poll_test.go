package leaf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollOriginReturnsTrueOnMatchingVersion(t *testing.T) {
	local := NewLocalCatalog()
	local.Replace(map[string]LocalFile{"a.txt": {Filename: "a.txt", Version: 9}})
	srv := &Server{Local: local, Remote: NewRemoteCatalog()}
	addr := startServer(t, srv)

	ok, err := PollOrigin(context.Background(), addr, "a.txt", 9)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPollOriginReturnsFalseOnVersionMismatch(t *testing.T) {
	local := NewLocalCatalog()
	local.Replace(map[string]LocalFile{"a.txt": {Filename: "a.txt", Version: 9}})
	srv := &Server{Local: local, Remote: NewRemoteCatalog()}
	addr := startServer(t, srv)

	ok, err := PollOrigin(context.Background(), addr, "a.txt", 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPollOriginReturnsFalseWhenFileUnknown(t *testing.T) {
	srv := &Server{Local: NewLocalCatalog(), Remote: NewRemoteCatalog()}
	addr := startServer(t, srv)

	ok, err := PollOrigin(context.Background(), addr, "missing.txt", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
