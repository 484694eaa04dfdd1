package leaf

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsjudka/overlay/internal/wire"
)

func TestSearchSendsRequestAndParsesResult(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := NewSession(client)

	done := make(chan struct {
		ids []int32
		err error
	}, 1)
	go func() {
		ids, err := Search(sess, "a.txt")
		done <- struct {
			ids []int32
			err error
		}{ids, err}
	}()

	req, err := wire.ReadByte(server)
	require.NoError(t, err)
	assert.Equal(t, wire.ReqSearch, req)

	filename, err := wire.ReadFilename(server)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", filename)

	require.NoError(t, wire.WriteIDList(server, []int32{1, 2}))

	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, []int32{1, 2}, result.ids)
}
