package leaf

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsjudka/overlay/internal/wire"
)

func TestInspectSendsRequestTypeAndParsesReport(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := NewSession(client)

	done := make(chan struct {
		report string
		err    error
	}, 1)
	go func() {
		report, err := Inspect(sess, wire.ReqInspectIndex)
		done <- struct {
			report string
			err    error
		}{report, err}
	}()

	req, err := wire.ReadByte(server)
	require.NoError(t, err)
	assert.Equal(t, wire.ReqInspectIndex, req)

	require.NoError(t, wire.WriteReport(server, "a.txt: [1 2]"))

	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, "a.txt: [1 2]", result.report)
}
