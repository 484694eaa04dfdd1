package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsjudka/overlay/internal/consistency"
)

func TestParsePushConfig(t *testing.T) {
	cfg, err := parse(strings.NewReader(`0 2
0 1 5000 5001,5002 6000,6001
1 10 6000 5000
1 11 6001 5001
`))
	require.NoError(t, err)
	assert.Equal(t, consistency.Push, cfg.Method)
	assert.Equal(t, time.Duration(0), cfg.TTR)
	assert.Equal(t, int32(2), cfg.TTL)

	require.Contains(t, cfg.SuperPeers, int32(1))
	sp := cfg.SuperPeers[1]
	assert.Equal(t, int32(5000), sp.Port)
	assert.Equal(t, []int32{5001, 5002}, sp.PeerPorts)
	assert.Equal(t, []int32{6000, 6001}, sp.LeafPorts)

	require.Contains(t, cfg.Leaves, int32(10))
	assert.Equal(t, int32(6000), cfg.Leaves[10].Port)
	assert.Equal(t, int32(5000), cfg.Leaves[10].SuperPeerPort)
}

func TestParsePullOriginConfigReadsTTR(t *testing.T) {
	cfg, err := parse(strings.NewReader(`1 10 3
0 1 5000 , 6000
`))
	require.NoError(t, err)
	assert.Equal(t, consistency.PullOrigin, cfg.Method)
	assert.Equal(t, 10*time.Second, cfg.TTR)
	assert.Equal(t, int32(3), cfg.TTL)
}

func TestParseSkipsUnrecognizedLines(t *testing.T) {
	cfg, err := parse(strings.NewReader(`0 1
# a stray comment line that is not a member record
0 1 5000 , 6000
9 not a member record either
1 10 6000 5000
`))
	require.NoError(t, err)
	assert.Len(t, cfg.SuperPeers, 1)
	assert.Len(t, cfg.Leaves, 1)
}

func TestParseInvalidMethodIsError(t *testing.T) {
	_, err := parse(strings.NewReader(`9 1
`))
	assert.Error(t, err)
}

func TestParseMissingTTRForPullMethodIsError(t *testing.T) {
	_, err := parse(strings.NewReader(`2
0 1 5000 , 6000
`))
	assert.Error(t, err)
}

func TestParseEmptyPeerListIsNil(t *testing.T) {
	cfg, err := parse(strings.NewReader(`0 0
0 1 5000 , 6000
`))
	require.NoError(t, err)
	assert.Nil(t, cfg.SuperPeers[1].PeerPorts)
	assert.Equal(t, []int32{6000}, cfg.SuperPeers[1].LeafPorts)
}
