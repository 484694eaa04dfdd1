package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrainReturnsAllAndClears(t *testing.T) {
	q := New()
	q.Append(Modification{Filename: "a.txt", OriginID: 1, Version: 100})
	q.Append(Modification{Filename: "b.txt", OriginID: 2, Version: 200})

	got := q.Drain()
	assert.Len(t, got, 2)
	assert.Equal(t, 0, q.Len())

	assert.Nil(t, q.Drain())
}

func TestDrainEmptyQueueReturnsNil(t *testing.T) {
	q := New()
	assert.Nil(t, q.Drain())
}

func TestSnapshotDoesNotClear(t *testing.T) {
	q := New()
	q.Append(Modification{Filename: "a.txt", OriginID: 1, Version: 100})

	got := q.Snapshot()
	assert.Len(t, got, 1)
	assert.Equal(t, 1, q.Len())
}
