package messageid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenOrRecordFirstTimeIsNotSeen(t *testing.T) {
	s := New(nil)
	defer s.Close()

	seen := s.SeenOrRecord(ID{Origin: 1, Sequence: 1})
	assert.False(t, seen)
}

func TestSeenOrRecordSecondTimeIsSeen(t *testing.T) {
	s := New(nil)
	defer s.Close()

	id := ID{Origin: 1, Sequence: 1}
	s.SeenOrRecord(id)
	seen := s.SeenOrRecord(id)
	assert.True(t, seen)
}

func TestSeenOrRecordProcessesAtMostOnce(t *testing.T) {
	s := New(nil)
	defer s.Close()

	id := ID{Origin: 7, Sequence: 3}
	processed := 0
	for i := 0; i < 5; i++ {
		if !s.SeenOrRecord(id) {
			processed++
		}
	}
	assert.Equal(t, 1, processed)
}

func TestEvictExpiredRemovesOldEntries(t *testing.T) {
	s := New(nil)
	defer s.Close()

	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }

	s.SeenOrRecord(ID{Origin: 1, Sequence: 1})
	assert.Equal(t, 1, s.Count())

	fakeNow = fakeNow.Add(Retention + time.Second)
	s.evictExpired()
	assert.Equal(t, 0, s.Count())
}

func TestEvictExpiredKeepsFreshEntries(t *testing.T) {
	s := New(nil)
	defer s.Close()

	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }
	s.SeenOrRecord(ID{Origin: 1, Sequence: 1})

	fakeNow = fakeNow.Add(Retention / 2)
	s.evictExpired()
	assert.Equal(t, 1, s.Count())
}
