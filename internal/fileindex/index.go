// Package fileindex implements the super-peer's file-to-leaf index: a
// mapping from filename to the set of leaf ids currently advertising it.
// A private mutex guards the map, with narrow read/write methods so the
// lock is never held across network I/O.
package fileindex

import "sync"

// Index is the super-peer's file-to-leaf mapping. The zero value is not
// usable; construct with New.
type Index struct {
	mu      sync.Mutex
	entries map[string]map[int32]struct{}
}

// New constructs an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]map[int32]struct{})}
}

// Register adds leafID to the set at filename, creating the key on
// demand. Idempotent.
func (idx *Index) Register(leafID int32, filename string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.entries[filename]
	if !ok {
		set = make(map[int32]struct{})
		idx.entries[filename] = set
	}
	set[leafID] = struct{}{}
}

// Deregister removes leafID from the set at filename, deleting the key
// when its set becomes empty.
func (idx *Index) Deregister(leafID int32, filename string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.deregisterLocked(leafID, filename)
}

func (idx *Index) deregisterLocked(leafID int32, filename string) {
	set, ok := idx.entries[filename]
	if !ok {
		return
	}
	delete(set, leafID)
	if len(set) == 0 {
		delete(idx.entries, filename)
	}
}

// Lookup returns the leaf ids currently advertising filename. The
// returned slice is a copy safe to use without holding any lock.
func (idx *Index) Lookup(filename string) []int32 {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.entries[filename]
	if !ok {
		return nil
	}
	ids := make([]int32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Cleanup removes leafID from every key in the index, dropping any key
// whose set becomes empty. Invoked when a leaf disconnects.
func (idx *Index) Cleanup(leafID int32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for filename := range idx.entries {
		idx.deregisterLocked(leafID, filename)
	}
}

// Len returns the number of distinct filenames currently indexed, for
// metrics export.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

// Snapshot returns a deep copy of the index, for the "l" inspector
// command.
func (idx *Index) Snapshot() map[string][]int32 {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make(map[string][]int32, len(idx.entries))
	for filename, set := range idx.entries {
		ids := make([]int32, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		out[filename] = ids
	}
	return out
}
