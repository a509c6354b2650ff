package logstore

import "github.com/google/btree"

const defaultDegree = 32

// item wraps a location behind the btree.Item interface, the way the
// teacher's keydir.Item wraps a model.RecordPos behind btree.Item for
// []byte keys; here the key is the engine's fixed-width int32.
type item struct {
	key int32
	loc location
}

func (i *item) Less(than btree.Item) bool {
	return i.key < than.(*item).key
}

// index is the log store's resident key -> location map. It is not
// protected by its own lock: callers hold logstore.Store's indexMu for the
// duration of any operation, matching the single-RWMutex discipline
// specified for the whole index.
type index struct {
	tree *btree.BTree
}

func newIndex() *index {
	return &index{tree: btree.New(defaultDegree)}
}

// put inserts or overwrites the location for key, unconditionally
// superseding any prior entry (tombstoned or not).
func (ix *index) put(loc location) {
	ix.tree.ReplaceOrInsert(&item{key: loc.key, loc: loc})
}

// get returns the location for key and whether it is present at all
// (tombstoned entries are returned too -- callers check loc.deleted).
func (ix *index) get(key int32) (location, bool) {
	found := ix.tree.Get(&item{key: key})
	if found == nil {
		return location{}, false
	}
	return found.(*item).loc, true
}

// tombstone flips the deleted flag for key, returning false if the key is
// absent or already tombstoned.
func (ix *index) tombstone(key int32) bool {
	found := ix.tree.Get(&item{key: key})
	if found == nil {
		return false
	}
	loc := found.(*item).loc
	if loc.deleted {
		return false
	}
	loc.deleted = true
	ix.tree.ReplaceOrInsert(&item{key: key, loc: loc})
	return true
}

// live returns every non-tombstoned location currently in the index.
// Iteration order is the btree's ascending key order -- an implementation
// detail; compaction does not depend on it (see Store.Compact).
func (ix *index) live() []location {
	out := make([]location, 0, ix.tree.Len())
	ix.tree.Ascend(func(bi btree.Item) bool {
		loc := bi.(*item).loc
		if !loc.deleted {
			out = append(out, loc)
		}
		return true
	})
	return out
}

// all returns every entry in the index, live or tombstoned, for snapshot
// persistence at close.
func (ix *index) all() []location {
	out := make([]location, 0, ix.tree.Len())
	ix.tree.Ascend(func(bi btree.Item) bool {
		out = append(out, bi.(*item).loc)
		return true
	})
	return out
}

func (ix *index) len() int {
	return ix.tree.Len()
}
