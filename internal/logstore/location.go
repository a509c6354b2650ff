package logstore

// location is the index entry for a live or tombstoned key: where its
// value bytes sit in the data file, how long they are, and whether the
// key has since been deleted. It is the Go analogue of the teacher's
// model.RecordPos / the original's ObjectMeta.
type location struct {
	key     int32
	offset  int64
	size    int64
	deleted bool
}
