package logstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Index snapshot wire format, resolving the Open Question in spec §9 in
// favor of portability over replicating the original's padded, native-byte-
// order struct dump: a little-endian u64 entry count followed by that many
// fixed 21-byte records (int32 key, int64 offset, int64 size, uint8
// deleted), the layout the teacher's codec package uses for its own header
// encoding (fixed-width fields packed with encoding/binary).
const entryRecordSize = 4 + 8 + 8 + 1

// writeSnapshot serializes every index entry (including tombstones -- they
// must survive into the snapshot per spec) to path, atomically enough to be
// readable on the next open: written to a temp file, then renamed over the
// destination.
func writeSnapshot(path string, entries []location) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("logstore: create snapshot temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(entries)))
	if _, err = w.Write(countBuf[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("logstore: write snapshot count: %w", err)
	}

	var rec [entryRecordSize]byte
	for _, loc := range entries {
		encodeLocation(&rec, loc)
		if _, err = w.Write(rec[:]); err != nil {
			_ = f.Close()
			return fmt.Errorf("logstore: write snapshot entry: %w", err)
		}
	}

	if err = w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("logstore: flush snapshot: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("logstore: close snapshot: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("logstore: rename snapshot into place: %w", err)
	}
	return nil
}

// loadSnapshot reads every index entry from path. A missing snapshot is not
// an error: the index simply starts empty, as on first open.
func loadSnapshot(path string) ([]location, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("logstore: open snapshot: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var countBuf [8]byte
	if _, err = io.ReadFull(r, countBuf[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("logstore: read snapshot count: %w", err)
	}
	count := binary.LittleEndian.Uint64(countBuf[:])

	entries := make([]location, 0, count)
	var rec [entryRecordSize]byte
	for i := uint64(0); i < count; i++ {
		if _, err = io.ReadFull(r, rec[:]); err != nil {
			return nil, fmt.Errorf("logstore: read snapshot entry %d: %w", i, err)
		}
		entries = append(entries, decodeLocation(&rec))
	}
	return entries, nil
}

func encodeLocation(buf *[entryRecordSize]byte, loc location) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(loc.key))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(loc.offset))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(loc.size))
	if loc.deleted {
		buf[20] = 1
	} else {
		buf[20] = 0
	}
}

func decodeLocation(buf *[entryRecordSize]byte) location {
	return location{
		key:     int32(binary.LittleEndian.Uint32(buf[0:4])),
		offset:  int64(binary.LittleEndian.Uint64(buf[4:12])),
		size:    int64(binary.LittleEndian.Uint64(buf[12:20])),
		deleted: buf[20] != 0,
	}
}
