package snowflake

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Epoch is the custom epoch (2026-01-01 00:00:00 UTC) in Unix milliseconds.
// Ids encode milliseconds since this point, which gives the 41-bit
// timestamp field roughly 69 years of headroom.
const Epoch int64 = 1767225600000

const (
	workerIDBits = 10
	sequenceBits = 12

	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits

	sequenceMask = (1 << sequenceBits) - 1

	// MaxWorkerID is the largest assignable worker id (inclusive).
	MaxWorkerID = (1 << workerIDBits) - 1
)

// ErrClockRegression is returned when the wall clock has moved backwards
// since the last generated id. Retrying cannot help: handing out an id
// for an earlier millisecond would break the strictly-increasing
// guarantee, so callers must treat this as fatal.
var ErrClockRegression = errors.New("snowflake: system clock moved backwards")

// Node generates identifiers of the form
//
//	(ms since Epoch) << 22 | workerID << 12 | sequence
//
// A Node is safe for concurrent use; all mutable state is guarded by a
// mutex so ids from one Node are strictly increasing. Uniqueness across
// nodes is only probabilistic, bounded by the 10-bit worker id space.
type Node struct {
	mu sync.Mutex

	workerID      int64
	lastTimestamp int64
	sequence      int64

	now func() time.Time
}

// NewNode creates a generator for the given worker id. The worker id is
// injected rather than self-assigned so tests can be deterministic.
func NewNode(workerID int64) (*Node, error) {
	return newNode(workerID, time.Now)
}

func newNode(workerID int64, now func() time.Time) (*Node, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("snowflake: worker id %d out of range [0, %d]", workerID, MaxWorkerID)
	}
	return &Node{
		workerID:      workerID,
		lastTimestamp: -1,
		now:           now,
	}, nil
}

// WorkerID returns the worker id this node was created with.
func (n *Node) WorkerID() int64 { return n.workerID }

// Generate returns the next identifier as a decimal string. The string
// form is what goes over the wire: JavaScript clients lose precision on
// raw 64-bit integers.
func (n *Node) Generate() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ts := n.now().UnixMilli()
	if ts < n.lastTimestamp {
		return "", ErrClockRegression
	}

	if ts == n.lastTimestamp {
		n.sequence = (n.sequence + 1) & sequenceMask
		if n.sequence == 0 {
			// 4096 ids in one millisecond; spin until the clock
			// advances past the exhausted one.
			for ts <= n.lastTimestamp {
				ts = n.now().UnixMilli()
			}
		}
	} else {
		n.sequence = 0
	}

	n.lastTimestamp = ts

	id := uint64(ts-Epoch)<<timestampShift |
		uint64(n.workerID)<<workerIDShift |
		uint64(n.sequence)
	return strconv.FormatUint(id, 10), nil
}

// Timestamp recovers the creation time encoded in an id, so callers can
// display message times without a persisted timestamp column.
func Timestamp(id string) (time.Time, error) {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("snowflake: invalid id %q: %w", id, err)
	}
	ms := int64(v>>timestampShift) + Epoch
	return time.UnixMilli(ms).UTC(), nil
}

// Valid reports whether id parses as a snowflake identifier. Used to
// reject garbage pagination cursors before they reach the store.
func Valid(id string) bool {
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}
