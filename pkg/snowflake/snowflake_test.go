package snowflake

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode_WorkerIDRange(t *testing.T) {
	tests := []struct {
		name     string
		workerID int64
		wantErr  bool
	}{
		{name: "zero", workerID: 0, wantErr: false},
		{name: "max", workerID: MaxWorkerID, wantErr: false},
		{name: "negative", workerID: -1, wantErr: true},
		{name: "too large", workerID: MaxWorkerID + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNode(tt.workerID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerate_StrictlyIncreasing(t *testing.T) {
	node, err := NewNode(7)
	require.NoError(t, err)

	var prev uint64
	for i := 0; i < 10000; i++ {
		s, err := node.Generate()
		require.NoError(t, err)

		v, err := strconv.ParseUint(s, 10, 64)
		require.NoError(t, err)
		assert.Greater(t, v, prev, "id %d not greater than predecessor", i)
		prev = v
	}
}

func TestGenerate_TimestampRoundTrip(t *testing.T) {
	node, err := NewNode(1)
	require.NoError(t, err)

	before := time.Now()
	id, err := node.Generate()
	require.NoError(t, err)
	after := time.Now()

	ts, err := Timestamp(id)
	require.NoError(t, err)

	// Encoded time must fall within the same millisecond window as the call.
	assert.False(t, ts.Before(before.Truncate(time.Millisecond)))
	assert.False(t, ts.After(after))
}

func TestGenerate_ClockRegressionIsFatal(t *testing.T) {
	current := time.UnixMilli(Epoch + 50_000)
	node, err := newNode(3, func() time.Time { return current })
	require.NoError(t, err)

	_, err = node.Generate()
	require.NoError(t, err)

	current = current.Add(-time.Second)
	_, err = node.Generate()
	assert.ErrorIs(t, err, ErrClockRegression)

	// No retry semantics: the error persists until the clock catches up.
	_, err = node.Generate()
	assert.ErrorIs(t, err, ErrClockRegression)
}

func TestGenerate_SequenceWrapWaitsForNextMillisecond(t *testing.T) {
	base := time.UnixMilli(Epoch + 1000)
	calls := 0
	// Clock stands still for the first 4097 reads, then advances so the
	// spin-wait after sequence exhaustion can make progress.
	node, err := newNode(0, func() time.Time {
		calls++
		if calls > 4097 {
			return base.Add(time.Millisecond)
		}
		return base
	})
	require.NoError(t, err)

	var last uint64
	for i := 0; i < 4097; i++ {
		s, err := node.Generate()
		require.NoError(t, err)
		v, err := strconv.ParseUint(s, 10, 64)
		require.NoError(t, err)
		assert.Greater(t, v, last)
		last = v
	}

	// The 4097th id must carry the next millisecond and sequence 0.
	assert.Equal(t, uint64(0), last&sequenceMask)
	gotMs := int64(last>>timestampShift) + Epoch
	assert.Equal(t, base.UnixMilli()+1, gotMs)
}

func TestTimestamp_RejectsGarbage(t *testing.T) {
	_, err := Timestamp("not-a-number")
	assert.Error(t, err)

	assert.False(t, Valid("abc"))
	assert.True(t, Valid("123456789"))
}
