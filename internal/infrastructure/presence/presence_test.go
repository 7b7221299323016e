package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"owlet/internal/core/domain"
)

func TestShardNameUsesLastDigit(t *testing.T) {
	assert.Equal(t, "shard-7", ShardName("user7"))
	assert.Equal(t, "shard-0", ShardName("user0"))
	assert.Equal(t, "shard-3", ShardName("1193"))
	assert.Equal(t, "shard-0", ShardName("alice"))
	assert.Equal(t, "shard-0", ShardName(""))
}

func TestShardNameIsStable(t *testing.T) {
	shards := NewShards()
	for _, id := range []domain.UserID{"u1", "u2", "abc9", "plain"} {
		assert.Same(t, shards.For(id), shards.For(id))
	}
}

func TestShardQueryReportsVisibleUsers(t *testing.T) {
	shard := newShard("shard-1")
	shard.Register("u1", "s1", domain.StatusOnline)
	shard.Register("v1", "s2", domain.StatusAway)

	result, err := shard.Query(context.Background(), []domain.UserID{"u1", "v1", "w1"})
	require.NoError(t, err)
	assert.Equal(t, map[domain.UserID]bool{"u1": true, "v1": true}, result)
}

func TestShardOmitsInvisibleUsers(t *testing.T) {
	shard := newShard("shard-1")
	shard.Register("u1", "s1", domain.StatusInvisible)

	result, err := shard.Query(context.Background(), []domain.UserID{"u1"})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestShardUnregisterIgnoresStaleSessions(t *testing.T) {
	shard := newShard("shard-1")
	shard.Register("u1", "old", domain.StatusOnline)
	shard.Register("u1", "new", domain.StatusOnline)

	// The old socket closing after the reconnect must not take the
	// live session down.
	shard.Unregister("u1", "old")
	result, err := shard.Query(context.Background(), []domain.UserID{"u1"})
	require.NoError(t, err)
	assert.True(t, result["u1"])

	shard.Unregister("u1", "new")
	result, err = shard.Query(context.Background(), []domain.UserID{"u1"})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestCoordinatorMergesAcrossShards(t *testing.T) {
	shards := NewShards()
	coord := NewCoordinator(shards, time.Second, nil, zaptest.NewLogger(t).Sugar())

	shards.For("u1").Register("u1", "s1", domain.StatusOnline)
	shards.For("u2").Register("u2", "s2", domain.StatusBusy)
	shards.For("ghost8").Register("ghost8", "s3", domain.StatusInvisible)

	online := coord.QueryPresence(context.Background(),
		[]domain.UserID{"u1", "u2", "u3", "ghost8"})

	assert.Equal(t, map[domain.UserID]bool{"u1": true, "u2": true}, online)
}

func TestCoordinatorEmptyQuery(t *testing.T) {
	coord := NewCoordinator(NewShards(), time.Second, nil, zaptest.NewLogger(t).Sugar())
	assert.Empty(t, coord.QueryPresence(context.Background(), nil))
}

func TestCoordinatorFailsOpenOnShardTimeout(t *testing.T) {
	shards := NewShards()
	coord := NewCoordinator(shards, 50*time.Millisecond, nil, zaptest.NewLogger(t).Sugar())

	shards.For("u1").Register("u1", "s1", domain.StatusOnline)

	// Wedge shard-2 by filling its command buffer with queries nobody
	// answers while the actor is blocked on the first unread reply.
	blocked := shards.get("shard-2")
	blocked.commands <- queryCmd{userIDs: nil, reply: make(chan map[domain.UserID]bool)}
	for i := 0; i < cap(blocked.commands); i++ {
		select {
		case blocked.commands <- queryCmd{userIDs: nil, reply: make(chan map[domain.UserID]bool)}:
		default:
		}
	}

	online := coord.QueryPresence(context.Background(), []domain.UserID{"u1", "u2"})

	// shard-1 still answers; shard-2 times out and reads as offline.
	assert.Equal(t, map[domain.UserID]bool{"u1": true}, online)
}
