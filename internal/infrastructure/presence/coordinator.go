package presence

import (
	"context"
	"sync"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/infrastructure/monitoring"
	"owlet/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Coordinator fans a presence query out across the shards and merges
// the disjoint answers. It holds no state of its own.
type Coordinator struct {
	shards       *Shards
	queryTimeout time.Duration
	metrics      *monitoring.PrometheusCollector
	logger       *zap.SugaredLogger
}

func NewCoordinator(shards *Shards, queryTimeout time.Duration, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		shards:       shards,
		queryTimeout: queryTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// QueryPresence answers which of the given ids are online and visible.
// A shard that fails or times out contributes nothing; callers read
// absent ids as offline, so presence degrades instead of failing.
func (c *Coordinator) QueryPresence(ctx context.Context, userIDs []domain.UserID) map[domain.UserID]bool {
	ctx, span := tracing.StartSpan(ctx, "presence.query")
	defer span.End()
	tracing.AddSpanAttributes(ctx, attribute.Int("presence.user_count", len(userIDs)))

	start := time.Now()
	defer func() {
		c.metrics.ObservePresenceQuery(time.Since(start))
	}()

	merged := make(map[domain.UserID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return merged
	}

	partitions := make(map[string][]domain.UserID)
	for _, id := range userIDs {
		name := ShardName(id)
		partitions[name] = append(partitions[name], id)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, ids := range partitions {
		shard := c.shards.get(name)
		if shard == nil {
			continue
		}

		wg.Add(1)
		go func(name string, shard *Shard, ids []domain.UserID) {
			defer wg.Done()

			shardCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
			defer cancel()

			result, err := shard.Query(shardCtx, ids)
			if err != nil {
				c.metrics.PresenceShardFailure()
				c.logger.Warnw("presence shard query failed", "shard", name, "user_count", len(ids), "error", err)
				return
			}

			mu.Lock()
			for id, online := range result {
				merged[id] = online
			}
			mu.Unlock()
		}(name, shard, ids)
	}
	wg.Wait()

	return merged
}
