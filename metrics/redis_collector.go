package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCollector implements the Collector interface for Redis-backed metrics
type RedisCollector struct {
	client *redis.Client
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(client *redis.Client) *RedisCollector {
	return &RedisCollector{
		client: client,
	}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	queueDepth, err := c.GetQueueDepth(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue depth: %w", err)
	}

	statusCounts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting status counts: %w", err)
	}

	return Metrics{
		QueueDepth:   queueDepth,
		StatusCounts: statusCounts,
		Timestamp:    time.Now(),
	}, nil
}

// GetQueueDepth returns the cardinality of the due index
func (c *RedisCollector) GetQueueDepth(ctx context.Context) (int64, error) {
	depth, err := c.client.ZCard(ctx, "deliveries:due").Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("reading due index: %w", err)
	}
	return depth, nil
}

// GetStatusCounts returns counts of deliveries grouped by status
func (c *RedisCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	statusCounts := map[string]int64{
		"pending":    0,
		"delivering": 0,
		"retrying":   0,
		"sent":       0,
		"failed":     0,
	}

	// Scan for all delivery:* hashes, skipping claim lease keys
	var cursor uint64
	var keys []string

	for {
		scanKeys, nextCursor, err := c.client.Scan(ctx, cursor, "delivery:*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning delivery keys: %w", err)
		}

		for _, key := range scanKeys {
			if strings.HasPrefix(key, "delivery:claim:") {
				continue
			}
			keys = append(keys, key)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return statusCounts, nil
	}

	// Use pipeline for efficient batch operations
	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGet(ctx, key, "status")
	}

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("executing pipeline: %w", err)
	}

	for _, cmd := range cmds {
		status, err := cmd.Result()
		if err != nil {
			continue
		}
		if _, exists := statusCounts[status]; exists {
			statusCounts[status]++
		}
	}

	return statusCounts, nil
}
