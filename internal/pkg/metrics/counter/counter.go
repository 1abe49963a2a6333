package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nimbushost/nimbushost/internal/pkg/cache"
	"github.com/nimbushost/nimbushost/internal/pkg/database"
)

const newsViewsKey = "news:counters:views"

// AddNewsView increments the pending view counter for an article in Redis.
// Counts are batched and flushed to the database periodically so article
// pages never write to MySQL on the hot path.
func AddNewsView(newsID uint64) error {
	ctx := context.Background()
	field := strconv.FormatUint(newsID, 10)
	return cache.GetClient().HIncrBy(ctx, newsViewsKey, field, 1).Err()
}

// FlushAll drains the pending view counters to the news table.
func FlushAll() error {
	return flushHashToTable(newsViewsKey, "news", "view_count")
}

// StartFlusher flushes the counters on the given interval until the process
// exits.
func StartFlusher(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := FlushAll(); err != nil {
				fmt.Printf("counter flush failed: %v\n", err)
			}
		}
	}()
}

// flushHashToTable drains a Redis hash atomically and applies batched
// increments to the target table. The hash is renamed to a temporary key
// first so in-flight increments are never lost.
func flushHashToTable(hashKey, table, column string) error {
	ctx := context.Background()
	client := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:flush:%d", hashKey, time.Now().UnixNano())
	if err := client.Rename(ctx, hashKey, tmpKey).Err(); err != nil {
		// Nothing to flush when the hash does not exist.
		return nil
	}

	counts, err := client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	db := database.GetDB()
	for field, raw := range counts {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		delta, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || delta <= 0 {
			continue
		}
		err = db.Exec(
			fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE id = ?", table, column, column),
			delta, id,
		).Error
		if err != nil {
			return err
		}
	}

	return client.Del(ctx, tmpKey).Err()
}
