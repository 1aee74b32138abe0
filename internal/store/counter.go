package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"scholarship-workers/internal/models"
)

var ErrCounterUnavailable = errors.New("COUNTER_UNAVAILABLE")

// AtomicCounter issues unique, gap-free, monotonically increasing values.
// The first value for a key is the counter's configured start.
type AtomicCounter interface {
	Next(ctx context.Context, key string) (int64, error)
}

// FormatID renders a counter value as an application ID.
func FormatID(n int64) string {
	return strconv.FormatInt(n, 10)
}

// MemoryCounter keeps counters inside a MemoryStore so they are readable as
// counters/<key> documents.
type MemoryCounter struct {
	store *MemoryStore
	start int64
}

func NewMemoryCounter(store *MemoryStore, start int64) *MemoryCounter {
	return &MemoryCounter{store: store, start: start}
}

func (c *MemoryCounter) Next(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	next := c.start
	if entry, ok := c.store.docs[models.CollectionCounters][key]; ok {
		current, ok := entry.fields["currentId"].(float64)
		if !ok {
			return 0, fmt.Errorf("%w: counters/%s has no currentId", ErrInvalidData, key)
		}
		next = int64(current) + 1
	}

	c.store.setLocked(models.CollectionCounters, key, map[string]interface{}{
		"id":        key,
		"currentId": float64(next),
	})
	return next, nil
}
