package issueapplicationid

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/store"
)

func createRedisHandler(t *testing.T, counterKeys ...string) (*Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	config := LoadConfig()
	config.CounterKeys = append(config.CounterKeys, counterKeys...)
	counter := store.NewRedisCounter(client, "counters:", 10001)
	return NewHandler(config, counter, logger.NewTestLogger(t)), mr
}

func TestHandler_IssuesSequentialIDs(t *testing.T) {
	h, _ := createRedisHandler(t)

	first, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, "10001", first.ApplicationID)
	assert.Equal(t, "scholarshipApplications", first.CounterKey)
	assert.Equal(t, int64(10002), second.Sequence)
}

func TestHandler_ParallelIssuanceIsUnique(t *testing.T) {
	h, _ := createRedisHandler(t)
	const n = 25

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.Execute(context.Background(), nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[out.ApplicationID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
	assert.True(t, ids["10001"])
	assert.True(t, ids["10025"])
}

func TestHandler_CustomCounterKey(t *testing.T) {
	h, _ := createRedisHandler(t, "trialApplications")

	out, err := h.Execute(context.Background(), &Input{CounterKey: "trialApplications"})

	require.NoError(t, err)
	assert.Equal(t, "trialApplications", out.CounterKey)
	assert.Equal(t, int64(10001), out.Sequence)
}

func TestHandler_RejectsUnlistedCounterKey(t *testing.T) {
	h, mr := createRedisHandler(t)

	_, err := h.Execute(context.Background(), &Input{CounterKey: "orders"})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	assert.False(t, mr.Exists("counters:orders"))
}

func TestHandler_CounterUnavailable(t *testing.T) {
	h, mr := createRedisHandler(t)
	mr.Close()

	_, err := h.Execute(context.Background(), &Input{})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIDIssuanceFailed))
}

func TestHandler_MemoryCounter(t *testing.T) {
	docs := store.NewMemoryStore()
	h := NewHandler(LoadConfig(), store.NewMemoryCounter(docs, 10001), logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, "10001", out.ApplicationID)
}
