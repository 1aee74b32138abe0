package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeES answers like an Elasticsearch node and records every request.
type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	f.mu.Unlock()

	status, payload := f.respond(r)
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func newIndex(t *testing.T, respond func(r *http.Request) (int, string)) (*ApplicationIndex, *fakeES) {
	t.Helper()
	fake := &fakeES{respond: respond}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewApplicationIndex(client, "scholarship-applications", logger.NewTestLogger(t)), fake
}

func TestApplicationIndex_IndexesProjection(t *testing.T) {
	idx, fake := newIndex(t, func(*http.Request) (int, string) {
		return 201, `{"result":"created"}`
	})
	app := models.Application{
		ID: "10001", UserID: "u1", Name: "Asha Verma", School: "KV", Class: "10",
		Mobile: "9876543210", Email: "asha@example.com", Photo: "data:image/png;base64,AAAA",
		ExamMode: models.ExamModeOffline, Status: models.ApplicationStatusApproved,
		Center1: "Delhi", Center2: "Noida", Center3: "Agra",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, idx.ApplicationSubmitted(context.Background(), app, nil))

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/scholarship-applications/_doc/10001", req.Path)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(req.Body), &doc))
	assert.Equal(t, "Asha Verma", doc["name"])
	assert.Equal(t, []interface{}{"Delhi", "Noida", "Agra"}, doc["centers"])
	assert.NotContains(t, doc, "photo")
	assert.NotContains(t, doc, "mobile")
	assert.NotContains(t, doc, "email")
}

func TestApplicationIndex_IndexError(t *testing.T) {
	idx, _ := newIndex(t, func(*http.Request) (int, string) {
		return 400, `{"error":{"type":"mapper_parsing_exception"}}`
	})

	err := idx.Index(context.Background(), models.Application{ID: "10001"})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSearchQueryFailed))
}

func TestApplicationIndex_Search(t *testing.T) {
	idx, fake := newIndex(t, func(*http.Request) (int, string) {
		return 200, `{
			"took": 4,
			"hits": {
				"total": {"value": 2, "relation": "eq"},
				"hits": [
					{"_source": {"id": "10002", "userId": "u1", "examMode": "online", "status": "submitted"}},
					{"_source": {"id": "10001", "userId": "u1", "examMode": "offline", "status": "approved"}}
				]
			}
		}`
	})

	result, err := idx.Search(context.Background(), Query{UserID: "u1", Text: "asha", Size: 500})

	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	assert.Equal(t, int64(4), result.Took)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "10002", result.Hits[0].ID)

	req := fake.requests[0]
	assert.Equal(t, "/scholarship-applications/_search", req.Path)
	assert.Contains(t, req.Query, "size=100")
	assert.Contains(t, req.Body, `"term":{"userId":"u1"}`)
	assert.Contains(t, req.Body, `"multi_match"`)
}

func TestApplicationIndex_EnsureIndex(t *testing.T) {
	idx, fake := newIndex(t, func(r *http.Request) (int, string) {
		if r.Method == http.MethodHead {
			return 404, ``
		}
		return 200, `{"acknowledged":true}`
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))

	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodPut, fake.requests[1].Method)
	assert.True(t, strings.Contains(fake.requests[1].Body, `"examMode"`))
}

func TestApplicationIndex_EnsureIndexExisting(t *testing.T) {
	idx, fake := newIndex(t, func(*http.Request) (int, string) { return 200, `` })

	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.Len(t, fake.requests, 1)
}

func TestBuildQuery_MatchAll(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, buildQuery(Query{}))
}
