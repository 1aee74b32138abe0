// Package search keeps a searchable copy of scholarship applications in
// Elasticsearch for back-office lookups.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
)

const (
	defaultSize = 20
	maxSize     = 100
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":        {"type": "keyword"},
      "userId":    {"type": "keyword"},
      "name":      {"type": "text"},
      "school":    {"type": "text"},
      "class":     {"type": "keyword"},
      "examMode":  {"type": "keyword"},
      "status":    {"type": "keyword"},
      "centers":   {"type": "keyword"},
      "paymentId": {"type": "keyword"},
      "createdAt": {"type": "date"}
    }
  }
}`

// ApplicationDoc is the indexed projection of an application. Uploads and
// contact details stay out of the index.
type ApplicationDoc struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	School    string    `json:"school"`
	Class     string    `json:"class"`
	ExamMode  string    `json:"examMode"`
	Status    string    `json:"status"`
	Centers   []string  `json:"centers,omitempty"`
	PaymentID string    `json:"paymentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewApplicationDoc(app models.Application) ApplicationDoc {
	return ApplicationDoc{
		ID:        app.ID,
		UserID:    app.UserID,
		Name:      app.Name,
		School:    app.School,
		Class:     app.Class,
		ExamMode:  string(app.ExamMode),
		Status:    string(app.Status),
		Centers:   app.Centers(),
		PaymentID: app.PaymentID,
		CreatedAt: app.CreatedAt,
	}
}

type Query struct {
	Text     string `json:"text,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Status   string `json:"status,omitempty"`
	ExamMode string `json:"examMode,omitempty"`
	Center   string `json:"center,omitempty"`
	From     int    `json:"from,omitempty"`
	Size     int    `json:"size,omitempty"`
}

type Result struct {
	Total int64            `json:"total"`
	Took  int64            `json:"took"`
	Hits  []ApplicationDoc `json:"hits"`
}

type ApplicationIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewApplicationIndex(client *elasticsearch.Client, index string, log logger.Logger) *ApplicationIndex {
	return &ApplicationIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *ApplicationIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.index}}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(i.index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: i.index, Body: strings.NewReader(indexMapping)}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(i.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("create index: %s", res.String()))
	}
	i.logger.Info("Created application index", nil)
	return nil
}

// ApplicationSubmitted indexes a freshly committed application.
func (i *ApplicationIndex) ApplicationSubmitted(ctx context.Context, app models.Application, _ *models.PaymentRecord) error {
	return i.Index(ctx, app)
}

func (i *ApplicationIndex) Index(ctx context.Context, app models.Application) error {
	body, err := json.Marshal(NewApplicationDoc(app))
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: app.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return i.wrap(ctx, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("index %s: %s", app.ID, res.String()))
	}
	return nil
}

func (i *ApplicationIndex) Search(ctx context.Context, q Query) (*Result, error) {
	size := q.Size
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": buildQuery(q),
		"sort":  []interface{}{map[string]interface{}{"createdAt": map[string]string{"order": "desc"}}},
	})
	if err != nil {
		return nil, err
	}

	res, err := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}.Do(ctx, i.client)
	if err != nil {
		return nil, i.wrap(ctx, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("search: %s", res.String()))
	}

	var raw struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source ApplicationDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("decode response: %w", err))
	}

	result := &Result{Total: raw.Hits.Total.Value, Took: raw.Took, Hits: make([]ApplicationDoc, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		result.Hits = append(result.Hits, h.Source)
	}
	return result, nil
}

func (i *ApplicationIndex) wrap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewSearchTimeoutError(i.index)
	}
	return apperrors.NewSearchQueryFailedError(i.index, err)
}

func buildQuery(q Query) map[string]interface{} {
	var must, filter []interface{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"name^2", "school", "id"},
			},
		})
	}
	for field, value := range map[string]string{
		"userId":   q.UserID,
		"status":   q.Status,
		"examMode": q.ExamMode,
		"centers":  q.Center,
	} {
		if value != "" {
			filter = append(filter, map[string]interface{}{"term": map[string]string{field: value}})
		}
	}
	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"bool": boolQuery}
}
