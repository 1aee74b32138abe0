package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

type memoryEntry struct {
	seq    int64
	fields map[string]interface{}
}

// MemoryStore is an in-process DocumentStore for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	seq  int64
	docs map[string]map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]*memoryEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return entry.document(id)
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		id    string
		entry *memoryEntry
	}
	var hits []hit
	for id, entry := range s.docs[collection] {
		if entry.matches(want) {
			hits = append(hits, hit{id: id, entry: entry})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].entry.seq < hits[j].entry.seq })

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		doc, err := h.entry.document(h.id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields, err := toFields(id, data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(collection, id, fields)
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields, err := toFields(id, data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[collection][id]; ok {
		return fmt.Errorf("%w: %s/%s", ErrConflict, collection, id)
	}
	s.setLocked(collection, id, fields)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	id := newID()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := roundTrip(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.docs[collection][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	for k, v := range patch {
		entry.fields[k] = v
	}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.docs[collection][id]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	var current int64
	switch v := entry.fields[field].(type) {
	case nil:
	case float64:
		current = int64(v)
	default:
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidData, field)
	}
	current += delta
	entry.fields[field] = float64(current)
	return current, nil
}

func (s *MemoryStore) setLocked(collection, id string, fields map[string]interface{}) {
	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]*memoryEntry)
		s.docs[collection] = coll
	}
	if existing, ok := coll[id]; ok {
		existing.fields = fields
		return
	}
	s.seq++
	coll[id] = &memoryEntry{seq: s.seq, fields: fields}
}

func (e *memoryEntry) document(id string) (*Document, error) {
	raw, err := json.Marshal(e.fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &Document{ID: id, Data: raw}, nil
}

func (e *memoryEntry) matches(want map[string]interface{}) bool {
	for k, v := range want {
		if !reflect.DeepEqual(e.fields[k], v) {
			return false
		}
	}
	return true
}

// normalizeFilters gives filter values the same JSON shapes stored fields have.
func normalizeFilters(filters []Filter) (map[string]interface{}, error) {
	raw, err := filterJSON(filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return out, nil
}

func roundTrip(fields map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return out, nil
}
