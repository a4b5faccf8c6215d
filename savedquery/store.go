// Package savedquery persists a user's saved SPARQL queries as one JSON list
// in a key-value store.
package savedquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultStorageKey is the key holding the saved-query list.
const DefaultStorageKey = "rdf4j-queries"

// Query is a saved query. ID is the 1-based position in the list as last
// read and changes when earlier queries are deleted. Key is stable.
type Query struct {
	ID          int    `json:"id"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	QueryString string `json:"queryString"`
}

// record is the persisted form of a Query.
type record struct {
	Key         string `json:"key,omitempty"`
	Title       string `json:"title"`
	QueryString string `json:"queryString"`
}

// Store reads and writes the saved-query list.
type Store struct {
	kv     KV
	key    string
	logger *slog.Logger

	mu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) StoreOption {
	return func(s *Store) {
		s.key = key
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store over kv.
func NewStore(kv KV, opts ...StoreOption) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultStorageKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load reads the persisted list. A missing key is an empty list.
func (s *Store) load(ctx context.Context) ([]record, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read saved queries: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal saved queries: %w", err)
	}
	return records, nil
}

func (s *Store) store(ctx context.Context, records []record) error {
	if records == nil {
		records = []record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal saved queries: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("write saved queries: %w", err)
	}
	return nil
}

// loadKeyed reads the list and gives every record without a key a new one,
// writing the list back when any key was added.
func (s *Store) loadKeyed(ctx context.Context) ([]record, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	assigned := 0
	for i := range records {
		if records[i].Key == "" {
			records[i].Key = uuid.New().String()
			assigned++
		}
	}
	if assigned > 0 {
		s.logger.Debug("Assigned keys to saved queries", "count", assigned)
		if err := s.store(ctx, records); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// List returns the saved queries in stored order, numbered from 1.
func (s *Store) List(ctx context.Context) ([]Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadKeyed(ctx)
	if err != nil {
		return nil, err
	}

	queries := make([]Query, len(records))
	for i, r := range records {
		queries[i] = Query{
			ID:          i + 1,
			Key:         r.Key,
			Title:       r.Title,
			QueryString: r.QueryString,
		}
	}
	return queries, nil
}

// Save appends q and returns it with its position and key. Any ID or Key
// set on q is ignored.
func (s *Store) Save(ctx context.Context, q Query) (Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadKeyed(ctx)
	if err != nil {
		return Query{}, err
	}

	r := record{
		Key:         uuid.New().String(),
		Title:       q.Title,
		QueryString: q.QueryString,
	}
	records = append(records, r)
	if err := s.store(ctx, records); err != nil {
		return Query{}, err
	}

	return Query{
		ID:          len(records),
		Key:         r.Key,
		Title:       r.Title,
		QueryString: r.QueryString,
	}, nil
}

// Delete removes the query at 1-based position id. An id outside the list
// removes nothing.
func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadKeyed(ctx)
	if err != nil {
		return err
	}
	if id < 1 || id > len(records) {
		return nil
	}

	records = append(records[:id-1], records[id:]...)
	return s.store(ctx, records)
}

// DeleteByKey removes the query with the given key, or returns ErrNotFound.
func (s *Store) DeleteByKey(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadKeyed(ctx)
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.Key == key {
			records = append(records[:i], records[i+1:]...)
			return s.store(ctx, records)
		}
	}
	return ErrNotFound
}
