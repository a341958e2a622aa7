// Package memory implements recordstore.Store entirely in process memory.
// It is the backend of choice for tests; a fresh store is always at the
// current bucket versions, so migrations never run here.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

type store struct {
	mutex   sync.Mutex
	buckets map[string]map[string][]byte // bucket name -> key -> JSON row
	known   map[string]*recordstore.Bucket
}

// New returns an empty in-memory store serving the given buckets.
func New(buckets []*recordstore.Bucket) recordstore.Store {
	s := &store{
		buckets: map[string]map[string][]byte{},
		known:   map[string]*recordstore.Bucket{},
	}
	for _, b := range buckets {
		s.buckets[b.Name] = map[string][]byte{}
		s.known[b.Name] = b
	}
	return s
}

func (s *store) rows(b *recordstore.Bucket) (map[string][]byte, error) {
	if _, ok := s.known[b.Name]; !ok {
		return nil, fmt.Errorf("bucket %q: %w", b.Name, recordstore.ErrNoSuchBucket)
	}
	return s.buckets[b.Name], nil
}

func decodeRow(b *recordstore.Bucket, row []byte) (recordstore.Record, error) {
	r := b.New()
	if err := json.Unmarshal(row, r); err != nil {
		return nil, fmt.Errorf("decoding %s record: %w", b.Name, err)
	}
	return r, nil
}

func (s *store) List(ctx context.Context, b *recordstore.Bucket, f recordstore.Filter) ([]recordstore.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, err := s.rows(b)
	if err != nil {
		return nil, err
	}
	var res []recordstore.Record
	for _, row := range rows {
		r, err := decodeRow(b, row)
		if err != nil {
			return nil, err
		}
		if f.Matches(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (s *store) Get(ctx context.Context, b *recordstore.Bucket, key string) (recordstore.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, err := s.rows(b)
	if err != nil {
		return nil, err
	}
	row, ok := rows[key]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", b.Name, key, recordstore.ErrNoSuchRecord)
	}
	return decodeRow(b, row)
}

func (s *store) Put(ctx context.Context, b *recordstore.Bucket, r recordstore.Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, err := s.rows(b)
	if err != nil {
		return err
	}
	row, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", b.Name, err)
	}
	rows[r.Key()] = row
	return nil
}

func (s *store) Delete(ctx context.Context, b *recordstore.Bucket, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, err := s.rows(b)
	if err != nil {
		return err
	}
	if _, ok := rows[key]; !ok {
		return fmt.Errorf("%s %q: %w", b.Name, key, recordstore.ErrNoSuchRecord)
	}
	delete(rows, key)
	return nil
}

func (s *store) Close() error {
	return nil
}
