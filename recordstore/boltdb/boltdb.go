// Package boltdb implements recordstore.Store on a single bbolt file.  Each
// record bucket maps to one bolt bucket of JSON rows; a "versions" bucket
// tracks the schema version each record bucket was last written at, and
// pending migrations run once, inside the opening transaction.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

var versionsBucket = []byte("versions")

type store struct {
	db    *bolt.DB
	known map[string]*recordstore.Bucket
}

// Open opens (creating if necessary) the bolt file at path, ensures every
// bucket exists, and brings stale buckets up to their current schema
// version.
func Open(path string, buckets []*recordstore.Bucket) (recordstore.Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening record store %q: %w", path, err)
	}
	s := &store{db: db, known: map[string]*recordstore.Bucket{}}
	for _, b := range buckets {
		s.known[b.Name] = b
	}
	err = db.Update(func(tx *bolt.Tx) error {
		vb, err := tx.CreateBucketIfNotExists(versionsBucket)
		if err != nil {
			return err
		}
		for _, b := range buckets {
			bb, err := tx.CreateBucketIfNotExists([]byte(b.Name))
			if err != nil {
				return err
			}
			if err := migrateBucket(b, bb, vb); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing record store %q: %w", path, err)
	}
	return s, nil
}

func storedVersion(vb *bolt.Bucket, name string) uint32 {
	raw := vb.Get([]byte(name))
	if len(raw) != 4 {
		return 1
	}
	return binary.BigEndian.Uint32(raw)
}

func migrateBucket(b *recordstore.Bucket, bb, vb *bolt.Bucket) error {
	have := storedVersion(vb, b.Name)
	if have > b.Version {
		return fmt.Errorf("bucket %q: stored version %d is newer than supported version %d", b.Name, have, b.Version)
	}
	if have < b.Version {
		logrus.Debugf("migrating bucket %q from version %d to %d", b.Name, have, b.Version)
		pending := b.Migrations[have-1:]
		// Collect rewrites first; bolt cursors do not tolerate
		// concurrent writes to the same bucket.
		type rewrite struct{ key, row []byte }
		var rewrites []rewrite
		err := bb.ForEach(func(k, v []byte) error {
			r := b.New()
			if err := json.Unmarshal(v, r); err != nil {
				return fmt.Errorf("decoding %s record %q: %w", b.Name, k, err)
			}
			changed := false
			for _, m := range pending {
				c, err := m(r)
				if err != nil {
					return fmt.Errorf("migrating %s record %q: %w", b.Name, k, err)
				}
				changed = changed || c
			}
			if !changed {
				return nil
			}
			row, err := json.Marshal(r)
			if err != nil {
				return err
			}
			rewrites = append(rewrites, rewrite{key: append([]byte(nil), k...), row: row})
			return nil
		})
		if err != nil {
			return err
		}
		for _, rw := range rewrites {
			if err := bb.Put(rw.key, rw.row); err != nil {
				return err
			}
		}
	}
	version := make([]byte, 4)
	binary.BigEndian.PutUint32(version, b.Version)
	return vb.Put([]byte(b.Name), version)
}

func (s *store) bucket(tx *bolt.Tx, b *recordstore.Bucket) (*bolt.Bucket, error) {
	if _, ok := s.known[b.Name]; !ok {
		return nil, fmt.Errorf("bucket %q: %w", b.Name, recordstore.ErrNoSuchBucket)
	}
	bb := tx.Bucket([]byte(b.Name))
	if bb == nil {
		return nil, fmt.Errorf("bucket %q: %w", b.Name, recordstore.ErrNoSuchBucket)
	}
	return bb, nil
}

func (s *store) List(ctx context.Context, b *recordstore.Bucket, f recordstore.Filter) ([]recordstore.Record, error) {
	var res []recordstore.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		bb, err := s.bucket(tx, b)
		if err != nil {
			return err
		}
		return bb.ForEach(func(k, v []byte) error {
			r := b.New()
			if err := json.Unmarshal(v, r); err != nil {
				return fmt.Errorf("decoding %s record %q: %w", b.Name, k, err)
			}
			if f.Matches(r) {
				res = append(res, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *store) Get(ctx context.Context, b *recordstore.Bucket, key string) (recordstore.Record, error) {
	var rec recordstore.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		bb, err := s.bucket(tx, b)
		if err != nil {
			return err
		}
		row := bb.Get([]byte(key))
		if row == nil {
			return fmt.Errorf("%s %q: %w", b.Name, key, recordstore.ErrNoSuchRecord)
		}
		r := b.New()
		if err := json.Unmarshal(row, r); err != nil {
			return fmt.Errorf("decoding %s record %q: %w", b.Name, key, err)
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *store) Put(ctx context.Context, b *recordstore.Bucket, r recordstore.Record) error {
	row, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", b.Name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bb, err := s.bucket(tx, b)
		if err != nil {
			return err
		}
		return bb.Put([]byte(r.Key()), row)
	})
}

func (s *store) Delete(ctx context.Context, b *recordstore.Bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bb, err := s.bucket(tx, b)
		if err != nil {
			return err
		}
		if bb.Get([]byte(key)) == nil {
			return fmt.Errorf("%s %q: %w", b.Name, key, recordstore.ErrNoSuchRecord)
		}
		return bb.Delete([]byte(key))
	})
}

func (s *store) Close() error {
	return s.db.Close()
}
