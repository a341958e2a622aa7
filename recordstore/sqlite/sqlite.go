// Package sqlite implements recordstore.Store on a SQLite database.  Rows
// are stored as JSON in one table per bucket; a bucket_versions table drives
// the same open-time migration pass the boltdb backend performs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // Registers the "sqlite3" backend for database/sql.
	"github.com/sirupsen/logrus"

	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

type store struct {
	db    *sql.DB
	known map[string]*recordstore.Bucket
}

// Open opens (creating if necessary) the SQLite database at path, ensures
// every bucket's table exists, and brings stale buckets up to their current
// schema version.
func Open(path string, buckets []*recordstore.Bucket) (recordstore.Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening record store %q: %w", path, err)
	}
	// The store is shared by concurrent request handlers; a single
	// connection serializes access the same way the bolt backend does.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode for %q: %w", path, err)
	}
	s := &store{db: db, known: map[string]*recordstore.Bucket{}}
	for _, b := range buckets {
		s.known[b.Name] = b
	}
	if err := transaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS bucket_versions(name TEXT PRIMARY KEY NOT NULL, version INTEGER NOT NULL)`); err != nil {
			return err
		}
		for _, b := range buckets {
			if _, err := tx.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q(key TEXT PRIMARY KEY NOT NULL, row TEXT NOT NULL)`, b.Name)); err != nil {
				return err
			}
			if err := migrateBucket(tx, b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing record store %q: %w", path, err)
	}
	return s, nil
}

// transaction runs fn inside a transaction, committing on nil and rolling
// back on error.
func transaction(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			logrus.Errorf("error rolling back transaction: %v", rollbackErr)
		}
		return err
	}
	return tx.Commit()
}

func storedVersion(tx *sql.Tx, name string) (uint32, error) {
	var v uint32
	err := tx.QueryRow(`SELECT version FROM bucket_versions WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func migrateBucket(tx *sql.Tx, b *recordstore.Bucket) error {
	have, err := storedVersion(tx, b.Name)
	if err != nil {
		return err
	}
	if have > b.Version {
		return fmt.Errorf("bucket %q: stored version %d is newer than supported version %d", b.Name, have, b.Version)
	}
	if have < b.Version {
		logrus.Debugf("migrating bucket %q from version %d to %d", b.Name, have, b.Version)
		pending := b.Migrations[have-1:]
		rows, err := tx.Query(fmt.Sprintf(`SELECT key, row FROM %q`, b.Name))
		if err != nil {
			return err
		}
		type rewrite struct{ key, row string }
		var rewrites []rewrite
		for rows.Next() {
			var key, row string
			if err := rows.Scan(&key, &row); err != nil {
				rows.Close()
				return err
			}
			r := b.New()
			if err := unmarshalRow(b, key, row, r); err != nil {
				rows.Close()
				return err
			}
			changed := false
			for _, m := range pending {
				c, err := m(r)
				if err != nil {
					rows.Close()
					return fmt.Errorf("migrating %s record %q: %w", b.Name, key, err)
				}
				changed = changed || c
			}
			if changed {
				encoded, err := marshalRow(b, r)
				if err != nil {
					rows.Close()
					return err
				}
				rewrites = append(rewrites, rewrite{key: key, row: encoded})
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		for _, rw := range rewrites {
			if _, err := tx.Exec(fmt.Sprintf(`UPDATE %q SET row = ? WHERE key = ?`, b.Name), rw.row, rw.key); err != nil {
				return err
			}
		}
	}
	_, err = tx.Exec(`INSERT INTO bucket_versions(name, version) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET version = excluded.version`, b.Name, b.Version)
	return err
}

func (s *store) check(b *recordstore.Bucket) error {
	if _, ok := s.known[b.Name]; !ok {
		return fmt.Errorf("bucket %q: %w", b.Name, recordstore.ErrNoSuchBucket)
	}
	return nil
}

func (s *store) List(ctx context.Context, b *recordstore.Bucket, f recordstore.Filter) ([]recordstore.Record, error) {
	if err := s.check(b); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT key, row FROM %q`, b.Name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []recordstore.Record
	for rows.Next() {
		var key, row string
		if err := rows.Scan(&key, &row); err != nil {
			return nil, err
		}
		r := b.New()
		if err := unmarshalRow(b, key, row, r); err != nil {
			return nil, err
		}
		if f.Matches(r) {
			res = append(res, r)
		}
	}
	return res, rows.Err()
}

func (s *store) Get(ctx context.Context, b *recordstore.Bucket, key string) (recordstore.Record, error) {
	if err := s.check(b); err != nil {
		return nil, err
	}
	var row string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT row FROM %q WHERE key = ?`, b.Name), key).Scan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", b.Name, key, recordstore.ErrNoSuchRecord)
	}
	if err != nil {
		return nil, err
	}
	r := b.New()
	if err := unmarshalRow(b, key, row, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *store) Put(ctx context.Context, b *recordstore.Bucket, r recordstore.Record) error {
	if err := s.check(b); err != nil {
		return err
	}
	row, err := marshalRow(b, r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q(key, row) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET row = excluded.row`, b.Name), r.Key(), row)
	return err
}

func (s *store) Delete(ctx context.Context, b *recordstore.Bucket, key string) error {
	if err := s.check(b); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, b.Name), key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", b.Name, key, recordstore.ErrNoSuchRecord)
	}
	return nil
}

func (s *store) Close() error {
	return s.db.Close()
}
