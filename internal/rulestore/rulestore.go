// Package rulestore persists the active Rule set as name -> source text
// in an embedded bbolt key/value store. A flat name-to-text mapping has
// no relations and no time-series shape, so a bucket of keys serves it
// directly rather than a relational schema sized for Datastore (§4.10).
package rulestore

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const rulesBucket = "rules"

// Store wraps a bbolt database holding one bucket: rule name -> source
// text.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt file at path and ensures the rules
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("rulestore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rulesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("rulestore: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes (or overwrites) name's source text, called by `automon rule
// add` after the Kernel accepts the rule.
func (s *Store) Put(name, source string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rulesBucket))
		return b.Put([]byte(name), []byte(source))
	})
}

// Delete removes name, called by `automon rule rm`.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rulesBucket))
		return b.Delete([]byte(name))
	})
}

// All returns the full name -> source mapping, read once at Kernel
// startup to re-add every persisted rule.
func (s *Store) All() (map[string]string, error) {
	out := map[string]string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rulesBucket))
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("rulestore: read all: %w", err)
	}
	return out, nil
}
