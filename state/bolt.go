package state

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/dyndnsd/dyndnsd/record"
	bolt "go.etcd.io/bbolt"
)

var bucketRecords = []byte("records")

// BoltStore implements [Store] on a single-file bbolt database.
// bbolt transactions make each commit atomic with respect to crashes
// and serialize writes from different record tasks.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

var _ Store = (*BoltStore)(nil)

// Load implements [Store.Load].
func (s *BoltStore) Load(rec record.Record) (PublishedState, error) {
	var ps PublishedState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(rec.Key()))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &ps)
	})
	if err != nil {
		return PublishedState{}, fmt.Errorf("failed to load state of %q: %w", rec.Key(), err)
	}
	return ps, nil
}

// Commit implements [Store.Commit].
func (s *BoltStore) Commit(rec record.Record, addr netip.Addr, at time.Time) error {
	data, err := json.Marshal(PublishedState{Addr: addr, UpdatedAt: at})
	if err != nil {
		return fmt.Errorf("failed to marshal state of %q: %w", rec.Key(), err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Put([]byte(rec.Key()), data)
	})
	if err != nil {
		return fmt.Errorf("failed to commit state of %q: %w", rec.Key(), err)
	}
	return nil
}

// Close implements [Store.Close].
func (s *BoltStore) Close() error {
	return s.db.Close()
}
