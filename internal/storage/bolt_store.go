package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"streambench/internal/bench"
)

const (
	BucketTrials = "trials"
)

// Store persists trial records as they complete, so an interrupted sweep
// keeps everything it already measured. One db file per session.
type Store struct {
	db       *bbolt.DB
	filePath string
}

// OpenSession creates a session store under dir. An empty dir defaults to
// ~/.streambench/sessions.
func OpenSession(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".streambench", "sessions")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("session_%d.db", time.Now().UnixNano())
	return OpenPath(filepath.Join(dir, filename))
}

// OpenPath opens a session db at an exact location, creating it if needed.
// Useful for inspecting a past session file.
func OpenPath(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketTrials))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		filePath: path,
	}, nil
}

// Path returns the session db file location.
func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveTrial appends one record, keyed by bucket sequence so iteration order
// matches insertion order.
func (s *Store) SaveTrial(rec bench.TrialRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketTrials))

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// Trials returns all persisted records in insertion order.
func (s *Store) Trials() []bench.TrialRecord {
	var records []bench.TrialRecord

	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketTrials))
		c := b.Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec bench.TrialRecord
			if err := json.Unmarshal(v, &rec); err == nil {
				records = append(records, rec)
			}
		}
		return nil
	})

	return records
}
