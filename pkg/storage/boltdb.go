package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// FileName is the history database inside the state directory
const FileName = "history.db"

// LockTimeout bounds the wait for another osb process holding the database
const LockTimeout = time.Second

var (
	// Bucket names
	bucketRuns = []byte("runs")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the history in dataDir. The file lock is
// exclusive, so a second writer fails after LockTimeout.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return open(filepath.Join(dataDir, FileName), &bolt.Options{Timeout: LockTimeout})
}

// NewReadOnlyBoltStore opens an existing history with a shared lock.
// It returns os.ErrNotExist when there is no history yet.
func NewReadOnlyBoltStore(dataDir string) (*BoltStore, error) {
	path := filepath.Join(dataDir, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return open(path, &bolt.Options{Timeout: LockTimeout, ReadOnly: true})
}

func open(dbPath string, opts *bolt.Options) (*BoltStore, error) {
	db, err := bolt.Open(dbPath, 0600, opts)
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, types.Errorf(types.KindEnvironment, "open run history",
				"%s is locked by another osb process", dbPath)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.ReadOnly {
		return &BoltStore{db: db}, nil
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketRuns, err)
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Run operations

// CreateRun uses time-ordered UUIDs so key order is start order
func (s *BoltStore) CreateRun(run *types.RunRecord) error {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		run.ID = id.String()
	}
	return s.put(run)
}

func (s *BoltStore) GetRun(id string) (*types.RunRecord, error) {
	var run types.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *BoltStore) UpdateRun(run *types.RunRecord) error {
	if run.ID == "" {
		return errors.New("run has no ID")
	}
	return s.put(run) // Same as create (upsert)
}

func (s *BoltStore) ListRuns() ([]*types.RunRecord, error) {
	var runs []*types.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var run types.RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, &run)
			return nil
		})
	})
	return runs, err
}

func (s *BoltStore) LastRun() (*types.RunRecord, error) {
	var run *types.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return ErrNotFound
		}
		_, v := b.Cursor().Last()
		if v == nil {
			return ErrNotFound
		}
		run = &types.RunRecord{}
		return json.Unmarshal(v, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *BoltStore) put(run *types.RunRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return b.Put([]byte(run.ID), data)
	})
}
