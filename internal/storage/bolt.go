package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"presupuesto/internal/core"
)

var (
	bucketCache = []byte("local_cache")
	bucketSync  = []byte("sync_state")
	keyPending  = []byte("pending_since")
	keyLastSync = []byte("last_synced_at")
)

// BoltCache stores the local snapshot in a bbolt file.
type BoltCache struct {
	db *bolt.DB
}

func NewBoltCache(dbPath string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCache, bucketSync} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}

func (c *BoltCache) Load(_ context.Context) (core.Snapshot, bool, error) {
	entries := map[string][]byte{}
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).ForEach(func(k, v []byte) error {
			// Values are only valid for the life of the transaction.
			entries[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return core.Snapshot{}, false, err
	}
	if len(entries) == 0 {
		return core.Snapshot{}, false, nil
	}
	s, err := decodeSnapshot(entries)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	return s, true, nil
}

func (c *BoltCache) Save(_ context.Context, s core.Snapshot) error {
	entries, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)
		for _, key := range EntityKeys {
			if err := b.Put([]byte(key), entries[key]); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
		}
		return nil
	})
}

func (c *BoltCache) MarkPending(_ context.Context, at time.Time) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSync)
		if b.Get(keyPending) != nil {
			return nil
		}
		return b.Put(keyPending, []byte(at.UTC().Format(time.RFC3339)))
	})
}

func (c *BoltCache) ClearPending(_ context.Context, at time.Time) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSync)
		if err := b.Delete(keyPending); err != nil {
			return err
		}
		return b.Put(keyLastSync, []byte(at.UTC().Format(time.RFC3339)))
	})
}

func (c *BoltCache) Pending(_ context.Context) (bool, error) {
	var pending bool
	err := c.db.View(func(tx *bolt.Tx) error {
		pending = tx.Bucket(bucketSync).Get(keyPending) != nil
		return nil
	})
	return pending, err
}
