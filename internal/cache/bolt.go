package cache

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// BoltStore is a persistent KV with TTL semantics backed by a bbolt file.
// bbolt serialises writers and allows concurrent readers, so the store is
// safe for concurrent use.
type BoltStore struct {
	db         *bolt.DB
	bucket     []byte
	defaultTTL time.Duration
	clock      clock.Clock
	log        *zap.Logger
}

type BoltOptions struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// DefaultTTL is used when Put is called with ttl <= 0.
	DefaultTTL time.Duration
	// Clock defaults to the wall clock.
	Clock clock.Clock
	Logger *zap.Logger
}

// OpenBolt initializes or opens a BoltStore at the given path.
func OpenBolt(path string, opts BoltOptions) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	bucket := []byte("cache")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	s := &BoltStore{db: db, bucket: bucket, defaultTTL: opts.DefaultTTL, clock: opts.Clock, log: opts.Logger}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores value with an absolute expiration computed as now+ttl.
// If ttl <= 0, DefaultTTL is used; if DefaultTTL <= 0, the item never expires.
func (s *BoltStore) Put(key string, value []byte, ttl time.Duration) error {
	expiresAt := int64(0)
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl).UnixMilli()
	}
	// Layout: 8 bytes big endian expiresAt (unix ms) || raw value
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

// Get returns the cached value if present and not expired. An expired record
// is reported as ErrExpired and left for Sweep to reclaim.
func (s *BoltStore) Get(key string) ([]byte, error) {
	var out []byte
	var expired, exists bool
	now := s.clock.Now().UnixMilli()
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		exists = true
		if isExpired(v, now) {
			expired = true
			return nil
		}
		out = append([]byte(nil), v[8:]...)
		return nil
	}); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	if expired {
		return nil, ErrExpired
	}
	return out, nil
}

// Delete removes a key.
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Sweep deletes every record that has expired and returns how many were
// removed.
func (s *BoltStore) Sweep() (int, error) {
	removed := 0
	now := s.clock.Now().UnixMilli()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if isExpired(v, now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep bolt: %w", err)
	}
	return removed, nil
}

// StartSweeper runs Sweep every interval. The returned function stops it.
func (s *BoltStore) StartSweeper(interval time.Duration) (stop func()) {
	return startSweeper(s.clock, interval, s.log, s.Sweep)
}

func isExpired(v []byte, nowMilli int64) bool {
	if len(v) < 8 {
		return true
	}
	expiresAt := int64(binary.BigEndian.Uint64(v[:8]))
	return expiresAt > 0 && expiresAt <= nowMilli
}

var _ KV = (*BoltStore)(nil)
