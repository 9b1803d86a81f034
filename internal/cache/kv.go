package cache

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cache: not found")
	ErrExpired  = errors.New("cache: expired")
)

// KV defines the minimal key-value cache contract with TTL semantics.
// Implementations must be safe for concurrent use by multiple goroutines.
//
// Put with ttl <= 0 uses the implementation's default TTL; when that default
// is also <= 0 the key is stored without expiry.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// MemoryKV exposes a Memory cache of byte slices as a KV.
type MemoryKV struct {
	mem        *Memory[[]byte]
	defaultTTL time.Duration
}

// NewMemoryKV wraps mem. Put with ttl <= 0 uses defaultTTL instead, and a
// defaultTTL <= 0 stores keys without expiry.
func NewMemoryKV(mem *Memory[[]byte], defaultTTL time.Duration) *MemoryKV {
	return &MemoryKV{mem: mem, defaultTTL: defaultTTL}
}

func (k *MemoryKV) Get(key string) ([]byte, error) {
	v, ok := k.mem.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (k *MemoryKV) Put(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = k.defaultTTL
	}
	v := append([]byte(nil), value...)
	if ttl <= 0 {
		k.mem.setPersistent(key, v)
		return nil
	}
	k.mem.Set(key, v, ttl)
	return nil
}

func (k *MemoryKV) Delete(key string) error {
	k.mem.Delete(key)
	return nil
}

var _ KV = (*MemoryKV)(nil)
