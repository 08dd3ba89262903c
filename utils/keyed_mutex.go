package utils

import (
	"hash/fnv"
	"sync"
)

const defaultLockShards = 64

// KeyedMutex provides mutual exclusion per key without serializing unrelated
// keys. Locks are sharded by key hash, so two distinct keys only contend when
// they land on the same shard. Used for the per-consent limit check, where
// read-sum-then-write must be atomic per consent.
type KeyedMutex struct {
	shards []sync.Mutex
}

func CreateKeyedMutex() *KeyedMutex {
	return CreateKeyedMutexWithShards(defaultLockShards)
}

func CreateKeyedMutexWithShards(shards int) *KeyedMutex {
	if shards <= 0 {
		shards = defaultLockShards
	}
	return &KeyedMutex{shards: make([]sync.Mutex, shards)}
}

func (m *KeyedMutex) shardFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.shards[int(h.Sum32())%len(m.shards)]
}

// WithLock runs fn while holding the shard lock for key.
func (m *KeyedMutex) WithLock(key string, fn func() error) error {
	shard := m.shardFor(key)
	shard.Lock()
	defer shard.Unlock()
	return fn()
}
