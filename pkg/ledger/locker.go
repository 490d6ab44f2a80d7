package ledger

import (
	"context"
	"sort"
	"sync"
)

// AccountLocker provides mutual exclusion over account addresses.
// Lock acquires every key and returns a function releasing all of them.
type AccountLocker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// KeyedLocker is an in-process AccountLocker.
type KeyedLocker struct {
	mutex   sync.Mutex
	entries map[string]*keyedLockEntry
}

type keyedLockEntry struct {
	mutex   sync.Mutex
	holders int
}

// NewKeyedLocker returns an empty in-process locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[string]*keyedLockEntry)}
}

// Lock acquires keys in sorted order so overlapping callers cannot deadlock.
func (locker *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := SortedLockKeys(keys)
	acquired := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := ctx.Err(); err != nil {
			locker.release(acquired)
			return nil, err
		}
		entry := locker.retain(key)
		entry.mutex.Lock()
		acquired = append(acquired, key)
	}
	var once sync.Once
	return func() {
		once.Do(func() { locker.release(acquired) })
	}, nil
}

func (locker *KeyedLocker) retain(key string) *keyedLockEntry {
	locker.mutex.Lock()
	defer locker.mutex.Unlock()
	entry, ok := locker.entries[key]
	if !ok {
		entry = &keyedLockEntry{}
		locker.entries[key] = entry
	}
	entry.holders++
	return entry
}

func (locker *KeyedLocker) release(keys []string) {
	for index := len(keys) - 1; index >= 0; index-- {
		key := keys[index]
		locker.mutex.Lock()
		entry := locker.entries[key]
		entry.holders--
		if entry.holders == 0 {
			delete(locker.entries, key)
		}
		locker.mutex.Unlock()
		entry.mutex.Unlock()
	}
}

// SortedLockKeys returns keys deduplicated and sorted.
func SortedLockKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	return ordered
}
