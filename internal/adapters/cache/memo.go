package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memo is an in-process LRU front for expensive per-invocation parses,
// keyed by the same fingerprints as the disk store. Hot paths consult it
// before touching disk.
type Memo[V any] struct {
	lru *lru.Cache[string, V]
}

const memoSize = 128

// NewMemo creates a Memo with the default capacity.
func NewMemo[V any]() *Memo[V] {
	c, _ := lru.New[string, V](memoSize)
	return &Memo[V]{lru: c}
}

// Get returns the memoized value for a fingerprint.
func (m *Memo[V]) Get(fingerprint string) (V, bool) {
	return m.lru.Get(fingerprint)
}

// Put memoizes a value.
func (m *Memo[V]) Put(fingerprint string, v V) {
	m.lru.Add(fingerprint, v)
}
