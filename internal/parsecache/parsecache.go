// Package parsecache memoizes lowered query functions.
//
// Lowering a query function is pure: the same AST always yields the same
// operation tree, auto-parameters, and front-end context. The cache keys
// entries by the AST fingerprint and stores an immutable snapshot; hits
// hand out clones so callers can finalize without touching the stored
// entry. Eviction is LRU.
package parsecache

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/parse"
)

// DefaultCapacity bounds the cache when the configuration does not.
const DefaultCapacity = 256

// Config controls caching behavior.
type Config struct {
	Enabled  bool
	Capacity int // entries; DefaultCapacity when zero or negative
}

// Entry is one memoized lowering.
type Entry struct {
	Op  ir.Op
	Ctx *parse.Context
}

func (e *Entry) clone() *Entry {
	return &Entry{Op: ir.CloneOp(e.Op), Ctx: e.Ctx.Clone()}
}

// Cache is a fingerprint-keyed LRU of lowered query functions. A nil
// Cache is valid and never hits. Safe for concurrent use.
type Cache struct {
	lru *lru.Cache[string, *Entry]
}

// New builds a cache, or returns nil when disabled.
func New(cfg Config) *Cache {
	if !cfg.Enabled {
		return nil
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner, err := lru.NewWithEvict(capacity, func(key string, _ *Entry) {
		slog.Debug("parse cache evict", "key", key)
	})
	if err != nil {
		// Only reachable with a non-positive capacity, which we fixed up.
		panic(err)
	}
	return &Cache{lru: inner}
}

// Get returns a clone of the entry for key, if present.
func (c *Cache) Get(key string) (*Entry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lru.Get(key)
	if !ok {
		slog.Debug("parse cache miss", "key", key)
		return nil, false
	}
	slog.Debug("parse cache hit", "key", key)
	return e.clone(), true
}

// Put stores a clone of the entry under key.
func (c *Cache) Put(key string, e *Entry) {
	if c == nil {
		return
	}
	c.lru.Add(key, e.clone())
}

// Purge drops every entry.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
