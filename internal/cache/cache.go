// Package cache keeps finished item records so an interrupted run can resume
// without revisiting items it already harvested.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/feedharvest/internal/model"
)

// Backend stores opaque values by key
type Backend interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for an item URL
func Key(itemURL string) string {
	hash := sha256.Sum256([]byte(itemURL))
	return "feedharvest:v1:" + hex.EncodeToString(hash[:])
}

// RecordCache stores item records on top of a Backend
type RecordCache struct {
	backend Backend
	ttl     time.Duration
}

// NewRecordCache wraps backend; ttl 0 uses the backend default
func NewRecordCache(backend Backend, ttl time.Duration) *RecordCache {
	return &RecordCache{backend: backend, ttl: ttl}
}

// Get returns the record cached for itemURL. Undecodable entries are
// dropped and reported as a miss.
func (c *RecordCache) Get(itemURL string) (model.ItemRecord, bool) {
	key := Key(itemURL)

	data, ok := c.backend.Get(key)
	if !ok {
		return model.ItemRecord{}, false
	}

	var rec model.ItemRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.URL != itemURL {
		_ = c.backend.Delete(key)
		return model.ItemRecord{}, false
	}
	return rec, true
}

// Put caches rec under its URL. Only successful records are kept so that
// failed and skipped items are retried on the next run.
func (c *RecordCache) Put(rec model.ItemRecord) error {
	if rec.Status != model.StatusOK {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := c.backend.Set(Key(rec.URL), data, c.ttl); err != nil {
		return fmt.Errorf("cache record %s: %w", rec.URL, err)
	}
	return nil
}

// Clear drops every cached record
func (c *RecordCache) Clear() error {
	return c.backend.Clear()
}
