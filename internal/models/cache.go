package models

import "time"

// CacheRecord is a persisted description guarded by the content hash it was
// generated for.
type CacheRecord struct {
	Key         string            `json:"key"`
	ContentHash string            `json:"contentHash"`
	Description string            `json:"description"`
	FieldHashes map[string]string `json:"fieldHashes,omitempty"`
	LastUpdated time.Time         `json:"lastUpdated"`
}
