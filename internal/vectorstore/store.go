// Package vectorstore is an in-process embedding index with a linear-scan
// query and a JSON snapshot format.
package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/persist"
	"github.com/dpolishuk/codesense/internal/similarity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrMalformedSnapshot = errors.New("malformed vector store snapshot")
	ErrMissingID         = errors.New("vector entry has no id")
)

// entryNamespace scopes the name-based UUIDs handed out by EntryID.
var entryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("codesense:vector-entry"))

// EntryID returns the stable id of the entry for a code block, so re-indexing
// the same block overwrites its previous entry.
func EntryID(blockID string) string {
	return uuid.NewSHA1(entryNamespace, []byte(blockID)).String()
}

// Match is a query hit.
type Match struct {
	Entry models.VectorEntry `json:"entry"`
	Score float64            `json:"score"`
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]models.VectorEntry
	order   []string
	logger  logrus.FieldLogger
}

// New creates an empty store holding vectors of length dim. A non-positive
// dim is fixed by the first inserted entry.
func New(dim int, logger logrus.FieldLogger) *Store {
	return &Store{
		dim:     dim,
		entries: make(map[string]models.VectorEntry),
		logger:  logger.WithField("component", "vectorstore"),
	}
}

// Load reads a snapshot from path. A missing file yields an empty store; a
// malformed one is logged and also yields an empty store.
func Load(path string, dim int, logger logrus.FieldLogger) *Store {
	s := New(dim, logger)

	var raw json.RawMessage
	err := persist.ReadJSON(path, &raw)
	if errors.Is(err, persist.ErrNotExist) {
		return s
	}
	if err == nil {
		err = s.Import(raw)
	}
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("discarding unreadable vector store")
		return New(dim, logger)
	}

	s.logger.WithFields(logrus.Fields{"path": path, "entries": s.Len()}).Info("loaded vector store")
	return s
}

// Save writes the snapshot to path.
func (s *Store) Save(path string) error {
	if err := persist.WriteJSON(path, s.Export()); err != nil {
		return fmt.Errorf("failed to save vector store: %w", err)
	}
	return nil
}

// Dimension returns the vector length the store accepts, 0 if not yet fixed.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Insert adds entry, overwriting any entry with the same id.
func (s *Store) Insert(entry models.VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(entry, s.dim); err != nil {
		return err
	}
	if s.dim <= 0 {
		s.dim = len(entry.Embedding)
	}
	s.put(entry)
	return nil
}

func (s *Store) put(entry models.VectorEntry) {
	entry.Embedding = append([]float32(nil), entry.Embedding...)
	if _, ok := s.entries[entry.ID]; !ok {
		s.order = append(s.order, entry.ID)
	}
	s.entries[entry.ID] = entry
}

func (s *Store) validate(entry models.VectorEntry, dim int) error {
	if entry.ID == "" {
		return ErrMissingID
	}
	if dim > 0 && len(entry.Embedding) != dim {
		return fmt.Errorf("%w: entry %s has %d, store holds %d", ErrDimensionMismatch, entry.ID, len(entry.Embedding), dim)
	}
	return nil
}

// Get returns the entry stored under id.
func (s *Store) Get(id string) (models.VectorEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Query scans every entry and returns those whose cosine similarity to vector
// is positive and at least threshold, best first, truncated to topK (no limit
// when topK is not positive). Entries scoring 0 or less are never returned,
// even for a threshold of 0, so zero fallback vectors never match. Ties are
// ordered by id.
func (s *Store) Query(vector []float32, topK int, threshold float64) []Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, id := range s.order {
		entry := s.entries[id]
		score := similarity.Cosine(vector, entry.Embedding)
		if score <= 0 || score < threshold {
			continue
		}
		matches = append(matches, Match{Entry: entry, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Export returns a copy of every entry in insertion order.
func (s *Store) Export() []models.VectorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.VectorEntry, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		e.Embedding = append([]float32(nil), e.Embedding...)
		out = append(out, e)
	}
	return out
}

// Import replaces the store contents with a JSON snapshot produced by Export.
// The snapshot must be an array of valid entries; otherwise the store is left
// untouched.
func (s *Store) Import(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: expected an array", ErrMalformedSnapshot)
	}

	entries := make([]models.VectorEntry, 0, len(raw))
	for i, item := range raw {
		var e models.VectorEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrMalformedSnapshot, i, err)
		}
		entries = append(entries, e)
	}
	return s.ImportEntries(entries)
}

// ImportEntries replaces the store contents with entries, all or nothing.
func (s *Store) ImportEntries(entries []models.VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for i, e := range entries {
		if dim <= 0 {
			dim = len(e.Embedding)
		}
		if err := s.validate(e, dim); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrMalformedSnapshot, i, err)
		}
	}

	s.entries = make(map[string]models.VectorEntry, len(entries))
	s.order = s.order[:0]
	if dim > 0 {
		s.dim = dim
	}
	for _, e := range entries {
		s.put(e)
	}
	return nil
}

// Clear drops every entry. The dimension stays fixed.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]models.VectorEntry)
	s.order = nil
}
