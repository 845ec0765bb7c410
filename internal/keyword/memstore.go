package keyword

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultCapacity is the maximum keyword list size.
const DefaultCapacity = 100

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// All evaluator state is session-local, so this is the only implementation.
type MemStore struct {
	mu       sync.RWMutex
	keywords []Keyword // list order, newest first
	capacity int
}

// MemStoreOption configures a [MemStore].
type MemStoreOption func(*MemStore)

// WithCapacity overrides the maximum list size. Values outside (0,
// DefaultCapacity] are ignored.
func WithCapacity(n int) MemStoreOption {
	return func(s *MemStore) {
		if n > 0 && n <= DefaultCapacity {
			s.capacity = n
		}
	}
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore(opts ...MemStoreOption) *MemStore {
	s := &MemStore{capacity: DefaultCapacity}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, text string) (Keyword, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Keyword{}, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.keywords) >= s.capacity {
		return Keyword{}, ErrCapacity
	}
	if s.findByTextLocked(trimmed, "") >= 0 {
		return Keyword{}, ErrDuplicate
	}
	if !checkLength(trimmed) {
		return Keyword{}, fmt.Errorf("%w: limit is %d characters", ErrTooLong, MaxLen(trimmed))
	}

	id, err := generateID()
	if err != nil {
		return Keyword{}, fmt.Errorf("keyword: generate id: %w", err)
	}

	k := Keyword{ID: id, Text: trimmed}
	s.keywords = slices.Insert(s.keywords, 0, k)
	return k, nil
}

// Edit implements [Store.Edit].
func (s *MemStore) Edit(ctx context.Context, id, newText string) (Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findByIDLocked(id)
	if idx < 0 {
		return Keyword{}, ErrNotFound
	}

	trimmed := strings.TrimSpace(newText)
	if trimmed == "" {
		// Cancelled edit: the record keeps its text and match state.
		return s.keywords[idx], nil
	}

	if s.findByTextLocked(trimmed, id) >= 0 {
		return Keyword{}, ErrDuplicate
	}
	if !checkLength(trimmed) {
		return Keyword{}, fmt.Errorf("%w: limit is %d characters", ErrTooLong, MaxLen(trimmed))
	}

	// Stale match data must never survive a text edit.
	s.keywords[idx] = Keyword{ID: id, Text: trimmed}
	return s.keywords[idx], nil
}

// Remove implements [Store.Remove].
func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.findByIDLocked(id); idx >= 0 {
		s.keywords = slices.Delete(s.keywords, idx, idx+1)
	}
	return nil
}

// ResetMatches implements [Store.ResetMatches].
func (s *MemStore) ResetMatches(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.keywords {
		s.keywords[i] = Keyword{ID: s.keywords[i].ID, Text: s.keywords[i].Text}
	}
	return nil
}

// ApplyMatches implements [Store.ApplyMatches].
func (s *MemStore) ApplyMatches(ctx context.Context, updates map[string]MatchUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.keywords {
		u, ok := updates[s.keywords[i].ID]
		if !ok {
			continue
		}
		k := &s.keywords[i]
		k.TranslatedText = u.TranslatedText
		k.MatchCount = u.MatchCount
		k.FuzzyCount = u.FuzzyCount
		k.FuzzySegments = slices.Clone(u.FuzzySegments)
		k.Detected = u.MatchCount > 0
	}
	return nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context) ([]Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Keyword, len(s.keywords))
	for i, k := range s.keywords {
		k.FuzzySegments = slices.Clone(k.FuzzySegments)
		out[i] = k
	}
	return out, nil
}

// Stats implements [Store.Stats].
func (s *MemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.keywords)}
	for _, k := range s.keywords {
		exact := k.MatchCount > 0
		fuzzy := k.FuzzyCount > 0
		if exact {
			st.ExactDetected++
		}
		if fuzzy {
			st.FuzzyDetected++
		}
		if exact || fuzzy {
			st.Combined++
		}
	}
	if st.Total > 0 {
		st.ExactPercent = 100 * float64(st.ExactDetected) / float64(st.Total)
		st.FuzzyPercent = 100 * float64(st.FuzzyDetected) / float64(st.Total)
		st.CombinedPercent = 100 * float64(st.Combined) / float64(st.Total)
	}
	return st, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// findByIDLocked returns the index of the record with the given ID, or -1.
// Callers must hold s.mu.
func (s *MemStore) findByIDLocked(id string) int {
	for i := range s.keywords {
		if s.keywords[i].ID == id {
			return i
		}
	}
	return -1
}

// findByTextLocked returns the index of the record whose text equals text
// case-insensitively, skipping excludeID, or -1. Callers must hold s.mu.
func (s *MemStore) findByTextLocked(text, excludeID string) int {
	for i := range s.keywords {
		if s.keywords[i].ID == excludeID {
			continue
		}
		if strings.EqualFold(s.keywords[i].Text, text) {
			return i
		}
	}
	return -1
}

// generateID produces a random 16-byte hex string using crypto/rand.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
