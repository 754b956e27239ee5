package posts

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// MemoryStore is an in-process Store used by tests and the ephemeral
// storage provider. Ids are allocated as max+1 under the write lock.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]interfaces.Document
	locks  *keyedLocks
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byName: map[string]interfaces.Document{}, locks: newKeyedLocks()}
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]interfaces.Document, error) {
	limit, offset, ok := normalizePage(limit, offset)
	if !ok {
		return []interfaces.Document{}, nil
	}

	s.mu.RLock()
	docs := slices.Collect(maps.Values(s.byName))
	s.mu.RUnlock()

	slices.SortFunc(docs, compareDocuments)
	if offset >= len(docs) {
		return []interfaces.Document{}, nil
	}
	end := len(docs)
	if limit < end-offset {
		end = offset + limit
	}
	return slices.Clone(docs[offset:end]), nil
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName), nil
}

// FindByFilename implements Store.
func (s *MemoryStore) FindByFilename(_ context.Context, filename string) (*interfaces.Document, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byName[name]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &doc, nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(context.Context) (map[string]interfaces.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.byName), nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, filename, title, date string) (UpsertResult, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return UpsertResult{}, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byName[name]
	if !ok {
		doc := interfaces.Document{ID: s.maxID() + 1, Filename: name, Title: title, Date: date}
		s.byName[name] = doc
		return UpsertResult{Action: UpsertInserted, Document: doc}, nil
	}
	if existing.Title == title && existing.Date == date {
		return UpsertResult{Action: UpsertUnchanged, Document: existing}, nil
	}
	existing.Title = title
	existing.Date = date
	s.byName[name] = existing
	return UpsertResult{Action: UpsertUpdated, Document: existing}, nil
}

// UpdateTitle implements Store.
func (s *MemoryStore) UpdateTitle(_ context.Context, filename, title string) (bool, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.byName[name]
	if !ok {
		return false, nil
	}
	doc.Title = title
	s.byName[name] = doc
	return true, nil
}

// DeleteByFilename implements Store.
func (s *MemoryStore) DeleteByFilename(_ context.Context, filename string) (bool, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[name]; !ok {
		return false, nil
	}
	delete(s.byName, name)
	return true, nil
}

// DeleteByID implements Store.
func (s *MemoryStore) DeleteByID(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, doc := range s.byName {
		if doc.ID == id {
			delete(s.byName, name)
			return true, nil
		}
	}
	return false, nil
}

// maxID mirrors SQLite rowid allocation: the next id is the current maximum
// plus one. Callers hold s.mu.
func (s *MemoryStore) maxID() int64 {
	var top int64
	for _, doc := range s.byName {
		top = max(top, doc.ID)
	}
	return top
}

func compareDocuments(a, b interfaces.Document) int {
	if c := cmp.Compare(b.Date, a.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
