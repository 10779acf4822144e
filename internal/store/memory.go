package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sevigo/code-atlas/internal/core"
)

// MemoryStore is an in-memory Store used by tests and dry runs. It mirrors
// the Postgres semantics, including idempotent upserts.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]Document
	states map[string]RepoState
	runs   []core.IngestionRun
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]Document),
		states: make(map[string]RepoState),
	}
}

func (m *MemoryStore) Upsert(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *MemoryStore) DeleteByRepo(_ context.Context, repoID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, doc := range m.docs {
		if doc.RepoID == repoID {
			delete(m.docs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) DeleteByFile(_ context.Context, repoID, path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, doc := range m.docs {
		if doc.RepoID == repoID && doc.FilePath == path {
			delete(m.docs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) FileIndexByPath(_ context.Context, repoID, path string) (*core.FileIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.docs {
		if doc.RepoID == repoID && doc.FilePath == path && doc.Type == core.DocTypeFile {
			var file core.FileIndex
			if err := json.Unmarshal(doc.Payload, &file); err != nil {
				return nil, fmt.Errorf("failed to decode file index %s: %w", doc.ID, err)
			}
			return &file, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FileIndexesForRepo(_ context.Context, repoID string) ([]core.FileIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files []core.FileIndex
	for _, doc := range m.docs {
		if doc.RepoID == repoID && doc.Type == core.DocTypeFile {
			var file core.FileIndex
			if err := json.Unmarshal(doc.Payload, &file); err != nil {
				return nil, fmt.Errorf("failed to decode file index %s: %w", doc.ID, err)
			}
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })
	return files, nil
}

func (m *MemoryStore) CountFiles(_ context.Context, repoID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, doc := range m.docs {
		if doc.RepoID == repoID && doc.Type == core.DocTypeFile {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountByType(_ context.Context, repoID string) (map[core.DocType]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[core.DocType]int)
	for _, doc := range m.docs {
		if doc.RepoID == repoID {
			counts[doc.Type]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) RepoIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, doc := range m.docs {
		if !seen[doc.RepoID] {
			seen[doc.RepoID] = true
			ids = append(ids, doc.RepoID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) GetRepoState(_ context.Context, repoID string) (*RepoState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[repoID]
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (m *MemoryStore) SaveRepoState(_ context.Context, state RepoState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.RepoID] = state
	return nil
}

func (m *MemoryStore) DeleteRepoState(_ context.Context, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, repoID)
	return nil
}

func (m *MemoryStore) SaveRun(_ context.Context, run core.IngestionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.runs {
		if existing.RunID == run.RunID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *MemoryStore) Runs(_ context.Context, limit int) ([]core.IngestionRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]core.IngestionRun, len(m.runs))
	copy(runs, m.runs)
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Documents returns a snapshot of everything stored, for test assertions.
func (m *MemoryStore) Documents() []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}
