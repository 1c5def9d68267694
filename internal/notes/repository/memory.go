package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notekeeper/notekeeper/internal/notes"
)

// MemoryRepo keeps notes in process memory. It backs unit tests and the
// NOTES_STORE=memory mode.
type MemoryRepo struct {
	mu     sync.RWMutex
	lastID int64
	byID   map[int64]*notes.Note
	bySlug map[string]int64
	now    func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[int64]*notes.Note),
		bySlug: make(map[string]int64),
		now:    time.Now,
	}
}

func (m *MemoryRepo) Create(_ context.Context, n *notes.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.bySlug[n.Slug]; taken {
		return &notes.DuplicateSlugError{Slug: n.Slug}
	}
	m.lastID++
	n.ID = m.lastID
	n.CreatedAt = m.now().UTC()
	n.UpdatedAt = n.CreatedAt
	stored := *n
	m.byID[n.ID] = &stored
	m.bySlug[n.Slug] = n.ID
	return nil
}

func (m *MemoryRepo) GetBySlug(_ context.Context, slug string) (*notes.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySlug[slug]
	if !ok {
		return nil, notes.ErrNotFound
	}
	out := *m.byID[id]
	return &out, nil
}

func (m *MemoryRepo) ListByAuthor(_ context.Context, author string) ([]*notes.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*notes.Note, 0)
	for _, n := range m.byID {
		if n.Author == author {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepo) Update(_ context.Context, id int64, p notes.Patch) (*notes.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return nil, notes.ErrNotFound
	}
	p.Apply(n)
	n.UpdatedAt = m.now().UTC()
	out := *n
	return &out, nil
}

func (m *MemoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return notes.ErrNotFound
	}
	delete(m.bySlug, n.Slug)
	delete(m.byID, id)
	return nil
}

func (m *MemoryRepo) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.byID)), nil
}
