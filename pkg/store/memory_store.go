package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"filesmanager/pkg/domain"
)

// MemoryStore keeps users and nodes in-process. It backs tests and
// single-instance development runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User     // key: user ID
	email map[string]string          // email -> user ID
	nodes map[string]domain.FileNode // key: node ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		email: make(map[string]string),
		nodes: make(map[string]domain.FileNode),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.email[u.Email]; exists {
		return ErrDuplicateEmail
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) UserCount(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// CreateNode stores n unless a node with the same id already exists.
func (m *MemoryStore) CreateNode(_ context.Context, n domain.FileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.nodes[n.ID]; exists {
		return nil
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.nodes[n.ID] = n
	return nil
}

func (m *MemoryStore) GetNode(_ context.Context, id string) (domain.FileNode, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok, nil
}

func (m *MemoryStore) ListChildren(_ context.Context, ownerID string, parent domain.Parent, offset, limit int) ([]domain.FileNode, error) {
	m.mu.RLock()
	matched := make([]domain.FileNode, 0)
	for _, n := range m.nodes {
		if n.OwnerID == ownerID && n.Parent == parent {
			matched = append(matched, n)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.FileNode{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

func (m *MemoryStore) SetNodeVisibility(_ context.Context, id string, isPublic bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.IsPublic = isPublic
	m.nodes[id] = n
	return nil
}

func (m *MemoryStore) NodeCount(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.nodes)), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
