package http

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-app/backend/internal/domain"
)

// In-memory stores with the same observable behavior as the SQL ones,
// including the conditional revoke that backs refresh rotation.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (m *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return domain.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == strings.ToLower(username) {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
		return nil
	}
	return domain.ErrNotFound
}

func (m *memUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Active = active
		return nil
	}
	return domain.ErrNotFound
}

func (m *memUserRepo) ListAll(ctx context.Context, limit, offset int) ([]*domain.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *memTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	m.tokens[t.Fingerprint] = t
	return nil
}

func (m *memTokenRepo) GetByFingerprint(ctx context.Context, fp string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[fp]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memTokenRepo) Revoke(ctx context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[fp]
	if !ok || !t.Usable(time.Now()) {
		return false, nil
	}
	now := time.Now()
	t.RevokedAt = &now
	return true, nil
}

func (m *memTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.Usable(now) {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for fp, t := range m.tokens {
		if time.Now().After(t.ExpiresAt) {
			delete(m.tokens, fp)
			n++
		}
	}
	return n, nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events []*domain.LoginEvent
}

func (m *memEventRepo) Create(ctx context.Context, e *domain.LoginEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memEventRepo) ListRecent(ctx context.Context, limit, offset int) ([]*domain.LoginEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events, len(m.events), nil
}

func (m *memEventRepo) ActiveUsers(ctx context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	for _, e := range m.events {
		if e.CreatedAt.After(since) {
			seen[e.UserID] = struct{}{}
		}
	}
	return len(seen), nil
}

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*domain.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[uuid.UUID]*domain.Project)}
}

func (m *memProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.projects[p.ID] = p
	return nil
}

func (m *memProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memProjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, includeArchived bool, limit, offset int) ([]*domain.Project, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID && (includeArchived || !p.Archived) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return domain.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	m.projects[p.ID] = p
	return nil
}

func (m *memProjectRepo) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		p.Archived = archived
		return nil
	}
	return domain.ErrNotFound
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *memTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = t
	return nil
}

func (m *memTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memTaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID, status string, limit, offset int) ([]*domain.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID && (status == "" || t.Status == status) {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (m *memTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return domain.ErrNotFound
	}
	t.UpdatedAt = time.Now()
	m.tasks[t.ID] = t
	return nil
}

func (m *memTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}
