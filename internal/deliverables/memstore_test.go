package deliverables

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-portal/backend/internal/models"
)

// memStore is an in-memory Store with the same compare-and-swap rules as the Postgres one.
type memStore struct {
	mu        sync.Mutex
	posts     map[uuid.UUID]*models.Post
	versions  map[uuid.UUID][]models.PostVersion
	comments  map[uuid.UUID][]models.Comment
	reactions map[uuid.UUID][]models.Reaction
	history   map[uuid.UUID][]models.Approval
}

func newMemStore() *memStore {
	return &memStore{
		posts:     map[uuid.UUID]*models.Post{},
		versions:  map[uuid.UUID][]models.PostVersion{},
		comments:  map[uuid.UUID][]models.Comment{},
		reactions: map[uuid.UUID][]models.Reaction{},
		history:   map[uuid.UUID][]models.Approval{},
	}
}

func (m *memStore) put(p models.Post) *models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.LockVersion == 0 {
		p.LockVersion = 1
	}
	m.posts[p.ID] = &p
	cp := p
	return &cp
}

func (m *memStore) Create(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.LockVersion = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, tenantID, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) List(_ context.Context, tenantID, clientID uuid.UUID, f ListFilter) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.Post{}
	for _, p := range m.posts {
		if p.TenantID != tenantID || p.ClientID != clientID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Priority != "" && p.Priority != f.Priority {
			continue
		}
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
	return list, nil
}

func (m *memStore) Versions(_ context.Context, postID uuid.UUID) ([]models.PostVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PostVersion{}, m.versions[postID]...), nil
}

func (m *memStore) Version(_ context.Context, postID uuid.UUID, number int) (*models.PostVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[postID] {
		if v.VersionNumber == number {
			cp := v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Comments(_ context.Context, postID uuid.UUID) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Comment{}, m.comments[postID]...), nil
}

func (m *memStore) Reactions(_ context.Context, postID uuid.UUID) ([]models.Reaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Reaction{}, m.reactions[postID]...), nil
}

func (m *memStore) History(_ context.Context, postID uuid.UUID) ([]models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Approval{}, m.history[postID]...), nil
}

// cas must be called with mu held.
func (m *memStore) cas(id uuid.UUID, from models.PostStatus, lockVersion int, to models.PostStatus) (*models.Post, error) {
	p, ok := m.posts[id]
	if !ok || p.Status != from || p.LockVersion != lockVersion {
		return nil, ErrConflict
	}
	p.Status = to
	p.LockVersion++
	p.UpdatedAt = time.Now()
	return p, nil
}

func (m *memStore) SetStatus(_ context.Context, id uuid.UUID, from models.PostStatus, lockVersion int, to models.PostStatus) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.cas(id, from, lockVersion, to)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) Approve(_ context.Context, id uuid.UUID, lockVersion int, a *models.Approval) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.cas(id, models.PostClientReview, lockVersion, models.PostApproved)
	if err != nil {
		return nil, err
	}
	a.ID, a.PostID, a.CreatedAt = uuid.New(), id, time.Now()
	m.history[id] = append(m.history[id], *a)
	cp := *p
	return &cp, nil
}

func (m *memStore) RequestRevision(_ context.Context, id uuid.UUID, lockVersion, maxRevisions int, c *models.Comment, a *models.Approval) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.cas(id, models.PostClientReview, lockVersion, models.PostRevision)
	if err != nil {
		return nil, err
	}
	p.RevisionCount++
	c.ID, c.PostID, c.CreatedAt = uuid.New(), id, time.Now()
	m.comments[id] = append(m.comments[id], *c)
	a.ID, a.PostID, a.CreatedAt = uuid.New(), id, time.Now()
	a.RevisionNumber = p.RevisionCount
	a.IsBillable = IsBillable(p.RevisionCount, maxRevisions)
	m.history[id] = append(m.history[id], *a)
	cp := *p
	return &cp, nil
}

func (m *memStore) ToggleReaction(_ context.Context, r *models.Reaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.reactions[r.PostID]
	for i, existing := range list {
		if existing.ActorID == r.ActorID && existing.ReactionType == r.ReactionType {
			m.reactions[r.PostID] = append(list[:i], list[i+1:]...)
			return false, nil
		}
	}
	r.CreatedAt = time.Now()
	m.reactions[r.PostID] = append(list, *r)
	return true, nil
}

func (m *memStore) AddComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID, c.CreatedAt = uuid.New(), time.Now()
	m.comments[c.PostID] = append(m.comments[c.PostID], *c)
	return nil
}

func (m *memStore) AddVersion(_ context.Context, v *models.PostVersion, expected int) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[v.PostID]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status.Terminal() {
		return nil, ErrTerminalState
	}
	next := p.VersionCount + 1
	if expected > 0 && expected != next {
		return nil, ErrVersionMismatch
	}
	v.ID, v.VersionNumber, v.CreatedAt = uuid.New(), next, time.Now()
	m.versions[v.PostID] = append(m.versions[v.PostID], *v)
	p.VersionCount = next
	cp := *p
	return &cp, nil
}

type fakeUsage struct {
	allocated map[string]int
	used      map[string]int
	released  int
}

func (u *fakeUsage) Consume(_ context.Context, _ uuid.UUID, t string) (bool, error) {
	alloc, ok := u.allocated[t]
	if !ok {
		return false, nil
	}
	if u.used[t] >= alloc {
		return true, ErrPackageExhausted
	}
	u.used[t]++
	return true, nil
}

func (u *fakeUsage) Release(_ context.Context, _ uuid.UUID, t string, _ time.Time) error {
	if u.used[t] > 0 {
		u.used[t]--
		u.released++
	}
	return nil
}

type fixedPolicy int

func (f fixedPolicy) MaxRevisions(context.Context, uuid.UUID) (int, error) { return int(f), nil }

type fakeFiles struct {
	put     []string
	deleted []string
}

func (f *fakeFiles) PutDeliverable(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	_, _ = io.Copy(io.Discard, body)
	f.put = append(f.put, key)
	return "https://bucket.example/" + key, nil
}

func (f *fakeFiles) DeleteDeliverable(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeFiles) DeliverableDownloadURL(_ context.Context, key string) (string, error) {
	return "https://signed.example/" + key, nil
}

type fakeNotifier struct{ kinds []string }

func (n *fakeNotifier) Notify(_ context.Context, notif *models.Notification) error {
	n.kinds = append(n.kinds, notif.Kind)
	return nil
}

type fakeFeed struct{ tables []string }

func (f *fakeFeed) Publish(_ context.Context, table string, _, _ uuid.UUID) {
	f.tables = append(f.tables, table)
}
