package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"yatube/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MutationKind names a write recorded in the memory store's mutation log.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationEdit   MutationKind = "edit"
)

// Mutation is one successful write to a MemoryPostStore.
type Mutation struct {
	Kind   MutationKind
	PostID primitive.ObjectID
	At     time.Time
}

// MemoryOption configures a MemoryPostStore.
type MemoryOption func(*MemoryPostStore)

// WithClock replaces time.Now for creation and edit timestamps.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryPostStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// MemoryPostStore keeps posts in process memory. It is used by the memory
// storage driver and by tests.
type MemoryPostStore struct {
	groups GroupStore
	rules  Rules
	clock  func() time.Time

	mu        sync.RWMutex
	posts     map[primitive.ObjectID]*models.Post
	mutations []Mutation
}

func NewMemoryPostStore(groups GroupStore, rules Rules, opts ...MemoryOption) *MemoryPostStore {
	s := &MemoryPostStore{
		groups: groups,
		rules:  rules,
		clock:  time.Now,
		posts:  make(map[primitive.ObjectID]*models.Post),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryPostStore) checkGroup(ctx context.Context, groupID *primitive.ObjectID) error {
	if groupID == nil {
		return nil
	}
	_, err := s.groups.GetByID(ctx, *groupID)
	return err
}

func (s *MemoryPostStore) Create(ctx context.Context, text string, authorID primitive.ObjectID, groupID *primitive.ObjectID) (*models.Post, error) {
	text, err := s.rules.CheckText(text)
	if err != nil {
		return nil, err
	}
	if err := s.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	post := &models.Post{
		ID:        primitive.NewObjectID(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if groupID != nil {
		gid := *groupID
		post.GroupID = &gid
	}
	s.posts[post.ID] = post
	s.mutations = append(s.mutations, Mutation{Kind: MutationCreate, PostID: post.ID, At: now})
	return post.Clone(), nil
}

func (s *MemoryPostStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return post.Clone(), nil
}

func (s *MemoryPostStore) Edit(ctx context.Context, id primitive.ObjectID, text string, groupID *primitive.ObjectID) (*models.Post, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	text, err := s.rules.CheckText(text)
	if err != nil {
		return nil, err
	}
	if err := s.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.clock()
	post.Text = text
	post.GroupID = nil
	if groupID != nil {
		gid := *groupID
		post.GroupID = &gid
	}
	post.UpdatedAt = now
	s.mutations = append(s.mutations, Mutation{Kind: MutationEdit, PostID: id, At: now})
	return post.Clone(), nil
}

func (s *MemoryPostStore) QueryPage(ctx context.Context, q PostQuery, page, pageSize int) ([]*models.Post, int64, error) {
	offset, err := Offset(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := make([]*models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if q.Matches(p) {
			matched = append(matched, p.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Sort(models.ByNewest(matched))
	total := int64(len(matched))
	if offset >= total {
		return []*models.Post{}, total, nil
	}
	end := offset + int64(pageSize)
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Mutations returns a copy of the log of successful writes, oldest first.
func (s *MemoryPostStore) Mutations() []Mutation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Mutation(nil), s.mutations...)
}

// MemoryGroupStore keeps groups in process memory.
type MemoryGroupStore struct {
	mu     sync.RWMutex
	groups map[primitive.ObjectID]*models.Group
}

func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{groups: make(map[primitive.ObjectID]*models.Group)}
}

func (s *MemoryGroupStore) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.Slug == slug {
			return g.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryGroupStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

// List returns all groups ordered by title.
func (s *MemoryGroupStore) List(ctx context.Context) ([]*models.Group, error) {
	s.mu.RLock()
	out := make([]*models.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

// Create assigns an ID when g has none.
func (s *MemoryGroupStore) Create(ctx context.Context, g *models.Group) error {
	if strings.TrimSpace(g.Slug) == "" {
		return &ValidationError{Field: "slug", Message: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.groups {
		if existing.Slug == g.Slug {
			return ErrConflict
		}
	}
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	s.groups[g.ID] = g.Clone()
	return nil
}

// MemoryUserStore keeps users in process memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryUserStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

// Create assigns an ID when u has none.
func (s *MemoryUserStore) Create(ctx context.Context, u *models.User) error {
	if u.Username == "" {
		return &ValidationError{Field: "username", Message: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || (u.Email != "" && strings.EqualFold(existing.Email, u.Email)) {
			return ErrConflict
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}
