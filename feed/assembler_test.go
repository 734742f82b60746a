package feed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"yatube/models"
	"yatube/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// countingPostStore counts QueryPage calls so tests can tell cache hits from
// misses.
type countingPostStore struct {
	store.PostStore
	queries atomic.Int64
}

func (s *countingPostStore) QueryPage(ctx context.Context, q store.PostQuery, page, pageSize int) ([]*models.Post, int64, error) {
	s.queries.Add(1)
	return s.PostStore.QueryPage(ctx, q, page, pageSize)
}

// brokenCache fails every operation.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, Key) (*models.FeedPage, bool, error) {
	return nil, false, errCacheDown
}

func (brokenCache) Put(context.Context, Key, *models.FeedPage, time.Duration) error {
	return errCacheDown
}

func (brokenCache) InvalidateAll(context.Context) error { return errCacheDown }

type fixture struct {
	posts     *countingPostStore
	memPosts  *store.MemoryPostStore
	groups    *store.MemoryGroupStore
	users     *store.MemoryUserStore
	cache     *MemoryCache
	assembler *Assembler
}

func newFixture(t *testing.T, cache Cache) *fixture {
	t.Helper()
	f := &fixture{
		groups: store.NewMemoryGroupStore(),
		users:  store.NewMemoryUserStore(),
	}
	f.memPosts = store.NewMemoryPostStore(f.groups, store.Rules{MaxTextLength: 200})
	f.posts = &countingPostStore{PostStore: f.memPosts}
	if cache == nil {
		f.cache = NewMemoryCache(WithJanitorInterval(0))
		t.Cleanup(f.cache.Close)
		cache = f.cache
	}
	f.assembler = NewAssembler(f.posts, f.groups, f.users, cache, Config{PageSize: 10, TTL: time.Minute})
	return f
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Name: "Name of " + username}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) group(t *testing.T, slug string) *models.Group {
	t.Helper()
	g := &models.Group{Slug: slug, Title: "Title of " + slug}
	require.NoError(t, f.groups.Create(context.Background(), g))
	return g
}

func (f *fixture) post(t *testing.T, author *models.User, group *models.Group, text string) *models.Post {
	t.Helper()
	var gid *primitive.ObjectID
	if group != nil {
		gid = &group.ID
	}
	p, err := f.memPosts.Create(context.Background(), text, author.ID, gid)
	require.NoError(t, err)
	return p
}

func TestFeedFirstPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.user(t, "alice")
	f.post(t, alice, nil, "Hello")

	fp, err := f.assembler.Feed(ctx, models.AllPosts(), 1)
	require.NoError(t, err)
	require.Len(t, fp.Posts, 1)
	assert.Equal(t, "Hello", fp.Posts[0].Text)
	assert.Equal(t, "alice", fp.Posts[0].Author.Username)
	assert.Nil(t, fp.Posts[0].GroupID)
	assert.Nil(t, fp.Posts[0].Group)
	assert.Equal(t, int64(1), fp.TotalCount)
}

func TestFeedPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	qwerty := f.user(t, "qwerty")
	g := f.group(t, "test-slug")
	for i := 15; i > 0; i-- {
		f.post(t, qwerty, g, fmt.Sprintf("test post %d", i))
	}

	filters := []models.Filter{models.AllPosts(), models.ByGroup("test-slug"), models.ByAuthor("qwerty")}
	for _, filter := range filters {
		t.Run(filter.String(), func(t *testing.T) {
			for page, want := range map[int]int{1: 10, 2: 5, 3: 0} {
				fp, err := f.assembler.Feed(ctx, filter, page)
				require.NoError(t, err)
				assert.Len(t, fp.Posts, want, "page %d", page)
				assert.Equal(t, int64(15), fp.TotalCount)
				assert.Equal(t, 2, fp.TotalPages())
				assert.Equal(t, 10, fp.PageSize)
			}
		})
	}
}

func TestFeedSixteenPostsByAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	bob := f.user(t, "bob")
	other := f.user(t, "carol")
	f.post(t, other, nil, "not bob")
	for i := 0; i < 16; i++ {
		f.post(t, bob, nil, fmt.Sprintf("bob %d", i))
	}

	fp, err := f.assembler.Feed(ctx, models.ByAuthor("bob"), 2)
	require.NoError(t, err)
	assert.Len(t, fp.Posts, 6)
	assert.Equal(t, int64(16), fp.TotalCount)
	require.NotNil(t, fp.Author)
	assert.Equal(t, "bob", fp.Author.Username)
	assert.False(t, fp.HasNext())
	assert.True(t, fp.HasPrevious())
	for _, p := range fp.Posts {
		assert.Equal(t, bob.ID, p.AuthorID)
	}
}

func TestFeedGroupContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	user := f.user(t, "TestUser")
	g := f.group(t, "Test-slug")
	f.group(t, "test-slug-group-2")
	f.post(t, user, g, "test test")

	fp, err := f.assembler.Feed(ctx, models.ByGroup("Test-slug"), 1)
	require.NoError(t, err)
	require.NotNil(t, fp.Group)
	assert.Equal(t, g.ID, fp.Group.ID)
	require.Len(t, fp.Posts, 1)
	assert.Equal(t, "Title of Test-slug", fp.Posts[0].Group.Title)

	empty, err := f.assembler.Feed(ctx, models.ByGroup("test-slug-group-2"), 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Posts)

	f.user(t, "RandomUser")
	empty, err = f.assembler.Feed(ctx, models.ByAuthor("RandomUser"), 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Posts)
}

func TestFeedUnknownGroupOrAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.assembler.Feed(ctx, models.ByGroup("nonexistent-slug"), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.assembler.Feed(ctx, models.ByAuthor("nobody"), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedRejectsNonPositivePage(t *testing.T) {
	f := newFixture(t, nil)
	for _, page := range []int{0, -3} {
		_, err := f.assembler.Feed(context.Background(), models.AllPosts(), page)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "page", verr.Field)
	}
	assert.Zero(t, f.posts.queries.Load())
}

func TestFeedServedFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.user(t, "alice")
	for i := 0; i < 3; i++ {
		f.post(t, alice, nil, fmt.Sprintf("post %d", i))
	}

	first, err := f.assembler.Feed(ctx, models.AllPosts(), 1)
	require.NoError(t, err)
	second, err := f.assembler.Feed(ctx, models.AllPosts(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), f.posts.queries.Load())

	// Writes that bypass InvalidateAll are not visible until the TTL passes.
	f.post(t, alice, nil, "silent")
	third, err := f.assembler.Feed(ctx, models.AllPosts(), 1)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestFeedInvalidateAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.user(t, "alice")
	g := f.group(t, "cats")
	f.post(t, alice, g, "old")

	for _, filter := range []models.Filter{models.AllPosts(), models.ByGroup("cats"), models.ByAuthor("alice")} {
		_, err := f.assembler.Feed(ctx, filter, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.cache.Len())

	fresh := f.post(t, alice, g, "new")
	require.NoError(t, f.assembler.InvalidateAll(ctx))

	for _, filter := range []models.Filter{models.AllPosts(), models.ByGroup("cats"), models.ByAuthor("alice")} {
		fp, err := f.assembler.Feed(ctx, filter, 1)
		require.NoError(t, err)
		require.Len(t, fp.Posts, 2, filter.String())
		assert.Equal(t, fresh.ID, fp.Posts[0].ID, filter.String())
	}
}

// raceStore invalidates the cache while a page is being assembled.
type raceStore struct {
	store.PostStore
	assembler *Assembler
}

func (s *raceStore) QueryPage(ctx context.Context, q store.PostQuery, page, pageSize int) ([]*models.Post, int64, error) {
	posts, total, err := s.PostStore.QueryPage(ctx, q, page, pageSize)
	if err := s.assembler.InvalidateAll(ctx); err != nil {
		return nil, 0, err
	}
	return posts, total, err
}

func TestFeedNotCachedWhenInvalidatedDuringAssembly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.user(t, "alice")
	f.post(t, alice, nil, "hello")

	rs := &raceStore{PostStore: f.memPosts}
	a := NewAssembler(rs, f.groups, f.users, f.cache, Config{PageSize: 10, TTL: time.Minute})
	rs.assembler = a

	_, err := a.Feed(ctx, models.AllPosts(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.Len())
}

func TestFeedFailsOpenWhenCacheBroken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, brokenCache{})
	alice := f.user(t, "alice")
	f.post(t, alice, nil, "hello")

	for i := 0; i < 2; i++ {
		fp, err := f.assembler.Feed(ctx, models.AllPosts(), 1)
		require.NoError(t, err)
		assert.Len(t, fp.Posts, 1)
	}
	assert.Equal(t, int64(2), f.posts.queries.Load())
	assert.ErrorIs(t, f.assembler.InvalidateAll(ctx), errCacheDown)
}

func TestFeedMissingAuthorFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.memPosts.Create(ctx, "orphan", primitive.NewObjectID(), nil)
	require.NoError(t, err)

	fp, err := f.assembler.Feed(ctx, models.AllPosts(), 1)
	require.NoError(t, err)
	require.Len(t, fp.Posts, 1)
	assert.Equal(t, unknownAuthor, fp.Posts[0].Author.Name)
}

func TestPostDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.user(t, "alice")
	g := f.group(t, "cats")
	p := f.post(t, alice, g, "detail")
	f.post(t, alice, nil, "another")

	detail, err := f.assembler.Post(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "detail", detail.Text)
	assert.Equal(t, "Name of alice", detail.Author.Name)
	assert.Equal(t, "cats", detail.Group.Slug)
	assert.Equal(t, int64(2), detail.AuthorPostCount)

	_, err = f.assembler.Post(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewAssemblerDefaults(t *testing.T) {
	a := NewAssembler(nil, nil, nil, nil, Config{})
	assert.Equal(t, DefaultPageSize, a.PageSize())
	assert.IsType(t, NopCache{}, a.cache)
}
