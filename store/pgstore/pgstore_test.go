package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"yatube/models"
	"yatube/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testPool connects to YATUBE_TEST_POSTGRES_DSN, creates the schema and
// empties the tables when the test ends.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("YATUBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("YATUBE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, pool))
	t.Cleanup(func() {
		pool.Exec(context.Background(), `TRUNCATE posts, users, groups`)
		pool.Close()
	})
	return pool
}

func TestPostgresStores(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	users := NewUserStore(pool)
	groups := NewGroupStore(pool)
	posts := NewPostStore(pool, store.Rules{MaxTextLength: 100})

	bob := &models.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, users.Create(ctx, bob))
	assert.ErrorIs(t, users.Create(ctx, &models.User{Username: "bob", Email: "x@example.com"}), store.ErrConflict)

	g := &models.Group{Slug: "test-slug", Title: "Test group"}
	require.NoError(t, groups.Create(ctx, g))

	for i := 0; i < 16; i++ {
		_, err := posts.Create(ctx, fmt.Sprintf("post %d", i), bob.ID, nil)
		require.NoError(t, err)
	}

	items, total, err := posts.QueryPage(ctx, store.PostQuery{AuthorID: &bob.ID}, 2, 10)
	require.NoError(t, err)
	assert.Len(t, items, 6)
	assert.Equal(t, int64(16), total)
	for i := 1; i < len(items); i++ {
		assert.True(t, models.Newer(items[i-1], items[i]))
	}

	edited, err := posts.Edit(ctx, items[0].ID, "moved", &g.ID)
	require.NoError(t, err)
	assert.True(t, edited.InGroup(g.ID))
	assert.True(t, items[0].CreatedAt.Equal(edited.CreatedAt))

	_, total, err = posts.QueryPage(ctx, store.PostQuery{GroupID: &g.ID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	missing := primitive.NewObjectID()
	_, err = posts.Create(ctx, "orphan", bob.ID, &missing)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = posts.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = groups.GetBySlug(ctx, "nonexistent-slug")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
