package pgstore

import (
	"context"
	"errors"
	"time"

	"yatube/models"
	"yatube/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const postColumns = `id, author_id, group_id, text, created_at, updated_at`

type PostStore struct {
	pool  *pgxpool.Pool
	rules store.Rules
}

func NewPostStore(pool *pgxpool.Pool, rules store.Rules) *PostStore {
	return &PostStore{pool: pool, rules: rules}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var (
		id, authorID string
		groupID      *string
		post         models.Post
	)
	if err := row.Scan(&id, &authorID, &groupID, &post.Text, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	var err error
	if post.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, err
	}
	if post.AuthorID, err = primitive.ObjectIDFromHex(authorID); err != nil {
		return nil, err
	}
	if post.GroupID, err = parseHexPtr(groupID); err != nil {
		return nil, err
	}
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}

func (s *PostStore) checkGroup(ctx context.Context, groupID *primitive.ObjectID) error {
	if groupID == nil {
		return nil
	}
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, groupID.Hex()).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostStore) Create(ctx context.Context, text string, authorID primitive.ObjectID, groupID *primitive.ObjectID) (*models.Post, error) {
	text, err := s.rules.CheckText(text)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	ts := now()
	post := &models.Post{
		ID:        primitive.NewObjectID(),
		AuthorID:  authorID,
		GroupID:   groupID,
		Text:      text,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID.Hex(), authorID.Hex(), hexPtr(groupID), text, ts, ts)
	if err != nil {
		plog.WithError(err).Error("insert post")
		return nil, translate(err)
	}
	return post, nil
}

func (s *PostStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id.Hex())
	return scanPost(row)
}

func (s *PostStore) Edit(ctx context.Context, id primitive.ObjectID, text string, groupID *primitive.ObjectID) (*models.Post, error) {
	text, err := s.rules.CheckText(text)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE posts SET text = $2, group_id = $3, updated_at = $4 WHERE id = $1 RETURNING `+postColumns,
		id.Hex(), text, hexPtr(groupID), now())
	post, err := scanPost(row)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		plog.WithError(err).WithField("post_id", id.Hex()).Error("update post")
	}
	return post, err
}

func (s *PostStore) QueryPage(ctx context.Context, q store.PostQuery, page, pageSize int) ([]*models.Post, int64, error) {
	offset, err := store.Offset(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	const where = ` WHERE ($1::text IS NULL OR group_id = $1) AND ($2::text IS NULL OR author_id = $2)`
	groupID, authorID := hexPtr(q.GroupID), hexPtr(q.AuthorID)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM posts`+where, groupID, authorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	posts := []*models.Post{}
	if offset >= total {
		return posts, total, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts`+where+` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		groupID, authorID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}
