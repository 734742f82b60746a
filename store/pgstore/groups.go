package pgstore

import (
	"context"

	"yatube/models"
	"yatube/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GroupStore struct {
	pool *pgxpool.Pool
}

func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

func scanGroup(row pgx.Row) (*models.Group, error) {
	var (
		id string
		g  models.Group
	)
	if err := row.Scan(&id, &g.Slug, &g.Title, &g.Description); err != nil {
		return nil, translate(err)
	}
	var err error
	if g.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return scanGroup(s.pool.QueryRow(ctx, `SELECT id, slug, title, description FROM groups WHERE slug = $1`, slug))
}

func (s *GroupStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return scanGroup(s.pool.QueryRow(ctx, `SELECT id, slug, title, description FROM groups WHERE id = $1`, id.Hex()))
}

func (s *GroupStore) List(ctx context.Context) ([]*models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT id, slug, title, description FROM groups ORDER BY title, slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []*models.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *GroupStore) Create(ctx context.Context, g *models.Group) error {
	if g.Slug == "" {
		return &store.ValidationError{Field: "slug", Message: "must not be empty"}
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO groups (id, slug, title, description) VALUES ($1, $2, $3, $4)`,
		g.ID.Hex(), g.Slug, g.Title, g.Description)
	return translate(err)
}
