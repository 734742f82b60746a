package pgstore

import (
	"context"
	"strings"
	"time"

	"yatube/models"
	"yatube/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, username, email, name, password_hash, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		id string
		u  models.User
	)
	if err := row.Scan(&id, &u.Username, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	var err error
	if u.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) getBy(ctx context.Context, column, value string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
}

func (s *UserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.getBy(ctx, "id", id.Hex())
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getBy(ctx, "username", username)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "email", strings.ToLower(email))
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.Username == "" {
		return &store.ValidationError{Field: "username", Message: "must not be empty"}
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}
	u.Email = strings.ToLower(u.Email)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID.Hex(), u.Username, u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	return translate(err)
}
