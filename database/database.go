// Package database opens the MongoDB and Postgres connections used by the
// store backends.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var dlog = logrus.WithField("component", "database")

const (
	connectAttempts = 3
	retryDelay      = 2 * time.Second
)

// ConnectMongo connects and pings, retrying a few times while the server
// comes up.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	var lastErr error
	for i := 1; i <= connectAttempts; i++ {
		client, err := connectMongoOnce(ctx, uri)
		if err == nil {
			dlog.Info("Connected to MongoDB")
			return client, nil
		}
		lastErr = err
		dlog.WithError(err).WithField("attempt", i).Warn("MongoDB connection attempt failed")
		if i == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("connect mongodb: %w", lastErr)
}

func connectMongoOnce(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func DisconnectMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return err
	}

	dlog.Info("Disconnected from MongoDB")
	return nil
}

// NewPostgresPool opens a pool and checks the connection.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	cfg.ConnConfig.StatementCacheCapacity = 256

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	dlog.Info("Connected to Postgres")
	return pool, nil
}
