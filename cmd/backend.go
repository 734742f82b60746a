package cmd

import (
	"context"
	"fmt"

	"yatube/config"
	"yatube/database"
	"yatube/store"
	"yatube/store/mongostore"
	"yatube/store/pgstore"

	"github.com/sirupsen/logrus"
)

// backend is the set of stores for the configured driver.
type backend struct {
	posts  store.PostStore
	groups store.GroupStore
	users  store.UserStore
	close  func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	rules := store.Rules{MaxTextLength: cfg.MaxPostTextLength}
	log := logrus.WithField("driver", cfg.StorageDriver)

	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = database.DisconnectMongo(client)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		log.Info("Using MongoDB storage")
		return &backend{
			posts:  mongostore.NewPostStore(db, rules),
			groups: mongostore.NewGroupStore(db),
			users:  mongostore.NewUserStore(db),
			close: func() {
				if err := database.DisconnectMongo(client); err != nil {
					log.WithError(err).Warn("MongoDB disconnect failed")
				}
			},
		}, nil

	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pgstore.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("Using Postgres storage")
		return &backend{
			posts:  pgstore.NewPostStore(pool, rules),
			groups: pgstore.NewGroupStore(pool),
			users:  pgstore.NewUserStore(pool),
			close:  pool.Close,
		}, nil

	case config.DriverMemory:
		log.Warn("Using in-memory storage, data is lost on exit")
		groups := store.NewMemoryGroupStore()
		return &backend{
			posts:  store.NewMemoryPostStore(groups, rules),
			groups: groups,
			users:  store.NewMemoryUserStore(),
			close:  func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
