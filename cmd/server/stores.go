package main

import (
	"context"
	"fmt"
	"log/slog"

	"lifeline/internal/lifecycle/service"
	requeststore "lifeline/internal/lifecycle/store/request"
	userstore "lifeline/internal/lifecycle/store/user"
	"lifeline/internal/platform/config"
	"lifeline/internal/platform/mongo"
	"lifeline/internal/platform/postgres"
	httptransport "lifeline/internal/transport/http"
)

type stores struct {
	users    service.UserStore
	requests service.RequestStore
	health   httptransport.HealthCheck
	close    func(context.Context) error
}

// openStores builds the backend selected by cfg.Driver, applying schema or
// indexes before returning.
func openStores(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("using postgres store")
		return &stores{
			users:    userstore.NewPostgres(db),
			requests: requeststore.NewPostgres(db),
			health:   db.PingContext,
			close:    func(context.Context) error { return db.Close() },
		}, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		users := userstore.NewMongo(db)
		requests := requeststore.NewMongo(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("user indexes: %w", err)
		}
		if err := requests.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("request indexes: %w", err)
		}
		logger.Info("using mongo store", "database", cfg.MongoDatabase)
		return &stores{
			users:    users,
			requests: requests,
			health:   func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:    client.Disconnect,
		}, nil

	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return &stores{
			users:    userstore.NewInMemoryStore(),
			requests: requeststore.NewInMemoryStore(),
			health:   func(context.Context) error { return nil },
			close:    func(context.Context) error { return nil },
		}, nil
	}
}
