package main

import (
	"context"
	"fmt"

	"github.com/ssoserver/user-directory/internal/core/ports"
	"github.com/ssoserver/user-directory/internal/infrastructure/config"
	mongostore "github.com/ssoserver/user-directory/internal/infrastructure/db/mongo"
	"github.com/ssoserver/user-directory/internal/infrastructure/db/postgres"
	"github.com/ssoserver/user-directory/internal/infrastructure/http/handlers"
	"github.com/ssoserver/user-directory/internal/infrastructure/seed"
)

// backend is the identity store selected by STORE_DRIVER.
type backend struct {
	store seed.Store
	ping  handlers.Check
	// audit is set for the mongo driver, which keeps an event log next to the users.
	audit ports.EventSink
	close func(ctx context.Context)
}

func (a *app) openBackend(ctx context.Context) (*backend, error) {
	switch a.cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             a.cfg.Postgres.DSN,
			MaxConns:        a.cfg.Postgres.MaxConns,
			MinConns:        a.cfg.Postgres.MinConns,
			MaxConnLifetime: a.cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		store := postgres.NewIdentityStore(pool)
		a.log.Info().Str("driver", config.StorePostgres).Msg("identity store connected")
		return &backend{
			store: store,
			ping:  store.Ping,
			close: func(context.Context) { pool.Close() },
		}, nil

	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      a.cfg.Mongo.URI,
			Database: a.cfg.Mongo.Database,
			AppName:  serviceName,
		})
		if err != nil {
			return nil, err
		}
		store := mongostore.NewIdentityStore(db)
		audit := mongostore.NewEventRepository(db)
		a.log.Info().Str("driver", config.StoreMongo).Str("database", a.cfg.Mongo.Database).Msg("identity store connected")
		return &backend{
			store: store,
			ping:  mongostore.Pinger(client),
			audit: audit,
			close: func(ctx context.Context) {
				if err := client.Disconnect(ctx); err != nil {
					a.log.Warn().Err(err).Msg("mongo disconnect failed")
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", a.cfg.StoreDriver)
}

// prepare brings the selected store's schema up to date: SQL migrations for
// postgres, indexes for mongo.
func (a *app) prepare(ctx context.Context, b *backend) error {
	switch s := b.store.(type) {
	case *mongostore.IdentityStore:
		if err := s.EnsureIndexes(ctx); err != nil {
			return err
		}
		if repo, ok := b.audit.(*mongostore.EventRepository); ok {
			return repo.EnsureIndexes(ctx)
		}
		return nil
	case *postgres.IdentityStore:
		return postgres.Migrate(a.cfg.Postgres.DSN, a.log)
	}
	return nil
}
