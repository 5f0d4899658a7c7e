package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssoserver/user-directory/internal/api"
	"github.com/ssoserver/user-directory/internal/api/metrics"
	"github.com/ssoserver/user-directory/internal/api/middleware"
	"github.com/ssoserver/user-directory/internal/core/ports"
	"github.com/ssoserver/user-directory/internal/core/service"
	"github.com/ssoserver/user-directory/internal/infrastructure/db/redis"
	"github.com/ssoserver/user-directory/internal/infrastructure/http/handlers"
	"github.com/ssoserver/user-directory/internal/infrastructure/mailer"
	"github.com/ssoserver/user-directory/internal/infrastructure/mq"
	"github.com/ssoserver/user-directory/internal/infrastructure/queue"
	"github.com/ssoserver/user-directory/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var prepare bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), prepare)
		},
	}
	cmd.Flags().BoolVar(&prepare, "prepare", true, "apply migrations or indexes before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, prepare bool) error {
	cfg := a.cfg
	if err := cfg.Auth.Validate(); err != nil {
		return err
	}

	b, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		b.close(closeCtx)
	}()

	if prepare {
		if err := a.prepare(ctx, b); err != nil {
			return err
		}
	}

	checks := map[string]handlers.Check{cfg.StoreDriver: b.ping}

	var guard ports.EmailGuard
	if cfg.Redis.URL != "" || cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.log.Warn().Err(err).Msg("redis unavailable, email guard disabled")
		} else {
			defer func() { _ = rdb.Close() }()
			guard = redis.NewEmailGuard(rdb, cfg.Redis.EmailLockTTL)
			checks["redis"] = redis.Pinger(rdb)
		}
	}

	var sinks []ports.EventSink
	if b.audit != nil {
		sinks = append(sinks, b.audit)
	}
	if cfg.RabbitMQ.URL != "" {
		pub, err := mq.NewPublisher(mq.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange})
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		sinks = append(sinks, pub)
	}
	if cfg.Mailgun.Enabled() {
		sinks = append(sinks, mailer.NewInvitationSender(mailer.Config{
			Domain:   cfg.Mailgun.Domain,
			APIKey:   cfg.Mailgun.APIKey,
			Sender:   cfg.Mailgun.Sender,
			LoginURL: cfg.Mailgun.LoginURL,
			APIBase:  cfg.Mailgun.APIBase,
		}))
	}

	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	dispatcher := queue.NewDispatcher(cfg.Events.Workers, logger.Component("dispatcher"), sinks...)
	dispatcher.Start(workerCtx)

	verifier, err := middleware.NewVerifier(ctx, middleware.AuthConfig{
		Secret:   cfg.Auth.JWTSecret,
		JWKSURL:  cfg.Auth.JWKSURL,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, logger.Component("auth"))
	if err != nil {
		return err
	}
	defer verifier.Close()

	users := service.NewUserService(b.store, guard, dispatcher, metrics.NewRecorder(), logger.Component("users"))

	e := api.NewRouter(api.Dependencies{
		Users:         users,
		Verifier:      verifier,
		RequiredScope: cfg.Auth.RequiredScope,
		Checks:        checks,
		Log:           logger.Component("http"),
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Int("sinks", len(sinks)).Bool("email_guard", guard != nil).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
