package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	loader "github.com/alexisbeaulieu97/actionflow/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/metrics"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/server"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/state"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/tracing"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
	"github.com/alexisbeaulieu97/actionflow/internal/session"
)

const serviceName = "actionflow"

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [document]",
		Short: "Serve the dispatcher over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return runServe(cmd.Context(), a, args)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides ACTIONFLOW_HTTP_ADDR")
	return cmd
}

func runServe(ctx context.Context, a *app, args []string) error {
	var opts []server.Option
	if len(args) == 1 {
		doc, err := loader.NewLoader(a.logger).Load(ctx, args[0])
		if err != nil {
			return err
		}
		opts = append(opts, server.WithDocument(doc))
	}

	shutdownTracing, err := tracing.Setup(ctx, serviceName, a.cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.Warn(ctx, "tracer shutdown failed", "error", err)
		}
	}()

	reg, handlers, err := a.registry()
	if err != nil {
		return err
	}
	defer handlers.Wait()

	sessions, closeSessions, err := newSessionFactory(ctx, a)
	if err != nil {
		return err
	}
	defer closeSessions()

	collector := metrics.New(metrics.WithLogger(a.logger))
	bus := events.NewBus(a.logger, events.WithMetrics(collector))
	logEvents(bus, a.logger)

	api := server.New(reg, sessions, append(opts,
		server.WithLogger(a.logger),
		server.WithMetrics(collector),
		server.WithTracer(tracing.New(nil)),
		server.WithEvents(bus),
	)...)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "listening", "addr", a.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", a.cfg.HTTPAddr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(ctx, "shutting down", "pending", api.Cancellations().Size())
	api.Cancellations().CancelAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newSessionFactory keeps one session per id. Sessions are backed by Redis
// when ACTIONFLOW_REDIS_ADDR is set and by process memory otherwise.
func newSessionFactory(ctx context.Context, a *app) (server.SessionFactory, func(), error) {
	var client *backend.Client
	if a.cfg.RedisAddr != "" {
		client = backend.NewClient(&backend.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", a.cfg.RedisAddr, err)
		}
	}
	return sessionFactory(a, client), func() {
		if client != nil {
			_ = client.Close()
		}
	}, nil
}

func sessionFactory(a *app, client *backend.Client) server.SessionFactory {
	var mu sync.Mutex
	sessions := make(map[string]*session.Session)

	return func(_ context.Context, id string) (*session.Session, error) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := sessions[id]; ok {
			return s, nil
		}

		var store ports.StateStore
		if client != nil {
			store = state.NewRedisStoreFromClient(client, id,
				state.WithPrefix(a.cfg.RedisPrefix),
				state.WithTTL(a.cfg.StateTTL),
			)
		} else {
			store = state.NewMemoryStore(nil)
		}
		s := session.New(store, a.logger,
			session.WithUserAgent(a.cfg.UserAgent),
			session.WithVariant(a.cfg.Variant),
			session.WithCustomHTML(a.cfg.AllowCustomHTML),
		)
		sessions[id] = s
		return s, nil
	}
}

// logEvents mirrors every bus event into the debug log.
func logEvents(bus ports.EventBus, logger ports.Logger) {
	logger = logger.With("component", "events")
	for _, typ := range event.Types {
		bus.On(typ, func(ctx context.Context, ev event.Event) error {
			fields := append([]interface{}{"event_type", ev.EventType()}, event.Fields(ev)...)
			logger.Debug(ctx, "event", fields...)
			return nil
		})
	}
}
