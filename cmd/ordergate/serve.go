package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/ordergate/internal/api"
	"github.com/mattjoyce/ordergate/internal/auth"
	"github.com/mattjoyce/ordergate/internal/config"
	"github.com/mattjoyce/ordergate/internal/desk"
	"github.com/mattjoyce/ordergate/internal/events"
	"github.com/mattjoyce/ordergate/internal/lock"
	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/scheduler"
	"github.com/mattjoyce/ordergate/internal/secure"
	"github.com/mattjoyce/ordergate/internal/state"
	"github.com/mattjoyce/ordergate/internal/storage"
	"github.com/mattjoyce/ordergate/internal/venue"
	"github.com/mattjoyce/ordergate/internal/venue/alpaca"
	"github.com/mattjoyce/ordergate/internal/webhook"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("ordergate starting", "version", version, "config", cfg.SourcePath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openInstance(ctx, cfg, events.NewHub(256))
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer rt.Close()

	var sched *scheduler.Scheduler
	if len(cfg.Schedules) > 0 {
		if sched, err = scheduler.New(cfg.Schedules, rt.desk, rt.desk.Hub(), log.Get()); err != nil {
			logger.Error("scheduler setup failed", "error", err)
			return 1
		}
	}
	var hooks *webhook.Server
	if cfg.Webhooks != nil {
		wcfg, err := webhook.FromConfig(cfg.Webhooks)
		if err != nil {
			logger.Error("webhook setup failed", "error", err)
			return 1
		}
		hooks = webhook.New(wcfg, rt.desk, rt.desk.Hub(), log.WithComponent("webhook"))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := rt.desk.RunSnapshots(gctx, cfg.State.SnapshotInterval); err != nil {
			return fmt.Errorf("snapshots: %w", err)
		}
		return nil
	})
	if cfg.API.Enabled {
		server := api.New(apiConfig(cfg), rt.desk, log.WithComponent("api"))
		g.Go(func() error {
			if err := server.Start(gctx); err != nil {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}
	if sched != nil {
		g.Go(func() error { return sched.Start(gctx) })
		logger.Info("scheduler enabled", "schedules", len(cfg.Schedules))
	}
	if hooks != nil {
		g.Go(func() error {
			if err := hooks.Start(gctx); err != nil {
				return fmt.Errorf("webhooks: %w", err)
			}
			return nil
		})
		logger.Info("webhook server enabled", "listen", cfg.Webhooks.Listen, "endpoints", len(cfg.Webhooks.Endpoints))
	}

	logger.Info("ordergate running (press Ctrl+C to stop)")
	err = g.Wait()

	// Let an in-flight drain finish so its outcomes land in the final save.
	if rt.desk.Dispatching() {
		logger.Info("waiting for active dispatch to finish")
		_ = rt.desk.Wait(context.Background())
		if serr := rt.desk.Save(context.Background()); serr != nil {
			logger.Error("final snapshot failed", "error", serr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("component failed", "error", err)
		return 1
	}
	logger.Info("ordergate stopped")
	return 0
}

func apiConfig(cfg *config.Config) api.Config {
	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	return api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Auth.APIKey,
		Tokens: tokens,
	}
}

// instance is a desk bound to its database and the data-dir lock.
type instance struct {
	desk *desk.Desk
	db   *sql.DB
	lock *lock.PIDLock
}

// openInstance takes the data-dir lock, opens the state database, builds the
// desk on the configured venue and restores the last snapshot.
func openInstance(ctx context.Context, cfg *config.Config, hub *events.Hub) (*instance, error) {
	pidLock, err := lock.AcquirePIDLock(cfg.LockPath())
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	rt := &instance{lock: pidLock}

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.db = db

	store, err := newStore(db, cfg.State.EncryptionKey)
	if err != nil {
		rt.Close()
		return nil, err
	}
	client, err := newVenue(cfg.Venue)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.desk = desk.New(client, desk.Options{
		MinInterval: cfg.Dispatch.MinInterval,
		LogDir:      cfg.Dispatch.LogDir,
		Hub:         hub,
		Store:       store,
	})
	if err := rt.desk.Load(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *instance) Close() {
	if rt.db != nil {
		_ = rt.db.Close()
	}
	_ = rt.lock.Release()
}

func newStore(db *sql.DB, encryptionKey string) (*state.Store, error) {
	if encryptionKey == "" {
		return state.NewStore(db, nil), nil
	}
	key, err := secure.ParseKey(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("state.encryption_key: %w", err)
	}
	sealer, err := secure.NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("state.encryption_key: %w", err)
	}
	return state.NewStore(db, sealer), nil
}

func newVenue(cfg config.VenueConfig) (venue.Client, error) {
	switch cfg.Kind {
	case config.VenueAlpaca:
		client, err := alpaca.New(alpaca.Config{
			BaseURL:           cfg.BaseURL,
			KeyID:             cfg.APIKey,
			Secret:            cfg.APISecret,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Timeout:           cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.VenuePaper, "":
		return venue.NewPaper(cfg.PaperLatency, cfg.PaperRejectSymbols...), nil
	default:
		return nil, fmt.Errorf("unknown venue kind %q", cfg.Kind)
	}
}
