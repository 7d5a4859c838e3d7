package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/accounts"
	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/store"
)

// app holds the stores and services one command invocation works with.
type app struct {
	local    *store.SQLite
	pg       *store.Postgres
	journals *journal.Service
	accounts *accounts.Directory
}

// openApp opens the local cache and, when configured, the remote database.
// A database that is down at startup is retried on each remote call; only a
// malformed URL leaves the app local-only.
func openApp(ctx context.Context) (*app, error) {
	cache, err := store.NewCache(cfg.Local.CacheMaxCost, cfg.Local.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	local, err := store.NewSQLite(cfg.Local.Path, cache)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.Local.Path, err)
	}

	a := &app{local: local}
	var remote store.Remote
	if cfg.Remote.DatabaseURL != "" {
		cctx, cancel := context.WithTimeout(ctx, cfg.Remote.Timeout)
		pg, err := store.NewPostgres(cctx, cfg.Remote.DatabaseURL, logger)
		cancel()
		if err != nil {
			logger.Warn("remote misconfigured, running local-only", zap.Error(err))
		} else {
			a.pg = pg
			remote = pg
		}
	}

	opts := store.Options{Logger: logger, Timeout: cfg.Remote.Timeout}
	docs := store.NewHybrid[journal.Document](local, remote, opts)
	records := store.NewHybrid[accounts.Account](local, remote, opts)

	a.journals = journal.NewService(docs, store.NewPrefs(local, cfg.Namespace), cfg.Namespace, logger)
	a.accounts = accounts.NewDirectory(records, cfg.Namespace, cfg.Accounts.BcryptCost, logger)
	return a, nil
}

func (a *app) remoteEnabled() bool {
	return a.journals.RemoteEnabled()
}

// Close waits for pending remote writes, then releases both stores.
func (a *app) Close() {
	a.journals.Flush()
	a.accounts.Flush()
	if a.pg != nil {
		a.pg.Close()
	}
	if err := a.local.Close(); err != nil {
		logger.Warn("close local cache", zap.Error(err))
	}
}

// awaitRemote reports the background remote write of a save without
// failing the command; the local copy is already written.
func awaitRemote(a *app, res store.Result) {
	if !a.remoteEnabled() {
		return
	}
	if err := res.Wait(); err != nil {
		logger.Warn("remote write failed, local copy kept", zap.Error(err))
	}
}
