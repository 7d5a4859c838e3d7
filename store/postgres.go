package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel carries the path of every changed document.
const NotifyChannel = "document_changes"

// Postgres is the durable remote copy. Documents are jsonb rows keyed by
// path; the server clock stamps every write. The pool reconnects on demand,
// so a database that is down at startup is picked up once it comes back.
type Postgres struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	mu       sync.Mutex
	schemaOK bool
}

func NewPostgres(ctx context.Context, databaseURL string, log *zap.Logger) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("remote database url is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	p := &Postgres{pool: pool, log: log}
	if err := p.Ping(ctx); err != nil {
		log.Warn("remote store unreachable, running on local copy until it returns", zap.Error(err))
		return p, nil
	}

	log.Info("remote store connected")
	return p, nil
}

// ensureSchema creates the documents table on the first call that reaches
// the database and retries on later calls until that succeeds.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.schemaOK {
		return nil
	}
	if _, err := p.pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("%w: create schema: %v", ErrUnavailable, err)
	}
	p.schemaOK = true
	return nil
}

func (p *Postgres) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Path: path}
	err := p.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE path = $1`, path,
	).Scan(&snap.Data, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{Path: path}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	snap.Exists = true
	return snap, nil
}

func (p *Postgres) Merge(ctx context.Context, path string, data []byte) (time.Time, error) {
	if err := requireObject(data); err != nil {
		return time.Time{}, err
	}
	if err := p.ensureSchema(ctx); err != nil {
		return time.Time{}, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("merge %s: %w", path, err)
	}
	defer tx.Rollback(ctx)

	var at time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO documents (path, data, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (path) DO UPDATE
		SET data = documents.data || EXCLUDED.data, updated_at = now()
		RETURNING updated_at`, path, string(data),
	).Scan(&at)
	if err != nil {
		return time.Time{}, fmt.Errorf("merge %s: %w", path, err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, path); err != nil {
		return time.Time{}, fmt.Errorf("notify %s: %w", path, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("commit %s: %w", path, err)
	}
	return at, nil
}

// Watch holds a dedicated connection in LISTEN mode for the lifetime of ctx.
func (p *Postgres) Watch(ctx context.Context, path string) (<-chan Snapshot, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	ch := make(chan Snapshot, watchBuffer)
	go func() {
		defer close(ch)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()

		send := func() bool {
			snap, err := p.Get(ctx, path)
			if err != nil {
				p.log.Warn("watch read failed", zap.String("path", path), zap.Error(err))
				return ctx.Err() == nil
			}
			if !snap.Exists {
				return true
			}
			select {
			case ch <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.log.Warn("watch stopped", zap.String("path", path), zap.Error(err))
				}
				return
			}
			if n.Payload != path {
				continue
			}
			if !send() {
				return
			}
		}
	}()
	return ch, nil
}

// Ping checks that the database answers and the schema is in place.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return p.ensureSchema(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}
