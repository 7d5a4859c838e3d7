package journal

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rustyeddy/tradebook/store"
)

type fixture struct {
	svc     *Service
	local   *store.SQLite
	remote  *store.Memory
	tracked *trackedRemote
}

// trackedRemote counts merges and can hold reads until released.
type trackedRemote struct {
	*store.Memory
	merges  atomic.Int32
	hold    atomic.Bool
	release chan struct{}
}

func (r *trackedRemote) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if r.hold.Load() {
		select {
		case <-r.release:
		case <-ctx.Done():
			return store.Snapshot{}, ctx.Err()
		}
	}
	return r.Memory.Get(ctx, path)
}

func (r *trackedRemote) Merge(ctx context.Context, path string, data []byte) (time.Time, error) {
	r.merges.Add(1)
	return r.Memory.Merge(ctx, path, data)
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	local, err := store.NewSQLite(filepath.Join(t.TempDir(), "local.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	remote := store.NewMemory()
	tracked := &trackedRemote{Memory: remote, release: make(chan struct{})}
	log := zaptest.NewLogger(t)
	docs := store.NewHybrid[Document](local, tracked, store.Options{Logger: log, Timeout: 5 * time.Second})
	svc := NewService(docs, store.NewPrefs(local, store.DefaultNamespace), store.DefaultNamespace, log)
	t.Cleanup(svc.Flush)

	return fixture{svc: svc, local: local, remote: remote, tracked: tracked}
}

func TestServiceLoadMissing(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	doc, found := fx.svc.Load(context.Background(), "alice", Futures)
	assert.False(t, found)
	assert.Empty(t, doc.Trades)
	assert.Equal(t, DefaultSettings(), doc.Settings)
	assert.Equal(t, store.Hydrated, fx.svc.State("alice", Futures))
}

func TestServiceAddUpdateDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	added, res, err := fx.svc.AddTrade(ctx, "Alice", Futures, sampleTrade())
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	assert.Equal(t, "t1", added.ID)
	assert.Equal(t, 1, added.TradeNumber)
	assert.InDelta(t, 990.0, added.PnL, 1e-9)

	second := sampleTrade()
	second.ID = ""
	second.Exit = 90
	added2, res, err := fx.svc.AddTrade(ctx, "alice", Futures, second)
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	assert.NotEmpty(t, added2.ID)
	assert.Equal(t, 2, added2.TradeNumber)

	_, _, err = fx.svc.AddTrade(ctx, "alice", Futures, sampleTrade())
	assert.ErrorIs(t, err, ErrDuplicateTrade)

	edit := sampleTrade()
	edit.Exit = 120
	updated, res, err := fx.svc.UpdateTrade(ctx, "alice", Futures, edit)
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	assert.Equal(t, 1, updated.TradeNumber)
	assert.InDelta(t, 1990.0, updated.PnL, 1e-9)

	doc, found := fx.svc.Load(ctx, "ALICE", Futures)
	require.True(t, found)
	require.Len(t, doc.Trades, 2)
	assert.InDelta(t, 1990.0, doc.Trades[doc.Find("t1")].PnL, 1e-9)

	res, err = fx.svc.DeleteTrade(ctx, "alice", Futures, "t1")
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	_, err = fx.svc.DeleteTrade(ctx, "alice", Futures, "t1")
	assert.ErrorIs(t, err, ErrTradeNotFound)

	missing := sampleTrade()
	missing.ID = "nope"
	_, _, err = fx.svc.UpdateTrade(ctx, "alice", Futures, missing)
	assert.ErrorIs(t, err, ErrTradeNotFound)
}

func TestServiceRejectsInvalidTrade(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	bad := sampleTrade()
	bad.Symbol = ""
	_, _, err := fx.svc.AddTrade(context.Background(), "alice", Futures, bad)
	assert.ErrorIs(t, err, ErrInvalidTrade)
}

func TestServiceSaveMirrorsRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	doc := NewDocument("alice", Stocks)
	doc.Trades = []Trade{{ID: "s1", Symbol: "AAPL", Side: Long, Entry: 10, Exit: 12, Contracts: 100, Date: "2024-01-02"}}
	saved, res := fx.svc.Save(ctx, "alice", Stocks, doc)
	require.True(t, res.Success)
	require.NoError(t, res.Wait())
	assert.InDelta(t, 200.0, saved.Trades[0].PnL, 1e-9)

	snap, err := fx.remote.Get(ctx, "users/alice/stocks/data")
	require.NoError(t, err)
	require.True(t, snap.Exists)
	assert.Contains(t, string(snap.Data), `"symbol":"AAPL"`)
}

func TestServiceLoadPrefersNewerRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	_, res := fx.svc.Save(ctx, "alice", Futures, NewDocument("alice", Futures))
	require.NoError(t, res.Wait())

	fx.remote.Seed("users/alice/futures/data",
		[]byte(`{"kind":"futures","trades":[{"id":"r1","symbol":"ES","type":"Long","entry":100,"exit":110,"contracts":2,"pointValue":50,"stop":95,"fees":10,"pnl":0,"date":"2024-01-03"}]}`),
		time.Now().Add(time.Hour))

	doc, found := fx.svc.Load(ctx, "alice", Futures)
	require.True(t, found)
	require.Len(t, doc.Trades, 1)
	assert.InDelta(t, 990.0, doc.Trades[0].PnL, 1e-9)
}

func TestServiceExportImport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	_, _, err := fx.svc.AddTrade(ctx, "alice", Futures, sampleTrade())
	require.NoError(t, err)
	data, err := fx.svc.Export(ctx, "alice", Futures)
	require.NoError(t, err)

	_, _, err = fx.svc.Import(ctx, "alice", Futures, data, false)
	assert.ErrorIs(t, err, ErrConfirmRequired)

	_, _, err = fx.svc.Import(ctx, "alice", Futures, []byte(`{bad`), true)
	assert.ErrorIs(t, err, ErrRestoreFailed)

	doc, _, err := fx.svc.Import(ctx, "bob", Futures, data, false)
	require.NoError(t, err)
	require.Len(t, doc.Trades, 1)
	assert.InDelta(t, 990.0, doc.Trades[0].PnL, 1e-9)
}

func TestServiceMove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	_, _, err := fx.svc.AddTrade(ctx, "alice", Stocks, Trade{Symbol: "MSFT", Entry: 1, Exit: 2, Contracts: 1, Date: "2024-01-01"})
	require.NoError(t, err)
	require.NoError(t, fx.svc.SetLastKind("alice", Stocks))

	require.NoError(t, fx.svc.Move(ctx, "alice", "alicia"))

	doc, found := fx.svc.Load(ctx, "alicia", Stocks)
	require.True(t, found)
	assert.Equal(t, "alicia", doc.Username)
	require.Len(t, doc.Trades, 1)

	_, found = fx.svc.Load(ctx, "alicia", Futures)
	assert.False(t, found)

	kind, ok := fx.svc.LastKind("alicia")
	assert.True(t, ok)
	assert.Equal(t, Stocks, kind)
}

func TestServiceCurrentDoesNotWaitOnRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	_, res, err := fx.svc.AddTrade(ctx, "alice", Futures, sampleTrade())
	require.NoError(t, err)
	require.NoError(t, res.Wait())

	fx.tracked.hold.Store(true)
	t.Cleanup(func() { close(fx.tracked.release) })

	start := time.Now()
	doc, found := fx.svc.Current(ctx, "alice", Futures)
	assert.Less(t, time.Since(start), time.Second)
	require.True(t, found)
	require.Len(t, doc.Trades, 1)
	assert.InDelta(t, 990.0, doc.Trades[0].PnL, 1e-9)
}

func TestServiceCurrentPicksUpNewerRemoteLater(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	_, res := fx.svc.Save(ctx, "alice", Futures, NewDocument("alice", Futures))
	require.NoError(t, res.Wait())
	fx.remote.Seed("users/alice/futures/data",
		[]byte(`{"kind":"futures","trades":[{"id":"r1","symbol":"ES","type":"Long","entry":100,"exit":110,"contracts":2,"pointValue":50,"stop":95,"fees":10,"date":"2024-01-03"}]}`),
		time.Now().Add(time.Hour))

	doc, found := fx.svc.Current(ctx, "alice", Futures)
	require.True(t, found)
	assert.Empty(t, doc.Trades)

	fx.svc.Flush()
	doc, _ = fx.svc.Current(ctx, "alice", Futures)
	require.Len(t, doc.Trades, 1)
	assert.Equal(t, "r1", doc.Trades[0].ID)
}

func TestServiceEditOfLocalOnlyJournalUploadsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	fx.remote.SetOffline(true)
	_, res, err := fx.svc.AddTrade(ctx, "alice", Futures, sampleTrade())
	require.NoError(t, err)
	assert.ErrorIs(t, res.Wait(), store.ErrUnavailable)
	fx.remote.SetOffline(false)
	before := fx.tracked.merges.Load()

	second := sampleTrade()
	second.ID = "t2"
	second.Symbol = "NQ"
	_, res, err = fx.svc.AddTrade(ctx, "alice", Futures, second)
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	fx.svc.Flush()
	assert.Equal(t, before+1, fx.tracked.merges.Load())

	snap, err := fx.remote.Get(ctx, "users/alice/futures/data")
	require.NoError(t, err)
	require.True(t, snap.Exists)
	assert.Contains(t, string(snap.Data), `"symbol":"NQ"`)
	assert.Contains(t, string(snap.Data), `"symbol":"ES"`)
}

func TestServiceResyncBootstrapsRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	fx.remote.SetOffline(true)
	_, res := fx.svc.Save(ctx, "alice", Futures, NewDocument("alice", Futures))
	assert.ErrorIs(t, res.Wait(), store.ErrUnavailable)
	require.NoError(t, fx.svc.RememberUser("alice"))
	fx.remote.SetOffline(false)

	n, err := fx.svc.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fx.svc.Flush()
	snap, err := fx.remote.Get(ctx, "users/alice/futures/data")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}

func TestServiceSubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	sub, err := fx.svc.Subscribe(ctx, "alice", Futures)
	require.NoError(t, err)
	defer sub.Cancel()

	fx.remote.Seed("users/alice/futures/data", []byte(`{"kind":"futures","trades":[],"language":"fr"}`), time.Now().Add(time.Minute))

	select {
	case v := <-sub.C:
		assert.Equal(t, "fr", v.Payload.Language)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}
}

func TestServiceRememberUser(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	_, ok := fx.svc.RememberedUser()
	assert.False(t, ok)

	require.NoError(t, fx.svc.RememberUser("Bob"))
	u, ok := fx.svc.RememberedUser()
	assert.True(t, ok)
	assert.Equal(t, "bob", u)

	require.NoError(t, fx.svc.ForgetUser())
	_, ok = fx.svc.RememberedUser()
	assert.False(t, ok)
}
