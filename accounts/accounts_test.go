package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/rustyeddy/tradebook/store"
)

type fixture struct {
	dir    *Directory
	local  *store.SQLite
	remote *store.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	local, err := store.NewSQLite(filepath.Join(t.TempDir(), "local.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	remote := store.NewMemory()
	log := zaptest.NewLogger(t)
	records := store.NewHybrid[Account](local, remote, store.Options{Logger: log, Timeout: time.Second})
	dir := NewDirectory(records, store.DefaultNamespace, bcrypt.MinCost, log)
	t.Cleanup(dir.Flush)
	return fixture{dir: dir, local: local, remote: remote}
}

func register(t *testing.T, fx fixture, name, pw string) Account {
	t.Helper()
	a, res, err := fx.dir.Register(context.Background(), Registration{
		Username:         name,
		Password:         pw,
		Email:            "me@example.com",
		SecurityQuestion: "First car?",
		SecurityAnswer:   " Civic ",
	})
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	return a
}

func TestRegisterWritesBothCopies(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	a := register(t, fx, "Alice", "secret1")
	assert.Equal(t, "Alice", a.Username)
	assert.NotEqual(t, "secret1", a.Password)
	assert.Empty(t, a.RenamedTo)

	_, ok, err := fx.local.Get("tradebook:account:alice")
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := fx.remote.Get(context.Background(), "users/alice")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	_, _, err := fx.dir.Register(ctx, Registration{Username: "", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, _, err = fx.dir.Register(ctx, Registration{Username: "a/b", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, _, err = fx.dir.Register(ctx, Registration{Username: "bob smith", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, _, err = fx.dir.Register(ctx, Registration{Username: "bob", Password: "123"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	register(t, fx, "bob", "secret1")
	_, _, err = fx.dir.Register(ctx, Registration{Username: "BOB", Password: "secret2"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterWhileOffline(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.remote.SetOffline(true)

	_, res, err := fx.dir.Register(context.Background(), Registration{Username: "carol", Password: "secret1"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Wait(), store.ErrUnavailable)

	_, err = fx.dir.Login(context.Background(), "carol", "secret1")
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	register(t, fx, "alice", "secret1")

	a, err := fx.dir.Login(context.Background(), " ALICE ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)

	_, err = fx.dir.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = fx.dir.Login(context.Background(), "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRemoteWins(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	register(t, fx, "alice", "secret1")

	// Another device changed the password.
	h, err := bcrypt.GenerateFromPassword([]byte("changed"), bcrypt.MinCost)
	require.NoError(t, err)
	data, err := json.Marshal(Account{Username: "alice", Password: string(h)})
	require.NoError(t, err)
	fx.remote.Seed("users/alice", data, time.Unix(1, 0))

	_, err = fx.dir.Login(context.Background(), "alice", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = fx.dir.Login(context.Background(), "alice", "changed")
	assert.NoError(t, err)

	// Remote unreachable: the refreshed local copy answers.
	fx.remote.SetOffline(true)
	_, err = fx.dir.Login(context.Background(), "alice", "changed")
	assert.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	register(t, fx, "alice", "secret1")

	_, err := fx.dir.ResetPassword(ctx, "alice", "corolla", "newpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := fx.dir.ResetPassword(ctx, "alice", "CIVIC", "newpass")
	require.NoError(t, err)
	require.NoError(t, res.Wait())

	_, err = fx.dir.Login(ctx, "alice", "newpass")
	assert.NoError(t, err)

	_, err = fx.dir.ResetPassword(ctx, "ghost", "x", "newpass")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	register(t, fx, "alice", "secret1")

	_, err := fx.dir.ChangePassword(ctx, "alice", "nope", "another1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = fx.dir.ChangePassword(ctx, "alice", "secret1", "abc")
	assert.ErrorIs(t, err, ErrWeakPassword)

	res, err := fx.dir.ChangePassword(ctx, "alice", "secret1", "another1")
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	_, err = fx.dir.Login(ctx, "alice", "another1")
	assert.NoError(t, err)
}

func TestLoginRightAfterChangePassword(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("trader%d", i)
		register(t, fx, name, "secret1")

		_, err := fx.dir.ChangePassword(ctx, name, "secret1", "secret2")
		require.NoError(t, err)

		_, err = fx.dir.Login(ctx, name, "secret2")
		require.NoError(t, err, "round %d", i)
		_, err = fx.dir.Login(ctx, name, "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "round %d", i)
	}
}

func TestPasswordChangeSurvivesFailedRemoteWrite(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	register(t, fx, "alice", "secret1")

	fx.remote.SetOffline(true)
	res, err := fx.dir.ChangePassword(ctx, "alice", "secret1", "secret2")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Wait(), store.ErrUnavailable)
	fx.remote.SetOffline(false)

	_, err = fx.dir.Login(ctx, "alice", "secret2")
	require.NoError(t, err)

	e, ok, err := fx.local.Get("tradebook:account:alice")
	require.NoError(t, err)
	require.True(t, ok)
	var kept Account
	require.NoError(t, json.Unmarshal(e.Value, &kept))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(kept.Password), []byte("secret2")))
}

func TestRename(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	register(t, fx, "alice", "secret1")
	register(t, fx, "bob", "secret1")

	_, _, err := fx.dir.Rename(ctx, "alice", "bob", "secret1")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	moved, res, err := fx.dir.Rename(ctx, "alice", "alicia", "secret1")
	require.NoError(t, err)
	require.NoError(t, res.Wait())
	fx.dir.Flush()
	assert.Equal(t, "alicia", moved.Username)

	_, err = fx.dir.Login(ctx, "alicia", "secret1")
	assert.NoError(t, err)
	_, err = fx.dir.Login(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, ErrRenamed)

	old, err := fx.dir.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alicia", old.RenamedTo)
}

func TestGet(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	register(t, fx, "alice", "secret1")

	a, err := fx.dir.Get(context.Background(), "alice")
	require.NoError(t, err)
	p := a.Profile()
	assert.Equal(t, "me@example.com", p.Email)
	assert.Equal(t, "First car?", p.SecurityQuestion)

	_, err = fx.dir.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
