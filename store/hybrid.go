package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultRemoteTimeout = 10 * time.Second

// Options configure a Hybrid store.
type Options struct {
	Logger  *zap.Logger
	Timeout time.Duration // bound on each remote call
	Now     func() time.Time
}

// Result is the outcome of a Save. Success reflects the local write only.
// Remote yields the remote write's outcome exactly once and is then closed.
type Result struct {
	Success bool
	Err     error
	Remote  <-chan error
}

// Wait blocks until the remote write finishes and returns its error, or the
// local error when the save failed outright.
func (r Result) Wait() error {
	if !r.Success || r.Remote == nil {
		return r.Err
	}
	return <-r.Remote
}

// Hybrid keeps one document shape in a fast Local copy and mirrors it to a
// durable Remote. Reads reconcile the two by timestamp, last writer wins at
// whole-document granularity. A nil Remote runs the store local-only.
type Hybrid[T any] struct {
	local   Local
	remote  Remote
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	states map[string]State

	pending sync.WaitGroup
}

func NewHybrid[T any](local Local, remote Remote, opts Options) *Hybrid[T] {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRemoteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hybrid[T]{
		local:   local,
		remote:  remote,
		log:     opts.Logger,
		timeout: opts.Timeout,
		now:     opts.Now,
		states:  map[string]State{},
	}
}

// Save writes payload to the local copy synchronously, then upserts it to the
// remote in the background. A remote failure is logged and reported on
// Result.Remote but never rolls back the local write. The remote write is not
// tied to ctx cancellation.
func (h *Hybrid[T]) Save(ctx context.Context, key Key, payload T) Result {
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: fmt.Errorf("encode %s: %w", key.Local, err)}
	}

	e := Entry{Value: data, UpdatedAt: h.now().Unix()}
	if err := h.local.Put(key.Local, e); err != nil {
		h.log.Error("local save failed", zap.String("key", key.Local), zap.Error(err))
		return Result{Err: fmt.Errorf("local save %s: %w", key.Local, err)}
	}

	return Result{Success: true, Remote: h.push(ctx, key, data)}
}

func (h *Hybrid[T]) push(ctx context.Context, key Key, data []byte) <-chan error {
	done := make(chan error, 1)
	if h.remote == nil {
		done <- ErrNoRemote
		close(done)
		return done
	}

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		defer close(done)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()

		at, err := h.remote.Merge(rctx, key.Remote, data)
		if err != nil {
			h.log.Warn("remote save failed, keeping local copy",
				zap.String("path", key.Remote), zap.Error(err))
			done <- err
			return
		}
		h.log.Debug("remote save", zap.String("path", key.Remote), zap.Time("updated_at", at))
		done <- nil
	}()
	return done
}

// Load reads the local copy, fetches the remote one and returns whichever is
// newer. A strictly newer remote copy replaces the local cache; a missing
// remote copy is bootstrapped from the local one. When the remote is
// unreachable the local copy is returned as is.
func (h *Hybrid[T]) Load(ctx context.Context, key Key) (Versioned[T], bool) {
	h.setState(key, Loading)
	v, src := h.reconcile(ctx, key, h.readLocal(key), true)
	return v, src != SourceNone
}

// LoadAsync returns the local copy immediately and reconciles in the
// background. The channel receives the remote copy only if it replaced the
// local one, then closes. The background read outlives ctx cancellation but
// is still bounded by the remote timeout.
func (h *Hybrid[T]) LoadAsync(ctx context.Context, key Key) (Versioned[T], bool, <-chan Versioned[T]) {
	h.setState(key, Loading)
	local := h.readLocal(key)

	out := make(chan Versioned[T], 1)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		defer close(out)
		if v, src := h.reconcile(context.WithoutCancel(ctx), key, local, true); src == SourceRemote {
			out <- v
		}
	}()

	if local == nil {
		var zero Versioned[T]
		return zero, false, out
	}
	return *local, true, out
}

// Lookup is the account read path. It always asks the remote, keeps whichever
// copy is newer and falls back to the local copy when the remote is
// unreachable. A local copy newer than the remote one is never overwritten.
func (h *Hybrid[T]) Lookup(ctx context.Context, key Key) (Versioned[T], bool) {
	h.setState(key, Loading)
	v, src := h.reconcile(ctx, key, h.readLocal(key), true)
	return v, src != SourceNone
}

// LoadForWrite reconciles like Load but leaves a missing remote copy alone.
// Callers that Save right after reading use it so the remote sees one upload.
func (h *Hybrid[T]) LoadForWrite(ctx context.Context, key Key) (Versioned[T], bool) {
	h.setState(key, Loading)
	v, src := h.reconcile(ctx, key, h.readLocal(key), false)
	return v, src != SourceNone
}

func (h *Hybrid[T]) reconcile(ctx context.Context, key Key, local *Versioned[T], bootstrap bool) (Versioned[T], Source) {
	defer h.setState(key, Hydrated)

	remote, reachable := h.fetchRemote(ctx, key)
	v, src := ChooseNewer(local, remote)

	switch {
	case src == SourceRemote:
		if err := h.writeLocal(key, v); err != nil {
			h.log.Warn("replace local copy failed", zap.String("key", key.Local), zap.Error(err))
		}
		h.log.Debug("remote copy is newer", zap.String("path", key.Remote), zap.Int64("updated_at", v.UpdatedAt))
	case src == SourceLocal && remote == nil && reachable && bootstrap:
		h.bootstrap(ctx, key, v)
	}
	return v, src
}

func (h *Hybrid[T]) bootstrap(ctx context.Context, key Key, v Versioned[T]) {
	data, err := json.Marshal(v.Payload)
	if err != nil {
		h.log.Warn("bootstrap encode failed", zap.String("path", key.Remote), zap.Error(err))
		return
	}
	h.log.Info("bootstrapping remote copy from local", zap.String("path", key.Remote))
	h.push(ctx, key, data)
}

// fetchRemote returns nil with reachable=true when the remote has no
// document, and reachable=false when it could not be asked or answered with
// something undecodable.
func (h *Hybrid[T]) fetchRemote(ctx context.Context, key Key) (*Versioned[T], bool) {
	if h.remote == nil {
		return nil, false
	}

	rctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	snap, err := h.remote.Get(rctx, key.Remote)
	if err != nil {
		h.log.Warn("remote read failed, using local copy", zap.String("path", key.Remote), zap.Error(err))
		return nil, false
	}
	if !snap.Exists {
		return nil, true
	}

	v, err := h.decode(snap.Data, snap.UpdatedAt.Unix())
	if err != nil {
		h.log.Warn("remote copy undecodable", zap.String("path", key.Remote), zap.Error(err))
		return nil, false
	}
	return &v, true
}

func (h *Hybrid[T]) readLocal(key Key) *Versioned[T] {
	e, ok, err := h.local.Get(key.Local)
	if err != nil {
		h.log.Warn("local read failed", zap.String("key", key.Local), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	v, err := h.decode(e.Value, e.UpdatedAt)
	if err != nil {
		h.log.Warn("discarding undecodable local copy", zap.String("key", key.Local), zap.Error(err))
		return nil
	}
	return &v
}

func (h *Hybrid[T]) writeLocal(key Key, v Versioned[T]) error {
	data, err := json.Marshal(v.Payload)
	if err != nil {
		return err
	}
	return h.local.Put(key.Local, Entry{Value: data, UpdatedAt: v.UpdatedAt})
}

func (h *Hybrid[T]) decode(data []byte, updatedAt int64) (Versioned[T], error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return Versioned[T]{}, err
	}
	if n, ok := any(&payload).(Normalizer); ok {
		n.Normalize()
	}
	return Versioned[T]{Payload: payload, UpdatedAt: updatedAt}, nil
}

// State reports where key is in its Unloaded → Loading → Hydrated lifecycle.
func (h *Hybrid[T]) State(key Key) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.states[key.Local]
}

func (h *Hybrid[T]) setState(key Key, s State) {
	if s == Unloaded {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states[key.Local] = s
}

// LocalKeys lists cached document keys under prefix.
func (h *Hybrid[T]) LocalKeys(prefix string) ([]string, error) {
	return h.local.Keys(prefix)
}

// HasRemote reports whether a remote copy is configured.
func (h *Hybrid[T]) HasRemote() bool {
	return h.remote != nil
}

// Ping reports whether the remote answers within the remote timeout. It
// returns ErrNoRemote for a local-only store. Remotes that cannot ping are
// asked for an empty path instead.
func (h *Hybrid[T]) Ping(ctx context.Context) error {
	if h.remote == nil {
		return ErrNoRemote
	}
	rctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if p, ok := h.remote.(Pinger); ok {
		return p.Ping(rctx)
	}
	_, err := h.remote.Get(rctx, "")
	return err
}

// Flush waits for in-flight background reads and writes.
func (h *Hybrid[T]) Flush() {
	h.pending.Wait()
}
