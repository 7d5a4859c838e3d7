package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Subscription streams remote versions newer than the local cache. C is
// closed once the subscription ends.
type Subscription[T any] struct {
	C <-chan Versioned[T]

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the subscription and waits for it to wind down. Safe to call
// more than once.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed when the subscription has stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Subscribe watches the remote copy of key. Each remote snapshot strictly
// newer than the local cache overwrites it and is delivered on C. The
// subscription ends when ctx is done or Cancel is called.
func (h *Hybrid[T]) Subscribe(ctx context.Context, key Key) (*Subscription[T], error) {
	if h.remote == nil {
		return nil, ErrNoRemote
	}

	ctx, cancel := context.WithCancel(ctx)
	snaps, err := h.remote.Watch(ctx, key.Remote)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", key.Remote, err)
	}

	out := make(chan Versioned[T], watchBuffer)
	sub := &Subscription[T]{C: out, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer close(out)

		for snap := range snaps {
			if !snap.Exists {
				continue
			}
			remote, err := h.decode(snap.Data, snap.UpdatedAt.Unix())
			if err != nil {
				h.log.Warn("skipping undecodable remote change", zap.String("path", key.Remote), zap.Error(err))
				continue
			}
			if local := h.readLocal(key); local != nil && remote.UpdatedAt <= local.UpdatedAt {
				continue
			}
			if err := h.writeLocal(key, remote); err != nil {
				h.log.Warn("apply remote change failed", zap.String("key", key.Local), zap.Error(err))
			}

			select {
			case out <- remote:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}
