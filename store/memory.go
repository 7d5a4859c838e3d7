package store

import (
	"context"
	"sync"
	"time"
)

const watchBuffer = 16

type memDoc struct {
	data      []byte
	updatedAt time.Time
}

// Memory is an in-process Remote with the same merge, timestamp and watch
// semantics as Postgres. It backs single-process deployments and tests.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]memDoc
	watchers map[string]map[int]chan Snapshot
	nextID   int
	offline  bool
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		docs:     map[string]memDoc{},
		watchers: map[string]map[int]chan Snapshot{},
		now:      time.Now,
	}
}

// SetClock replaces the clock used to stamp merges.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetOffline makes every call fail with ErrUnavailable while set.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Seed replaces a document wholesale with an explicit timestamp and notifies
// watchers, as a write from another device would.
func (m *Memory) Seed(path string, data []byte, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = memDoc{data: append([]byte(nil), data...), updatedAt: at}
	m.notifyLocked(path)
}

func (m *Memory) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return Snapshot{}, ErrUnavailable
	}
	return m.snapshotLocked(path), nil
}

func (m *Memory) Merge(ctx context.Context, path string, data []byte) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return time.Time{}, ErrUnavailable
	}

	merged, err := mergeObjects(m.docs[path].data, data)
	if err != nil {
		return time.Time{}, err
	}
	at := m.now()
	m.docs[path] = memDoc{data: merged, updatedAt: at}
	m.notifyLocked(path)
	return at, nil
}

func (m *Memory) Watch(ctx context.Context, path string) (<-chan Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, ErrUnavailable
	}

	ch := make(chan Snapshot, watchBuffer)
	id := m.nextID
	m.nextID++
	if m.watchers[path] == nil {
		m.watchers[path] = map[int]chan Snapshot{}
	}
	m.watchers[path][id] = ch

	if snap := m.snapshotLocked(path); snap.Exists {
		ch <- snap
	}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers[path], id)
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) snapshotLocked(path string) Snapshot {
	d, ok := m.docs[path]
	if !ok {
		return Snapshot{Path: path}
	}
	return Snapshot{
		Path:      path,
		Data:      append([]byte(nil), d.data...),
		UpdatedAt: d.updatedAt,
		Exists:    true,
	}
}

// notifyLocked drops the update for a watcher whose buffer is full; it will
// pick up the document on its next read.
func (m *Memory) notifyLocked(path string) {
	for _, ch := range m.watchers[path] {
		select {
		case ch <- m.snapshotLocked(path):
		default:
		}
	}
}
