package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoRemote reports that the store runs local-only.
	ErrNoRemote = errors.New("no remote store configured")
	// ErrUnavailable reports that the remote could not be reached.
	ErrUnavailable = errors.New("remote store unavailable")
)

// Snapshot is one read of a remote document.
type Snapshot struct {
	Path      string
	Data      []byte
	UpdatedAt time.Time
	Exists    bool
}

// Remote is the durable copy, addressed by hierarchical path.
//
// Merge overwrites the top-level fields present in data, leaves the others
// untouched and stamps the document with the store's own clock. Watch sends
// the current snapshot (if any) followed by one snapshot per change; the
// channel is closed once ctx is done, and sends never block past ctx.
type Remote interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Merge(ctx context.Context, path string, data []byte) (time.Time, error)
	Watch(ctx context.Context, path string) (<-chan Snapshot, error)
}

// Pinger is implemented by remotes that can report reachability without
// touching a document.
type Pinger interface {
	Ping(ctx context.Context) error
}

func requireObject(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return fmt.Errorf("merge payload must be a JSON object")
	}
	return nil
}

// mergeObjects overlays the top-level fields of patch onto base.
func mergeObjects(base, patch []byte) ([]byte, error) {
	if err := requireObject(patch); err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("decode stored document: %w", err)
		}
	}
	var over map[string]json.RawMessage
	if err := json.Unmarshal(patch, &over); err != nil {
		return nil, err
	}
	for k, v := range over {
		fields[k] = v
	}
	return json.Marshal(fields)
}
