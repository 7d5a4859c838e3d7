package store

// Versioned pairs a payload with the whole-second timestamp of its last write.
// UpdatedAt is the only signal used to pick between two copies.
type Versioned[T any] struct {
	Payload   T     `json:"payload"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Source names the copy ChooseNewer picked.
type Source int

const (
	SourceNone Source = iota
	SourceLocal
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	default:
		return "none"
	}
}

// ChooseNewer resolves a local and a remote copy, last writer wins. The remote
// copy is picked only when it is strictly newer, so ties keep the local copy.
// Either argument may be nil.
func ChooseNewer[T any](local, remote *Versioned[T]) (Versioned[T], Source) {
	switch {
	case local == nil && remote == nil:
		var zero Versioned[T]
		return zero, SourceNone
	case local == nil:
		return *remote, SourceRemote
	case remote == nil:
		return *local, SourceLocal
	case remote.UpdatedAt > local.UpdatedAt:
		return *remote, SourceRemote
	default:
		return *local, SourceLocal
	}
}

// State tracks a document's hydration within a process.
type State int

const (
	Unloaded State = iota
	Loading
	Hydrated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Hydrated:
		return "hydrated"
	default:
		return "unloaded"
	}
}

// Normalizer is implemented by payloads that rebuild derived state after
// being decoded from either copy.
type Normalizer interface {
	Normalize()
}
