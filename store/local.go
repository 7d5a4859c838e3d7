package store

// Entry is a raw cached document and the timestamp of the write that
// produced it.
type Entry struct {
	Value     []byte
	UpdatedAt int64
}

// Local is the process-wide key space backing the fast copy. Documents of
// different shapes share it under disjoint keys.
type Local interface {
	Get(key string) (Entry, bool, error)
	Put(key string, e Entry) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}
