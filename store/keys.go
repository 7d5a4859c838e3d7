package store

import "strings"

// DefaultNamespace prefixes every local cache key.
const DefaultNamespace = "tradebook"

// Key addresses one document in both copies.
type Key struct {
	Local  string
	Remote string
}

func (k Key) String() string {
	return k.Remote
}

// NormalizeUsername is the identity mapping from a username to its key
// component.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// JournalKey addresses a user's journal of one kind:
// ns:user:kind:data locally and users/user/kind/data remotely.
func JournalKey(namespace, username, kind string) Key {
	u := NormalizeUsername(username)
	return Key{
		Local:  namespace + ":" + u + ":" + kind + ":data",
		Remote: "users/" + u + "/" + kind + "/data",
	}
}

// AccountKey addresses a user's account record.
func AccountKey(namespace, username string) Key {
	u := NormalizeUsername(username)
	return Key{
		Local:  namespace + ":account:" + u,
		Remote: "users/" + u,
	}
}

// ParseJournalKey splits a local journal key back into its username and
// kind. ok is false for any other key in the namespace.
func ParseJournalKey(namespace, local string) (username, kind string, ok bool) {
	rest, found := strings.CutPrefix(local, namespace+":")
	if !found {
		return "", "", false
	}
	rest, found = strings.CutSuffix(rest, ":data")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

func rememberKey(namespace string) string {
	return namespace + ":remember"
}

func lastKindKey(namespace, username string) string {
	return namespace + ":" + NormalizeUsername(username) + ":lastKind"
}
