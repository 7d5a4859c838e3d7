package store

import "encoding/json"

// Prefs holds small per-device values next to the cached documents: the
// remembered username and the last journal kind each user viewed. They are
// never mirrored remotely.
type Prefs struct {
	local Local
	ns    string
}

func NewPrefs(local Local, namespace string) *Prefs {
	return &Prefs{local: local, ns: namespace}
}

func (p *Prefs) SetRemembered(username string) error {
	return p.putString(rememberKey(p.ns), NormalizeUsername(username))
}

func (p *Prefs) Remembered() (string, bool) {
	return p.getString(rememberKey(p.ns))
}

func (p *Prefs) Forget() error {
	return p.local.Delete(rememberKey(p.ns))
}

func (p *Prefs) SetLastKind(username, kind string) error {
	return p.putString(lastKindKey(p.ns, username), kind)
}

func (p *Prefs) LastKind(username string) (string, bool) {
	return p.getString(lastKindKey(p.ns, username))
}

func (p *Prefs) putString(key, value string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.local.Put(key, Entry{Value: data})
}

func (p *Prefs) getString(key string) (string, bool) {
	e, ok, err := p.local.Get(key)
	if err != nil || !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Value, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}
