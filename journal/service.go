package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/store"
)

// Service is the journal API over the hybrid document store. Every write
// recomputes derived fields before it reaches either copy.
type Service struct {
	docs  *store.Hybrid[Document]
	prefs *store.Prefs
	ns    string
	log   *zap.Logger
	now   func() time.Time
}

func NewService(docs *store.Hybrid[Document], prefs *store.Prefs, namespace string, log *zap.Logger) *Service {
	if namespace == "" {
		namespace = store.DefaultNamespace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{docs: docs, prefs: prefs, ns: namespace, log: log, now: time.Now}
}

func (s *Service) key(username string, kind Kind) store.Key {
	return store.JournalKey(s.ns, username, string(kind))
}

func (s *Service) prepare(username string, kind Kind, doc *Document) {
	doc.Kind = kind
	if doc.Username == "" {
		doc.Username = strings.TrimSpace(username)
	}
	doc.Normalize()
}

// Save writes doc locally and mirrors it remotely in the background. The
// returned document carries the recomputed trades that were stored.
func (s *Service) Save(ctx context.Context, username string, kind Kind, doc Document) (Document, store.Result) {
	s.prepare(username, kind, &doc)
	return doc, s.docs.Save(ctx, s.key(username, kind), doc)
}

// Load returns the freshest known copy of a journal. found is false when
// neither copy exists, in which case an empty journal is returned.
func (s *Service) Load(ctx context.Context, username string, kind Kind) (Document, bool) {
	v, found := s.docs.Load(ctx, s.key(username, kind))
	if !found {
		return NewDocument(username, kind), false
	}
	doc := v.Payload
	s.prepare(username, kind, &doc)
	return doc, true
}

// loadForWrite is Load without the bootstrap upload of a local-only journal;
// the Save that follows uploads it.
func (s *Service) loadForWrite(ctx context.Context, username string, kind Kind) (Document, bool) {
	v, found := s.docs.LoadForWrite(ctx, s.key(username, kind))
	if !found {
		return NewDocument(username, kind), false
	}
	doc := v.Payload
	s.prepare(username, kind, &doc)
	return doc, true
}

// LoadAsync returns the local copy at once. The channel yields the remote
// copy if it turns out to be newer, then closes.
func (s *Service) LoadAsync(ctx context.Context, username string, kind Kind) (Document, bool, <-chan Document) {
	v, found, later := s.docs.LoadAsync(ctx, s.key(username, kind))

	out := make(chan Document, 1)
	go func() {
		defer close(out)
		for r := range later {
			doc := r.Payload
			s.prepare(username, kind, &doc)
			out <- doc
		}
	}()

	if !found {
		return NewDocument(username, kind), false, out
	}
	doc := v.Payload
	s.prepare(username, kind, &doc)
	return doc, true, out
}

// Current returns the local copy without waiting on the remote. The remote is
// still consulted in the background, and a newer copy replaces the local one
// for the next read.
func (s *Service) Current(ctx context.Context, username string, kind Kind) (Document, bool) {
	doc, found, _ := s.LoadAsync(ctx, username, kind)
	return doc, found
}

// Subscribe streams newer remote versions of a journal until cancelled.
func (s *Service) Subscribe(ctx context.Context, username string, kind Kind) (*store.Subscription[Document], error) {
	return s.docs.Subscribe(ctx, s.key(username, kind))
}

func (s *Service) State(username string, kind Kind) store.State {
	return s.docs.State(s.key(username, kind))
}

func (s *Service) mutate(ctx context.Context, username string, kind Kind, fn func(*Document) error) (Document, store.Result, error) {
	doc, _ := s.loadForWrite(ctx, username, kind)
	if err := fn(&doc); err != nil {
		return doc, store.Result{}, err
	}
	doc, res := s.Save(ctx, username, kind, doc)
	if !res.Success {
		return doc, res, res.Err
	}
	return doc, res, nil
}

// AddTrade validates t, assigns it an id and the next trade number, and
// saves the journal.
func (s *Service) AddTrade(ctx context.Context, username string, kind Kind, t Trade) (Trade, store.Result, error) {
	if err := t.Validate(); err != nil {
		return Trade{}, store.Result{}, err
	}

	var added Trade
	_, res, err := s.mutate(ctx, username, kind, func(doc *Document) error {
		if t.ID == "" {
			t.ID = newTradeIDAt(s.now())
		} else if doc.Find(t.ID) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ID)
		}
		if t.TradeNumber <= 0 {
			t.TradeNumber = doc.NextTradeNumber()
		}
		t.Recompute(kind)
		doc.Trades = append(doc.Trades, t)
		added = t
		return nil
	})
	if err != nil {
		return Trade{}, res, err
	}
	s.log.Debug("trade added", zap.String("user", username), zap.String("kind", string(kind)), zap.String("id", added.ID))
	return added, res, nil
}

// UpdateTrade replaces the trade with the same id. Trade numbers are kept
// unless the edit sets one.
func (s *Service) UpdateTrade(ctx context.Context, username string, kind Kind, t Trade) (Trade, store.Result, error) {
	if err := t.Validate(); err != nil {
		return Trade{}, store.Result{}, err
	}

	_, res, err := s.mutate(ctx, username, kind, func(doc *Document) error {
		i := doc.Find(t.ID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTradeNotFound, t.ID)
		}
		if t.TradeNumber <= 0 {
			t.TradeNumber = doc.Trades[i].TradeNumber
		}
		t.Recompute(kind)
		doc.Trades[i] = t
		return nil
	})
	if err != nil {
		return Trade{}, res, err
	}
	return t, res, nil
}

func (s *Service) DeleteTrade(ctx context.Context, username string, kind Kind, id string) (store.Result, error) {
	_, res, err := s.mutate(ctx, username, kind, func(doc *Document) error {
		i := doc.Find(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
		}
		doc.Trades = append(doc.Trades[:i], doc.Trades[i+1:]...)
		return nil
	})
	return res, err
}

// Export renders the current journal as a backup file.
func (s *Service) Export(ctx context.Context, username string, kind Kind) ([]byte, error) {
	doc, _ := s.Load(ctx, username, kind)
	return Export(doc, s.now())
}

// Import restores a backup into the journal. Nothing is written when the
// backup does not parse or confirmation is required.
func (s *Service) Import(ctx context.Context, username string, kind Kind, data []byte, confirm bool) (Document, store.Result, error) {
	current, _ := s.loadForWrite(ctx, username, kind)
	doc, err := Import(current, data, confirm)
	if err != nil {
		return current, store.Result{}, err
	}
	doc, res := s.Save(ctx, username, kind, doc)
	if !res.Success {
		return doc, res, res.Err
	}
	s.log.Info("journal imported", zap.String("user", username), zap.String("kind", string(kind)), zap.Int("trades", len(doc.Trades)))
	return doc, res, nil
}

// Move copies every journal of one user to another username. The source
// documents are left in place.
func (s *Service) Move(ctx context.Context, from, to string) error {
	for _, kind := range Kinds {
		doc, found := s.Load(ctx, from, kind)
		if !found {
			continue
		}
		doc.Username = strings.TrimSpace(to)
		if _, res := s.Save(ctx, to, kind, doc); !res.Success {
			return fmt.Errorf("move %s journal: %w", kind, res.Err)
		}
	}
	if kind, ok := s.LastKind(from); ok {
		_ = s.SetLastKind(to, kind)
	}
	return nil
}

// Resync reconciles every locally cached journal with the remote copy and
// reports how many documents it visited.
func (s *Service) Resync(ctx context.Context) (int, error) {
	keys, err := s.docs.LocalKeys(s.ns + ":")
	if err != nil {
		return 0, fmt.Errorf("list cached journals: %w", err)
	}

	n := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		user, kindName, ok := store.ParseJournalKey(s.ns, k)
		if !ok {
			continue
		}
		kind, err := ParseKind(kindName)
		if err != nil {
			continue
		}
		s.docs.Load(ctx, s.key(user, kind))
		n++
	}
	s.log.Debug("resync complete", zap.Int("documents", n))
	return n, nil
}

// RemoteEnabled reports whether journals are mirrored to a remote copy.
func (s *Service) RemoteEnabled() bool {
	return s.docs.HasRemote()
}

// PingRemote checks that the remote copy can be reached right now.
func (s *Service) PingRemote(ctx context.Context) error {
	return s.docs.Ping(ctx)
}

// Flush waits for background remote writes.
func (s *Service) Flush() {
	s.docs.Flush()
}

func (s *Service) RememberUser(username string) error {
	return s.prefs.SetRemembered(username)
}

func (s *Service) RememberedUser() (string, bool) {
	return s.prefs.Remembered()
}

func (s *Service) ForgetUser() error {
	return s.prefs.Forget()
}

func (s *Service) SetLastKind(username string, kind Kind) error {
	return s.prefs.SetLastKind(username, string(kind))
}

// LastKind is the journal the user last opened, if recorded.
func (s *Service) LastKind(username string) (Kind, bool) {
	name, ok := s.prefs.LastKind(username)
	if !ok {
		return "", false
	}
	kind, err := ParseKind(name)
	if err != nil {
		return "", false
	}
	return kind, true
}
