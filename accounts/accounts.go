package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rustyeddy/tradebook/store"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("account not found")
	ErrNoSecurityAnswer   = errors.New("account has no security question")
	ErrRenamed            = errors.New("account has been renamed")
)

const MinPasswordLength = 6

// Account is one user's credentials and profile. Password and
// SecurityAnswer hold bcrypt hashes.
type Account struct {
	Username         string    `json:"username"`
	Password         string    `json:"password"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	SecurityQuestion string    `json:"securityQuestion,omitempty"`
	SecurityAnswer   string    `json:"securityAnswer,omitempty"`
	RegisteredAt     time.Time `json:"registeredAt"`
	RenamedTo        string    `json:"renamedTo,omitempty"`
}

// Profile is the part of an Account that is safe to hand to clients.
type Profile struct {
	Username         string    `json:"username"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	SecurityQuestion string    `json:"securityQuestion,omitempty"`
	RegisteredAt     time.Time `json:"registeredAt"`
}

func (a Account) Profile() Profile {
	return Profile{
		Username:         a.Username,
		Email:            a.Email,
		Phone:            a.Phone,
		SecurityQuestion: a.SecurityQuestion,
		RegisteredAt:     a.RegisteredAt,
	}
}

type Registration struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	SecurityQuestion string `json:"securityQuestion,omitempty"`
	SecurityAnswer   string `json:"securityAnswer,omitempty"`
}

// Directory stores accounts with the same local-first, remote-mirrored
// scheme as journals, one record per username.
type Directory struct {
	records *store.Hybrid[Account]
	ns      string
	cost    int
	log     *zap.Logger
	now     func() time.Time
}

func NewDirectory(records *store.Hybrid[Account], namespace string, cost int, log *zap.Logger) *Directory {
	if namespace == "" {
		namespace = store.DefaultNamespace
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{records: records, ns: namespace, cost: cost, log: log, now: time.Now}
}

func (d *Directory) key(username string) store.Key {
	return store.AccountKey(d.ns, username)
}

// ValidateUsername rejects names that cannot form a storage key.
func ValidateUsername(username string) error {
	u := strings.TrimSpace(username)
	if u == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(u) > 64 {
		return fmt.Errorf("%w: longer than 64 characters", ErrInvalidUsername)
	}
	for _, r := range u {
		if r == ':' || r == '/' || unicode.IsSpace(r) {
			return fmt.Errorf("%w: %q not allowed", ErrInvalidUsername, r)
		}
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func (d *Directory) hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), d.cost)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return string(h), nil
}

func normalizeAnswer(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}

func (d *Directory) lookup(ctx context.Context, username string) (Account, bool) {
	v, ok := d.records.Lookup(ctx, d.key(username))
	if !ok || v.Payload.Username == "" {
		return Account{}, false
	}
	return v.Payload, true
}

func (d *Directory) save(ctx context.Context, a Account) (store.Result, error) {
	res := d.records.Save(ctx, d.key(a.Username), a)
	if !res.Success {
		return res, res.Err
	}
	return res, nil
}

// Register creates an account. The record is written locally and mirrored
// remotely; the remote outcome is on the returned Result.
func (d *Directory) Register(ctx context.Context, r Registration) (Account, store.Result, error) {
	if err := ValidateUsername(r.Username); err != nil {
		return Account{}, store.Result{}, err
	}
	if err := validatePassword(r.Password); err != nil {
		return Account{}, store.Result{}, err
	}
	if _, found := d.lookup(ctx, r.Username); found {
		return Account{}, store.Result{}, ErrUsernameTaken
	}

	pw, err := d.hash(r.Password)
	if err != nil {
		return Account{}, store.Result{}, err
	}
	a := Account{
		Username:         strings.TrimSpace(r.Username),
		Password:         pw,
		Email:            strings.TrimSpace(r.Email),
		Phone:            strings.TrimSpace(r.Phone),
		SecurityQuestion: strings.TrimSpace(r.SecurityQuestion),
		RegisteredAt:     d.now().UTC().Truncate(time.Second),
	}
	if ans := normalizeAnswer(r.SecurityAnswer); ans != "" && a.SecurityQuestion != "" {
		if a.SecurityAnswer, err = d.hash(ans); err != nil {
			return Account{}, store.Result{}, err
		}
	}

	res, err := d.save(ctx, a)
	if err != nil {
		return Account{}, res, err
	}
	d.log.Info("account registered", zap.String("user", store.NormalizeUsername(a.Username)))
	return a, res, nil
}

// Login checks credentials against the newer of the remote and local
// records, or the local one alone when the remote cannot be reached.
func (d *Directory) Login(ctx context.Context, username, password string) (Account, error) {
	a, found := d.lookup(ctx, username)
	if !found {
		return Account{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	if a.RenamedTo != "" {
		return Account{}, fmt.Errorf("%w to %q", ErrRenamed, a.RenamedTo)
	}
	return a, nil
}

func (d *Directory) Get(ctx context.Context, username string) (Account, error) {
	a, found := d.lookup(ctx, username)
	if !found {
		return Account{}, ErrNotFound
	}
	return a, nil
}

// ResetPassword sets a new password after checking the security answer.
func (d *Directory) ResetPassword(ctx context.Context, username, answer, newPassword string) (store.Result, error) {
	a, found := d.lookup(ctx, username)
	if !found || a.RenamedTo != "" {
		return store.Result{}, ErrNotFound
	}
	if a.SecurityAnswer == "" {
		return store.Result{}, ErrNoSecurityAnswer
	}
	if bcrypt.CompareHashAndPassword([]byte(a.SecurityAnswer), []byte(normalizeAnswer(answer))) != nil {
		return store.Result{}, ErrInvalidCredentials
	}
	return d.setPassword(ctx, a, newPassword)
}

func (d *Directory) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) (store.Result, error) {
	a, err := d.Login(ctx, username, oldPassword)
	if err != nil {
		return store.Result{}, err
	}
	return d.setPassword(ctx, a, newPassword)
}

func (d *Directory) setPassword(ctx context.Context, a Account, pw string) (store.Result, error) {
	if err := validatePassword(pw); err != nil {
		return store.Result{}, err
	}
	h, err := d.hash(pw)
	if err != nil {
		return store.Result{}, err
	}
	a.Password = h
	return d.save(ctx, a)
}

// Rename moves an account to a new username. The old record stays behind
// pointing at the new one. Journals are moved separately.
func (d *Directory) Rename(ctx context.Context, oldName, newName, password string) (Account, store.Result, error) {
	if err := ValidateUsername(newName); err != nil {
		return Account{}, store.Result{}, err
	}
	a, err := d.Login(ctx, oldName, password)
	if err != nil {
		return Account{}, store.Result{}, err
	}
	if store.NormalizeUsername(oldName) == store.NormalizeUsername(newName) {
		a.Username = strings.TrimSpace(newName)
		res, err := d.save(ctx, a)
		return a, res, err
	}
	if _, taken := d.lookup(ctx, newName); taken {
		return Account{}, store.Result{}, ErrUsernameTaken
	}

	moved := a
	moved.Username = strings.TrimSpace(newName)
	res, err := d.save(ctx, moved)
	if err != nil {
		return Account{}, res, err
	}

	a.RenamedTo = moved.Username
	if _, err := d.save(ctx, a); err != nil {
		d.log.Warn("mark renamed account failed", zap.String("user", oldName), zap.Error(err))
	}
	d.log.Info("account renamed", zap.String("from", store.NormalizeUsername(oldName)), zap.String("to", store.NormalizeUsername(newName)))
	return moved, res, nil
}

// Flush waits for background remote writes.
func (d *Directory) Flush() {
	d.records.Flush()
}
