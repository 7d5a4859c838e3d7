package journal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTradeNotFound   = errors.New("trade not found")
	ErrDuplicateTrade  = errors.New("trade id already exists")
	ErrInvalidTrade    = errors.New("invalid trade")
	ErrUnknownKind     = errors.New("unknown journal kind")
	ErrRestoreFailed   = errors.New("restore failed")
	ErrConfirmRequired = errors.New("journal already has trades; confirm to overwrite")
)

// Kind selects one of a user's journals.
type Kind string

const (
	Futures Kind = "futures"
	Stocks  Kind = "stocks"
)

var Kinds = []Kind{Futures, Stocks}

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Futures:
		return Futures, nil
	case Stocks:
		return Stocks, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

type MentalState string

const (
	Unset       MentalState = ""
	Disciplined MentalState = "disciplined"
	Random      MentalState = "random"
	Emotional   MentalState = "emotional"
)

func (m MentalState) Valid() bool {
	switch m {
	case Unset, Disciplined, Random, Emotional:
		return true
	}
	return false
}

// Goals are P/L targets per period.
type Goals struct {
	Daily   Num `json:"daily"`
	Weekly  Num `json:"weekly"`
	Monthly Num `json:"monthly"`
	Yearly  Num `json:"yearly"`
}

type Settings struct {
	Currency string `json:"currency"`
	Theme    string `json:"theme"`
	FontSize string `json:"fontSize"`
}

func DefaultSettings() Settings {
	return Settings{Currency: "$", Theme: "light", FontSize: "medium"}
}

// Document is one user's journal of one kind. It is the unit the sync store
// reads, writes and reconciles.
type Document struct {
	Kind            Kind     `json:"kind,omitempty"`
	Username        string   `json:"username,omitempty"`
	Trades          []Trade  `json:"trades"`
	StartingCapital Num      `json:"startingCapital"`
	Goals           Goals    `json:"goals"`
	Settings        Settings `json:"settings"`
	Language        string   `json:"language,omitempty"`
}

// NewDocument returns an empty journal with default settings.
func NewDocument(username string, kind Kind) Document {
	d := Document{Kind: kind, Username: username}
	d.Normalize()
	return d
}

// Normalize recomputes every trade's derived fields and fills defaults.
// Derived values read from storage are never trusted.
func (d *Document) Normalize() {
	if d.Trades == nil {
		d.Trades = []Trade{}
	}
	for i := range d.Trades {
		d.Trades[i].Recompute(d.Kind)
	}
	if !d.StartingCapital.finite() {
		d.StartingCapital = 0
	}
	for _, g := range []*Num{&d.Goals.Daily, &d.Goals.Weekly, &d.Goals.Monthly, &d.Goals.Yearly} {
		if !g.finite() {
			*g = 0
		}
	}

	def := DefaultSettings()
	if d.Settings.Currency == "" {
		d.Settings.Currency = def.Currency
	}
	if d.Settings.Theme == "" {
		d.Settings.Theme = def.Theme
	}
	if d.Settings.FontSize == "" {
		d.Settings.FontSize = def.FontSize
	}
	if d.Language == "" {
		d.Language = "en"
	}
}

// Find returns the index of the trade with id, or -1.
func (d *Document) Find(id string) int {
	for i := range d.Trades {
		if d.Trades[i].ID == id {
			return i
		}
	}
	return -1
}

// NextTradeNumber is one past the highest trade number in use.
func (d *Document) NextTradeNumber() int {
	n := 0
	for _, t := range d.Trades {
		if t.TradeNumber > n {
			n = t.TradeNumber
		}
	}
	return n + 1
}
