package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Backup is the file format for export and import.
type Backup struct {
	Trades          []Trade   `json:"trades"`
	Settings        *Settings `json:"settings,omitempty"`
	StartingCapital *Num      `json:"startingCapital,omitempty"`
	Goals           *Goals    `json:"goals,omitempty"`
	Language        string    `json:"language,omitempty"`
	ExportDate      string    `json:"exportDate,omitempty"`
}

// Export renders doc as an indented backup stamped with now.
func Export(doc Document, now time.Time) ([]byte, error) {
	doc.Normalize()
	capital := doc.StartingCapital
	b := Backup{
		Trades:          doc.Trades,
		Settings:        &doc.Settings,
		StartingCapital: &capital,
		Goals:           &doc.Goals,
		Language:        doc.Language,
		ExportDate:      now.UTC().Format(time.RFC3339),
	}
	return json.MarshalIndent(b, "", "  ")
}

// ParseBackup accepts either a bare JSON array of trades or a full backup
// object. Any failure wraps ErrRestoreFailed.
func ParseBackup(data []byte) (Backup, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Backup{}, fmt.Errorf("%w: empty file", ErrRestoreFailed)
	}

	var b Backup
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &b.Trades); err != nil {
			return Backup{}, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
		}
	case '{':
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Backup{}, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
		}
		if b.Trades == nil {
			return Backup{}, fmt.Errorf("%w: no trades field", ErrRestoreFailed)
		}
	default:
		return Backup{}, fmt.Errorf("%w: expected a JSON array or object", ErrRestoreFailed)
	}
	return b, nil
}

// Import applies a backup to a copy of doc. A journal that already holds
// trades is only overwritten when confirm is set. Trades without an id, or
// repeating one, get a fresh id; every trade is recomputed.
func Import(doc Document, data []byte, confirm bool) (Document, error) {
	b, err := ParseBackup(data)
	if err != nil {
		return doc, err
	}
	if len(doc.Trades) > 0 && !confirm {
		return doc, ErrConfirmRequired
	}

	out := doc
	out.Trades = make([]Trade, 0, len(b.Trades))
	seen := map[string]bool{}
	next := 1
	for _, t := range b.Trades {
		if t.TradeNumber >= next {
			next = t.TradeNumber + 1
		}
	}
	for _, t := range b.Trades {
		if t.ID == "" || seen[t.ID] {
			t.ID = NewTradeID()
		}
		seen[t.ID] = true
		if t.TradeNumber <= 0 {
			t.TradeNumber = next
			next++
		}
		out.Trades = append(out.Trades, t)
	}

	if b.Settings != nil {
		out.Settings = *b.Settings
	}
	if b.StartingCapital != nil {
		out.StartingCapital = *b.StartingCapital
	}
	if b.Goals != nil {
		out.Goals = *b.Goals
	}
	if b.Language != "" {
		out.Language = b.Language
	}
	out.Normalize()
	return out, nil
}
