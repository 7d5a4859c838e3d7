package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/risk"
	"github.com/rustyeddy/tradebook/stats"
)

const kindContextKey contextKey = "kind"

func kindMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, err := journal.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			failure(w, http.StatusNotFound, "unknown journal", err)
			return
		}
		ctx := context.WithValue(r.Context(), kindContextKey, kind)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func kindFromContext(ctx context.Context) journal.Kind {
	k, _ := ctx.Value(kindContextKey).(journal.Kind)
	return k
}

func journalStatus(err error) int {
	switch {
	case errors.Is(err, journal.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, journal.ErrDuplicateTrade), errors.Is(err, journal.ErrConfirmRequired):
		return http.StatusConflict
	case errors.Is(err, journal.ErrInvalidTrade), errors.Is(err, journal.ErrRestoreFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type journalResponse struct {
	Document journal.Document `json:"document"`
	Found    bool             `json:"found"`
	State    string           `json:"state"`
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	user, kind := userFromContext(r.Context()), kindFromContext(r.Context())
	doc, found := s.journals.Current(r.Context(), user, kind)
	_ = s.journals.SetLastKind(user, kind)
	success(w, journalResponse{Document: doc, Found: found, State: s.journals.State(user, kind).String()})
}

func (s *Server) handlePutJournal(w http.ResponseWriter, r *http.Request) {
	var doc journal.Document
	if err := decodeJSONBody(r, &doc); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	user, kind := userFromContext(r.Context()), kindFromContext(r.Context())
	doc.Username = ""
	saved, res := s.journals.Save(r.Context(), user, kind, doc)
	if !res.Success {
		failure(w, http.StatusInternalServerError, "journal could not be saved", res.Err)
		return
	}
	trackRemote(res)
	success(w, saved)
}

func (s *Server) handleAddTrade(w http.ResponseWriter, r *http.Request) {
	var t journal.Trade
	if err := decodeJSONBody(r, &t); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	added, res, err := s.journals.AddTrade(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()), t)
	if err != nil {
		failure(w, journalStatus(err), "trade could not be added", err)
		return
	}
	trackRemote(res)
	created(w, added)
}

func (s *Server) handleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	var t journal.Trade
	if err := decodeJSONBody(r, &t); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	t.ID = chi.URLParam(r, "id")
	updated, res, err := s.journals.UpdateTrade(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()), t)
	if err != nil {
		failure(w, journalStatus(err), "trade could not be updated", err)
		return
	}
	trackRemote(res)
	success(w, updated)
}

func (s *Server) handleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	res, err := s.journals.DeleteTrade(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		failure(w, journalStatus(err), "trade could not be deleted", err)
		return
	}
	trackRemote(res)
	successMessage(w, "trade deleted", nil)
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(journal.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q, want YYYY-MM-DD", v)
	}
	return d, nil
}

// periodFromQuery reads mode, date, from, to and weekStart. The anchor
// defaults to today.
func (s *Server) periodFromQuery(r *http.Request) (stats.Period, error) {
	q := r.URL.Query()
	mode, err := stats.ParseMode(q.Get("mode"))
	if err != nil {
		return stats.Period{}, err
	}
	p := stats.Period{Mode: mode, Anchor: s.now(), WeekStartsOnSunday: s.sundayFirst}
	if q.Has("date") {
		if p.Anchor, err = parseDate(q.Get("date")); err != nil {
			return stats.Period{}, err
		}
	}
	if p.From, err = parseDate(q.Get("from")); err != nil {
		return stats.Period{}, err
	}
	if p.To, err = parseDate(q.Get("to")); err != nil {
		return stats.Period{}, err
	}
	switch strings.ToLower(q.Get("weekStart")) {
	case "":
	case "sunday":
		p.WeekStartsOnSunday = true
	case "monday":
		p.WeekStartsOnSunday = false
	default:
		return stats.Period{}, fmt.Errorf("weekStart must be sunday or monday")
	}
	return p, nil
}

type statsResponse struct {
	Mode    stats.Mode      `json:"mode"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Summary stats.Summary   `json:"summary"`
	Trades  []journal.Trade `json:"trades"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p, err := s.periodFromQuery(r)
	if err != nil {
		failure(w, http.StatusBadRequest, "invalid period", err)
		return
	}
	doc, _ := s.journals.Current(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()))
	trades := stats.Filter(doc.Trades, p)

	resp := statsResponse{Mode: p.Mode, Summary: stats.Summarize(trades, doc.StartingCapital.Value()), Trades: trades}
	if from, to, ok := p.Bounds(); ok {
		if !from.IsZero() {
			resp.From = from.Format(journal.DateLayout)
		}
		if !to.IsZero() {
			resp.To = to.Format(journal.DateLayout)
		}
	}
	success(w, resp)
}

type groupsResponse struct {
	By     string        `json:"by"`
	Groups []stats.Group `json:"groups"`
	Best   *stats.Group  `json:"best,omitempty"`
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = "strategy"
	}
	key, ok := stats.KeyFuncFor(by)
	if !ok {
		failure(w, http.StatusBadRequest, "unknown grouping", fmt.Errorf("cannot group by %q", by))
		return
	}
	p, err := s.periodFromQuery(r)
	if err != nil {
		failure(w, http.StatusBadRequest, "invalid period", err)
		return
	}
	doc, _ := s.journals.Current(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()))
	groups := stats.GroupBy(stats.Filter(doc.Trades, p), key)

	resp := groupsResponse{By: by, Groups: groups}
	if best, ok := stats.Best(groups, stats.MinSample); ok {
		resp.Best = &best
	}
	success(w, resp)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.journals.Current(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()))
	success(w, stats.GoalProgress(doc.Trades, doc.Goals, s.now(), s.sundayFirst))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	year, month := now.Year(), now.Month()
	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			failure(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			failure(w, http.StatusBadRequest, "invalid month", err)
			return
		}
		month = time.Month(m)
	}
	doc, _ := s.journals.Current(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()))
	success(w, stats.Calendar(doc.Trades, year, month))
}

// handleExport serves the backup file itself rather than an envelope.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind := kindFromContext(r.Context())
	data, err := s.journals.Export(r.Context(), userFromContext(r.Context()), kind)
	if err != nil {
		failure(w, http.StatusInternalServerError, "export failed", err)
		return
	}
	name := fmt.Sprintf("tradebook-%s-%s.json", kind, s.now().Format(journal.DateLayout))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		failure(w, http.StatusBadRequest, "could not read backup", err)
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	doc, res, err := s.journals.Import(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()), data, confirm)
	if err != nil {
		failure(w, journalStatus(err), "import failed", err)
		return
	}
	trackRemote(res)
	successMessage(w, fmt.Sprintf("imported %d trades", len(doc.Trades)), doc)
}

// handleSize sizes a planned trade against the journal's current equity
// unless equity is given.
func (s *Server) handleSize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	num := func(name string, def float64) (float64, error) {
		v := q.Get(name)
		if v == "" {
			return def, nil
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return x, nil
	}

	var in risk.SizeInputs
	var err error
	for _, f := range []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"entry", &in.Entry, 0},
		{"stop", &in.Stop, 0},
		{"pv", &in.PointValue, 1},
		{"riskPct", &in.RiskPct, 0.01},
		{"equity", &in.Equity, 0},
	} {
		if *f.dst, err = num(f.name, f.def); err != nil {
			failure(w, http.StatusBadRequest, "invalid sizing input", err)
			return
		}
	}
	if !q.Has("entry") || !q.Has("stop") {
		failure(w, http.StatusBadRequest, "entry and stop are required", nil)
		return
	}
	if !q.Has("equity") {
		doc, _ := s.journals.Current(r.Context(), userFromContext(r.Context()), kindFromContext(r.Context()))
		in.Equity = stats.Summarize(doc.Trades, doc.StartingCapital.Value()).EndingEquity
	}
	success(w, risk.Size(in))
}
