package server

import (
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/accounts"
	"github.com/rustyeddy/tradebook/journal"
)

type Options struct {
	Journals           *journal.Service
	Accounts           *accounts.Directory
	Tokens             *TokenIssuer
	Logger             *zap.Logger
	WeekStartsOnSunday bool
	// AllowedOrigins limits WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
	PingInterval   time.Duration
}

// Server exposes the journal and account directory over HTTP.
type Server struct {
	journals     *journal.Service
	accounts     *accounts.Directory
	tokens       *TokenIssuer
	log          *zap.Logger
	sundayFirst  bool
	origins      map[string]bool
	pingInterval time.Duration
	upgrader     websocket.Upgrader
	now          func() time.Time
}

func New(opts Options) (*Server, error) {
	if opts.Journals == nil || opts.Accounts == nil {
		return nil, errors.New("server: journals and accounts are required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("server: token issuer is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}

	s := &Server{
		journals:     opts.Journals,
		accounts:     opts.Accounts,
		tokens:       opts.Tokens,
		log:          opts.Logger,
		sundayFirst:  opts.WeekStartsOnSunday,
		origins:      make(map[string]bool, len(opts.AllowedOrigins)),
		pingInterval: opts.PingInterval,
		now:          time.Now,
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || s.origins[origin]
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(requestMetrics)

	r.Get("/health", s.handleHealth)
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/reset", s.handleReset)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/me", s.handleMe)
			r.Post("/password", s.handleChangePassword)
			r.Post("/rename", s.handleRename)
		})
	})

	r.Route("/api/journals/{kind}", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(kindMiddleware)

		r.Get("/", s.handleGetJournal)
		r.Put("/", s.handlePutJournal)
		r.Post("/trades", s.handleAddTrade)
		r.Put("/trades/{id}", s.handleUpdateTrade)
		r.Delete("/trades/{id}", s.handleDeleteTrade)
		r.Get("/stats", s.handleStats)
		r.Get("/groups", s.handleGroups)
		r.Get("/goals", s.handleGoals)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/size", s.handleSize)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Get("/live", s.handleLive)
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Remote string `json:"remote"`
}

// handleHealth answers 200 while the local copy serves requests and reports
// remote reachability alongside.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Time: s.now().UTC().Format(time.RFC3339), Remote: "disabled"}
	if s.journals.RemoteEnabled() {
		resp.Remote = "ok"
		if err := s.journals.PingRemote(r.Context()); err != nil {
			s.log.Warn("health: remote unreachable", zap.Error(err))
			resp.Remote = "unavailable"
		}
	}
	success(w, resp)
}
