package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/config"
	"github.com/rubiojr/storefront/pkg/log"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/realtime"
	"github.com/rubiojr/storefront/pkg/search"
	"github.com/rubiojr/storefront/pkg/storage"
	"github.com/rubiojr/storefront/pkg/widget"
)

// HistoryStore records selections and returns the most recent ones.
// *storage.History implements it.
type HistoryStore interface {
	Record(ctx context.Context, e storage.Entry) error
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
}

// Deps are the collaborators a Server needs. They are swapped as a whole on
// config reload.
type Deps struct {
	Config    *config.Config
	Source    search.Source
	Navigator widget.Navigator

	// History is optional.
	History HistoryStore
}

type Server struct {
	mu    sync.RWMutex
	deps  Deps
	seeds categorize.Result

	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      *log.Logger

	sessionsMu sync.Mutex
	sessions   map[string]*wsSession
}

type wsSession struct {
	session *widget.Session
	conn    interface{ Close() error }
}

func NewServer(deps Deps, hub *realtime.Hub) *Server {
	if hub == nil {
		hub = realtime.NewHub(0)
	}
	return &Server{
		deps: deps,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:      log.ForService("api"),
		sessions: make(map[string]*wsSession),
	}
}

// Update replaces the dependencies used by new requests and sessions.
// Sessions already open keep the dependencies they were created with.
func (s *Server) Update(deps Deps) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps = deps
}

func (s *Server) current() Deps {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deps
}

// Config returns the configuration currently in use.
func (s *Server) Config() *config.Config {
	return s.current().Config
}

// Hub returns the realtime hub feeding websocket sessions.
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// LoadSeeds fetches the empty-query results shown in a focused, empty search
// box. Single-collection storefronts have no search box and get no seeds.
func (s *Server) LoadSeeds(ctx context.Context) error {
	deps := s.current()
	cfg := deps.Config

	if !cfg.Filterable() || deps.Source == nil {
		s.setSeeds(categorize.Result{})
		return nil
	}

	q := search.Query{}
	if f := cfg.ActiveFilter(); f.Kind == config.FilterCommunity {
		q.Community = f.ID
	}

	raw, err := deps.Source.Autocomplete(ctx, q)
	if err != nil {
		return err
	}

	seeds := categorize.Categorize(raw, LimitsOf(cfg))
	s.setSeeds(seeds)
	s.log.Debugf("loaded %d seed results", seeds.Len())
	return nil
}

func (s *Server) setSeeds(r categorize.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeds = r
}

// Seeds returns the current seed results merged with recent history.
func (s *Server) Seeds(ctx context.Context) categorize.Result {
	s.mu.RLock()
	seeds, deps := s.seeds, s.deps
	s.mu.RUnlock()
	return s.withHistory(ctx, deps, seeds)
}

func (s *Server) currentSeeds() categorize.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeds
}

// withHistory puts the recent selections of deps.History ahead of seeds.
func (s *Server) withHistory(ctx context.Context, deps Deps, seeds categorize.Result) categorize.Result {
	if deps.History == nil {
		return seeds
	}

	limits := LimitsOf(deps.Config)
	entries, err := deps.History.Recent(ctx, recentLimit(limits))
	if err != nil {
		s.log.Warnf("loading recent history: %v", err)
		return seeds
	}
	recent := categorize.Categorize(storage.AsResult(entries), limits)
	return categorize.Merge(recent, seeds, limits)
}

func recentLimit(l categorize.Limits) int {
	return max(l.Suggestions, l.Collections, l.Tokens, l.Attributes)
}

// LimitsOf returns the dropdown caps configured in cfg.
func LimitsOf(cfg *config.Config) categorize.Limits {
	if cfg == nil {
		return categorize.DefaultLimits
	}
	return categorize.Limits{
		Suggestions: cfg.Limits.Suggestions,
		Collections: cfg.Limits.Collections,
		Tokens:      cfg.Limits.Tokens,
		Attributes:  cfg.Limits.Attributes,
	}
}

// PrimaryOf returns the category that decides whether a query found
// anything. The proxy backend only returns collections.
func PrimaryOf(cfg *config.Config) string {
	if cfg != nil && cfg.Backend == config.BackendReservoir {
		return categorize.CategoryCollections
	}
	return categorize.CategorySuggestions
}

// recordSelection stores a resolved selection in the history, if any.
func (s *Server) recordSelection(history HistoryStore, sel navigate.Selection, target navigate.Target) {
	if history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := history.Record(ctx, storage.NewEntry(sel, target)); err != nil {
		s.log.Warnf("recording selection %q: %v", sel.Label(), err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// Close ends every open websocket session. Closing the connection makes the
// session's read loop exit and clean up.
func (s *Server) Close() {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for _, ws := range s.sessions {
		ws.session.Close()
		_ = ws.conn.Close()
	}
}

// SessionCount returns the number of open websocket sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
