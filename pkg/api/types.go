package api

import (
	"time"

	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/config"
	"github.com/rubiojr/storefront/pkg/navigate"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type AutocompleteResponse struct {
	Query    string               `json:"query"`
	Seq      string               `json:"seq,omitempty"`
	Seeds    bool                 `json:"seeds,omitempty"`
	Count    int                  `json:"count"`
	Results  categorize.Result    `json:"results"`
	Sections []categorize.Section `json:"sections"`
}

type ResolveRequest struct {
	Query     string              `json:"query"`
	Selection *navigate.Selection `json:"selection,omitempty"`
}

type ResolveResponse struct {
	Target navigate.Target `json:"target"`
	URL    string          `json:"url"`
}

// PublicConfig is the navbar configuration exposed to browsers. It never
// carries credentials.
type PublicConfig struct {
	Links           []config.NavLink  `json:"links"`
	Filter          config.Filter     `json:"filter"`
	ShowSearch      bool              `json:"show_search"`
	DefaultToSearch bool              `json:"default_to_search"`
	Backend         string            `json:"backend"`
	DebounceMS      int64             `json:"debounce_ms"`
	Limits          categorize.Limits `json:"limits"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Sessions  int       `json:"sessions"`
}

// ClientMessage is a message sent by the browser over the websocket.
type ClientMessage struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Delta int    `json:"delta,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// Client message types.
const (
	MessageFocus     = "focus"
	MessageBlur      = "blur"
	MessageInput     = "input"
	MessageHighlight = "highlight"
	MessageSelect    = "select"
	MessageClear     = "clear"
)

// PublicConfigFrom builds the browser view of cfg.
func PublicConfigFrom(cfg *config.Config) PublicConfig {
	return PublicConfig{
		Links:           cfg.NavLinks(),
		Filter:          cfg.ActiveFilter(),
		ShowSearch:      cfg.Filterable(),
		DefaultToSearch: cfg.DefaultToSearch,
		Backend:         cfg.Backend,
		DebounceMS:      cfg.DebounceWindow.Milliseconds(),
		Limits:          LimitsOf(cfg),
	}
}
