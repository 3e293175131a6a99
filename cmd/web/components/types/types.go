package types

import "github.com/rubiojr/storefront/pkg/config"

// PageData represents data passed to templates
type PageData struct {
	Title           string
	Links           []config.NavLink
	Filter          config.Filter
	ShowSearch      bool
	DefaultToSearch bool
	Query           string
	Notice          string // Inline notice, e.g. after an unsupported /go redirect
	DebounceMS      int64
	Version         string // Application version (for footer display)
}
