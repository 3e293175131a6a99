package cmd

import (
	"fmt"

	"github.com/rubiojr/storefront/pkg/api"
	"github.com/rubiojr/storefront/pkg/config"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/reservoir"
	"github.com/rubiojr/storefront/pkg/search"
	"github.com/rubiojr/storefront/pkg/smartsearch"
	"github.com/rubiojr/storefront/pkg/storage"
)

// loadConfig loads, overrides from the environment and validates the config.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newSmartSearch builds the smart search client, or nil without an API key.
func newSmartSearch(cfg *config.Config) *smartsearch.Client {
	if cfg.Search.APIKey == "" {
		return nil
	}
	return smartsearch.NewClient(smartsearch.Config{
		BaseURL:           cfg.Search.BaseURL,
		APIKey:            cfg.Search.APIKey,
		Timeout:           cfg.Search.Timeout.Duration,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
		Burst:             cfg.Search.Burst,
	})
}

// newSource returns the autocomplete backend selected by cfg.Backend.
func newSource(cfg *config.Config) (search.Source, error) {
	switch cfg.Backend {
	case config.BackendReservoir:
		return reservoir.NewClient(reservoir.Config{
			BaseURL:           cfg.ProxyAPIBase,
			CollectionSetID:   cfg.CollectionSetID,
			Timeout:           cfg.Search.Timeout.Duration,
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
			Burst:             cfg.Search.Burst,
		}), nil
	case config.BackendSmartSearch:
		client := newSmartSearch(cfg)
		if client == nil {
			return nil, fmt.Errorf("backend %q requires search.api_key", cfg.Backend)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// newNavigator returns a navigator resolving free text through smart search
// when an API key is configured.
func newNavigator(cfg *config.Config) *navigate.Navigator {
	if client := newSmartSearch(cfg); client != nil {
		return navigate.New(client)
	}
	return navigate.New(nil)
}

// newDeps wires the API server dependencies for cfg.
func newDeps(cfg *config.Config, history *storage.History) (api.Deps, error) {
	source, err := newSource(cfg)
	if err != nil {
		return api.Deps{}, err
	}
	deps := api.Deps{
		Config:    cfg,
		Source:    source,
		Navigator: newNavigator(cfg),
	}
	// Keep the interface nil when there is no history.
	if history != nil {
		deps.History = history
	}
	return deps, nil
}
