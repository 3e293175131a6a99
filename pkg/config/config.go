package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Backends understood by the autocomplete client factory.
const (
	BackendSmartSearch = "smartsearch"
	BackendReservoir   = "reservoir"
)

const (
	DefaultSearchBaseURL  = "https://api.smartnftsearch.xyz"
	DefaultProxyAPIBase   = "https://api.reservoir.tools"
	DefaultDebounceWindow = 300 * time.Millisecond
	DefaultTimeout        = 10 * time.Second
	MaxDebounceWindow     = 5 * time.Second
)

// Environment variables recognized by ApplyEnv.
const (
	EnvExternalLinks   = "STOREFRONT_EXTERNAL_LINKS"
	EnvCollection      = "STOREFRONT_COLLECTION"
	EnvCommunity       = "STOREFRONT_COMMUNITY"
	EnvCollectionSetID = "STOREFRONT_COLLECTION_SET_ID"
	EnvDefaultToSearch = "STOREFRONT_DEFAULT_TO_SEARCH"
	EnvProxyAPIBase    = "STOREFRONT_PROXY_API_BASE"
	EnvSearchBaseURL   = "STOREFRONT_SEARCH_BASE_URL"
	EnvSearchAPIKey    = "STOREFRONT_SEARCH_API_KEY"
)

type Config struct {
	StorageDir      string       `toml:"storage_dir"`
	Backend         string       `toml:"backend"`
	ExternalLinks   string       `toml:"external_links"`
	Collection      string       `toml:"collection,omitempty"`
	Community       string       `toml:"community,omitempty"`
	CollectionSetID string       `toml:"collection_set_id,omitempty"`
	DefaultToSearch bool         `toml:"default_to_search"`
	ProxyAPIBase    string       `toml:"proxy_api_base"`
	DebounceWindow  Duration     `toml:"debounce_window"`
	Search          SearchConfig `toml:"search"`
	Limits          Limits       `toml:"limits"`
}

type SearchConfig struct {
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           Duration `toml:"timeout"`
}

// Limits caps how many entries of each category the search box shows.
type Limits struct {
	Suggestions int `toml:"suggestions"`
	Collections int `toml:"collections"`
	Tokens      int `toml:"tokens"`
	Attributes  int `toml:"attributes"`
}

// DefaultLimits are the dropdown caps used when limits are not configured.
var DefaultLimits = Limits{Suggestions: 3, Collections: 4, Tokens: 3, Attributes: 3}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// NavLink is an external navbar link.
type NavLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Filter kinds, in precedence order.
const (
	FilterNone          = ""
	FilterCollectionSet = "collection_set"
	FilterCommunity     = "community"
	FilterCollection    = "collection"
)

// Filter is the active storefront filter.
type Filter struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

func GetDefaultConfig() *Config {
	cfg := &Config{Limits: DefaultLimits}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSmartSearch
	}
	if c.ProxyAPIBase == "" {
		c.ProxyAPIBase = DefaultProxyAPIBase
	}
	if c.DebounceWindow.Duration == 0 {
		c.DebounceWindow = Duration{DefaultDebounceWindow}
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = DefaultSearchBaseURL
	}
	if c.Search.RequestsPerSecond == 0 {
		c.Search.RequestsPerSecond = 5
	}
	if c.Search.Burst == 0 {
		c.Search.Burst = 5
	}
	if c.Search.Timeout.Duration == 0 {
		c.Search.Timeout = Duration{DefaultTimeout}
	}
}

// LoadConfig reads configPath, falling back to defaults when the file does
// not exist. Environment overrides are applied separately with ApplyEnv.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := GetDefaultConfig()
		if err := cfg.ensureStorageDir(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start from defaults so a partial [limits] table keeps the other caps.
	config := *GetDefaultConfig()
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.applyDefaults()
	if err := config.ensureStorageDir(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) ensureStorageDir() error {
	if c.StorageDir != "" {
		return nil
	}
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return fmt.Errorf("getting default storage directory: %w", err)
	}
	c.StorageDir = storageDir
	return nil
}

// Load is LoadConfig followed by ApplyEnv(os.LookupEnv) and Validate. It is
// what commands call once at startup.
func Load(configPath string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values with environment values.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvExternalLinks:   &c.ExternalLinks,
		EnvCollection:      &c.Collection,
		EnvCommunity:       &c.Community,
		EnvCollectionSetID: &c.CollectionSetID,
		EnvProxyAPIBase:    &c.ProxyAPIBase,
		EnvSearchBaseURL:   &c.Search.BaseURL,
		EnvSearchAPIKey:    &c.Search.APIKey,
	}
	for env, dst := range strs {
		if v, ok := lookup(env); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvDefaultToSearch); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvDefaultToSearch, err)
		}
		c.DefaultToSearch = b
	}

	return nil
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	var errs []error

	set := 0
	for _, v := range []string{c.Collection, c.Community, c.CollectionSetID} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		errs = append(errs, errors.New("collection, community and collection_set_id are mutually exclusive"))
	}

	switch c.Backend {
	case BackendSmartSearch:
		if c.Search.APIKey == "" {
			errs = append(errs, fmt.Errorf("search.api_key is required for the %s backend (or set %s)", BackendSmartSearch, EnvSearchAPIKey))
		}
	case BackendReservoir:
		if c.ProxyAPIBase == "" {
			errs = append(errs, fmt.Errorf("proxy_api_base is required for the %s backend", BackendReservoir))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	if c.Search.BaseURL == "" {
		errs = append(errs, errors.New("search.base_url must be set"))
	}

	if d := c.DebounceWindow.Duration; d <= 0 || d > MaxDebounceWindow {
		errs = append(errs, fmt.Errorf("debounce_window must be in (0, %s], got %s", MaxDebounceWindow, d))
	}

	l := c.Limits
	if l.Suggestions < 0 || l.Collections < 0 || l.Tokens < 0 || l.Attributes < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}

	if c.Search.RequestsPerSecond < 0 || c.Search.Burst < 0 {
		errs = append(errs, errors.New("search rate limits must not be negative"))
	}

	if _, err := ParseNavLinks(c.ExternalLinks); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseNavLinks parses comma separated name::url pairs. Blank entries are skipped.
func ParseNavLinks(raw string) ([]NavLink, error) {
	var links []NavLink
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, ok := strings.Cut(entry, "::")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("external link %q: expected name::url", entry)
		}
		links = append(links, NavLink{Name: name, URL: url})
	}
	return links, nil
}

// NavLinks returns the parsed navbar links. Invalid configurations were
// rejected by Validate, so errors are dropped here.
func (c *Config) NavLinks() []NavLink {
	links, _ := ParseNavLinks(c.ExternalLinks)
	return links
}

// ActiveFilter returns the configured filter. A collection set wins over a
// community, which wins over a single collection.
func (c *Config) ActiveFilter() Filter {
	switch {
	case c.CollectionSetID != "":
		return Filter{Kind: FilterCollectionSet, ID: c.CollectionSetID}
	case c.Community != "":
		return Filter{Kind: FilterCommunity, ID: c.Community}
	case c.Collection != "":
		return Filter{Kind: FilterCollection, ID: c.Collection}
	}
	return Filter{Kind: FilterNone}
}

// Filterable reports whether the storefront shows the search box: global
// storefronts, communities and collection sets do, single-collection ones don't.
func (c *Config) Filterable() bool {
	return c.ActiveFilter().Kind != FilterCollection
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0600)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/storefront", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0600)
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/storefront, creating it.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "storefront")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/storefront, creating it.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "storefront")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
