// Package reservoir is an autocomplete source backed by the marketplace's own
// proxy API. It only knows about collections; suggestions, tokens and
// attributes are always empty.
package reservoir

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/storefront/pkg/log"
	"github.com/rubiojr/storefront/pkg/search"
	"golang.org/x/time/rate"
)

const (
	SearchPath = "/search/collections/v1"

	// DefaultLimit is the number of collections requested per lookup.
	DefaultLimit = 6

	maxBodyBytes  = 4 << 20
	maxErrorBytes = 512
)

// Config configures a Client.
type Config struct {
	BaseURL string

	// CollectionSetID restricts results to a collection set. It takes
	// precedence over the query community.
	CollectionSetID string

	Limit             int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client queries the proxy collection search endpoint.
type Client struct {
	baseURL         string
	collectionSetID string
	limit           int
	client          *http.Client
	limiter         *rate.Limiter
	log             *log.Logger
}

var _ search.Source = (*Client)(nil)

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	n := cfg.Limit
	if n <= 0 {
		n = DefaultLimit
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		collectionSetID: cfg.CollectionSetID,
		limit:           n,
		client:          client,
		limiter:         rate.NewLimiter(limit, burst),
		log:             log.ForService("reservoir"),
	}
}

// SearchURL returns the URL queried for q.
func (c *Client) SearchURL(q search.Query) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.limit))

	switch {
	case c.collectionSetID != "":
		params.Set("collectionsSetId", c.collectionSetID)
	case usableCommunity(q.Community):
		params.Set("community", q.Community)
	}

	if q.Text != "" {
		params.Set("name", q.Text)
	}

	return c.baseURL + SearchPath + "?" + params.Encode()
}

// usableCommunity filters out the placeholder communities derived from a
// bare host name.
func usableCommunity(community string) bool {
	return community != "" && community != "www" && community != "localhost"
}

type collection struct {
	CollectionID string `json:"collectionId"`
	Contract     string `json:"contract"`
	Image        string `json:"image"`
	Name         string `json:"name"`
	TokenCount   int    `json:"tokenCount"`
}

type searchResponse struct {
	Collections []collection `json:"collections"`
}

// Autocomplete implements search.Source.
func (c *Client) Autocomplete(ctx context.Context, q search.Query) (*search.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SearchURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &search.NetworkError{Op: req.Method, URL: req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &search.NetworkError{
			Op:         req.Method,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	var payload *searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding collection search: %v", search.ErrEmptyResponse, err)
	}
	if payload == nil {
		return nil, search.ErrEmptyResponse
	}

	res := &search.Result{}
	for _, col := range payload.Collections {
		addr := col.Contract
		if addr == "" {
			// Collection ids are the contract, optionally followed by a token range.
			addr, _, _ = strings.Cut(col.CollectionID, ":")
		}
		res.Collections = append(res.Collections, search.CollectionHit{
			Name:            col.Name,
			ContractAddress: addr,
			ImageURL:        col.Image,
		})
	}

	c.log.Debugf("%q -> %d collections", q.Text, len(res.Collections))
	return res, nil
}
