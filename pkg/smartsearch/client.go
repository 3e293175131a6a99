// Package smartsearch is the client for the third-party smart NFT search API.
//
// Two endpoints are used:
//
//   - GET  /search/nft-autocomplete  typeahead suggestions, collections, tokens and attributes
//   - POST /search/nft-search        natural language resolve of a free-text selection
//
// Every request carries the x-api-key header. Calls are throttled with a token
// bucket so a burst of sessions cannot exhaust the upstream quota, and honor
// context cancellation so superseded keystrokes abort their requests.
package smartsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rubiojr/storefront/pkg/log"
	"github.com/rubiojr/storefront/pkg/search"
	"golang.org/x/time/rate"
)

const (
	AutocompletePath = "/search/nft-autocomplete"
	ResolvePath      = "/search/nft-search"

	// HeaderAPIKey carries the API key on every request.
	HeaderAPIKey = "x-api-key"

	maxBodyBytes  = 4 << 20
	maxErrorBytes = 512
)

// DefaultSearchTypes are the autocomplete search_types flags.
var DefaultSearchTypes = []string{
	"name_autocomplete",
	"individual_attributes",
	"token_search",
	"attribute_search",
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client talks to the smart search API. It implements search.Source and
// search.Resolver and is safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	limiter     *rate.Limiter
	searchTypes []string
	log         *log.Logger
}

var (
	_ search.Source   = (*Client)(nil)
	_ search.Resolver = (*Client)(nil)
)

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
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
		searchTypes: DefaultSearchTypes,
		log:         log.ForService("smartsearch"),
	}
}

type collectionHit struct {
	CollectionName     string `json:"collection_name"`
	CollectionContract string `json:"collection_contract"`
	CollectionImage    string `json:"collection_image"`
}

type attributeHit struct {
	CollectionName     string `json:"collection_name"`
	CollectionContract string `json:"collection_contract"`
	CollectionImage    string `json:"collection_image"`
	Key                string `json:"key"`
	Value              string `json:"value"`
}

type autocompleteResponse struct {
	Responses *struct {
		SmartSearch []string        `json:"smart_search"`
		Collections []collectionHit `json:"collections"`
		Token       []string        `json:"token"`
		Attributes  []attributeHit  `json:"attributes"`
	} `json:"responses"`
}

// AutocompleteURL returns the URL queried for q.
func (c *Client) AutocompleteURL(q search.Query) string {
	params := url.Values{}
	params.Set("search_query", q.Text)
	params.Set("search_types", strings.Join(c.searchTypes, ","))
	if q.Community != "" {
		params.Set("community", q.Community)
	}
	return c.baseURL + AutocompletePath + "?" + params.Encode()
}

// Autocomplete fetches typeahead results for q. An empty q.Text is allowed
// and returns the upstream's default (trending) results.
func (c *Client) Autocomplete(ctx context.Context, q search.Query) (*search.Result, error) {
	u := c.AutocompleteURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating autocomplete request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var payload autocompleteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding autocomplete response: %v", search.ErrEmptyResponse, err)
	}

	return normalize(payload), nil
}

func normalize(payload autocompleteResponse) *search.Result {
	res := &search.Result{}
	if payload.Responses == nil {
		return res
	}

	r := payload.Responses
	res.Suggestions = r.SmartSearch
	res.Tokens = r.Token

	if r.Collections != nil {
		res.Collections = make([]search.CollectionHit, 0, len(r.Collections))
		for _, c := range r.Collections {
			res.Collections = append(res.Collections, search.CollectionHit{
				Name:            c.CollectionName,
				ContractAddress: c.CollectionContract,
				ImageURL:        c.CollectionImage,
			})
		}
	}

	if r.Attributes != nil {
		res.Attributes = make([]search.AttributeHit, 0, len(r.Attributes))
		for _, a := range r.Attributes {
			res.Attributes = append(res.Attributes, search.AttributeHit{
				CollectionName:  a.CollectionName,
				ContractAddress: a.CollectionContract,
				ImageURL:        a.CollectionImage,
				Key:             a.Key,
				Value:           a.Value,
			})
		}
	}

	return res
}

type resolveRequest struct {
	SearchQuery string `json:"search_query"`
	Start       int    `json:"start"`
	Limit       int    `json:"limit"`
	BuyNow      bool   `json:"buy_now"`
	NLUOnly     bool   `json:"nlu_only"`
}

// Resolve asks the search API what a free-text selection means.
func (c *Client) Resolve(ctx context.Context, text string) (*search.Intent, error) {
	payload, err := json.Marshal(resolveRequest{
		SearchQuery: text,
		Start:       0,
		Limit:       10,
		BuyNow:      true,
		NLUOnly:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling resolve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ResolvePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var intent search.Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("%w: decoding resolve response: %v", search.ErrEmptyResponse, err)
	}

	c.log.Debugf("resolved %q as %q (error=%d)", text, intent.RequestType, intent.Error)
	return &intent, nil
}

// do waits for the rate limiter, sends req and returns the non-empty body of
// a 2xx answer.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAPIKey, c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &search.NetworkError{Op: req.Method, URL: req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debugf("%s %s -> %d in %s", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &search.NetworkError{
			Op:         req.Method,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &search.NetworkError{Op: req.Method, URL: req.URL.Path, Err: fmt.Errorf("reading body: %w", err)}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, search.ErrEmptyResponse
	}

	return trimmed, nil
}
