package reservoir

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rubiojr/storefront/pkg/search"
)

func TestSearchURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		query    search.Query
		expected url.Values
	}{
		{
			name:     "global",
			query:    search.Query{Text: "azuki"},
			expected: url.Values{"limit": {"6"}, "name": {"azuki"}},
		},
		{
			name:     "empty query",
			query:    search.Query{},
			expected: url.Values{"limit": {"6"}},
		},
		{
			name:     "community",
			query:    search.Query{Text: "azuki", Community: "bayc"},
			expected: url.Values{"limit": {"6"}, "name": {"azuki"}, "community": {"bayc"}},
		},
		{
			name:     "www community ignored",
			query:    search.Query{Text: "azuki", Community: "www"},
			expected: url.Values{"limit": {"6"}, "name": {"azuki"}},
		},
		{
			name:     "localhost community ignored",
			query:    search.Query{Community: "localhost"},
			expected: url.Values{"limit": {"6"}},
		},
		{
			name:     "collection set wins",
			cfg:      Config{CollectionSetID: "set-1"},
			query:    search.Query{Text: "azuki", Community: "bayc"},
			expected: url.Values{"limit": {"6"}, "name": {"azuki"}, "collectionsSetId": {"set-1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.BaseURL = "https://proxy.example/"
			raw := NewClient(tt.cfg).SearchURL(tt.query)

			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("parse %s: %v", raw, err)
			}
			if u.Path != SearchPath {
				t.Errorf("expected path %s, got %s", SearchPath, u.Path)
			}
			if got := u.Query().Encode(); got != tt.expected.Encode() {
				t.Errorf("expected query %s, got %s", tt.expected.Encode(), got)
			}
		})
	}
}

func TestAutocomplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"collections":[
			{"collectionId":"0xED5AF388","contract":"0xED5AF388","name":"Azuki","image":"https://img/azuki.png","tokenCount":10000},
			{"collectionId":"0xAB12:0:99","name":"Hoodies"}
		]}`))
	}))
	defer ts.Close()

	res, err := NewClient(Config{BaseURL: ts.URL}).Autocomplete(context.Background(), search.Query{Text: "a"})
	if err != nil {
		t.Fatalf("Autocomplete: %v", err)
	}

	want := []search.CollectionHit{
		{Name: "Azuki", ContractAddress: "0xED5AF388", ImageURL: "https://img/azuki.png"},
		{Name: "Hoodies", ContractAddress: "0xAB12"},
	}
	if len(res.Collections) != len(want) {
		t.Fatalf("expected %d collections, got %+v", len(want), res.Collections)
	}
	for i := range want {
		if res.Collections[i] != want[i] {
			t.Errorf("collection %d: expected %+v, got %+v", i, want[i], res.Collections[i])
		}
	}
	if len(res.Suggestions)+len(res.Tokens)+len(res.Attributes) != 0 {
		t.Errorf("expected collections only, got %+v", res)
	}
}

func TestAutocompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"server error", http.StatusBadGateway, "bad gateway", func(err error) bool {
			var netErr *search.NetworkError
			return errors.As(err, &netErr) && netErr.StatusCode == http.StatusBadGateway
		}},
		{"null body", http.StatusOK, "null", func(err error) bool { return errors.Is(err, search.ErrEmptyResponse) }},
		{"empty body", http.StatusOK, "", func(err error) bool { return errors.Is(err, search.ErrEmptyResponse) }},
		{"invalid json", http.StatusOK, "<html>", func(err error) bool { return errors.Is(err, search.ErrEmptyResponse) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := NewClient(Config{BaseURL: ts.URL}).Autocomplete(context.Background(), search.Query{Text: "a"})
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
