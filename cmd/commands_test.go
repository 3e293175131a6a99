package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/config"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/search"
	"github.com/rubiojr/storefront/pkg/storage"
)

// setupTestConfig writes a config file pointing at a fake smart search
// upstream and returns its path and storage directory.
func setupTestConfig(t *testing.T, extra string) (string, string) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/nft-autocomplete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("search_query") {
		case "azuki":
			_, _ = io.WriteString(w, `{"responses":{
				"smart_search":["azuki red","azuki blue","azuki green","azuki gold"],
				"collections":[{"collection_name":"Azuki","collection_contract":"0xED5AF388"}]
			}}`)
		case "lonely":
			_, _ = io.WriteString(w, `{"responses":{"collections":[{"collection_name":"Lonely","collection_contract":"0x1"}]}}`)
		default:
			_, _ = io.WriteString(w, `{"responses":{}}`)
		}
	})
	mux.HandleFunc("POST /search/nft-search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "moon") {
			_, _ = io.WriteString(w, `{"error":0,"request_type":"collection_search","request_response":{}}`)
			return
		}
		_, _ = io.WriteString(w, `{"error":0,"request_type":"attribute_search","request_response":{"contract_address":"0xAB12","attributes":[{"key":"Shirt","value":"Hoodie"}]}}`)
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	storageDir := t.TempDir()
	content := fmt.Sprintf(`storage_dir = %q
backend = "smartsearch"
%s
[search]
base_url = %q
api_key = "test-key"
requests_per_second = 0.0
`, storageDir, extra, upstream.URL)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path, storageDir
}

func TestSearchQuery(t *testing.T) {
	path, _ := setupTestConfig(t, "")

	var out bytes.Buffer
	if err := searchQuery(t.Context(), &out, path, "azuki", "", false); err != nil {
		t.Fatalf("searchQuery: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Suggestions (3)", "azuki green", "Collections (1)", "0xED5AF388", "Powered by smart NFT search"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "azuki gold") {
		t.Errorf("suggestions not capped:\n%s", got)
	}
}

func TestSearchQueryLimitsFromConfig(t *testing.T) {
	path, _ := setupTestConfig(t, "[limits]\nsuggestions = 1\n")

	var out bytes.Buffer
	if err := searchQuery(t.Context(), &out, path, "azuki", "", true); err != nil {
		t.Fatalf("searchQuery: %v", err)
	}

	var result categorize.Result
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decoding JSON output: %v\n%s", err, out.String())
	}
	if got := result.Count(categorize.CategorySuggestions); got != 1 {
		t.Errorf("suggestions = %d, want 1", got)
	}
	if got := result.Count(categorize.CategoryCollections); got != 1 {
		t.Errorf("collections = %d, want 1", got)
	}
}

func TestSearchQueryEmptyPrimaryCategory(t *testing.T) {
	path, _ := setupTestConfig(t, "")

	var out bytes.Buffer
	if err := searchQuery(t.Context(), &out, path, "lonely", "", false); err != nil {
		t.Fatalf("searchQuery: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "No results.") {
		t.Errorf("expected no results:\n%s", got)
	}
	if strings.Contains(got, "Lonely") || strings.Contains(got, "Powered by") {
		t.Errorf("collections listed without suggestions:\n%s", got)
	}
}

func TestSearchQueryMissingAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf("storage_dir = %q\nbackend = \"smartsearch\"\n", t.TempDir())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if os.Getenv(config.EnvSearchAPIKey) != "" {
		t.Skip("API key set in the environment")
	}

	err := searchQuery(t.Context(), io.Discard, path, "azuki", "", false)
	if err == nil || !strings.Contains(err.Error(), "search.api_key") {
		t.Fatalf("error = %v, want missing api key", err)
	}
}

func TestResolveText(t *testing.T) {
	path, storageDir := setupTestConfig(t, "")

	var out bytes.Buffer
	if err := resolveText(t.Context(), &out, path, "red hoodie", true); err != nil {
		t.Fatalf("resolveText: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Contract: 0xAB12", "Filter: Shirt = Hoodie", "/collections/0xAB12?attributes%5BShirt%5D=Hoodie"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	history, err := storage.OpenHistoryIn(storageDir)
	if err != nil {
		t.Fatalf("OpenHistoryIn: %v", err)
	}
	defer history.Close()
	entries, err := history.Recent(t.Context(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Label != "red hoodie" {
		t.Fatalf("entries = %+v, want one red hoodie entry", entries)
	}
}

func TestResolveTextUnsupported(t *testing.T) {
	path, storageDir := setupTestConfig(t, "")

	var out bytes.Buffer
	if err := resolveText(t.Context(), &out, path, "moon", true); err != nil {
		t.Fatalf("resolveText: %v", err)
	}
	if !strings.Contains(out.String(), navigate.NoticeUnsupported) {
		t.Errorf("output = %q, want the unsupported notice", out.String())
	}

	history, err := storage.OpenHistoryIn(storageDir)
	if err != nil {
		t.Fatalf("OpenHistoryIn: %v", err)
	}
	defer history.Close()
	if n, err := history.Count(t.Context()); err != nil || n != 0 {
		t.Errorf("Count = %d, %v; want nothing recorded", n, err)
	}
}

func TestRunHistory(t *testing.T) {
	path, storageDir := setupTestConfig(t, "")

	history, err := storage.OpenHistoryIn(storageDir)
	if err != nil {
		t.Fatalf("OpenHistoryIn: %v", err)
	}
	for _, label := range []string{"Azuki", "Doodles", "Moonbirds"} {
		sel := navigate.Selection{Kind: navigate.KindCollection, Collection: &search.CollectionHit{Name: label, ContractAddress: "0x" + label}}
		target := navigate.Target{Kind: navigate.TargetCollection, ContractAddress: "0x" + label}
		if err := history.Record(t.Context(), storage.NewEntry(sel, target)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	history.Close()

	var out bytes.Buffer
	if err := runHistory(t.Context(), &out, path, historyOptions{limit: 10}); err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"Recent selections", "Azuki", "Moonbirds", "/collections/0xDoodles"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("list output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := runHistory(t.Context(), &out, path, historyOptions{prune: 1}); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out.String(), "Removed 2 entries") {
		t.Errorf("prune output = %q", out.String())
	}

	out.Reset()
	if err := runHistory(t.Context(), &out, path, historyOptions{optimize: true}); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !strings.Contains(out.String(), "History database optimized") {
		t.Errorf("optimize output = %q", out.String())
	}

	out.Reset()
	if err := runHistory(t.Context(), &out, path, historyOptions{clear: true}); err != nil {
		t.Fatalf("clear: %v", err)
	}

	out.Reset()
	if err := runHistory(t.Context(), &out, path, historyOptions{limit: 10}); err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if !strings.Contains(out.String(), "No selections recorded yet.") {
		t.Errorf("list after clear = %q", out.String())
	}
}
