package categorize

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rubiojr/storefront/pkg/search"
)

func sampleResult() *search.Result {
	return &search.Result{
		Suggestions: []string{"azuki", "azuki red", "azuki hoodie", "azuki elemental", "azuki beanz"},
		Collections: []search.CollectionHit{
			{Name: "Azuki", ContractAddress: "0xED5AF388"},
			{Name: "Beanz", ContractAddress: "0x306B1EA3"},
			{Name: "Elementals", ContractAddress: "0xB6A37B5D"},
			{Name: "Azuki Golden Skateboard", ContractAddress: "0x1"},
			{Name: "Azuki Lore", ContractAddress: "0x2"},
		},
		Tokens: []string{"azuki #1", "azuki #2"},
		Attributes: []search.AttributeHit{
			{CollectionName: "Azuki", ContractAddress: "0xED5AF388", Key: "Pants", Value: "Denim"},
			{CollectionName: "Azuki", ContractAddress: "0xED5AF388", Key: "Pants", Value: "Khaki"},
			{CollectionName: "Azuki", ContractAddress: "0xED5AF388", Key: "Hair", Value: "Pink"},
			{CollectionName: "Azuki", ContractAddress: "0xED5AF388", Key: "Eyes", Value: "Closed"},
		},
	}
}

func TestCategorizeCapsEachCategory(t *testing.T) {
	res := Categorize(sampleResult(), DefaultLimits)

	if len(res.Suggestions) != 3 {
		t.Errorf("suggestions: expected 3, got %d", len(res.Suggestions))
	}
	if len(res.Collections) != 4 {
		t.Errorf("collections: expected 4, got %d", len(res.Collections))
	}
	if len(res.Tokens) != 2 {
		t.Errorf("tokens: expected 2 (fewer than limit), got %d", len(res.Tokens))
	}
	if len(res.Attributes) != 3 {
		t.Errorf("attributes: expected 3, got %d", len(res.Attributes))
	}
}

func TestCategorizePreservesOrder(t *testing.T) {
	raw := sampleResult()
	res := Categorize(raw, DefaultLimits)

	for i, s := range res.Suggestions {
		if s != raw.Suggestions[i] {
			t.Errorf("suggestion %d: expected %q, got %q", i, raw.Suggestions[i], s)
		}
	}
	for i, c := range res.Collections {
		if c != raw.Collections[i] {
			t.Errorf("collection %d: expected %+v, got %+v", i, raw.Collections[i], c)
		}
	}
	for i, a := range res.Attributes {
		if a != raw.Attributes[i] {
			t.Errorf("attribute %d: expected %+v, got %+v", i, raw.Attributes[i], a)
		}
	}
}

func TestCategorizeNeverExceedsLimits(t *testing.T) {
	raw := sampleResult()
	for n := 0; n <= 6; n++ {
		limits := Limits{Suggestions: n, Collections: n, Tokens: n, Attributes: n}
		res := Categorize(raw, limits)
		if len(res.Suggestions) > n || len(res.Collections) > n || len(res.Tokens) > n || len(res.Attributes) > n {
			t.Fatalf("limit %d exceeded: %+v", n, res)
		}
	}
}

func TestCategorizeDoesNotAlias(t *testing.T) {
	raw := sampleResult()
	res := Categorize(raw, DefaultLimits)
	res.Suggestions[0] = "mutated"
	if raw.Suggestions[0] != "azuki" {
		t.Fatal("categorized result shares backing array with raw result")
	}
}

func TestEmptyCategoriesOmitted(t *testing.T) {
	res := Categorize(&search.Result{
		Suggestions: []string{},
		Collections: []search.CollectionHit{{Name: "Azuki", ContractAddress: "0xED5AF388"}},
	}, DefaultLimits)

	sections := res.Sections()
	if len(sections) != 1 || sections[0].Category != CategoryCollections {
		t.Fatalf("expected only the collections section, got %+v", sections)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "suggestions") || strings.Contains(string(data), "tokens") {
		t.Errorf("empty categories leaked into JSON: %s", data)
	}

	if !Categorize(nil, DefaultLimits).Empty() {
		t.Error("expected nil input to categorize as empty")
	}
}

func TestCount(t *testing.T) {
	res := Categorize(&search.Result{
		Suggestions: []string{},
		Collections: []search.CollectionHit{{Name: "Azuki"}, {Name: "Beanz"}},
		Attributes:  []search.AttributeHit{{Key: "Pants", Value: "Denim"}},
	}, DefaultLimits)

	tests := []struct {
		category string
		want     int
	}{
		{CategorySuggestions, 0},
		{CategoryCollections, 2},
		{CategoryTokens, 0},
		{CategoryAttributes, 1},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := res.Count(tt.category); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.category, got, tt.want)
		}
	}
}

func TestItemsDisplayOrder(t *testing.T) {
	res := Categorize(sampleResult(), DefaultLimits)
	items := res.Items()

	if len(items) != res.Len() {
		t.Fatalf("expected %d items, got %d", res.Len(), len(items))
	}

	wantCategories := []string{
		CategorySuggestions, CategorySuggestions, CategorySuggestions,
		CategoryCollections, CategoryCollections, CategoryCollections, CategoryCollections,
		CategoryTokens, CategoryTokens,
		CategoryAttributes, CategoryAttributes, CategoryAttributes,
	}
	for i, it := range items {
		if it.Index != i {
			t.Errorf("item %d has index %d", i, it.Index)
		}
		if it.Category != wantCategories[i] {
			t.Errorf("item %d: expected category %s, got %s", i, wantCategories[i], it.Category)
		}
	}

	if items[3].Collection == nil || items[3].Collection.Name != "Azuki" {
		t.Errorf("expected first collection item to carry the hit, got %+v", items[3])
	}
	if items[9].Attribute == nil || items[9].Attribute.Value != "Denim" {
		t.Errorf("expected first attribute item to carry the hit, got %+v", items[9])
	}
}

func TestDedupeFilters(t *testing.T) {
	got := DedupeFilters([]Filter{
		{Key: "Pants", Value: "Denim"},
		{Key: "Pants", Value: "Khaki"},
		{Key: "Hair", Value: "Pink"},
	})

	want := []Filter{{Key: "Pants", Value: "Denim"}, {Key: "Hair", Value: "Pink"}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filter %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	if DedupeFilters(nil) != nil {
		t.Error("expected nil for no filters")
	}
}

func TestMerge(t *testing.T) {
	seed := Result{Suggestions: []string{"azuki", "bayc"}}
	history := Result{Suggestions: []string{"bayc", "doodles", "moonbirds"}}

	merged := Merge(seed, history, DefaultLimits)
	want := []string{"azuki", "bayc", "doodles"}
	if fmt.Sprint(merged.Suggestions) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, merged.Suggestions)
	}
}
