// Package categorize splits an autocomplete result into the sections shown in
// the search dropdown and caps each section.
package categorize

import (
	"github.com/rubiojr/storefront/pkg/search"
)

// Category names, in display order.
const (
	CategorySuggestions = "suggestions"
	CategoryCollections = "collections"
	CategoryTokens      = "tokens"
	CategoryAttributes  = "attributes"
)

// Limits caps the number of entries displayed per category. A zero limit
// hides the category.
type Limits struct {
	Suggestions int `json:"suggestions"`
	Collections int `json:"collections"`
	Tokens      int `json:"tokens"`
	Attributes  int `json:"attributes"`
}

// DefaultLimits mirrors the storefront dropdown.
var DefaultLimits = Limits{Suggestions: 3, Collections: 4, Tokens: 3, Attributes: 3}

// Result is a capped autocomplete result.
type Result struct {
	Suggestions []string               `json:"suggestions,omitempty"`
	Collections []search.CollectionHit `json:"collections,omitempty"`
	Tokens      []string               `json:"tokens,omitempty"`
	Attributes  []search.AttributeHit  `json:"attributes,omitempty"`
}

// Section is one non-empty category of a Result.
type Section struct {
	Category string `json:"category"`
	Items    []Item `json:"items"`
}

// Item is a selectable dropdown entry. Exactly one of Text, Collection or
// Attribute is meaningful, depending on Category.
type Item struct {
	Index      int                   `json:"index"`
	Category   string                `json:"category"`
	Label      string                `json:"label"`
	Text       string                `json:"text,omitempty"`
	Collection *search.CollectionHit `json:"collection,omitempty"`
	Attribute  *search.AttributeHit  `json:"attribute,omitempty"`
}

// Categorize truncates every category of raw to its limit. Upstream order is
// kept; nothing is re-ranked. A nil raw yields an empty Result.
func Categorize(raw *search.Result, limits Limits) Result {
	if raw == nil {
		return Result{}
	}
	return Result{
		Suggestions: head(raw.Suggestions, limits.Suggestions),
		Collections: head(raw.Collections, limits.Collections),
		Tokens:      head(raw.Tokens, limits.Tokens),
		Attributes:  head(raw.Attributes, limits.Attributes),
	}
}

func head[T any](in []T, n int) []T {
	if n <= 0 || len(in) == 0 {
		return nil
	}
	if len(in) > n {
		in = in[:n]
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Len returns the number of displayed entries.
func (r Result) Len() int {
	return len(r.Suggestions) + len(r.Collections) + len(r.Tokens) + len(r.Attributes)
}

// Empty reports whether nothing would be displayed.
func (r Result) Empty() bool {
	return r.Len() == 0
}

// Count returns the number of displayed entries in category.
func (r Result) Count(category string) int {
	switch category {
	case CategorySuggestions:
		return len(r.Suggestions)
	case CategoryCollections:
		return len(r.Collections)
	case CategoryTokens:
		return len(r.Tokens)
	case CategoryAttributes:
		return len(r.Attributes)
	}
	return 0
}

// Items flattens the result in display order. Item.Index is the position used
// for keyboard highlighting and selection.
func (r Result) Items() []Item {
	items := make([]Item, 0, r.Len())
	add := func(it Item) {
		it.Index = len(items)
		items = append(items, it)
	}

	for _, s := range r.Suggestions {
		add(Item{Category: CategorySuggestions, Label: s, Text: s})
	}
	for i := range r.Collections {
		c := r.Collections[i]
		add(Item{Category: CategoryCollections, Label: c.Name, Collection: &c})
	}
	for _, s := range r.Tokens {
		add(Item{Category: CategoryTokens, Label: s, Text: s})
	}
	for i := range r.Attributes {
		a := r.Attributes[i]
		add(Item{Category: CategoryAttributes, Label: a.CollectionName + " " + a.Key + " " + a.Value, Attribute: &a})
	}
	return items
}

// Sections groups Items by category, omitting empty categories.
func (r Result) Sections() []Section {
	var sections []Section
	for _, it := range r.Items() {
		if n := len(sections); n > 0 && sections[n-1].Category == it.Category {
			sections[n-1].Items = append(sections[n-1].Items, it)
			continue
		}
		sections = append(sections, Section{Category: it.Category, Items: []Item{it}})
	}
	return sections
}

// Filter is a single attribute filter applied to a collection page.
type Filter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DedupeFilters keeps the first value seen for each attribute key. Marketplace
// collection pages accept a single value per attribute key.
func DedupeFilters(filters []Filter) []Filter {
	if len(filters) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(filters))
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if _, ok := seen[f.Key]; ok {
			continue
		}
		seen[f.Key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Merge appends the categories of extra after those of r, then re-applies
// limits. It is used to combine seed results with recent history.
func Merge(r Result, extra Result, limits Limits) Result {
	return Categorize(&search.Result{
		Suggestions: dedupeStrings(append(append([]string(nil), r.Suggestions...), extra.Suggestions...)),
		Collections: append(append([]search.CollectionHit(nil), r.Collections...), extra.Collections...),
		Tokens:      dedupeStrings(append(append([]string(nil), r.Tokens...), extra.Tokens...)),
		Attributes:  append(append([]search.AttributeHit(nil), r.Attributes...), extra.Attributes...),
	}, limits)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
