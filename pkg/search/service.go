package search

import (
	"context"
	"strings"
)

// Query is a single autocomplete lookup.
type Query struct {
	// Text is what the user typed. Leading and trailing spaces are kept as typed;
	// backends decide whether to trim.
	Text string

	// Community limits results to a marketplace community. Empty means global.
	Community string
}

// Empty reports whether the query carries no text.
func (q Query) Empty() bool {
	return q.Text == ""
}

// Source produces autocomplete results for a query.
type Source interface {
	Autocomplete(ctx context.Context, q Query) (*Result, error)
}

// Resolver turns free text into a navigation intent.
type Resolver interface {
	Resolve(ctx context.Context, text string) (*Intent, error)
}

// Params are the HTTP parameters accepted by the autocomplete endpoints.
type Params struct {
	Query Query

	// Seq is an opaque client sequence number echoed back so browsers can
	// drop answers for superseded keystrokes.
	Seq string
}

// ParseQueryParams parses HTTP query parameters into Params.
//
// Supported parameters:
//   - q: text typed by the user
//   - community: community filter (overrides the configured default)
//   - seq: client sequence number, echoed back unchanged
//
// The default community is used when the request does not carry one.
func ParseQueryParams(queryParams map[string][]string, defaultCommunity string) Params {
	params := Params{
		Query: Query{Community: defaultCommunity},
	}

	if q := queryParams["q"]; len(q) > 0 {
		params.Query.Text = q[0]
	}

	if c := queryParams["community"]; len(c) > 0 && strings.TrimSpace(c[0]) != "" {
		params.Query.Community = strings.TrimSpace(c[0])
	}

	if seq := queryParams["seq"]; len(seq) > 0 {
		params.Seq = seq[0]
	}

	return params
}
