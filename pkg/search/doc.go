// Package search holds the shared data model of the storefront search box.
//
// # Overview
//
// Autocomplete backends return heterogeneous payloads. This package defines the
// single normalized shape every backend is converted into, the query that drives
// a lookup, the intent returned by the smart-search resolve call, and the error
// taxonomy shared by all backends.
//
// # Key Types
//
//   - Query: the text typed by the user plus the optional community filter
//   - Result: suggestions, collections, tokens and attribute hits in upstream order
//   - Intent: the outcome of resolving free text (attribute_search, pfp_search, ...)
//   - Source / Resolver: the two interfaces backends implement
//
// # Errors
//
// Backends report transport failures and non-2xx answers as *NetworkError,
// empty or unparseable bodies as ErrEmptyResponse and unrecognized intents as
// ErrUnsupportedIntent. Callers test them with errors.Is and errors.As:
//
//	res, err := source.Autocomplete(ctx, search.Query{Text: "azuki"})
//	var netErr *search.NetworkError
//	if errors.As(err, &netErr) {
//		// upstream unavailable, keep showing the previous results
//	}
//
// # Integration
//
//   - pkg/smartsearch and pkg/reservoir implement Source (smartsearch also Resolver)
//   - pkg/categorize caps a Result per category
//   - pkg/navigate turns hits and intents into navigation targets
//   - pkg/api parses HTTP parameters with ParseQueryParams
package search
