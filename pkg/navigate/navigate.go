// Package navigate turns a dropdown selection into the marketplace page it
// points to.
//
// Collection and attribute hits map to a collection page directly. Free text
// (suggestions and tokens) is resolved through the smart search API first and
// only attribute searches and pfp searches are supported.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/log"
	"github.com/rubiojr/storefront/pkg/search"
)

// NoticeUnsupported is shown to the user when a selection cannot be resolved
// to a page.
const NoticeUnsupported = "Sorry, not supported yet."

// ErrInvalidSelection is returned for selections missing the data their kind needs.
var ErrInvalidSelection = errors.New("invalid selection")

// Selection kinds.
const (
	KindSuggestion = "suggestion"
	KindCollection = "collection"
	KindToken      = "token"
	KindAttribute  = "attribute"
)

// Target kinds.
const (
	TargetCollection  = "collection"
	TargetToken       = "token"
	TargetUnsupported = "unsupported"
)

// Selection is what the user picked in the dropdown.
type Selection struct {
	Kind       string                `json:"kind"`
	Text       string                `json:"text,omitempty"`
	Collection *search.CollectionHit `json:"collection,omitempty"`
	Attribute  *search.AttributeHit  `json:"attribute,omitempty"`
}

// FromItem converts a categorized dropdown item into a Selection.
func FromItem(it categorize.Item) Selection {
	switch it.Category {
	case categorize.CategoryCollections:
		return Selection{Kind: KindCollection, Collection: it.Collection}
	case categorize.CategoryAttributes:
		return Selection{Kind: KindAttribute, Attribute: it.Attribute}
	case categorize.CategoryTokens:
		return Selection{Kind: KindToken, Text: it.Text}
	default:
		return Selection{Kind: KindSuggestion, Text: it.Text}
	}
}

// Label is the human readable form of the selection, used for history.
func (s Selection) Label() string {
	switch {
	case s.Collection != nil:
		return s.Collection.Name
	case s.Attribute != nil:
		return s.Attribute.CollectionName + " " + s.Attribute.Key + " " + s.Attribute.Value
	}
	return s.Text
}

// Target is a resolved destination.
type Target struct {
	Kind            string              `json:"kind"`
	ContractAddress string              `json:"contract_address,omitempty"`
	TokenID         string              `json:"token_id,omitempty"`
	Filters         []categorize.Filter `json:"filters,omitempty"`
	Reason          string              `json:"reason,omitempty"`
}

// URL returns the storefront path of the target, or "" when unsupported.
//
//	/collections/{contract}?attributes%5B{key}%5D={value}&...
//	/{contract}/{tokenId}
func (t Target) URL() string {
	switch t.Kind {
	case TargetCollection:
		u := "/collections/" + url.PathEscape(t.ContractAddress)
		if len(t.Filters) == 0 {
			return u
		}
		parts := make([]string, 0, len(t.Filters))
		for _, f := range t.Filters {
			parts = append(parts, url.QueryEscape("attributes["+f.Key+"]")+"="+url.QueryEscape(f.Value))
		}
		return u + "?" + strings.Join(parts, "&")
	case TargetToken:
		return "/" + url.PathEscape(t.ContractAddress) + "/" + url.PathEscape(t.TokenID)
	}
	return ""
}

// Navigator resolves selections.
type Navigator struct {
	resolver search.Resolver
	log      *log.Logger
}

// New returns a Navigator. resolver may be nil, in which case free-text
// selections fail with search.ErrNoResolver.
func New(resolver search.Resolver) *Navigator {
	return &Navigator{resolver: resolver, log: log.ForService("navigate")}
}

// Resolve maps sel to a Target. Unsupported intents return a Target of kind
// TargetUnsupported together with an error wrapping search.ErrUnsupportedIntent.
func (n *Navigator) Resolve(ctx context.Context, sel Selection) (Target, error) {
	switch sel.Kind {
	case KindCollection:
		if sel.Collection == nil || sel.Collection.ContractAddress == "" {
			return Target{}, fmt.Errorf("%w: collection without contract address", ErrInvalidSelection)
		}
		return Target{Kind: TargetCollection, ContractAddress: sel.Collection.ContractAddress}, nil

	case KindAttribute:
		a := sel.Attribute
		if a == nil || a.ContractAddress == "" || a.Key == "" {
			return Target{}, fmt.Errorf("%w: attribute without contract address or key", ErrInvalidSelection)
		}
		return Target{
			Kind:            TargetCollection,
			ContractAddress: a.ContractAddress,
			Filters:         []categorize.Filter{{Key: a.Key, Value: a.Value}},
		}, nil

	case KindSuggestion, KindToken:
		if strings.TrimSpace(sel.Text) == "" {
			return Target{}, fmt.Errorf("%w: empty text", ErrInvalidSelection)
		}
		return n.resolveText(ctx, sel.Text)
	}

	return Target{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSelection, sel.Kind)
}

func (n *Navigator) resolveText(ctx context.Context, text string) (Target, error) {
	if n.resolver == nil {
		return Target{}, search.ErrNoResolver
	}

	intent, err := n.resolver.Resolve(ctx, text)
	if err != nil {
		return Target{}, fmt.Errorf("resolving %q: %w", text, err)
	}

	target := FromIntent(intent)
	if target.Kind == TargetUnsupported {
		n.log.Debugf("unsupported intent for %q: %s", text, target.Reason)
		return target, fmt.Errorf("%w: %s", search.ErrUnsupportedIntent, target.Reason)
	}
	return target, nil
}

// FromIntent converts a resolve answer into a Target.
func FromIntent(intent *search.Intent) Target {
	unsupported := func(reason string) Target {
		return Target{Kind: TargetUnsupported, Reason: reason}
	}

	if intent == nil {
		return unsupported("no intent")
	}
	if !intent.OK() {
		return unsupported(fmt.Sprintf("upstream error %d", intent.Error))
	}

	resp := intent.Response
	switch intent.RequestType {
	case search.IntentAttributeSearch:
		if resp.ContractAddress == "" || len(resp.Attributes) == 0 {
			return unsupported("attribute search without attributes")
		}
		filters := make([]categorize.Filter, 0, len(resp.Attributes))
		for _, a := range resp.Attributes {
			filters = append(filters, categorize.Filter{Key: a.Key, Value: a.Value})
		}
		return Target{
			Kind:            TargetCollection,
			ContractAddress: resp.ContractAddress,
			Filters:         categorize.DedupeFilters(filters),
		}

	case search.IntentPFPSearch:
		if resp.ContractAddress == "" || resp.TokenID == "" {
			return unsupported("pfp search without token")
		}
		return Target{Kind: TargetToken, ContractAddress: resp.ContractAddress, TokenID: resp.TokenID.String()}
	}

	return unsupported(fmt.Sprintf("request type %q", intent.RequestType))
}
