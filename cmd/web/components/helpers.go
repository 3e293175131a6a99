package components

import (
	"github.com/rubiojr/storefront/cmd/web/components/types"
	"github.com/rubiojr/storefront/pkg/config"
)

// SearchActive reports whether the page opens with the search box instead of
// the external links. Links are hidden whenever the search is active.
func SearchActive(data types.PageData) bool {
	return data.ShowSearch && (data.DefaultToSearch || len(data.Links) == 0 || data.Query != "")
}

// FilterLabel describes the active storefront filter for the search box
// placeholder.
func FilterLabel(f config.Filter) string {
	switch f.Kind {
	case config.FilterCollectionSet:
		return "Search collections"
	case config.FilterCommunity:
		return "Search " + f.ID
	default:
		return "Search for collections, NFTs or traits"
	}
}
