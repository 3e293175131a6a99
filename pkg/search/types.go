package search

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// CollectionHit is a collection matched by name.
type CollectionHit struct {
	Name            string `json:"name"`
	ContractAddress string `json:"contract_address"`
	ImageURL        string `json:"image_url,omitempty"`
}

// AttributeHit is a single trait value inside a collection.
type AttributeHit struct {
	CollectionName  string `json:"collection_name"`
	ContractAddress string `json:"contract_address"`
	ImageURL        string `json:"image_url,omitempty"`
	Key             string `json:"key"`
	Value           string `json:"value"`
}

// Result is the normalized autocomplete response. Every slice keeps the order
// returned by the upstream service; a nil slice means the category was absent.
type Result struct {
	Suggestions []string        `json:"suggestions,omitempty"`
	Collections []CollectionHit `json:"collections,omitempty"`
	Tokens      []string        `json:"tokens,omitempty"`
	Attributes  []AttributeHit  `json:"attributes,omitempty"`
}

// Len returns the total number of entries across all categories.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Suggestions) + len(r.Collections) + len(r.Tokens) + len(r.Attributes)
}

// Intent kinds returned by the resolve endpoint.
const (
	IntentAttributeSearch = "attribute_search"
	IntentPFPSearch       = "pfp_search"
)

// Attribute is a key/value trait pair.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NFT is an individual token listed in a resolve response.
type NFT struct {
	TokenID         FlexString `json:"token_id"`
	Name            string     `json:"name"`
	Price           float64    `json:"price"`
	ImageURL        string     `json:"image_url"`
	Permalink       string     `json:"permalink"`
	CachedFileURL   string     `json:"cached_file_url"`
	RarityIndex     float64    `json:"rarity_index"`
	RarityPercent   float64    `json:"rarity_percent"`
	ContractAddress string     `json:"contract_address"`
}

// Intent is the decoded answer of the resolve (nft-search) endpoint.
type Intent struct {
	Error       int    `json:"error"`
	RequestType string `json:"request_type"`
	Response    struct {
		Name            string      `json:"name"`
		ProfileImage    string      `json:"profile_img,omitempty"`
		ContractAddress string      `json:"contract_address"`
		Themes          []string    `json:"themes,omitempty"`
		IsApproximate   bool        `json:"is_approximate,omitempty"`
		TokenID         FlexString  `json:"token_id"`
		Attributes      []Attribute `json:"attributes"`
		NFTs            []NFT       `json:"nfts,omitempty"`
	} `json:"request_response"`
}

// OK reports whether the upstream flagged the intent as successfully parsed.
func (i *Intent) OK() bool {
	return i != nil && i.Error == 0
}

// FlexString decodes either a JSON string or a JSON number into a string.
// Token ids are sent as numbers by some endpoints and strings by others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
