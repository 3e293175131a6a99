package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/search"
	"github.com/rubiojr/storefront/pkg/version"
)

const (
	historyTimeout = 2 * time.Second
	maxRequestBody = 64 << 10
)

func (s *Server) HandleAutocomplete(w http.ResponseWriter, r *http.Request) {
	deps := s.current()
	params := search.ParseQueryParams(r.URL.Query(), deps.Config.Community)

	response := AutocompleteResponse{
		Query: params.Query.Text,
		Seq:   params.Seq,
	}

	var result categorize.Result
	if params.Query.Empty() {
		result = s.Seeds(r.Context())
		response.Seeds = true
	} else {
		if deps.Source == nil {
			s.writeError(w, http.StatusServiceUnavailable, "Search unavailable", "No autocomplete backend configured")
			return
		}
		raw, err := deps.Source.Autocomplete(r.Context(), params.Query)
		if err != nil {
			s.writeSearchError(w, err)
			return
		}
		result = categorize.Categorize(raw, LimitsOf(deps.Config))
	}

	response.Results = result
	response.Count = result.Len()
	response.Sections = result.Sections()
	if response.Sections == nil {
		response.Sections = []categorize.Section{}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil || json.Unmarshal(body, &req) != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request", "Body must be JSON with a 'query' or 'selection' field")
		return
	}

	sel := navigate.Selection{Kind: navigate.KindSuggestion, Text: strings.TrimSpace(req.Query)}
	if req.Selection != nil {
		sel = *req.Selection
	}

	target, ok := s.resolve(w, r, sel)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, ResolveResponse{Target: target, URL: target.URL()})
}

// HandleGo resolves a selection passed as query parameters and redirects the
// browser to it. Unsupported selections go back to the home page with a
// notice.
//
//	/go?kind=collection&contract=0x..&name=Azuki
//	/go?kind=attribute&contract=0x..&key=Pants&value=Denim
//	/go?kind=suggestion&q=red+hoodie
func (s *Server) HandleGo(w http.ResponseWriter, r *http.Request) {
	sel := SelectionFromQuery(r.URL.Query())

	deps := s.current()
	if deps.Navigator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Search unavailable", "No resolver configured")
		return
	}

	target, err := deps.Navigator.Resolve(r.Context(), sel)
	switch {
	case err == nil:
		s.recordSelection(deps.History, sel, target)
		http.Redirect(w, r, target.URL(), http.StatusSeeOther)
	case errors.Is(err, search.ErrUnsupportedIntent):
		http.Redirect(w, r, "/?notice="+url.QueryEscape(navigate.NoticeUnsupported), http.StatusSeeOther)
	case errors.Is(err, navigate.ErrInvalidSelection):
		s.writeError(w, http.StatusBadRequest, "Invalid selection", err.Error())
	default:
		s.writeSearchError(w, err)
	}
}

// SelectionFromQuery builds a Selection from /go query parameters.
func SelectionFromQuery(q url.Values) navigate.Selection {
	kind := q.Get("kind")
	switch kind {
	case navigate.KindCollection:
		return navigate.Selection{Kind: kind, Collection: &search.CollectionHit{
			Name:            q.Get("name"),
			ContractAddress: q.Get("contract"),
		}}
	case navigate.KindAttribute:
		return navigate.Selection{Kind: kind, Attribute: &search.AttributeHit{
			CollectionName:  q.Get("name"),
			ContractAddress: q.Get("contract"),
			Key:             q.Get("key"),
			Value:           q.Get("value"),
		}}
	case "":
		kind = navigate.KindSuggestion
	}
	return navigate.Selection{Kind: kind, Text: strings.TrimSpace(q.Get("q"))}
}

// resolve runs the navigator and writes the error response on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, sel navigate.Selection) (navigate.Target, bool) {
	deps := s.current()
	if deps.Navigator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Search unavailable", "No resolver configured")
		return navigate.Target{}, false
	}

	target, err := deps.Navigator.Resolve(r.Context(), sel)
	switch {
	case err == nil:
		s.recordSelection(deps.History, sel, target)
		return target, true
	case errors.Is(err, search.ErrUnsupportedIntent):
		s.writeError(w, http.StatusUnprocessableEntity, "Unsupported search", navigate.NoticeUnsupported)
	case errors.Is(err, navigate.ErrInvalidSelection):
		s.writeError(w, http.StatusBadRequest, "Invalid selection", err.Error())
	default:
		s.writeSearchError(w, err)
	}
	return navigate.Target{}, false
}

// writeSearchError maps backend errors to HTTP responses.
func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	var netErr *search.NetworkError
	switch {
	case errors.As(err, &netErr):
		s.log.Warnf("search backend: %v", err)
		s.writeError(w, http.StatusBadGateway, "Search backend unavailable", netErr.Error())
	case errors.Is(err, search.ErrEmptyResponse):
		s.writeError(w, http.StatusBadGateway, "Empty response", err.Error())
	case errors.Is(err, search.ErrNoResolver):
		s.writeError(w, http.StatusServiceUnavailable, "Search unavailable", err.Error())
	default:
		s.log.Errorf("search failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
	}
}

func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, PublicConfigFrom(s.current().Config))
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Sessions:  s.SessionCount(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
