// Package widget implements the search box state machine. One Session exists
// per connected browser; it receives focus, keystroke, highlight and selection
// events and emits realtime.Events describing what the browser must show.
//
// States:
//
//	idle           not focused, nothing typed
//	focused_empty  focused with an empty input, seed results shown
//	typing         input changed, waiting for the quiet period and the answer
//	results_ready  the latest settled query has results
//	no_results     the latest settled query has nothing in the primary category
//
// Every settled query gets a new generation and cancels the request of the
// previous one. Answers are applied only when they belong to the latest
// generation, so a slow answer can never overwrite a newer one.
package widget

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/debounce"
	"github.com/rubiojr/storefront/pkg/log"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/realtime"
	"github.com/rubiojr/storefront/pkg/search"
)

type State string

const (
	StateIdle         State = "idle"
	StateFocusedEmpty State = "focused_empty"
	StateTyping       State = "typing"
	StateResultsReady State = "results_ready"
	StateNoResults    State = "no_results"
)

// NoticeUnavailable is shown when a selection could not be resolved because
// the search API failed.
const NoticeUnavailable = "Search is unavailable right now, please try again."

// Navigator resolves a selection into a target page.
type Navigator interface {
	Resolve(ctx context.Context, sel navigate.Selection) (navigate.Target, error)
}

// Config wires a Session to its collaborators.
type Config struct {
	Source    search.Source
	Navigator Navigator
	Limits    categorize.Limits
	Window    time.Duration
	Community string

	// Primary is the category whose emptiness means the query found nothing.
	// Defaults to suggestions.
	Primary string

	// Seeds returns the results shown while focused with an empty input. It
	// is called without the session lock held.
	Seeds func() categorize.Result

	// Emit receives every visible change. It is called with the session lock
	// held and must not block or call back into the Session.
	Emit func(realtime.Event)

	// OnSelect is called after a selection resolved to a page.
	OnSelect func(sel navigate.Selection, target navigate.Target)
}

// View is a snapshot of the visible session state.
type View struct {
	State      State             `json:"state"`
	Input      string            `json:"input"`
	Focused    bool              `json:"focused"`
	Highlight  int               `json:"highlight"`
	Generation uint64            `json:"generation"`
	Results    categorize.Result `json:"results"`
}

// Session is the per-browser state machine. It is safe for concurrent use.
type Session struct {
	id  string
	cfg Config
	log *log.Logger

	ctx      context.Context
	shutdown context.CancelFunc
	debounce *debounce.Debouncer

	mu        sync.Mutex
	state     State
	input     string
	focused   bool
	results   categorize.Result
	items     []categorize.Item
	highlight int
	issued    uint64
	applied   uint64
	inflight  context.CancelFunc
	closed    bool
}

// New creates a Session in the idle state.
func New(id string, cfg Config) *Session {
	if cfg.Window <= 0 {
		cfg.Window = 300 * time.Millisecond
	}
	if cfg.Emit == nil {
		cfg.Emit = func(realtime.Event) {}
	}
	if cfg.Primary == "" {
		cfg.Primary = categorize.CategorySuggestions
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		cfg:       cfg,
		log:       log.ForService("widget"),
		ctx:       ctx,
		shutdown:  cancel,
		state:     StateIdle,
		highlight: -1,
	}
	s.debounce = debounce.New(cfg.Window, s.query, s.clear)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// View returns a snapshot of the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		State:      s.state,
		Input:      s.input,
		Focused:    s.focused,
		Highlight:  s.highlight,
		Generation: s.issued,
		Results:    s.results,
	}
}

// Focus marks the search box as focused. With an empty input the seed
// results are shown.
func (s *Session) Focus() {
	seeds := s.seeds()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.focused = true
	if s.input == "" {
		s.showSeeds(seeds)
	}
}

// Blur marks the search box as unfocused.
func (s *Session) Blur() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.focused = false
	if s.input == "" {
		s.setResults(categorize.Result{})
		s.state = StateIdle
		s.emit(realtime.Event{Type: realtime.EventClear})
	}
}

// Input records the current text of the search box. An empty text clears
// immediately; anything else is searched once typing pauses.
func (s *Session) Input(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.input = text
	if text != "" {
		s.focused = true
		s.state = StateTyping
		s.emit(realtime.Event{Type: realtime.EventState})
	}
	s.mu.Unlock()

	// Outside the lock: an empty text calls s.clear synchronously.
	s.debounce.Trigger(text)
}

// Clear resets the input and returns to idle.
func (s *Session) Clear() {
	s.debounce.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reset()
	s.emit(realtime.Event{Type: realtime.EventClear})
}

// MoveHighlight moves the keyboard highlight by delta, wrapping around the
// visible items.
func (s *Session) MoveHighlight(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if n == 0 || delta == 0 {
		return
	}

	h := s.highlight
	switch {
	case h < 0 && delta > 0:
		h = delta - 1
	case h < 0:
		h = n + delta
	default:
		h += delta
	}
	s.highlight = ((h % n) + n) % n
	s.emit(realtime.Event{Type: realtime.EventState})
}

// Select resolves the visible item at index and navigates to it.
func (s *Session) Select(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return navigate.ErrInvalidSelection
	}
	sel := navigate.FromItem(s.items[index])
	s.mu.Unlock()

	return s.choose(ctx, sel)
}

// SelectHighlighted selects the highlighted item. Without a highlight the
// typed text is resolved as free text.
func (s *Session) SelectHighlighted(ctx context.Context) error {
	s.mu.Lock()
	h, input := s.highlight, s.input
	s.mu.Unlock()

	if h >= 0 {
		return s.Select(ctx, h)
	}
	if input == "" {
		return navigate.ErrInvalidSelection
	}
	return s.choose(ctx, navigate.Selection{Kind: navigate.KindSuggestion, Text: input})
}

func (s *Session) choose(ctx context.Context, sel navigate.Selection) error {
	if s.cfg.Navigator == nil {
		return search.ErrNoResolver
	}

	target, err := s.cfg.Navigator.Resolve(ctx, sel)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return err
		}
		if errors.Is(err, search.ErrUnsupportedIntent) {
			s.emit(realtime.Event{Type: realtime.EventNotice, Notice: navigate.NoticeUnsupported})
			return err
		}
		s.log.Warnf("session %s: selecting %q: %v", s.id, sel.Label(), err)
		s.emit(realtime.Event{Type: realtime.EventNotice, Notice: NoticeUnavailable})
		return err
	}

	s.debounce.Cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.reset()
	s.emit(realtime.Event{Type: realtime.EventClear})
	s.emit(realtime.Event{Type: realtime.EventNavigate, URL: target.URL()})
	s.mu.Unlock()

	if s.cfg.OnSelect != nil {
		s.cfg.OnSelect(sel, target)
	}
	return nil
}

// Close stops the debouncer and cancels any in-flight request.
func (s *Session) Close() {
	s.debounce.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelInflight()
	s.shutdown()
}

// query is called by the debouncer once typing pauses. A text that no
// longer matches the input was superseded between the timer firing and
// here, and is not searched.
func (s *Session) query(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if text != s.input {
		s.log.Debugf("session %s: skipping superseded query %q", s.id, text)
		s.mu.Unlock()
		return
	}
	s.cancelInflight()
	s.issued++
	gen := s.issued
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight = cancel
	s.mu.Unlock()

	defer cancel()
	res, err := s.cfg.Source.Autocomplete(ctx, search.Query{Text: text, Community: s.cfg.Community})
	s.apply(gen, text, res, err)
}

// apply installs the answer of generation gen if it is still the latest.
func (s *Session) apply(gen uint64, text string, res *search.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if gen != s.issued || gen <= s.applied {
		s.log.Debugf("session %s: dropping stale answer for %q (generation %d, latest %d)", s.id, text, gen, s.issued)
		return
	}
	s.applied = gen
	s.inflight = nil

	if err != nil {
		s.log.Warnf("session %s: autocomplete %q: %v", s.id, text, err)
		if s.results.Empty() {
			s.state = StateNoResults
		} else {
			s.state = StateResultsReady
		}
		s.emit(realtime.Event{Type: realtime.EventState, Query: text, Generation: gen})
		return
	}

	r := categorize.Categorize(res, s.cfg.Limits)
	if r.Count(s.cfg.Primary) == 0 {
		// Nothing is listed when the primary category is empty.
		s.setResults(categorize.Result{})
		s.state = StateNoResults
	} else {
		s.setResults(r)
		s.state = StateResultsReady
	}
	s.emit(realtime.Event{Type: realtime.EventResults, Query: text, Generation: gen})
}

// clear is called synchronously by the debouncer for an empty input.
func (s *Session) clear() {
	seeds := s.seeds()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.invalidate()
	if s.focused {
		s.showSeeds(seeds)
		return
	}
	s.setResults(categorize.Result{})
	s.state = StateIdle
	s.emit(realtime.Event{Type: realtime.EventClear})
}

func (s *Session) seeds() categorize.Result {
	if s.cfg.Seeds == nil {
		return categorize.Result{}
	}
	return s.cfg.Seeds()
}

// The helpers below expect s.mu to be held.

func (s *Session) showSeeds(seeds categorize.Result) {
	s.setResults(seeds)
	s.state = StateFocusedEmpty
	if seeds.Empty() {
		s.emit(realtime.Event{Type: realtime.EventClear})
		return
	}
	s.emit(realtime.Event{Type: realtime.EventResults})
}

func (s *Session) reset() {
	s.invalidate()
	s.input = ""
	s.focused = false
	s.setResults(categorize.Result{})
	s.state = StateIdle
}

// invalidate makes any in-flight answer stale.
func (s *Session) invalidate() {
	s.cancelInflight()
	s.issued++
}

func (s *Session) cancelInflight() {
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}

func (s *Session) setResults(r categorize.Result) {
	s.results = r
	s.items = r.Items()
	s.highlight = -1
}

func (s *Session) emit(e realtime.Event) {
	e.Session = s.id
	e.State = string(s.state)
	e.Highlight = s.highlight
	if e.Type == realtime.EventResults || e.Type == realtime.EventState {
		e.Sections = s.results.Sections()
	}
	s.cfg.Emit(e)
}
