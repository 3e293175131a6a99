package api

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/realtime"
	"github.com/rubiojr/storefront/pkg/search"
	"github.com/rubiojr/storefront/pkg/storage"
)

func wsDial(t *testing.T, ts *httptest.Server) (*websocket.Conn, realtime.Event) {
	t.Helper()
	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/api/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	initEvent := readEvent(t, conn)
	if initEvent.Type != realtime.EventInit {
		t.Fatalf("expected init message, got %v", initEvent.Type)
	}
	return conn, initEvent
}

func readEvent(t *testing.T, conn *websocket.Conn) realtime.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var e realtime.Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return e
}

// readUntil reads events until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(realtime.Event) bool) realtime.Event {
	t.Helper()
	for i := 0; i < 50; i++ {
		e := readEvent(t, conn)
		if match(e) {
			return e
		}
	}
	t.Fatalf("no %s event received", what)
	return realtime.Event{}
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func TestWebSocketInit(t *testing.T) {
	env := setupTestAPIServer(t)
	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	_, initEvent := wsDial(t, ts)
	if initEvent.Session == "" {
		t.Error("expected a session id")
	}
	if initEvent.State != "idle" {
		t.Errorf("expected idle state, got %q", initEvent.State)
	}

	data, ok := initEvent.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected config payload, got %T", initEvent.Data)
	}
	if data["show_search"] != true {
		t.Errorf("expected show_search, got %v", data["show_search"])
	}

	waitForSessions(t, env.server, 1)
}

func TestWebSocketSearchAndSelect(t *testing.T) {
	env := setupTestAPIServer(t)
	if err := env.server.LoadSeeds(t.Context()); err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}
	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	conn, initEvent := wsDial(t, ts)

	send(t, conn, ClientMessage{Type: MessageFocus})
	seeds := readUntil(t, conn, "seed results", func(e realtime.Event) bool {
		return e.Type == realtime.EventResults && e.State == "focused_empty"
	})
	if len(seeds.Sections) != 1 || seeds.Sections[0].Items[0].Label != "Trending" {
		t.Errorf("unexpected seed sections %+v", seeds.Sections)
	}

	for _, text := range []string{"A", "Az", "Azu", "Azuki"} {
		send(t, conn, ClientMessage{Type: MessageInput, Value: text})
	}
	results := readUntil(t, conn, "results", func(e realtime.Event) bool {
		return e.Type == realtime.EventResults && e.State == "results_ready"
	})
	if results.Query != "Azuki" || results.Session != initEvent.Session {
		t.Errorf("unexpected results event %+v", results)
	}

	// Item 3 is the Azuki collection, after three suggestions.
	index := 3
	send(t, conn, ClientMessage{Type: MessageSelect, Index: &index})
	nav := readUntil(t, conn, "navigate", func(e realtime.Event) bool { return e.Type == realtime.EventNavigate })
	if nav.URL != "/collections/0xED5AF388" {
		t.Errorf("expected collection url, got %q", nav.URL)
	}
	if nav.State != "idle" {
		t.Errorf("expected idle after selection, got %q", nav.State)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		recent, err := env.history.Recent(t.Context(), 5)
		if err == nil && len(recent) == 1 && recent[0].Label == "Azuki" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected the selection in history, got %+v (%v)", recent, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketUnsupportedNotice(t *testing.T) {
	env := setupTestAPIServer(t)
	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	conn, _ := wsDial(t, ts)

	send(t, conn, ClientMessage{Type: MessageInput, Value: "gm"})
	readUntil(t, conn, "no results", func(e realtime.Event) bool {
		return e.State == "no_results"
	})

	// No highlight: the typed text is resolved as free text.
	send(t, conn, ClientMessage{Type: MessageSelect})
	notice := readUntil(t, conn, "notice", func(e realtime.Event) bool { return e.Type == realtime.EventNotice })
	if notice.Notice != navigate.NoticeUnsupported {
		t.Errorf("expected unsupported notice, got %q", notice.Notice)
	}
}

func TestWebSocketClear(t *testing.T) {
	env := setupTestAPIServer(t)
	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	conn, _ := wsDial(t, ts)

	send(t, conn, ClientMessage{Type: MessageInput, Value: "Azuki"})
	readUntil(t, conn, "results", func(e realtime.Event) bool { return e.Type == realtime.EventResults })

	send(t, conn, ClientMessage{Type: MessageClear})
	clear := readUntil(t, conn, "clear", func(e realtime.Event) bool { return e.Type == realtime.EventClear })
	if clear.State != "idle" || len(clear.Sections) != 0 {
		t.Errorf("unexpected clear event %+v", clear)
	}
}

func TestWebSocketSelectDoesNotBlockReads(t *testing.T) {
	env := setupTestAPIServer(t)
	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	conn, _ := wsDial(t, ts)

	send(t, conn, ClientMessage{Type: MessageInput, Value: "slow"})
	readUntil(t, conn, "no results", func(e realtime.Event) bool {
		return e.State == "no_results"
	})

	// The free-text resolve hangs upstream; the clear must still be handled.
	send(t, conn, ClientMessage{Type: MessageSelect})
	send(t, conn, ClientMessage{Type: MessageClear})
	clear := readUntil(t, conn, "clear", func(e realtime.Event) bool { return e.Type == realtime.EventClear })
	if clear.State != "idle" {
		t.Errorf("unexpected clear event %+v", clear)
	}
}

func TestWebSocketSessionKeepsDeps(t *testing.T) {
	env := setupTestAPIServer(t)
	if err := env.server.LoadSeeds(t.Context()); err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}
	azuki := navigate.Selection{Kind: navigate.KindCollection, Collection: &search.CollectionHit{Name: "Azuki", ContractAddress: "0xED5AF388"}}
	if err := env.history.Record(t.Context(), storage.NewEntry(azuki, navigate.Target{Kind: navigate.TargetCollection, ContractAddress: "0xED5AF388"})); err != nil {
		t.Fatalf("Record: %v", err)
	}

	ts := httptest.NewServer(env.mux)
	defer ts.Close()
	conn, _ := wsDial(t, ts)

	// Reload into a single-collection storefront without history.
	reloaded := *env.cfg
	reloaded.Collection = "0xabc"
	old := env.server.current()
	env.server.Update(Deps{Config: &reloaded, Source: old.Source, Navigator: old.Navigator})
	if err := env.server.LoadSeeds(t.Context()); err != nil {
		t.Fatalf("LoadSeeds after reload: %v", err)
	}
	if got := env.server.Seeds(t.Context()); !got.Empty() {
		t.Fatalf("expected no seeds after reload, got %+v", got)
	}

	send(t, conn, ClientMessage{Type: MessageFocus})
	seeds := readUntil(t, conn, "seed results", func(e realtime.Event) bool {
		return e.Type == realtime.EventResults && e.State == "focused_empty"
	})

	var labels []string
	for _, section := range seeds.Sections {
		for _, it := range section.Items {
			labels = append(labels, it.Label)
		}
	}
	if len(labels) != 2 || labels[0] != "Azuki" || labels[1] != "Trending" {
		t.Errorf("expected the session's history and seeds, got %v", labels)
	}
}

func TestWebSocketCloseEndsSession(t *testing.T) {
	env := setupTestAPIServer(t)
	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	conn, _ := wsDial(t, ts)
	waitForSessions(t, env.server, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitForSessions(t, env.server, 0)
	if env.server.Hub().Size() != 0 {
		t.Errorf("expected no hub listeners, got %d", env.server.Hub().Size())
	}
}

func waitForSessions(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.SessionCount() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d sessions, got %d", n, srv.SessionCount())
}
