package debounce

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	queries []string
	clears  int
	fired   chan string
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan string, 16)}
}

func (r *recorder) onQuery(q string) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	r.fired <- q
}

func (r *recorder) onClear() {
	r.mu.Lock()
	r.clears++
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...), r.clears
}

func TestBurstEmitsOnlyLastValue(t *testing.T) {
	rec := newRecorder()
	d := New(50*time.Millisecond, rec.onQuery, rec.onClear)
	defer d.Stop()

	for _, q := range []string{"a", "az", "azu", "azuk", "azuki"} {
		d.Trigger(q)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-rec.fired:
		if got != "azuki" {
			t.Fatalf("expected azuki, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced query never fired")
	}

	// Give any stray timer a chance to fire.
	time.Sleep(120 * time.Millisecond)
	queries, _ := rec.snapshot()
	if len(queries) != 1 {
		t.Fatalf("expected exactly one emission, got %v", queries)
	}
}

func TestEachKeystrokeResetsWindow(t *testing.T) {
	rec := newRecorder()
	d := New(60*time.Millisecond, rec.onQuery, rec.onClear)
	defer d.Stop()

	start := time.Now()
	d.Trigger("a")
	time.Sleep(40 * time.Millisecond)
	d.Trigger("ab")

	select {
	case got := <-rec.fired:
		if got != "ab" {
			t.Fatalf("expected ab, got %q", got)
		}
		if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
			t.Fatalf("emitted after %s, window was not reset", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced query never fired")
	}
}

func TestEmptyClearsImmediately(t *testing.T) {
	rec := newRecorder()
	d := New(50*time.Millisecond, rec.onQuery, rec.onClear)
	defer d.Stop()

	d.Trigger("azuki")
	d.Trigger("")

	_, clears := rec.snapshot()
	if clears != 1 {
		t.Fatalf("expected synchronous clear, got %d clears", clears)
	}
	if d.Pending() {
		t.Fatal("expected pending query to be cancelled")
	}

	time.Sleep(100 * time.Millisecond)
	queries, _ := rec.snapshot()
	if len(queries) != 0 {
		t.Fatalf("expected no query after clear, got %v", queries)
	}
}

func TestCancelAndStop(t *testing.T) {
	rec := newRecorder()
	d := New(30*time.Millisecond, rec.onQuery, nil)

	d.Trigger("azuki")
	d.Cancel()
	time.Sleep(60 * time.Millisecond)
	if queries, _ := rec.snapshot(); len(queries) != 0 {
		t.Fatalf("expected cancelled query not to fire, got %v", queries)
	}

	d.Stop()
	d.Trigger("doodles")
	d.Trigger("")
	time.Sleep(60 * time.Millisecond)
	if queries, clears := rec.snapshot(); len(queries) != 0 || clears != 0 {
		t.Fatalf("expected no activity after Stop, got %v / %d", queries, clears)
	}
}

func TestSeparateBurstsEmitSeparately(t *testing.T) {
	rec := newRecorder()
	d := New(20*time.Millisecond, rec.onQuery, nil)
	defer d.Stop()

	d.Trigger("azuki")
	<-rec.fired
	d.Trigger("bayc")
	select {
	case got := <-rec.fired:
		if got != "bayc" {
			t.Fatalf("expected bayc, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("second burst never fired")
	}
}
