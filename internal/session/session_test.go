package session

import (
	"sync"
	"testing"
	"time"

	"github.com/askdocs/askdocs/internal/rag"
)

func newTestManager(ttl time.Duration) (*Manager, *time.Time) {
	m := NewManager(ttl)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	m.now = func() time.Time { return *clock }
	return m, clock
}

func TestGetOrCreate_NewSessionGetsUUID(t *testing.T) {
	m, _ := newTestManager(time.Hour)

	id := m.GetOrCreate("")
	if id == "" {
		t.Fatal("expected a generated session id")
	}
	if other := m.GetOrCreate(""); other == id {
		t.Error("two new sessions must not share an id")
	}
}

func TestGetOrCreate_ReusesExisting(t *testing.T) {
	m, _ := newTestManager(time.Hour)

	id := m.GetOrCreate("")
	m.Append(id, rag.RoleUser, "hello")

	if got := m.GetOrCreate(id); got != id {
		t.Errorf("GetOrCreate(%q) = %q, want the same id", id, got)
	}
	if h := m.History(id, 10); len(h) != 1 {
		t.Errorf("history lost on re-access: %v", h)
	}
}

func TestGetOrCreate_UnknownIDCreatesWithThatID(t *testing.T) {
	m, _ := newTestManager(time.Hour)

	// A client may resume with an id that already expired; keep their id.
	if got := m.GetOrCreate("client-chosen"); got != "client-chosen" {
		t.Errorf("GetOrCreate(client-chosen) = %q", got)
	}
}

func TestHistory_BoundedWindowAndCopy(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	id := m.GetOrCreate("")

	for i := 0; i < 30; i++ {
		m.Append(id, rag.RoleUser, "q")
		m.Append(id, rag.RoleAssistant, "a")
	}

	h := m.History(id, 10)
	if len(h) != 20 {
		t.Fatalf("history length = %d, want 2*maxTurns = 20", len(h))
	}

	// Mutating the returned slice must not touch the stored history.
	h[0].Content = "tampered"
	if got := m.History(id, 10); got[0].Content == "tampered" {
		t.Error("History() must return a defensive copy")
	}
}

func TestHistory_UnknownSession(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	if h := m.History("nope", 10); h != nil {
		t.Errorf("History(unknown) = %v, want nil", h)
	}
}

func TestTTL_Expiry(t *testing.T) {
	m, clock := newTestManager(time.Hour)
	id := m.GetOrCreate("")
	m.Append(id, rag.RoleUser, "hello")

	*clock = clock.Add(30 * time.Minute)
	if h := m.History(id, 10); len(h) != 1 {
		t.Fatal("session expired before its TTL")
	}

	// History access above refreshed the TTL.
	*clock = clock.Add(59 * time.Minute)
	if h := m.History(id, 10); len(h) != 1 {
		t.Fatal("TTL was not refreshed on access")
	}

	*clock = clock.Add(2 * time.Hour)
	if h := m.History(id, 10); h != nil {
		t.Error("session survived past its TTL")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after expiry, want 0", m.Len())
	}
}

func TestDelete(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	id := m.GetOrCreate("")

	if !m.Delete(id) {
		t.Error("Delete(existing) = false, want true")
	}
	if m.Delete(id) {
		t.Error("Delete(gone) = true, want false")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.GetOrCreate("")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Append(id, rag.RoleUser, "q")
				m.History(id, 5)
				m.GetOrCreate("")
			}
		}()
	}
	wg.Wait()
}
