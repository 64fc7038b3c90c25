package feedback

import (
	"errors"
	"testing"
)

// Both store implementations must satisfy the same contract, so every
// test runs against both.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"sqlite": func(t *testing.T) Store {
		s, err := OpenSQLite(":memory:")
		if err != nil {
			t.Fatalf("opening sqlite store: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	},
}

func runStoreTest(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func mustCreate(t *testing.T, s Store, input CreateFeedbackInput) Feedback {
	t.Helper()
	fb, err := s.CreateFeedback(input)
	if err != nil {
		t.Fatalf("creating feedback: %v", err)
	}
	return fb
}

func TestCreateFeedbackGroupsByNormalizedURL(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		a := mustCreate(t, s, CreateFeedbackInput{Comment: "first", PageURL: "http://localhost:3000/page?tab=1"})
		b := mustCreate(t, s, CreateFeedbackInput{Comment: "second", PageURL: "http://localhost:3000/page?tab=2#frag"})
		c := mustCreate(t, s, CreateFeedbackInput{Comment: "other", PageURL: "http://localhost:3000/other"})

		if a.SessionID != b.SessionID {
			t.Errorf("same page with different query got different sessions: %s vs %s", a.SessionID, b.SessionID)
		}
		if a.SessionID == c.SessionID {
			t.Error("different paths share a session")
		}

		sessions, err := s.ListSessions()
		if err != nil {
			t.Fatalf("listing sessions: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(sessions))
		}
		if sessions[0].PageURL != "http://localhost:3000/page" {
			t.Errorf("session URL not normalized: %s", sessions[0].PageURL)
		}
		if sessions[0].Title != "/page" {
			t.Errorf("expected title /page, got %q", sessions[0].Title)
		}
	})
}

func TestCreateFeedbackDefaults(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		fb := mustCreate(t, s, CreateFeedbackInput{Comment: "no enums", PageURL: "http://localhost:3000/"})

		if fb.Status != StatusPending {
			t.Errorf("expected pending status, got %s", fb.Status)
		}
		if fb.Intent != IntentFix {
			t.Errorf("expected default intent fix, got %s", fb.Intent)
		}
		if fb.Severity != SeveritySuggestion {
			t.Errorf("expected default severity suggestion, got %s", fb.Severity)
		}
		if fb.ID == "" || fb.SessionID == "" {
			t.Error("missing generated IDs")
		}
		if fb.CreatedAt.IsZero() {
			t.Error("createdAt not set")
		}
	})
}

func TestCreateFeedbackRejectsRelativeURL(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		if _, err := s.CreateFeedback(CreateFeedbackInput{Comment: "x", PageURL: "/relative/only"}); err == nil {
			t.Error("expected error for relative page URL")
		}
	})
}

func TestGetSession(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		a := mustCreate(t, s, CreateFeedbackInput{Comment: "one", PageURL: "http://localhost:3000/page"})
		mustCreate(t, s, CreateFeedbackInput{Comment: "two", PageURL: "http://localhost:3000/page"})
		mustCreate(t, s, CreateFeedbackInput{Comment: "elsewhere", PageURL: "http://localhost:3000/other"})

		detail, err := s.GetSession(a.SessionID)
		if err != nil {
			t.Fatalf("getting session: %v", err)
		}
		if len(detail.Feedbacks) != 2 {
			t.Fatalf("expected 2 feedbacks, got %d", len(detail.Feedbacks))
		}
		if detail.Feedbacks[0].Comment != "one" || detail.Feedbacks[1].Comment != "two" {
			t.Errorf("feedbacks out of creation order: %q, %q", detail.Feedbacks[0].Comment, detail.Feedbacks[1].Comment)
		}

		if _, err := s.GetSession("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown session, got %v", err)
		}
	})
}

func TestAcknowledgeOnlyFromPending(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		fb := mustCreate(t, s, CreateFeedbackInput{Comment: "ack me", PageURL: "http://localhost:3000/"})

		acked, err := s.Acknowledge(fb.ID)
		if err != nil {
			t.Fatalf("acknowledging: %v", err)
		}
		if acked.Status != StatusAcknowledged {
			t.Errorf("expected acknowledged, got %s", acked.Status)
		}

		// Not idempotent: a second acknowledge fails.
		if _, err := s.Acknowledge(fb.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState on second acknowledge, got %v", err)
		}

		if _, err := s.Acknowledge("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown ID, got %v", err)
		}
	})
}

func TestResolveTerminal(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		fb := mustCreate(t, s, CreateFeedbackInput{Comment: "resolve me", PageURL: "http://localhost:3000/"})

		resolved, err := s.Resolve(fb.ID, "fixed in abc123")
		if err != nil {
			t.Fatalf("resolving: %v", err)
		}
		if resolved.Status != StatusResolved {
			t.Errorf("expected resolved, got %s", resolved.Status)
		}
		if resolved.Resolution != "fixed in abc123" {
			t.Errorf("unexpected resolution: %q", resolved.Resolution)
		}
		if resolved.ResolvedAt == nil {
			t.Error("resolvedAt not stamped")
		}

		if _, err := s.Resolve(fb.ID, "again"); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState on re-resolve, got %v", err)
		}
		if _, err := s.Dismiss(fb.ID, "too late"); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState dismissing a resolved record, got %v", err)
		}
		if _, err := s.Acknowledge(fb.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState acknowledging a resolved record, got %v", err)
		}
	})
}

func TestDismissAfterAcknowledge(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		fb := mustCreate(t, s, CreateFeedbackInput{Comment: "dismiss me", PageURL: "http://localhost:3000/"})

		if _, err := s.Acknowledge(fb.ID); err != nil {
			t.Fatalf("acknowledging: %v", err)
		}
		dismissed, err := s.Dismiss(fb.ID, "not actionable")
		if err != nil {
			t.Fatalf("dismissing: %v", err)
		}
		if dismissed.Status != StatusDismissed {
			t.Errorf("expected dismissed, got %s", dismissed.Status)
		}
		if dismissed.Resolution != "not actionable" {
			t.Errorf("unexpected resolution: %q", dismissed.Resolution)
		}
	})
}

func TestDeleteFeedbackIsSoftDelete(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		fb := mustCreate(t, s, CreateFeedbackInput{Comment: "delete me", PageURL: "http://localhost:3000/"})

		deleted, err := s.DeleteFeedback(fb.ID)
		if err != nil {
			t.Fatalf("deleting: %v", err)
		}
		if deleted.Status != StatusDismissed {
			t.Errorf("expected dismissed, got %s", deleted.Status)
		}
		if deleted.Resolution != DeletedResolution {
			t.Errorf("expected %q, got %q", DeletedResolution, deleted.Resolution)
		}

		// Record is retained, just terminal.
		detail, err := s.GetSession(fb.SessionID)
		if err != nil {
			t.Fatalf("getting session: %v", err)
		}
		if len(detail.Feedbacks) != 1 {
			t.Fatalf("soft-deleted record dropped from session")
		}

		if _, err := s.DeleteFeedback(fb.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState on double delete, got %v", err)
		}
	})
}

func TestListPending(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		a := mustCreate(t, s, CreateFeedbackInput{Comment: "a", PageURL: "http://localhost:3000/page"})
		b := mustCreate(t, s, CreateFeedbackInput{Comment: "b", PageURL: "http://localhost:3000/page"})
		c := mustCreate(t, s, CreateFeedbackInput{Comment: "c", PageURL: "http://localhost:3000/other"})

		if _, err := s.Acknowledge(b.ID); err != nil {
			t.Fatalf("acknowledging: %v", err)
		}
		if _, err := s.Resolve(c.ID, "done"); err != nil {
			t.Fatalf("resolving: %v", err)
		}

		// Acknowledged records still count as unresolved work.
		all, err := s.ListPending("")
		if err != nil {
			t.Fatalf("listing pending: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 unresolved, got %d", len(all))
		}
		if all[0].ID != a.ID || all[1].ID != b.ID {
			t.Errorf("unresolved items out of creation order")
		}

		scoped, err := s.ListPending(a.SessionID)
		if err != nil {
			t.Fatalf("listing pending for session: %v", err)
		}
		if len(scoped) != 2 {
			t.Fatalf("expected 2 unresolved in session, got %d", len(scoped))
		}

		none, err := s.ListPending("nope")
		if err != nil {
			t.Fatalf("listing pending for unknown session: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected empty list for unknown session, got %d", len(none))
		}
	})
}

func TestUpdateFeedbackComment(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		fb := mustCreate(t, s, CreateFeedbackInput{Comment: "before", PageURL: "http://localhost:3000/"})

		after := "after"
		updated, err := s.UpdateFeedback(fb.ID, UpdateFeedbackInput{Comment: &after})
		if err != nil {
			t.Fatalf("updating: %v", err)
		}
		if updated.Comment != "after" {
			t.Errorf("comment not updated: %q", updated.Comment)
		}

		// Nil comment is a no-op, not a clear.
		same, err := s.UpdateFeedback(fb.ID, UpdateFeedbackInput{})
		if err != nil {
			t.Fatalf("no-op update: %v", err)
		}
		if same.Comment != "after" {
			t.Errorf("no-op update changed comment: %q", same.Comment)
		}

		if _, err := s.UpdateFeedback("nope", UpdateFeedbackInput{Comment: &after}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFindByExternalID(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		fb := mustCreate(t, s, CreateFeedbackInput{
			Comment:    "widget record",
			PageURL:    "http://localhost:3000/",
			ExternalID: "widget-42",
		})

		id, err := s.FindByExternalID("widget-42")
		if err != nil {
			t.Fatalf("finding by external ID: %v", err)
		}
		if id != fb.ID {
			t.Errorf("expected %s, got %s", fb.ID, id)
		}

		if _, err := s.FindByExternalID("widget-99"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown external ID, got %v", err)
		}
		if _, err := s.FindByExternalID(""); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty external ID, got %v", err)
		}
	})
}
