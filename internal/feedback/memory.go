package feedback

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps all state in process memory. Data is lost on
// restart, which is the intended default for this server.
//
// A single mutex serializes every operation: session creation is a
// scan-then-insert that must not race with concurrent creators for the
// same URL, and readers must never observe a half-built record.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]Session
	sessionOrder []string
	feedbacks    map[string]Feedback
	order        []string
	externalIDs  map[string]string // external ID -> feedback ID
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]Session),
		feedbacks:   make(map[string]Feedback),
		externalIDs: make(map[string]string),
	}
}

func (s *MemoryStore) ListSessions() ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, 0, len(s.sessionOrder))
	for _, id := range s.sessionOrder {
		out = append(out, s.sessions[id])
	}
	return out, nil
}

func (s *MemoryStore) GetSession(sessionID string) (SessionDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return SessionDetail{}, ErrNotFound
	}

	detail := SessionDetail{Session: sess, Feedbacks: []Feedback{}}
	for _, id := range s.order {
		if fb := s.feedbacks[id]; fb.SessionID == sessionID {
			detail.Feedbacks = append(detail.Feedbacks, fb)
		}
	}
	return detail, nil
}

func (s *MemoryStore) CreateFeedback(input CreateFeedbackInput) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := input.SessionID
	if sessionID == "" {
		id, err := s.findOrCreateSession(input.PageURL)
		if err != nil {
			return Feedback{}, err
		}
		sessionID = id
	}

	fb := Feedback{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Comment:       input.Comment,
		Element:       input.Element,
		ElementPath:   input.ElementPath,
		ScreenshotURL: input.ScreenshotURL,
		PageURL:       input.PageURL,
		Intent:        input.Intent,
		Severity:      input.Severity,
		Status:        StatusPending,
		ExternalID:    input.ExternalID,
		Metadata:      input.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if fb.Intent == "" {
		fb.Intent = IntentFix
	}
	if fb.Severity == "" {
		fb.Severity = SeveritySuggestion
	}

	s.feedbacks[fb.ID] = fb
	s.order = append(s.order, fb.ID)
	if input.ExternalID != "" {
		s.externalIDs[input.ExternalID] = fb.ID
	}
	return fb, nil
}

func (s *MemoryStore) UpdateFeedback(feedbackID string, fields UpdateFeedbackInput) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, ok := s.feedbacks[feedbackID]
	if !ok {
		return Feedback{}, ErrNotFound
	}
	if fields.Comment != nil {
		fb.Comment = *fields.Comment
	}
	s.feedbacks[feedbackID] = fb
	return fb, nil
}

// DeleteFeedback is a soft delete: the record transitions to dismissed
// with a fixed resolution note. Already-terminal records cannot be
// deleted again.
func (s *MemoryStore) DeleteFeedback(feedbackID string) (Feedback, error) {
	return s.transition(feedbackID, StatusDismissed, DeletedResolution)
}

func (s *MemoryStore) ListPending(sessionID string) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Feedback{}
	for _, id := range s.order {
		fb := s.feedbacks[id]
		if fb.Status != StatusPending && fb.Status != StatusAcknowledged {
			continue
		}
		if sessionID != "" && fb.SessionID != sessionID {
			continue
		}
		out = append(out, fb)
	}
	return out, nil
}

// Acknowledge succeeds only from pending. A second acknowledge fails
// with ErrInvalidState: the operation is deliberately not idempotent.
func (s *MemoryStore) Acknowledge(feedbackID string) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, ok := s.feedbacks[feedbackID]
	if !ok {
		return Feedback{}, ErrNotFound
	}
	if fb.Status != StatusPending {
		return Feedback{}, ErrInvalidState
	}
	fb.Status = StatusAcknowledged
	s.feedbacks[feedbackID] = fb
	return fb, nil
}

func (s *MemoryStore) Resolve(feedbackID, resolution string) (Feedback, error) {
	return s.transition(feedbackID, StatusResolved, resolution)
}

func (s *MemoryStore) Dismiss(feedbackID, reason string) (Feedback, error) {
	return s.transition(feedbackID, StatusDismissed, reason)
}

func (s *MemoryStore) FindByExternalID(externalID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.externalIDs[externalID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *MemoryStore) Close() error { return nil }

// transition moves a record into a terminal state, stamping the
// resolution note and timestamp.
func (s *MemoryStore) transition(feedbackID string, to Status, resolution string) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, ok := s.feedbacks[feedbackID]
	if !ok {
		return Feedback{}, ErrNotFound
	}
	if fb.Status.Terminal() {
		return Feedback{}, ErrInvalidState
	}
	now := time.Now().UTC()
	fb.Status = to
	fb.Resolution = resolution
	fb.ResolvedAt = &now
	s.feedbacks[feedbackID] = fb
	return fb, nil
}

// findOrCreateSession returns the session for a normalized page URL,
// creating it when absent. Caller must hold the mutex.
func (s *MemoryStore) findOrCreateSession(pageURL string) (string, error) {
	normalized, err := NormalizeURL(pageURL)
	if err != nil {
		return "", err
	}

	for _, id := range s.sessionOrder {
		if s.sessions[id].PageURL == normalized {
			return id, nil
		}
	}

	sess := Session{
		ID:        uuid.New().String(),
		PageURL:   normalized,
		Title:     titleFromURL(pageURL),
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[sess.ID] = sess
	s.sessionOrder = append(s.sessionOrder, sess.ID)
	return sess.ID, nil
}
