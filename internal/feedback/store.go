package feedback

// Store is the feedback data store contract. The in-memory
// implementation is the default; the sqlite implementation provides an
// opt-in durable variant behind the same contract.
//
// Lifecycle operations (Acknowledge, Resolve, Dismiss, DeleteFeedback)
// return ErrNotFound for unknown IDs and ErrInvalidState when the
// record's current status forbids the transition.
type Store interface {
	// Sessions
	ListSessions() ([]Session, error)
	GetSession(sessionID string) (SessionDetail, error)

	// Feedback CRUD
	CreateFeedback(input CreateFeedbackInput) (Feedback, error)
	UpdateFeedback(feedbackID string, fields UpdateFeedbackInput) (Feedback, error)
	DeleteFeedback(feedbackID string) (Feedback, error)
	ListPending(sessionID string) ([]Feedback, error)

	// Lifecycle
	Acknowledge(feedbackID string) (Feedback, error)
	Resolve(feedbackID, resolution string) (Feedback, error)
	Dismiss(feedbackID, reason string) (Feedback, error)

	// FindByExternalID resolves a widget-assigned external ID to the
	// internal feedback ID. Used by the webhook dispatcher only.
	FindByExternalID(externalID string) (string, error)

	Close() error
}
