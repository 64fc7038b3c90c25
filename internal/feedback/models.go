package feedback

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidState is returned when a record exists but its current
// status forbids the requested lifecycle transition.
var ErrInvalidState = errors.New("invalid state")

// DeletedResolution is the fixed resolution note stamped on records
// soft-deleted through the widget delete path.
const DeletedResolution = "Deleted via widget"

// Intent classifies what the reviewer wants done about the feedback.
type Intent string

const (
	IntentFix      Intent = "fix"
	IntentChange   Intent = "change"
	IntentQuestion Intent = "question"
	IntentApprove  Intent = "approve"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentFix, IntentChange, IntentQuestion, IntentApprove:
		return true
	}
	return false
}

// Severity ranks how urgent a piece of feedback is.
type Severity string

const (
	SeverityBlocking   Severity = "blocking"
	SeverityImportant  Severity = "important"
	SeveritySuggestion Severity = "suggestion"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityBlocking, SeverityImportant, SeveritySuggestion:
		return true
	}
	return false
}

// Status is the lifecycle state of a feedback item.
//
// Valid transitions: pending -> acknowledged -> resolved|dismissed,
// and pending -> resolved|dismissed directly. Resolved and dismissed
// are terminal.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusDismissed    Status = "dismissed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// Session groups feedback items by normalized page URL.
type Session struct {
	ID        string    `json:"id"`
	PageURL   string    `json:"pageUrl"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionDetail is a session together with its feedback items. The
// feedback list is computed by filtering the store at read time, so it
// always reflects the current store state.
type SessionDetail struct {
	Session
	Feedbacks []Feedback `json:"feedbacks"`
}

// Feedback is a single comment anchored to a page element.
type Feedback struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	Comment       string     `json:"comment"`
	Element       string     `json:"element,omitempty"`
	ElementPath   string     `json:"elementPath,omitempty"`
	ScreenshotURL string     `json:"screenshotUrl,omitempty"`
	PageURL       string     `json:"pageUrl"`
	Intent        Intent     `json:"intent"`
	Severity      Severity   `json:"severity"`
	Status        Status     `json:"status"`
	ExternalID    string     `json:"externalId,omitempty"`
	Metadata      *Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	Resolution    string     `json:"resolution,omitempty"`
}

// CreateFeedbackInput is the store's creation input. Callers are
// expected to have validated it; the store does not re-validate.
type CreateFeedbackInput struct {
	Comment       string
	PageURL       string
	Element       string
	ElementPath   string
	ScreenshotURL string
	Intent        Intent
	Severity      Severity
	SessionID     string
	ExternalID    string
	Metadata      *Metadata
}

// UpdateFeedbackInput is a partial update. Only the comment is mutable
// after creation.
type UpdateFeedbackInput struct {
	Comment *string
}

// Metadata carries the structured context captured by the widget. It is
// folded verbatim from the sync payload and never interpreted by the
// store.
type Metadata struct {
	BoundingBox        *BoundingBox     `json:"boundingBox,omitempty"`
	Accessibility      *Accessibility   `json:"accessibility,omitempty"`
	ElementDescription string           `json:"elementDescription,omitempty"`
	FullPath           string           `json:"fullPath,omitempty"`
	StepNumber         int              `json:"stepNumber,omitempty"`
	PageCoords         *PageCoords      `json:"pageCoords,omitempty"`
	AreaData           *AreaData        `json:"areaData,omitempty"`
	IsAreaOnly         bool             `json:"isAreaOnly,omitempty"`
	Elements           []RelatedElement `json:"elements,omitempty"`
	Viewport           *Viewport        `json:"viewport,omitempty"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Accessibility struct {
	Role  string `json:"role,omitempty"`
	Label string `json:"label,omitempty"`
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type PageCoords struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AreaData describes an area selection instead of a single element.
type AreaData struct {
	CenterX      float64 `json:"centerX"`
	CenterY      float64 `json:"centerY"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	ElementCount int     `json:"elementCount"`
}

// RelatedElement is a trimmed summary of an element inside an area
// selection.
type RelatedElement struct {
	Selector           string       `json:"selector"`
	TagName            string       `json:"tagName,omitempty"`
	ElementPath        string       `json:"elementPath,omitempty"`
	ElementDescription string       `json:"elementDescription,omitempty"`
	BoundingBox        *BoundingBox `json:"boundingBox,omitempty"`
}
