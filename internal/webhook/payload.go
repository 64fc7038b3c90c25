// Package webhook receives the browser widget's sync payloads and
// turns them into feedback store operations.
package webhook

import (
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/gosnap/gosnap/internal/feedback"
	"github.com/gosnap/gosnap/internal/schema"
)

// Event discriminates the sync payload variants.
type Event string

const (
	EventCreated Event = "feedback.created"
	EventUpdated Event = "feedback.updated"
	EventDeleted Event = "feedback.deleted"
	EventBatch   Event = "feedback.batch"
)

func (e Event) Valid() bool {
	switch e {
	case EventCreated, EventUpdated, EventDeleted, EventBatch:
		return true
	}
	return false
}

// SyncPayload is the wire message the widget posts to /api/webhook.
type SyncPayload struct {
	Event          Event   `json:"event"`
	Timestamp      float64 `json:"timestamp"`
	Page           Page    `json:"page"`
	Feedback       *Item   `json:"feedback,omitempty"`
	Feedbacks      []Item  `json:"feedbacks,omitempty"`
	FeedbackID     string  `json:"feedbackId,omitempty"`
	UpdatedContent string  `json:"updatedContent,omitempty"`
}

// Page describes the page the widget was running on.
type Page struct {
	URL      string            `json:"url"`
	Pathname string            `json:"pathname"`
	Viewport feedback.Viewport `json:"viewport"`
}

// Item is one widget feedback record inside a sync payload.
type Item struct {
	ID         string             `json:"id"`
	StepNumber int                `json:"stepNumber"`
	Content    string             `json:"content"`
	Selector   string             `json:"selector"`
	PageX      float64            `json:"pageX"`
	PageY      float64            `json:"pageY"`
	CreatedAt  float64            `json:"createdAt"`
	Element    *ElementData       `json:"element,omitempty"`
	AreaData   *feedback.AreaData `json:"areaData,omitempty"`
	IsAreaOnly bool               `json:"isAreaOnly,omitempty"`
	Elements   []ElementData      `json:"elements,omitempty"`
}

// ElementData is the widget's description of a DOM element.
type ElementData struct {
	Selector           string                  `json:"selector"`
	TagName            string                  `json:"tagName"`
	ClassName          string                  `json:"className"`
	ElementID          string                  `json:"elementId"`
	ElementPath        string                  `json:"elementPath,omitempty"`
	FullPath           string                  `json:"fullPath,omitempty"`
	ElementDescription string                  `json:"elementDescription,omitempty"`
	BoundingBox        *feedback.BoundingBox   `json:"boundingBox,omitempty"`
	Accessibility      *feedback.Accessibility `json:"accessibility,omitempty"`
}

// Validate checks the payload against the sync schema. A nil result
// means the payload is acceptable.
func (p *SyncPayload) Validate(maxCommentLength int) []schema.Issue {
	var issues []schema.Issue

	if !p.Event.Valid() {
		issues = append(issues, schema.Issue{
			Field:   "event",
			Message: "event must be one of: feedback.created, feedback.updated, feedback.deleted, feedback.batch",
		})
	}

	if p.Page.URL == "" {
		issues = append(issues, schema.Issue{Field: "page.url", Message: "page.url is required"})
	} else if u, err := url.Parse(p.Page.URL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, schema.Issue{Field: "page.url", Message: "page.url must be a valid absolute URL"})
	}

	if p.Feedback != nil {
		issues = append(issues, validateItem("feedback", p.Feedback, maxCommentLength)...)
	}
	for i := range p.Feedbacks {
		field := fmt.Sprintf("feedbacks[%d]", i)
		issues = append(issues, validateItem(field, &p.Feedbacks[i], maxCommentLength)...)
	}

	return issues
}

func validateItem(field string, item *Item, maxCommentLength int) []schema.Issue {
	var issues []schema.Issue
	if item.ID == "" {
		issues = append(issues, schema.Issue{Field: field + ".id", Message: "id is required"})
	}
	if item.Content == "" {
		issues = append(issues, schema.Issue{Field: field + ".content", Message: "content is required"})
	} else if utf8.RuneCountInString(item.Content) > maxCommentLength {
		issues = append(issues, schema.Issue{
			Field:   field + ".content",
			Message: fmt.Sprintf("content exceeds maximum length of %d characters", maxCommentLength),
		})
	}
	return issues
}
