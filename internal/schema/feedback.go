package schema

import (
	"net/url"
	"unicode/utf8"

	"github.com/gosnap/gosnap/internal/feedback"
)

// CreateFeedbackRequest is the wire shape of POST /api/feedback.
type CreateFeedbackRequest struct {
	Comment       string `json:"comment"`
	PageURL       string `json:"pageUrl"`
	Element       string `json:"element,omitempty"`
	ElementPath   string `json:"elementPath,omitempty"`
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
	Intent        string `json:"intent,omitempty"`
	Severity      string `json:"severity,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
}

// Validate checks the request against the creation rules. A nil result
// means the request is acceptable.
func (r *CreateFeedbackRequest) Validate(maxCommentLength int) []Issue {
	var issues []Issue

	if r.Comment == "" {
		issues = append(issues, issuef("comment", "comment is required"))
	} else if n := utf8.RuneCountInString(r.Comment); n > maxCommentLength {
		issues = append(issues, issuef("comment", "comment exceeds maximum length of %d characters", maxCommentLength))
	}

	if r.PageURL == "" {
		issues = append(issues, issuef("pageUrl", "pageUrl is required"))
	} else if !isAbsoluteURL(r.PageURL) {
		issues = append(issues, issuef("pageUrl", "pageUrl must be a valid absolute URL"))
	}

	if r.ScreenshotURL != "" && !isAbsoluteURL(r.ScreenshotURL) {
		issues = append(issues, issuef("screenshotUrl", "screenshotUrl must be a valid absolute URL"))
	}

	if r.Intent != "" && !feedback.Intent(r.Intent).Valid() {
		issues = append(issues, issuef("intent", "intent must be one of: fix, change, question, approve"))
	}
	if r.Severity != "" && !feedback.Severity(r.Severity).Valid() {
		issues = append(issues, issuef("severity", "severity must be one of: blocking, important, suggestion"))
	}

	return issues
}

// ToInput converts a validated request into the store's creation input,
// applying the intent/severity defaults.
func (r *CreateFeedbackRequest) ToInput() feedback.CreateFeedbackInput {
	intent := feedback.Intent(r.Intent)
	if intent == "" {
		intent = feedback.IntentFix
	}
	severity := feedback.Severity(r.Severity)
	if severity == "" {
		severity = feedback.SeveritySuggestion
	}
	return feedback.CreateFeedbackInput{
		Comment:       r.Comment,
		PageURL:       r.PageURL,
		Element:       r.Element,
		ElementPath:   r.ElementPath,
		ScreenshotURL: r.ScreenshotURL,
		Intent:        intent,
		Severity:      severity,
		SessionID:     r.SessionID,
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
