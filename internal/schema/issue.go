// Package schema validates inbound payloads before they reach the
// store. Validation failures are reported as structured issue lists so
// the HTTP adapter can surface field-level detail.
package schema

import "fmt"

// Issue is a single validation failure tied to a payload field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func issuef(field, format string, args ...any) Issue {
	return Issue{Field: field, Message: fmt.Sprintf(format, args...)}
}
