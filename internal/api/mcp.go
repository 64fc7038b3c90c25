package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gosnap/gosnap/internal/feedback"
)

// NewMCPServer creates an MCP server exposing the feedback triage tools
// to coding agents over stdio.
func NewMCPServer(store feedback.Store, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"gosnap",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("gosnap serves UI feedback collected from the browser widget, grouped into per-page sessions for triage."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List all active UI feedback sessions. Each session represents a page with annotations."),
		),
		mcpListSessions(store),
	)

	s.AddTool(
		mcp.NewTool("get_pending_feedback",
			mcp.WithDescription("Get all unresolved feedback. Optionally filter by session ID."),
			mcp.WithString("sessionId", mcp.Description("Filter by session ID. Omit for all pending feedback.")),
		),
		mcpGetPendingFeedback(store),
	)

	s.AddTool(
		mcp.NewTool("acknowledge_feedback",
			mcp.WithDescription("Mark a feedback item as seen/acknowledged by the agent."),
			mcp.WithString("feedbackId", mcp.Description("ID of feedback to acknowledge"), mcp.Required()),
		),
		mcpAcknowledgeFeedback(store),
	)

	s.AddTool(
		mcp.NewTool("resolve_feedback",
			mcp.WithDescription("Mark feedback as resolved with a summary of what was done to address it."),
			mcp.WithString("feedbackId", mcp.Description("ID of feedback to resolve"), mcp.Required()),
			mcp.WithString("resolution", mcp.Description("Summary of what was done to address the feedback"), mcp.Required()),
		),
		mcpResolveFeedback(store),
	)

	s.AddTool(
		mcp.NewTool("dismiss_feedback",
			mcp.WithDescription("Dismiss/reject feedback with a reason."),
			mcp.WithString("feedbackId", mcp.Description("ID of feedback to dismiss"), mcp.Required()),
			mcp.WithString("reason", mcp.Description("Reason for dismissing the feedback"), mcp.Required()),
		),
		mcpDismissFeedback(store),
	)

	return s
}

func mcpListSessions(store feedback.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions, err := store.ListSessions()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list sessions: %v", err)), nil
		}
		return mcpJSON(sessions)
	}
}

func mcpGetPendingFeedback(store feedback.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := req.GetString("sessionId", "")

		feedbacks, err := store.ListPending(sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list pending feedback: %v", err)), nil
		}
		return mcpJSON(feedbacks)
	}
}

func mcpAcknowledgeFeedback(store feedback.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feedbackID, err := req.RequireString("feedbackId")
		if err != nil {
			return mcpError("feedbackId is required"), nil
		}

		fb, err := store.Acknowledge(feedbackID)
		if isExpectedAbsence(err) {
			return mcpError(fmt.Sprintf("Feedback not found or not in pending state: %s", feedbackID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to acknowledge feedback: %v", err)), nil
		}
		return mcpJSON(fb)
	}
}

func mcpResolveFeedback(store feedback.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feedbackID, err := req.RequireString("feedbackId")
		if err != nil {
			return mcpError("feedbackId is required"), nil
		}
		resolution, err := req.RequireString("resolution")
		if err != nil {
			return mcpError("resolution is required"), nil
		}

		fb, err := store.Resolve(feedbackID, resolution)
		if isExpectedAbsence(err) {
			return mcpError(fmt.Sprintf("Feedback not found or already resolved/dismissed: %s", feedbackID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to resolve feedback: %v", err)), nil
		}
		return mcpJSON(fb)
	}
}

func mcpDismissFeedback(store feedback.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feedbackID, err := req.RequireString("feedbackId")
		if err != nil {
			return mcpError("feedbackId is required"), nil
		}
		reason, err := req.RequireString("reason")
		if err != nil {
			return mcpError("reason is required"), nil
		}

		fb, err := store.Dismiss(feedbackID, reason)
		if isExpectedAbsence(err) {
			return mcpError(fmt.Sprintf("Feedback not found or already resolved/dismissed: %s", feedbackID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to dismiss feedback: %v", err)), nil
		}
		return mcpJSON(fb)
	}
}

// isExpectedAbsence reports whether the error is one of the store's
// expected-absence signals, which tools surface as a single "not found
// or wrong state" message rather than a transport error.
func isExpectedAbsence(err error) bool {
	return errors.Is(err, feedback.ErrNotFound) || errors.Is(err, feedback.ErrInvalidState)
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
