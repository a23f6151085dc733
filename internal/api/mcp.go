package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/frontdesk/internal/mentor"
	"github.com/kalambet/frontdesk/internal/scenario"
	"github.com/kalambet/frontdesk/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Mentor   *mentor.Service
	Sessions *session.Manager
}

// NewMCPServer creates an MCP server exposing the mentor operations as tools.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"frontdesk",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Hotel front desk operations mentor. Scenarios: PMS, PHONE, TABLET, FOLDER."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("mentor_guidance",
			mcp.WithDescription("Ask the operations mentor for Socratic questions about a student's notes on a scenario."),
			mcp.WithString("scenario", mcp.Description("Scenario ID (PMS, PHONE, TABLET, FOLDER)"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("The student's current notes")),
		),
		mcpGuidance(deps),
	)

	s.AddTool(
		mcp.NewTool("theory_reminder",
			mcp.WithDescription("Return a short refresher on the two key concepts of a scenario."),
			mcp.WithString("scenario", mcp.Description("Scenario ID (PMS, PHONE, TABLET, FOLDER)"), mcp.Required()),
		),
		mcpTheory(deps),
	)

	s.AddTool(
		mcp.NewTool("log_feedback",
			mcp.WithDescription("Evaluate a logbook entry against the scenario's learning outcome in two sentences."),
			mcp.WithString("scenario", mcp.Description("Scenario ID (PMS, PHONE, TABLET, FOLDER)"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("The logbook entry to evaluate"), mcp.Required()),
		),
		mcpFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("final_report",
			mcp.WithDescription("Generate rubric feed-forward for a student's saved logbook."),
			mcp.WithString("student_id", mcp.Description("Student ID whose shift was handed over"), mcp.Required()),
		),
		mcpFinalReport(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"frontdesk://scenarios",
			"Scenarios",
			mcp.WithResourceDescription("The fixed set of shift scenarios as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceScenarios,
	)

	return s
}

func requireTask(req mcp.CallToolRequest) (scenario.ID, *mcp.CallToolResult) {
	raw, err := req.RequireString("scenario")
	if err != nil {
		return "", mcpError("scenario is required")
	}
	id, err := scenario.Parse(raw)
	if err != nil {
		return "", mcpError(err.Error())
	}
	if !id.IsTask() {
		return "", mcpError(fmt.Sprintf("%s is not a task scenario", id))
	}
	return id, nil
}

func mcpGuidance(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireTask(req)
		if errResult != nil {
			return errResult, nil
		}
		res := deps.Mentor.Guidance(ctx, id, req.GetString("notes", ""))
		return mcpText(res.Value), nil
	}
}

func mcpTheory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireTask(req)
		if errResult != nil {
			return errResult, nil
		}
		res := deps.Mentor.Theory(ctx, id)
		return mcpText(res.Value), nil
	}
}

func mcpFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireTask(req)
		if errResult != nil {
			return errResult, nil
		}
		notes, err := req.RequireString("notes")
		if err != nil {
			return mcpError("notes is required"), nil
		}
		res := deps.Mentor.Feedback(ctx, id, notes)
		return mcpText(res.Value), nil
	}
}

func mcpFinalReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		studentID, err := req.RequireString("student_id")
		if err != nil {
			return mcpError("student_id is required"), nil
		}

		saved, err := deps.Sessions.Saved(studentID)
		if errors.Is(err, session.ErrNoSession) {
			return mcpError(fmt.Sprintf("no saved shift for %s", studentID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load shift: %v", err)), nil
		}

		res := deps.Mentor.Report(ctx, saved.Logbook)
		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceScenarios(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(scenario.List())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scenarios: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
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
