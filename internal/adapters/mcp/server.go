// Package mcpadapter exposes the research service over the Model Context
// Protocol so agent runtimes can call it as a tool over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ybolotov/deep-research/internal/core/ports"
)

// New builds the MCP server with the research tools registered.
func New(research ports.ResearchService, transcripts ports.TranscriptReader, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"deep-research",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Runs multi-source scientific deep research: "+
			"plans the question, queries academic APIs, reads the sources and "+
			"returns a grounded report."),
	)

	researchTool := &ResearchTool{research: research}
	s.AddTool(researchTool.Definition(), researchTool.Handle)

	transcriptTool := &TranscriptTool{transcripts: transcripts}
	s.AddTool(transcriptTool.Definition(), transcriptTool.Handle)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// ResearchTool runs one research session synchronously. MCP clients get
// the full report plus the session id for transcript follow-up.
type ResearchTool struct {
	research ports.ResearchService
}

func (t *ResearchTool) Definition() mcp.Tool {
	return mcp.NewTool("deep_research",
		mcp.WithDescription("Run deep research on a scientific question across "+
			"arXiv, OpenAlex, PubMed, Semantic Scholar and the Materials Project, "+
			"and return a grounded report. Long-running: expect minutes."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The research question, in plain language."),
		),
	)
}

func (t *ResearchTool) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}

	sessionID := uuid.NewString()
	result, err := t.research.Run(ctx, sessionID, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("research failed: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString(result.Report)
	fmt.Fprintf(&b, "\n\n[session %s: %d documents, %d chunks, %d refinement cycles]",
		result.SessionID, result.Documents, result.Chunks, result.Refinements)
	return mcp.NewToolResultText(b.String()), nil
}

// TranscriptTool replays the step-by-step trail of a finished session.
type TranscriptTool struct {
	transcripts ports.TranscriptReader
}

func (t *TranscriptTool) Definition() mcp.Tool {
	return mcp.NewTool("get_research_transcript",
		mcp.WithDescription("Fetch the step-by-step transcript of a previous "+
			"deep_research session by its session id."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id returned by deep_research."),
		),
	)
}

func (t *TranscriptTool) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := t.transcripts.ListBySession(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list transcript: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultError("no transcript found for session " + sessionID), nil
	}

	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode transcript: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
