package debug

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-dap"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xhd2015/psdebug-mcp/breakpoint"
)

var updateKinds = map[string]breakpoint.UpdateKind{
	"new":     breakpoint.UpdateAdded,
	"changed": breakpoint.UpdateChanged,
	"removed": breakpoint.UpdateRemoved,
	"hit":     breakpoint.UpdateHit,
}

// registerReportTools registers the tools the runtime host uses to report back.
func registerReportTools(s *server.MCPServer, opts ToolOptions) {
	registerReportLineTool(s, opts)
	registerReportUpdateTool(s, opts)
	registerPollEventsTool(s, opts)
}

// registerReportLineTool registers the report_line tool
func registerReportLineTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("report_line",
		mcp.WithDescription("Report that execution crossed a line. Answers whether the runtime should suspend."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID of the session"),
		),
		mcp.WithString("script",
			mcp.Required(),
			mcp.Description("Script path being executed"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line reached"),
		),
		mcp.WithNumber("column",
			mcp.Description("1-based column reached (default 1)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := getSession(opts, request)
		if errResult != nil {
			return errResult, nil
		}
		loc, err := parseLocation(request.Params.Arguments, "script")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if !sess.Breakpoints.ProcessLineBreakpoints(loc.file, loc.line, loc.column) {
			return mcp.NewToolResultText("continue"), nil
		}
		return mcp.NewToolResultText("break"), nil
	})
}

// registerReportUpdateTool registers the report_update tool
func registerReportUpdateTool(s *server.MCPServer, opts ToolOptions) {
	tool := newTool("report_update", "Report a breakpoint state change to the frontend",
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Kind of change: 'new', 'changed', 'removed' or 'hit'"),
			mcp.Enum("new", "changed", "removed", "hit"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := getSession(opts, request)
		if errResult != nil {
			return errResult, nil
		}
		loc, err := parseLocation(request.Params.Arguments, "file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		kindName, _ := request.Params.Arguments["kind"].(string)
		kind, ok := updateKinds[kindName]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid kind parameter: %q", kindName)), nil
		}

		delivered := sess.Breakpoints.UpdateBreakpoint(breakpoint.UpdateEvent{
			Kind:       kind,
			Breakpoint: lookupRecord(sess, loc),
		})
		if !delivered {
			return mcp.NewToolResultText("No update subscribers"), nil
		}
		return mcp.NewToolResultText("Update delivered"), nil
	})
}

// registerPollEventsTool registers the poll_events tool
func registerPollEventsTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("poll_events",
		mcp.WithDescription("Return and clear the DAP events queued for the frontend"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID of the session"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := getSession(opts, request)
		if errResult != nil {
			return errResult, nil
		}

		msgs := sess.Events.Drain()
		if msgs == nil {
			msgs = []dap.Message{}
		}
		data, err := json.Marshal(msgs)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to encode events: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}
