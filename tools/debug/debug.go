package debug

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xhd2015/psdebug-mcp/log"
	"github.com/xhd2015/psdebug-mcp/session"
)

type ToolOptions struct {
	Sessions *session.Manager
	Logger   log.Logger
	// DefaultAddress is used by start_session when no address is given.
	DefaultAddress string
}

// RegisterTools registers the debug tools with the MCP server
func RegisterTools(s *server.MCPServer, opts ToolOptions) error {
	if opts.Sessions == nil {
		return fmt.Errorf("session manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	registerStartSessionTool(s, opts)
	registerTerminateSessionTool(s, opts)
	registerListSessionsTool(s, opts)
	registerBreakpointTools(s, opts)
	registerReportTools(s, opts)

	return nil
}

// registerStartSessionTool registers the start_session tool
func registerStartSessionTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("start_session",
		mcp.WithDescription("Connect to a script runtime service and start a breakpoint session"),
		mcp.WithString("address",
			mcp.Description("host:port of the runtime service (defaults to the configured backend address)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		address, _ := request.Params.Arguments["address"].(string)
		if address == "" {
			address = opts.DefaultAddress
		}
		opts.Logger.Infof("start_session: %s", address)

		sess, err := opts.Sessions.CreateSession(ctx, address)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to start session: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Session started with ID: %s\nRuntime service: %s", sess.ID, sess.Address)), nil
	})
}

// registerTerminateSessionTool registers the terminate_session tool
func registerTerminateSessionTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("terminate_session",
		mcp.WithDescription("Terminate a breakpoint session and close its runtime service connection"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID of the session to terminate"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, _ := request.Params.Arguments["session_id"].(string)
		opts.Logger.Infof("terminate_session: %s", sessionID)

		if err := opts.Sessions.TerminateSession(sessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to terminate session: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Session %s terminated", sessionID)), nil
	})
}

// registerListSessionsTool registers the list_sessions tool
func registerListSessionsTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List active breakpoint sessions"),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions := opts.Sessions.ListSessions()
		if len(sessions) == 0 {
			return mcp.NewToolResultText("No active sessions"), nil
		}

		var builder strings.Builder
		builder.WriteString("Active sessions:\n\n")
		for _, info := range sessions {
			fmt.Fprintf(&builder, "ID: %s\nRuntime service: %s\nBreakpoints: %d\nPending events: %d\n\n",
				info.ID, info.Address, info.Breakpoints, info.PendingEvents)
		}
		return mcp.NewToolResultText(builder.String()), nil
	})
}

func getSession(opts ToolOptions, request mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	sessionID, _ := request.Params.Arguments["session_id"].(string)
	if sessionID == "" {
		return nil, mcp.NewToolResultError("invalid session_id parameter")
	}
	sess, err := opts.Sessions.GetSession(sessionID)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to get session: %v", err))
	}
	return sess, nil
}

// numbers arrive as float64 from JSON
func intArg(args map[string]interface{}, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]interface{}, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}
