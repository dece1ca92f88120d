package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-dap"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xhd2015/psdebug-mcp/breakpoint"
	frontend "github.com/xhd2015/psdebug-mcp/frontend/dap"
	"github.com/xhd2015/psdebug-mcp/session"
)

func locationOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID of the session"),
		),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Script path of the breakpoint"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line of the breakpoint"),
		),
		mcp.WithNumber("column",
			mcp.Description("1-based column of the breakpoint (default 1)"),
		),
	}
}

func newTool(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, locationOptions()...)
	return mcp.NewTool(name, append(opts, extra...)...)
}

type location struct {
	file   string
	line   int
	column int
}

func parseLocation(args map[string]interface{}, fileArg string) (location, error) {
	file, _ := args[fileArg].(string)
	if strings.TrimSpace(file) == "" {
		return location{}, fmt.Errorf("invalid %s parameter", fileArg)
	}
	loc := location{
		file:   file,
		line:   intArg(args, "line", 0),
		column: intArg(args, "column", 1),
	}
	if loc.line <= 0 {
		return location{}, fmt.Errorf("invalid line parameter")
	}
	if loc.column <= 0 {
		return location{}, fmt.Errorf("invalid column parameter")
	}
	return loc, nil
}

// lookupRecord prefers the managed record so state changes land on it.
func lookupRecord(sess *session.Session, loc location) *breakpoint.Record {
	if r, ok := sess.Breakpoints.Find(loc.file, loc.line, loc.column); ok {
		return r
	}
	return breakpoint.NewRecord(loc.file, loc.line, loc.column, breakpoint.Enabled)
}

func stateOf(enabled bool) breakpoint.State {
	if enabled {
		return breakpoint.Enabled
	}
	return breakpoint.Disabled
}

// registerBreakpointTools registers tools for breakpoint management
func registerBreakpointTools(s *server.MCPServer, opts ToolOptions) {
	registerSetBreakpointsTool(s, opts)
	registerSetSourceBreakpointsTool(s, opts)
	registerAddBreakpointTool(s, opts)
	registerEnableBreakpointTool(s, opts)
	registerRemoveBreakpointTool(s, opts)
	registerDeleteBreakpointTool(s, opts)
	registerClearBreakpointsTool(s, opts)
	registerListBreakpointsTool(s, opts)
}

// registerSetBreakpointsTool registers the set_breakpoints tool
func registerSetBreakpointsTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("set_breakpoints",
		mcp.WithDescription("Replace every breakpoint of the session with the given list. Omitting the list leaves breakpoints untouched; an empty list clears them."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID of the session"),
		),
		mcp.WithArray("breakpoints",
			mcp.Description("Breakpoints in order: objects with file, line, column and enabled"),
			mcp.Items(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file":    map[string]interface{}{"type": "string"},
					"line":    map[string]interface{}{"type": "number"},
					"column":  map[string]interface{}{"type": "number"},
					"enabled": map[string]interface{}{"type": "boolean"},
				},
				"required": []string{"file", "line"},
			}),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestJson, _ := json.Marshal(request)
		opts.Logger.Infof("set_breakpoints: %s", string(requestJson))

		sess, errResult := getSession(opts, request)
		if errResult != nil {
			return errResult, nil
		}

		raw, ok := request.Params.Arguments["breakpoints"]
		if !ok || raw == nil {
			return mcp.NewToolResultText("No breakpoints given, nothing changed"), nil
		}
		items, ok := raw.([]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid breakpoints parameter"), nil
		}

		records := make([]*breakpoint.Record, 0, len(items))
		for i, item := range items {
			args, ok := item.(map[string]interface{})
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("invalid breakpoint at index %d", i)), nil
			}
			loc, err := parseLocation(args, "file")
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("breakpoint %d: %v", i, err)), nil
			}
			records = append(records, breakpoint.NewRecord(loc.file, loc.line, loc.column, stateOf(boolArg(args, "enabled", true))))
		}

		sess.Breakpoints.SetBreakpoints(records)
		return mcp.NewToolResultText(fmt.Sprintf("%d breakpoint(s) set", len(sess.Breakpoints.Breakpoints()))), nil
	})
}

// registerSetSourceBreakpointsTool registers the set_source_breakpoints tool
func registerSetSourceBreakpointsTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("set_source_breakpoints",
		mcp.WithDescription("Apply a DAP setBreakpoints request: replace the breakpoints of one source and keep the others. Returns the DAP response body."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID of the session"),
		),
		mcp.WithObject("arguments",
			mcp.Required(),
			mcp.Description("DAP SetBreakpointsArguments: source, breakpoints (line, column) or lines"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := getSession(opts, request)
		if errResult != nil {
			return errResult, nil
		}

		raw, ok := request.Params.Arguments["arguments"].(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments parameter"), nil
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments parameter: %v", err)), nil
		}
		var args dap.SetBreakpointsArguments
		if err := json.Unmarshal(data, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments parameter: %v", err)), nil
		}
		if args.Source.Path == "" && args.Source.Name == "" {
			return mcp.NewToolResultError("arguments.source needs a path or name"), nil
		}

		incoming := frontend.RecordsFromSetBreakpoints(args)
		source := sourceFile(args.Source)
		var records []*breakpoint.Record
		for _, r := range sess.Breakpoints.Breakpoints() {
			if !strings.EqualFold(r.File(), source) {
				records = append(records, r)
			}
		}
		records = append(records, incoming...)
		if records == nil {
			records = []*breakpoint.Record{}
		}
		sess.Breakpoints.SetBreakpoints(records)

		body := dap.SetBreakpointsResponseBody{Breakpoints: make([]dap.Breakpoint, 0, len(incoming))}
		for _, r := range incoming {
			if managed, ok := sess.Breakpoints.Find(r.File(), r.Line(), r.Column()); ok {
				r = managed
			}
			body.Breakpoints = append(body.Breakpoints, frontend.ToBreakpoint(r))
		}
		out, err := json.Marshal(body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to encode response: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	})
}

// sourceFile mirrors the file RecordsFromSetBreakpoints assigns.
func sourceFile(source dap.Source) string {
	if source.Path != "" {
		return strings.TrimSpace(source.Path)
	}
	return strings.TrimSpace(source.Name)
}

// registerAddBreakpointTool registers the add_breakpoint tool
func registerAddBreakpointTool(s *server.MCPServer, opts ToolOptions) {
	tool := newTool("add_breakpoint", "Add a single breakpoint to the session",
		mcp.WithBoolean("enabled",
			mcp.Description("Whether the breakpoint starts enabled (default true)"),
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

		r := breakpoint.NewRecord(loc.file, loc.line, loc.column, stateOf(boolArg(request.Params.Arguments, "enabled", true)))
		if !sess.Breakpoints.AddBreakpoint(r) {
			return mcp.NewToolResultText(fmt.Sprintf("Breakpoint %s already exists", r.Identity())), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Breakpoint added at %s", r)), nil
	})
}

// registerEnableBreakpointTool registers the enable_breakpoint tool
func registerEnableBreakpointTool(s *server.MCPServer, opts ToolOptions) {
	tool := newTool("enable_breakpoint", "Enable or disable a breakpoint",
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to enable, false to disable"),
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

		enable := 0
		if boolArg(request.Params.Arguments, "enabled", false) {
			enable = 1
		}
		r := lookupRecord(sess, loc)
		sess.Breakpoints.EnableBreakpoint(r, enable)
		return mcp.NewToolResultText(fmt.Sprintf("Breakpoint %s", r)), nil
	})
}

// registerRemoveBreakpointTool registers the remove_breakpoint tool
func registerRemoveBreakpointTool(s *server.MCPServer, opts ToolOptions) {
	tool := newTool("remove_breakpoint", "Remove a breakpoint from the runtime service. The session list is not changed; use delete_breakpoint or set_breakpoints for that.")

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := getSession(opts, request)
		if errResult != nil {
			return errResult, nil
		}
		loc, err := parseLocation(request.Params.Arguments, "file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		r := lookupRecord(sess, loc)
		sess.Breakpoints.RemoveBreakpoint(r)
		return mcp.NewToolResultText(fmt.Sprintf("Breakpoint %s removed from runtime service", r.Identity())), nil
	})
}

// registerDeleteBreakpointTool registers the delete_breakpoint tool
func registerDeleteBreakpointTool(s *server.MCPServer, opts ToolOptions) {
	tool := newTool("delete_breakpoint", "Remove a breakpoint from the runtime service and from the session list")

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := getSession(opts, request)
		if errResult != nil {
			return errResult, nil
		}
		loc, err := parseLocation(request.Params.Arguments, "file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		r := lookupRecord(sess, loc)
		if !sess.Breakpoints.DeleteBreakpoint(r) {
			return mcp.NewToolResultText(fmt.Sprintf("Breakpoint %s was not in the session list", r.Identity())), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Breakpoint %s deleted", r.Identity())), nil
	})
}

// registerClearBreakpointsTool registers the clear_breakpoints tool
func registerClearBreakpointsTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("clear_breakpoints",
		mcp.WithDescription("Clear all breakpoints on the runtime service. The session list is kept."),
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
		sess.Breakpoints.ClearBreakpoints()
		return mcp.NewToolResultText("Runtime breakpoints cleared"), nil
	})
}

// registerListBreakpointsTool registers the list_breakpoints tool
func registerListBreakpointsTool(s *server.MCPServer, opts ToolOptions) {
	tool := mcp.NewTool("list_breakpoints",
		mcp.WithDescription("List the breakpoints managed by the session"),
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

		records := sess.Breakpoints.Breakpoints()
		var builder strings.Builder
		builder.WriteString("Breakpoints:\n")
		if len(records) == 0 {
			builder.WriteString("No breakpoints set.")
			return mcp.NewToolResultText(builder.String()), nil
		}
		for i, r := range records {
			fmt.Fprintf(&builder, "%d: %s", i+1, r)
			if id, ok := r.RuntimeID(); ok {
				fmt.Fprintf(&builder, " [runtime id %d]", id)
			}
			builder.WriteString("\n")
		}
		return mcp.NewToolResultText(builder.String()), nil
	})
}
