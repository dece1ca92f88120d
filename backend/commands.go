package backend

import (
	"fmt"
	"strings"
)

var scriptEscaper = strings.NewReplacer("`", "``", `"`, "`\"", "$", "`$")

// SetBreakpointCommand builds the command that sets a line breakpoint while Busy.
//
// The command form cannot carry a column, so breakpoints set while Busy are
// line-only. Backticks, double quotes and dollar signs in file are escaped with
// a backtick so the script path stays one literal; paths without them produce
// the plain Set-PSBreakpoint -Script "<file>" -Line <line> text.
func SetBreakpointCommand(file string, line int) string {
	return fmt.Sprintf(`Set-PSBreakpoint -Script "%s" -Line %d`, scriptEscaper.Replace(file), line)
}

// EnableBreakpointCommand builds the command that enables or disables breakpoint id.
func EnableBreakpointCommand(id int, enable bool) string {
	if enable {
		return fmt.Sprintf("Enable-PSBreakpoint -Id %d", id)
	}
	return fmt.Sprintf("Disable-PSBreakpoint -Id %d", id)
}

// RemoveBreakpointCommand builds the command that removes breakpoint id.
func RemoveBreakpointCommand(id int) string {
	return fmt.Sprintf("Remove-PSBreakpoint -Id %d", id)
}
