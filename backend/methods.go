package backend

type RPCMethod string

const (
	RPCGetAvailability     RPCMethod = "RuntimeService.GetAvailability"
	RPCSetBreakpoint       RPCMethod = "RuntimeService.SetBreakpoint"
	RPCEnableBreakpoint    RPCMethod = "RuntimeService.EnableBreakpoint"
	RPCRemoveBreakpoint    RPCMethod = "RuntimeService.RemoveBreakpoint"
	RPCClearAllBreakpoints RPCMethod = "RuntimeService.ClearAllBreakpoints"
	RPCResolveBreakpointID RPCMethod = "RuntimeService.ResolveBreakpointId"
	RPCExecuteCommand      RPCMethod = "RuntimeService.ExecuteCommand"
)

// BreakpointIn addresses a breakpoint by identity.
type BreakpointIn struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type EnableBreakpointIn struct {
	BreakpointIn
	Enable bool `json:"enable"`
}

type AvailabilityOut struct {
	Availability string `json:"availability"`
}

type ResolveBreakpointIDOut struct {
	ID int `json:"id"`
}

type ExecuteCommandIn struct {
	Command string `json:"command"`
}

// Empty is used for methods without parameters or results.
type Empty struct{}
