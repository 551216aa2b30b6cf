package mcp

import "fmt"

// ConnectionError means transport to a server could not be established;
// the server is excluded from that discovery cycle.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp: connection to %s failed: %v", e.Server, e.Err)
}
func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError is split out from generic connection failures
// (HTTP 401/403) so callers can prompt for re-auth specifically.
type AuthenticationError struct {
	Server string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("mcp: authentication with %s failed: %v", e.Server, e.Err)
}
func (e *AuthenticationError) Unwrap() error { return e.Err }

// ToolDiscoveryError means the server connected but tool listing failed or
// was malformed.
type ToolDiscoveryError struct {
	Server string
	Err    error
}

func (e *ToolDiscoveryError) Error() string {
	return fmt.Sprintf("mcp: tool discovery on %s failed: %v", e.Server, e.Err)
}
func (e *ToolDiscoveryError) Unwrap() error { return e.Err }

// ToolExecutionError means the tool was found and the server connected, but
// the call itself failed or timed out.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("mcp: execution of %s failed: %v", e.Tool, e.Err)
}
func (e *ToolExecutionError) Unwrap() error { return e.Err }
