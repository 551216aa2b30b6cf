package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/orakle-ai/orakle/config"
)

// CloserStack collects release functions for every transport resource a
// connection opens, so they are torn down together in reverse order
// regardless of which setup step failed.
type CloserStack struct {
	mu      sync.Mutex
	closers []func() error
}

// Push registers a release function.
func (s *CloserStack) Push(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Close runs all release functions in reverse order, returning the first
// error encountered but always running every closer.
func (s *CloserStack) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ConnectionStrategy abstracts one MCP transport. Every operation is
// individually fallible; errors use the package taxonomy.
type ConnectionStrategy interface {
	// Connect establishes the transport and registers all resources with
	// the caller-supplied stack.
	Connect(ctx context.Context, stack *CloserStack) error
	// ListTools queries the remote side. Server name and prefix are applied
	// by the manager, not here.
	ListTools(ctx context.Context) ([]Tool, error)
	// CallTool invokes one remote tool.
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
	// UpdateAuthToken rotates credentials on a live connection. Transports
	// without credentials treat it as a no-op.
	UpdateAuthToken(token string) error
	// Close is a best-effort secondary cleanup; the stack is primary.
	Close() error
}

// NewStrategy builds the strategy for a server's configured transport.
func NewStrategy(name string, cfg config.MCPServerConfig) (ConnectionStrategy, error) {
	switch cfg.ConnectionType {
	case "stdio":
		return NewStdioStrategy(name, cfg), nil
	case "http_bearer":
		return NewHTTPStrategy(name, cfg), nil
	default:
		return nil, fmt.Errorf("unknown connection type %q for server %s", cfg.ConnectionType, name)
	}
}
