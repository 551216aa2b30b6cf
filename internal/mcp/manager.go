package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/orakle-ai/orakle/config"
	"github.com/orakle-ai/orakle/internal/telemetry"
)

const (
	DiscoveryTimeout  = 60 * time.Second
	ExecutionTimeout  = 120 * time.Second
	AuthUpdateTimeout = 10 * time.Second
	ShutdownTimeout   = 30 * time.Second
)

// State is the connection lifecycle position of the manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// StrategyFactory builds the transport strategy for one server. Swappable
// in tests.
type StrategyFactory func(name string, cfg config.MCPServerConfig) (ConnectionStrategy, error)

// ConnectionManager owns the lifecycle of all configured MCP server
// connections. A single background worker goroutine holds the resource
// stack for the duration of a connected session; tool calls and credential
// updates are dispatched through it, and it parks until Shutdown. The
// tools and strategies maps are only swapped wholesale under the lock, so
// readers never observe a half-updated view.
type ConnectionManager struct {
	servers map[string]config.MCPServerConfig
	factory StrategyFactory
	logger  *log.Logger
	metrics *telemetry.Telemetry

	// lifecycleMu serializes ConnectAndDiscover and Shutdown.
	lifecycleMu sync.Mutex

	mu         sync.RWMutex
	state      State
	tools      map[string]Tool
	strategies map[string]ConnectionStrategy
	tokens     map[string]string

	tasks      chan func()
	shutdownCh chan struct{}
	doneCh     chan struct{}
}

func NewConnectionManager(cfg config.MCPConfig, metrics *telemetry.Telemetry) *ConnectionManager {
	return NewConnectionManagerWithFactory(cfg, metrics, NewStrategy)
}

// NewConnectionManagerWithFactory validates every configured server once.
// A server with missing transport params is dropped with a warning, never
// fatally.
func NewConnectionManagerWithFactory(cfg config.MCPConfig, metrics *telemetry.Telemetry, factory StrategyFactory) *ConnectionManager {
	logger := log.New(log.Writer(), "[MCP] ", log.LstdFlags)
	servers := make(map[string]config.MCPServerConfig)
	for name, sc := range cfg.Servers {
		if !sc.Enabled {
			continue
		}
		if err := validateServer(sc); err != nil {
			logger.Printf("dropping server %s: %v", name, err)
			continue
		}
		servers[name] = sc
	}
	return &ConnectionManager{
		servers: servers,
		factory: factory,
		logger:  logger,
		metrics: metrics,
		state:   StateIdle,
		tools:   make(map[string]Tool),
		tokens:  make(map[string]string),
	}
}

func validateServer(sc config.MCPServerConfig) error {
	switch sc.ConnectionType {
	case "stdio":
		if len(sc.Stdio.Command) == 0 {
			return errors.New("stdio_params.command is required")
		}
	case "http_bearer":
		if sc.URL == "" {
			return errors.New("url is required")
		}
	default:
		return fmt.Errorf("unknown connection_type %q", sc.ConnectionType)
	}
	return nil
}

// State reports the current lifecycle state.
func (m *ConnectionManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Tools returns a copy of the current prefixed-name tool map.
func (m *ConnectionManager) Tools() map[string]Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneTools(m.tools)
}

func cloneTools(in map[string]Tool) map[string]Tool {
	out := make(map[string]Tool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ConnectAndDiscover connects to every configured server concurrently,
// discovers their tools and publishes the merged map. Calling it while
// already connected is a no-op returning the cached map. Per-server
// failures are logged and that server is simply absent from the result;
// only manager-level failures return an error.
func (m *ConnectionManager) ConnectAndDiscover(ctx context.Context) (map[string]Tool, error) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.RLock()
	if m.state == StateConnected {
		cached := cloneTools(m.tools)
		m.mu.RUnlock()
		return cached, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	m.state = StateConnecting
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	dctx, cancel := context.WithTimeout(ctx, DiscoveryTimeout)
	defer cancel()

	type connected struct {
		name     string
		cfg      config.MCPServerConfig
		strategy ConnectionStrategy
		tools    []Tool
	}

	stack := &CloserStack{}
	var wg sync.WaitGroup
	var resMu sync.Mutex
	var results []connected
	var sealed bool
	for name, sc := range m.servers {
		wg.Add(1)
		go func(name string, sc config.MCPServerConfig) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.Printf("server %s panicked during discovery: %v", name, r)
				}
			}()
			m.mu.RLock()
			if tok, ok := m.tokens[name]; ok {
				sc.Authentication.Token = tok
			}
			m.mu.RUnlock()
			strat, err := m.factory(name, sc)
			if err != nil {
				m.logger.Printf("server %s: %v", name, err)
				return
			}
			if err := strat.Connect(dctx, stack); err != nil {
				m.logger.Printf("server %s: %v", name, err)
				return
			}
			tools, err := strat.ListTools(dctx)
			if err != nil {
				m.logger.Printf("server %s: %v", name, err)
				return
			}
			resMu.Lock()
			if sealed {
				resMu.Unlock()
				m.logger.Printf("server %s finished after the discovery deadline, releasing", name)
				if err := strat.Close(); err != nil {
					m.logger.Printf("server %s: releasing late connection: %v", name, err)
				}
				return
			}
			results = append(results, connected{name: name, cfg: sc, strategy: strat, tools: tools})
			resMu.Unlock()
		}(name, sc)
	}

	// A server that never answers must not hold the others hostage. When
	// the deadline hits, publish whatever connected in time; stragglers
	// release themselves on arrival.
	discovered := make(chan struct{})
	go func() {
		wg.Wait()
		close(discovered)
	}()
	select {
	case <-discovered:
	case <-dctx.Done():
		m.logger.Printf("discovery deadline reached, publishing servers that connected in time")
	}
	resMu.Lock()
	sealed = true
	results = append([]connected(nil), results...)
	resMu.Unlock()

	// Deterministic merge order so prefixed-name collisions resolve the
	// same way every cycle.
	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })

	merged := make(map[string]Tool)
	strategies := make(map[string]ConnectionStrategy, len(results))
	for _, c := range results {
		strategies[c.name] = c.strategy
		prefix := c.cfg.Prefix
		if prefix == "" {
			prefix = c.name + "_"
		}
		for _, t := range c.tools {
			t.ServerName = c.name
			t.PrefixedName = prefix + t.Name
			if _, dup := merged[t.PrefixedName]; dup {
				m.logger.Printf("duplicate tool name %s from server %s, keeping first", t.PrefixedName, c.name)
				continue
			}
			merged[t.PrefixedName] = t
		}
		m.logger.Printf("server %s connected with %d tools", c.name, len(c.tools))
	}

	tasks := make(chan func())
	shutdownCh := make(chan struct{})
	doneCh := make(chan struct{})
	go m.run(stack, tasks, shutdownCh, doneCh)

	m.mu.Lock()
	m.tools = merged
	m.strategies = strategies
	m.tasks = tasks
	m.shutdownCh = shutdownCh
	m.doneCh = doneCh
	m.state = StateConnected
	m.mu.Unlock()

	return cloneTools(merged), nil
}

// run is the background worker. It owns the resource stack and parks until
// the shutdown signal; dispatched jobs each get their own goroutine so
// concurrent tool calls do not serialize behind one slow server.
func (m *ConnectionManager) run(stack *CloserStack, tasks chan func(), shutdownCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case job := <-tasks:
			go job()
		case <-shutdownCh:
			if err := stack.Close(); err != nil {
				m.logger.Printf("releasing connection resources: %v", err)
			}
			return
		}
	}
}

// ExecuteTool invokes a tool by its prefixed name, blocking the caller
// until the result arrives or the execution timeout expires.
func (m *ConnectionManager) ExecuteTool(ctx context.Context, prefixedName string, args map[string]any) (any, error) {
	m.mu.RLock()
	tool, ok := m.tools[prefixedName]
	var strat ConnectionStrategy
	if ok {
		strat = m.strategies[tool.ServerName]
	}
	tasks := m.tasks
	doneCh := m.doneCh
	state := m.state
	m.mu.RUnlock()
	if state != StateConnected || !ok || strat == nil {
		return nil, &ToolExecutionError{Tool: prefixedName, Err: errors.New("tool not found")}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ectx, cancel := context.WithTimeout(ctx, ExecutionTimeout)
	defer cancel()

	type reply struct {
		out any
		err error
	}
	ch := make(chan reply, 1)
	job := func() {
		out, err := strat.CallTool(ectx, tool.Name, args)
		ch <- reply{out, err}
	}
	select {
	case tasks <- job:
	case <-doneCh:
		// The worker went away between the state check and the dispatch.
		err := errors.New("connection manager shut down")
		m.metrics.RecordToolCall(tool.ServerName, err)
		return nil, &ToolExecutionError{Tool: prefixedName, Err: err}
	case <-ectx.Done():
		m.metrics.RecordToolCall(tool.ServerName, ectx.Err())
		return nil, &ToolExecutionError{Tool: prefixedName, Err: ectx.Err()}
	}
	select {
	case r := <-ch:
		m.metrics.RecordToolCall(tool.ServerName, r.err)
		return r.out, r.err
	case <-ectx.Done():
		m.metrics.RecordToolCall(tool.ServerName, ectx.Err())
		return nil, &ToolExecutionError{Tool: prefixedName, Err: ectx.Err()}
	}
}

// SetAuthToken stores a token for a server unconditionally so future
// connections pick it up, and live-patches the active strategy when one
// exists. It returns false only when the live update itself fails; a
// stored-for-later token is still success.
func (m *ConnectionManager) SetAuthToken(server, token string) bool {
	m.mu.Lock()
	m.tokens[server] = token
	strat := m.strategies[server]
	tasks := m.tasks
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || strat == nil {
		return true
	}

	done := make(chan error, 1)
	job := func() { done <- strat.UpdateAuthToken(token) }
	timer := time.NewTimer(AuthUpdateTimeout)
	defer timer.Stop()
	select {
	case tasks <- job:
	case <-timer.C:
		m.logger.Printf("auth update for %s timed out", server)
		return false
	}
	select {
	case err := <-done:
		if err != nil {
			m.logger.Printf("auth update for %s failed: %v", server, err)
			return false
		}
		return true
	case <-timer.C:
		m.logger.Printf("auth update for %s timed out", server)
		return false
	}
}

// Shutdown signals the worker, waits a bounded time for it to release the
// resource stack, and always resets to a clean idle state so a stuck
// shutdown cannot leave the manager half-open. The manager is reusable
// afterward.
func (m *ConnectionManager) Shutdown() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return
	}
	m.state = StateShuttingDown
	shutdownCh, doneCh := m.shutdownCh, m.doneCh
	m.mu.Unlock()

	if shutdownCh != nil {
		close(shutdownCh)
		select {
		case <-doneCh:
		case <-time.After(ShutdownTimeout):
			m.logger.Printf("shutdown timed out, forcing idle state")
		}
	}

	m.mu.Lock()
	m.tools = make(map[string]Tool)
	m.strategies = nil
	m.tasks = nil
	m.shutdownCh = nil
	m.doneCh = nil
	m.state = StateIdle
	m.mu.Unlock()
}
