package capability

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/orakle-ai/orakle/internal/mcp"
	"github.com/orakle-ai/orakle/internal/telemetry"
)

const (
	KindSkill   = "skill"
	KindMCPTool = "mcp_tool"
)

// Capability is one invokable unit: a built-in skill or a remote MCP tool,
// both exposed through the same name/schema/run surface.
type Capability struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Kind        string         `json:"kind"`
	InputSchema map[string]any `json:"input_schema,omitempty"`

	run func(ctx context.Context, args map[string]any) (any, error)
}

// Runner is the contract a built-in skill satisfies.
type Runner interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Run(ctx context.Context, args map[string]any) (any, error)
}

// ToolExecutor is the slice of the MCP connection manager the registry
// needs. Satisfied by *mcp.ConnectionManager.
type ToolExecutor interface {
	ConnectAndDiscover(ctx context.Context) (map[string]mcp.Tool, error)
	ExecuteTool(ctx context.Context, prefixedName string, args map[string]any) (any, error)
}

// Registry holds every capability and a full-text matcher over them. The
// capability map and matcher are rebuilt wholesale on Refresh and swapped
// under the lock, so readers never see a partial view.
type Registry struct {
	logger  *log.Logger
	metrics *telemetry.Telemetry

	mu      sync.RWMutex
	manager ToolExecutor
	skills  map[string]Runner
	caps    map[string]Capability
	matcher *Matcher
}

func NewRegistry(metrics *telemetry.Telemetry) *Registry {
	return &Registry{
		logger:  log.New(log.Writer(), "[CAPABILITY] ", log.LstdFlags),
		metrics: metrics,
		skills:  make(map[string]Runner),
		caps:    make(map[string]Capability),
	}
}

// RegisterSkill adds a built-in skill. Takes effect on the next Refresh.
func (r *Registry) RegisterSkill(s Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Name()] = s
}

// AttachManager wires the MCP connection manager whose tools Refresh
// should surface.
func (r *Registry) AttachManager(m ToolExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manager = m
}

// Refresh rediscovers MCP tools, merges them with registered skills and
// atomically swaps in the new capability map and matcher. Skills shadow
// MCP tools on name collision.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.RLock()
	manager := r.manager
	skills := make([]Runner, 0, len(r.skills))
	for _, s := range r.skills {
		skills = append(skills, s)
	}
	r.mu.RUnlock()

	caps := make(map[string]Capability)
	if manager != nil {
		tools, err := manager.ConnectAndDiscover(ctx)
		if err != nil {
			return fmt.Errorf("discovering tools: %w", err)
		}
		for name, t := range tools {
			tool := t
			caps[name] = Capability{
				Name:        name,
				Description: tool.Description,
				Kind:        KindMCPTool,
				InputSchema: tool.InputSchema,
				run: func(ctx context.Context, args map[string]any) (any, error) {
					return manager.ExecuteTool(ctx, tool.PrefixedName, args)
				},
			}
		}
	}
	for _, s := range skills {
		skill := s
		if _, dup := caps[skill.Name()]; dup {
			r.logger.Printf("skill %s shadows an MCP tool of the same name", skill.Name())
		}
		caps[skill.Name()] = Capability{
			Name:        skill.Name(),
			Description: skill.Description(),
			Kind:        KindSkill,
			InputSchema: skill.InputSchema(),
			run:         skill.Run,
		}
	}

	list := make([]Capability, 0, len(caps))
	for _, c := range caps {
		list = append(list, c)
	}
	matcher, err := NewMatcher(list)
	if err != nil {
		return fmt.Errorf("building matcher: %w", err)
	}

	r.mu.Lock()
	old := r.matcher
	r.caps = caps
	r.matcher = matcher
	r.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	r.logger.Printf("registry refreshed with %d capabilities", len(caps))
	return nil
}

// List returns all capabilities sorted by name.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run invokes a capability by name.
func (r *Registry) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	c, ok := r.caps[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown capability %q", name)
	}
	out, err := c.run(ctx, args)
	r.metrics.RecordCapabilityRun(c.Kind, err)
	return out, err
}

// Match returns up to k capabilities ranked by relevance to q.
func (r *Registry) Match(q string, k int) ([]Capability, error) {
	r.mu.RLock()
	matcher := r.matcher
	r.mu.RUnlock()
	if matcher == nil {
		return nil, nil
	}
	names, err := matcher.Match(q, k)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(names))
	for _, name := range names {
		if c, ok := r.caps[name]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
