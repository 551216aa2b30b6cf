package mcp

import (
	"fmt"
	"log"
)

// Tool is one remotely served tool. PrefixedName (server prefix + name) is
// the only externally visible identifier and must be unique across all
// connected servers.
type Tool struct {
	ServerName   string         `json:"server_name"`
	Name         string         `json:"name"`
	PrefixedName string         `json:"prefixed_name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
}

// DecodeToolList parses a tools/list payload. SDK versions disagree on the
// shape, so each known variant is tried explicitly: a bare array, or an
// object with a "tools" array. Malformed entries are logged and skipped
// rather than aborting the whole discovery.
func DecodeToolList(raw any, logger *log.Logger) ([]Tool, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		inner, ok := v["tools"].([]any)
		if !ok {
			return nil, fmt.Errorf("object payload has no tools array")
		}
		items = inner
	case nil:
		return nil, fmt.Errorf("empty payload")
	default:
		return nil, fmt.Errorf("unrecognized payload type %T", raw)
	}

	out := make([]Tool, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			logger.Printf("skipping malformed tool entry %d: not an object", i)
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			logger.Printf("skipping malformed tool entry %d: missing name", i)
			continue
		}
		t := Tool{Name: name}
		t.Description, _ = entry["description"].(string)
		if schema, ok := entry["input_schema"].(map[string]any); ok {
			t.InputSchema = schema
		} else if schema, ok := entry["inputSchema"].(map[string]any); ok {
			t.InputSchema = schema
		}
		out = append(out, t)
	}
	return out, nil
}
