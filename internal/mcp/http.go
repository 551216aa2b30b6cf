package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orakle-ai/orakle/config"
)

// HTTPStrategy speaks JSON-RPC to a remote MCP server over HTTP POST with
// bearer-token authentication. The token can be swapped while connected;
// every request rebuilds its Authorization header from the current value.
type HTTPStrategy struct {
	server  string
	url     string
	client  *http.Client
	timeout time.Duration

	mu    sync.RWMutex
	token string

	seq    atomic.Int64
	logger *log.Logger
}

func NewHTTPStrategy(server string, cfg config.MCPServerConfig) *HTTPStrategy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &HTTPStrategy{
		server:  server,
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		token:   cfg.Authentication.Token,
		logger:  log.New(log.Writer(), fmt.Sprintf("[MCP-HTTP %s] ", server), log.LstdFlags),
	}
}

// Connect verifies configuration and performs the initialize handshake.
// There is no long-lived transport to tear down, so nothing is pushed on
// the stack.
func (s *HTTPStrategy) Connect(ctx context.Context, _ *CloserStack) error {
	if s.url == "" {
		return &ConnectionError{Server: s.server, Err: errors.New("url is empty")}
	}
	if _, err := s.send(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "orakle", "version": "1.0"},
		"capabilities":    map[string]any{},
	}); err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return err
		}
		return &ConnectionError{Server: s.server, Err: fmt.Errorf("initialize: %w", err)}
	}
	return nil
}

func (s *HTTPStrategy) ListTools(ctx context.Context) ([]Tool, error) {
	res, err := s.send(ctx, "tools/list", nil)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &ToolDiscoveryError{Server: s.server, Err: err}
	}
	var raw any
	if err := json.Unmarshal(res, &raw); err != nil {
		return nil, &ToolDiscoveryError{Server: s.server, Err: err}
	}
	tools, err := DecodeToolList(raw, s.logger)
	if err != nil {
		return nil, &ToolDiscoveryError{Server: s.server, Err: err}
	}
	return tools, nil
}

func (s *HTTPStrategy) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	res, err := s.send(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &ToolExecutionError{Tool: name, Err: err}
	}
	var out any
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, &ToolExecutionError{Tool: name, Err: err}
	}
	return out, nil
}

// UpdateAuthToken swaps the bearer token used by subsequent requests.
func (s *HTTPStrategy) UpdateAuthToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *HTTPStrategy) Close() error { return nil }

func (s *HTTPStrategy) send(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	id := s.seq.Add(1)
	body, _ := json.Marshal(rpcReq{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxJSONFrameBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthenticationError{Server: s.server, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	var rr rpcResp
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rr.Error.Code, rr.Error.Message)
	}
	return rr.Result, nil
}
