package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orakle-ai/orakle/config"
)

const (
	// MaxJSONFrameBytes bounds one newline-delimited JSON-RPC frame.
	MaxJSONFrameBytes = 8 << 20

	defaultCallTimeout = 120 * time.Second
)

type rpcReq struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id,omitempty"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcResp struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StdioStrategy speaks newline-delimited JSON-RPC to a subprocess MCP
// server over its stdin/stdout. A dedicated goroutine owns the stdout
// pipe and routes responses to waiting callers by request id, so a
// server that never replies only costs the caller its deadline, never
// an unbounded blocking read.
type StdioStrategy struct {
	server  string
	command []string
	env     map[string]string
	timeout time.Duration

	mu  sync.Mutex // guards cmd, in and frame writes
	cmd *exec.Cmd
	in  io.WriteCloser

	seq atomic.Int64

	pmu     sync.Mutex
	pending map[int64]chan rpcResp

	readDone chan struct{} // closed when the read loop exits
	readErr  error         // set before readDone is closed

	logger *log.Logger
}

func NewStdioStrategy(server string, cfg config.MCPServerConfig) *StdioStrategy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &StdioStrategy{
		server:  server,
		command: cfg.Stdio.Command,
		env:     cfg.Stdio.Env,
		timeout: timeout,
		logger:  log.New(log.Writer(), fmt.Sprintf("[MCP-STDIO %s] ", server), log.LstdFlags),
	}
}

// Connect starts the subprocess, registers its teardown with the stack and
// runs the protocol initialize handshake.
func (s *StdioStrategy) Connect(ctx context.Context, stack *CloserStack) error {
	if len(s.command) == 0 {
		return &ConnectionError{Server: s.server, Err: errors.New("stdio_params.command is empty")}
	}
	cmd := exec.Command(s.command[0], s.command[1:]...)
	cmd.Env = os.Environ()
	for k, v := range s.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ConnectionError{Server: s.server, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ConnectionError{Server: s.server, Err: err}
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return &ConnectionError{Server: s.server, Err: err}
	}

	s.mu.Lock()
	s.cmd = cmd
	s.in = stdin
	s.mu.Unlock()
	s.pmu.Lock()
	s.pending = make(map[int64]chan rpcResp)
	s.readDone = make(chan struct{})
	s.readErr = nil
	s.pmu.Unlock()
	go s.readLoop(bufio.NewReader(stdout))

	stack.Push(s.Close)

	if _, err := s.send(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "orakle", "version": "1.0"},
		"capabilities":    map[string]any{},
	}); err != nil {
		return &ConnectionError{Server: s.server, Err: fmt.Errorf("initialize: %w", err)}
	}
	if err := s.notify("notifications/initialized"); err != nil {
		return &ConnectionError{Server: s.server, Err: err}
	}
	return nil
}

func (s *StdioStrategy) ListTools(ctx context.Context) ([]Tool, error) {
	res, err := s.send(ctx, "tools/list", nil)
	if err != nil {
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

func (s *StdioStrategy) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	res, err := s.send(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, &ToolExecutionError{Tool: name, Err: err}
	}
	var out any
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, &ToolExecutionError{Tool: name, Err: err}
	}
	return out, nil
}

// UpdateAuthToken is a no-op; stdio servers carry credentials in their env.
func (s *StdioStrategy) UpdateAuthToken(string) error { return nil }

// Close kills the subprocess. The resulting pipe error unblocks the read
// loop, which in turn fails every in-flight call.
func (s *StdioStrategy) Close() error {
	s.mu.Lock()
	cmd, in := s.cmd, s.in
	s.cmd, s.in = nil, nil
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}
	_ = in.Close()
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	return cmd.Wait()
}

// notify writes a JSON-RPC notification (no id, no response expected).
func (s *StdioStrategy) notify(method string) error {
	b, _ := json.Marshal(rpcReq{JSONRPC: "2.0", Method: method})
	return s.writeFrame(b)
}

func (s *StdioStrategy) writeFrame(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.in == nil {
		return errors.New("not connected")
	}
	_, err := s.in.Write(append(b, '\n'))
	return err
}

// send writes one request frame and waits for the matching response. The
// wait is bounded by the caller's context, the per-call timeout and the
// lifetime of the read loop, whichever ends first.
func (s *StdioStrategy) send(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	id := s.seq.Add(1)
	ch := make(chan rpcResp, 1)
	s.pmu.Lock()
	if s.pending == nil {
		s.pmu.Unlock()
		return nil, errors.New("not connected")
	}
	s.pending[id] = ch
	readDone := s.readDone
	s.pmu.Unlock()
	defer func() {
		s.pmu.Lock()
		delete(s.pending, id)
		s.pmu.Unlock()
	}()

	b, _ := json.Marshal(rpcReq{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err := s.writeFrame(b); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for %s", method)
	case <-readDone:
		// The response may have been routed just before the pipe closed.
		select {
		case resp := <-ch:
			if resp.Error != nil {
				return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
			}
			return resp.Result, nil
		default:
		}
		if err := s.readErr; err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

// readLoop owns the stdout pipe until it errors. Non-JSON lines and
// responses nobody is waiting for are skipped.
func (s *StdioStrategy) readLoop(r *bufio.Reader) {
	done := s.readDone
	defer close(done)
	for {
		line, err := readFrame(r)
		if err != nil {
			s.readErr = err
			return
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var resp rpcResp
		if json.Unmarshal(line, &resp) != nil {
			continue
		}
		s.pmu.Lock()
		ch := s.pending[resp.ID]
		s.pmu.Unlock()
		if ch != nil {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// readFrame assembles one newline-delimited frame, tolerating buffer-full
// fragmentation up to the frame size cap.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		frag, err := r.ReadBytes('\n')
		buf.Write(frag)
		if buf.Len() > MaxJSONFrameBytes {
			return nil, errors.New("frame too large")
		}
		if err == nil {
			return buf.Bytes(), nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
}
