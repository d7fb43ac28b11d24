// Package mcp serves crewx agents to MCP clients over stdio JSON-RPC 2.0.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "crewx"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *JSONRPCRequest) IsNotification() bool { return len(r.ID) == 0 }

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Tool represents an MCP tool that can be called.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	// Execute returns the text shown to the client. A non-nil error is
	// reported as a tool failure, not as a protocol error.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// ToolInfo represents tool metadata for listing.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// TextContent is one MCP content block.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Server is the MCP server implementation.
type Server struct {
	version string

	mu    sync.RWMutex
	tools map[string]Tool

	writeMu sync.Mutex
	enc     *json.Encoder
}

// NewServer creates a server reporting version in serverInfo.
func NewServer(version string) *Server {
	return &Server{version: version, tools: make(map[string]Tool)}
}

// RegisterTool registers a tool with the server.
func (s *Server) RegisterTool(tool Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.Name()] = tool
}

// Run reads newline-delimited requests from in and writes responses to out
// until in is exhausted or ctx is cancelled. Requests are handled
// concurrently, so a long agent call does not block ping or tools/list.
//
// When ctx is cancelled and in is an io.Closer, in is closed so the read
// loop exits. A reader without Close keeps its goroutine blocked until the
// next line or EOF arrives.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.enc = json.NewEncoder(out)
	reader := bufio.NewReader(in)

	if c, ok := in.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			if err := c.Close(); err != nil {
				slog.Debug("MCP input close failed", "err", err)
			}
		})
		defer stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- fmt.Errorf("error reading input: %w", err)
				}
				return
			}
		}
	}()

	slog.Info("MCP server ready", "protocol", ProtocolVersion)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var req JSONRPCRequest
			if err := json.Unmarshal(line, &req); err != nil {
				s.write(errorResponse(nil, ParseError, "Parse error", err.Error()))
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if resp := s.handleRequest(ctx, &req); resp != nil {
					s.write(resp)
				}
			}()
		}
	}
}

func (s *Server) write(resp *JSONRPCResponse) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		slog.Error("MCP write failed", "err", err)
	}
}

func (s *Server) handleRequest(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, InvalidRequest, "Invalid Request", "jsonrpc must be 2.0")
	}
	slog.Debug("MCP request", "method", req.Method)

	var resp *JSONRPCResponse
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "tools/list":
		resp = s.handleToolsList(req)
	case "tools/call":
		resp = s.handleToolsCall(ctx, req)
	case "ping":
		resp = successResponse(req.ID, map[string]any{})
	default:
		resp = errorResponse(req.ID, MethodNotFound, "Method not found", req.Method)
	}
	if req.IsNotification() {
		return nil
	}
	return resp
}

func (s *Server) handleInitialize(req *JSONRPCRequest) *JSONRPCResponse {
	return successResponse(req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    ServerName,
			"version": s.version,
		},
	})
}

func (s *Server) handleToolsList(req *JSONRPCRequest) *JSONRPCResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]ToolInfo, 0, len(s.tools))
	for _, tool := range s.tools {
		tools = append(tools, ToolInfo{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	slices.SortFunc(tools, func(a, b ToolInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})

	return successResponse(req.ID, map[string]any{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, InvalidParams, "Invalid params", err.Error())
	}

	s.mu.RLock()
	tool, ok := s.tools[params.Name]
	s.mu.RUnlock()
	if !ok {
		return errorResponse(req.ID, InvalidParams, "Tool not found", params.Name)
	}

	text, err := tool.Execute(ctx, params.Arguments)
	if err != nil {
		slog.Warn("MCP tool failed", "tool", params.Name, "err", err)
		return successResponse(req.ID, CallToolResult{
			Content: []TextContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}
	return successResponse(req.ID, CallToolResult{
		Content: []TextContent{{Type: "text", Text: text}},
	})
}

func successResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
	}
}
