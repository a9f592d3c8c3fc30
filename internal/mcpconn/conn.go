// Package mcpconn wraps the mark3labs/mcp-go client behind a small
// session type covering the three transports this client speaks: a local
// stdio subprocess, SSE, and streamable HTTP.
package mcpconn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

const protocolVersion = "2024-11-05"

// Session is one live MCP connection. Connect is idempotent; the zero
// value is not usable, construct with New.
type Session struct {
	cfg     adapter.ServerConfig
	timeout time.Duration

	mu        sync.Mutex
	client    client.MCPClient
	connected bool
}

func New(cfg adapter.ServerConfig, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Session{cfg: cfg, timeout: timeout}
}

// Connect creates the transport and performs the MCP handshake. Calling
// it again while connected is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	cl, err := s.createClient(ctx)
	if err != nil {
		return err
	}

	initCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = cl.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "mcp-chat",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		cl.Close()
		return fmt.Errorf("initialize failed: %w", err)
	}

	s.client = cl
	s.connected = true
	return nil
}

func (s *Session) createClient(ctx context.Context) (client.MCPClient, error) {
	switch s.cfg.Transport {
	case adapter.TransportStdio:
		var env []string
		for k, v := range s.cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cl, err := client.NewStdioMCPClient(s.cfg.Command, env, s.cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdio client: %w", err)
		}
		return cl, nil

	case adapter.TransportSSE:
		cl, err := client.NewSSEMCPClient(s.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE client: %w", err)
		}
		if err := cl.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start SSE client: %w", err)
		}
		return cl, nil

	case adapter.TransportStreamableHTTP:
		cl, err := client.NewStreamableHttpClient(s.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable-http client: %w", err)
		}
		if err := cl.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start streamable-http client: %w", err)
		}
		return cl, nil

	default:
		return nil, fmt.Errorf("unsupported transport: %s", s.cfg.Transport)
	}
}

// ListTools fetches the provider's tool list as adapter capabilities.
func (s *Session) ListTools(ctx context.Context) ([]adapter.Capability, error) {
	cl, err := s.current()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := cl.ListTools(callCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}

	caps := make([]adapter.Capability, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = nil
		}
		caps = append(caps, adapter.Capability{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return caps, nil
}

// CallTool executes one tool and flattens the text content. A provider
// result with IsError set comes back as ToolResult{IsError:true}, not as
// an error.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (adapter.ToolResult, error) {
	cl, err := s.current()
	if err != nil {
		return adapter.ToolResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := cl.CallTool(callCtx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return adapter.ToolResult{}, err
	}

	return adapter.ToolResult{
		Content: flattenContent(result),
		IsError: result.IsError,
	}, nil
}

// Close shuts the session down. Safe to call when never connected.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.connected = false
	return err
}

func (s *Session) current() (client.MCPClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.client == nil {
		return nil, fmt.Errorf("session %s not connected", s.cfg.Name)
	}
	return s.client, nil
}

func flattenContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if text, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
