// Package generic adapts an arbitrary MCP server. It has no query
// rules of its own; its tools reach the conversation only through the
// model's tool selection.
package generic

import (
	"context"
	"time"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
	"github.com/golovatskygroup/mcp-chat/internal/mcpconn"
)

type Adapter struct {
	cfg     adapter.ServerConfig
	session *mcpconn.Session
}

func New(cfg adapter.ServerConfig, timeout time.Duration) *Adapter {
	return &Adapter{cfg: cfg, session: mcpconn.New(cfg, timeout)}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.session.Connect(ctx); err != nil {
		return &adapter.ConnectionError{Server: a.cfg.Name, Err: err}
	}
	return nil
}

func (a *Adapter) Discover(ctx context.Context) ([]adapter.Capability, error) {
	caps, err := a.session.ListTools(ctx)
	if err != nil {
		return nil, &adapter.DiscoveryError{Server: a.cfg.Name, Err: err}
	}
	return caps, nil
}

func (a *Adapter) ParseQueryIntent(query string) []adapter.ToolIntent {
	return nil
}

func (a *Adapter) ExecuteTool(ctx context.Context, tool string, args map[string]any) (adapter.ToolResult, error) {
	res, err := a.session.CallTool(ctx, tool, args)
	if err != nil {
		return adapter.ToolResult{}, &adapter.ExecutionError{Server: a.cfg.Name, Tool: tool, Err: err}
	}
	return res, nil
}

func (a *Adapter) Close() error { return a.session.Close() }
