package mcpconn

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

func TestConnectWhileConnectedIsNoOp(t *testing.T) {
	// The bogus transport makes any attempt to rebuild the client fail,
	// so a nil error proves the second Connect never got that far.
	s := New(adapter.ServerConfig{Name: "x", Transport: "bogus"}, time.Second)
	s.connected = true

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect on a live session: %v", err)
	}
}

func TestConnectRejectsUnsupportedTransport(t *testing.T) {
	s := New(adapter.ServerConfig{Name: "x", Transport: "bogus"}, time.Second)
	err := s.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported transport") {
		t.Fatalf("expected unsupported transport error, got %v", err)
	}
}

func TestCallsFailWhenNotConnected(t *testing.T) {
	s := New(adapter.ServerConfig{Name: "x", Transport: adapter.TransportSSE, URL: "http://localhost:1"}, time.Second)

	if _, err := s.ListTools(context.Background()); err == nil {
		t.Fatal("ListTools on unconnected session must fail")
	}
	if _, err := s.CallTool(context.Background(), "tool", nil); err == nil {
		t.Fatal("CallTool on unconnected session must fail")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on unconnected session: %v", err)
	}
}

func TestFlattenContentJoinsTextBlocks(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "first"},
			mcp.TextContent{Type: "text", Text: "second"},
		},
	}
	if got := flattenContent(result); got != "first\nsecond" {
		t.Fatalf("flattenContent = %q", got)
	}
}
