package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

func writeServersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadServersFile(t *testing.T) {
	path := writeServersFile(t, `
servers:
  - name: atlassian
    transport: sse
    url: https://mcp.atlassian.com/v1/sse
  - name: local
    transport: stdio
    command: my-mcp-server
    args: ["--verbose"]
    env:
      TOKEN: abc
`)
	servers, err := LoadServersFile(path)
	if err != nil {
		t.Fatalf("LoadServersFile: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].Name != "atlassian" || servers[0].Transport != adapter.TransportSSE {
		t.Fatalf("server[0] = %+v", servers[0])
	}
	if servers[1].Command != "my-mcp-server" || servers[1].Args[0] != "--verbose" || servers[1].Env["TOKEN"] != "abc" {
		t.Fatalf("server[1] = %+v", servers[1])
	}
}

func TestLoadServersFileRejectsDuplicates(t *testing.T) {
	path := writeServersFile(t, `
servers:
  - name: dup
    transport: sse
    url: https://a.example
  - name: dup
    transport: sse
    url: https://b.example
`)
	if _, err := LoadServersFile(path); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestLoadServersFileRejectsEmptyName(t *testing.T) {
	path := writeServersFile(t, `
servers:
  - transport: sse
    url: https://a.example
`)
	if _, err := LoadServersFile(path); err == nil {
		t.Fatal("expected empty name error")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MCP_CHAT_MODEL", "test-model")
	t.Setenv("MCP_CHAT_MAX_TOOL_ROUNDS", "5")
	t.Setenv("MCP_CHAT_TIMEOUT_MS", "1500")
	t.Setenv("JIRA_BASE_URL", "https://x.atlassian.net")
	t.Setenv("JIRA_EMAIL", "dev@example.com")
	t.Setenv("JIRA_API_TOKEN", "tok")
	t.Setenv("MCP_CHAT_HTTP_CACHE_ENABLED", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Model != "test-model" {
		t.Fatalf("llm config = %+v", cfg.LLM)
	}
	if cfg.MaxToolRounds != 5 {
		t.Fatalf("MaxToolRounds = %d", cfg.MaxToolRounds)
	}
	if cfg.Timeout != 1500*time.Millisecond {
		t.Fatalf("Timeout = %v", cfg.Timeout)
	}
	if !cfg.Jira.Valid() {
		t.Fatalf("jira config should be valid: %+v", cfg.Jira)
	}
	if !cfg.Jira.Cache.Enabled {
		t.Fatal("cache should be enabled")
	}
	if cfg.Jira.Timeout != cfg.Timeout {
		t.Fatal("jira timeout should follow the global timeout")
	}
}

func TestFromEnvRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without ANTHROPIC_API_KEY")
	}
}
