// Package config builds the process configuration exactly once, at
// startup. Nothing else in the program reads the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
	"github.com/golovatskygroup/mcp-chat/internal/adapter/jira"
	"github.com/golovatskygroup/mcp-chat/internal/httpcache"
	"github.com/golovatskygroup/mcp-chat/internal/llm"
)

type Config struct {
	LLM           llm.Config
	MaxToolRounds int
	Timeout       time.Duration

	// Direct Jira REST access, used when complete.
	Jira jira.Config

	// Atlassian's hosted MCP server.
	AtlassianMCPURL string

	// Extra MCP servers from the optional YAML file.
	Servers []adapter.ServerConfig
}

// FromEnv reads the full configuration from the environment and, when
// MCP_CHAT_SERVERS_FILE points at one, a YAML server list.
func FromEnv() (Config, error) {
	cfg := Config{
		LLM: llm.Config{
			APIKey:    strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
			Model:     strings.TrimSpace(os.Getenv("MCP_CHAT_MODEL")),
			BaseURL:   strings.TrimSpace(os.Getenv("MCP_CHAT_LLM_BASE_URL")),
			MaxTokens: envInt("MCP_CHAT_MAX_TOKENS", 0),
		},
		MaxToolRounds:   envInt("MCP_CHAT_MAX_TOOL_ROUNDS", 0),
		Timeout:         envDurationMS("MCP_CHAT_TIMEOUT_MS", 30*time.Second),
		AtlassianMCPURL: strings.TrimSpace(os.Getenv("ATLASSIAN_MCP_URL")),
		Jira: jira.Config{
			BaseURL:    strings.TrimSpace(os.Getenv("JIRA_BASE_URL")),
			APIVersion: envInt("JIRA_API_VERSION", 0),
			Email:      strings.TrimSpace(os.Getenv("JIRA_EMAIL")),
			APIToken:   strings.TrimSpace(os.Getenv("JIRA_API_TOKEN")),
			PAT:        strings.TrimSpace(os.Getenv("JIRA_PAT")),
			Cache: httpcache.Config{
				Enabled:    envBool("MCP_CHAT_HTTP_CACHE_ENABLED"),
				TTL:        time.Duration(envInt("MCP_CHAT_HTTP_CACHE_TTL_SECONDS", 60)) * time.Second,
				MaxEntries: envInt("MCP_CHAT_HTTP_CACHE_MAX_ENTRIES", 512),
			},
		},
	}
	cfg.LLM.Timeout = cfg.Timeout
	cfg.Jira.Timeout = cfg.Timeout

	if path := strings.TrimSpace(os.Getenv("MCP_CHAT_SERVERS_FILE")); path != "" {
		servers, err := LoadServersFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Servers = servers
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	return cfg, nil
}

// LoadServersFile parses a YAML list of MCP server entries:
//
//	servers:
//	  - name: atlassian
//	    transport: sse
//	    url: https://mcp.atlassian.com/v1/sse
//	  - name: local
//	    transport: stdio
//	    command: my-mcp-server
//	    args: ["--flag"]
func LoadServersFile(path string) ([]adapter.ServerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read servers file: %w", err)
	}
	var doc struct {
		Servers []adapter.ServerConfig `yaml:"servers"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse servers file: %w", err)
	}
	seen := map[string]bool{}
	for _, s := range doc.Servers {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("servers file: entry with empty name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("servers file: duplicate server %q", s.Name)
		}
		seen[s.Name] = true
	}
	return doc.Servers, nil
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDurationMS(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}
