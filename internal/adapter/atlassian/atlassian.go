// Package atlassian adapts the hosted Atlassian MCP server (Jira +
// Confluence tools behind mcp.atlassian.com) to the adapter contract.
// OAuth is handled entirely by the remote server; this side only speaks
// the MCP transport.
package atlassian

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
	"github.com/golovatskygroup/mcp-chat/internal/mcpconn"
)

// DefaultURL is the hosted Atlassian MCP endpoint.
const DefaultURL = "https://mcp.atlassian.com/v1/sse"

// session is the slice of mcpconn.Session the adapter needs; tests
// substitute a stub.
type session interface {
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]adapter.Capability, error)
	CallTool(ctx context.Context, name string, args map[string]any) (adapter.ToolResult, error)
	Close() error
}

// Adapter is the Atlassian-flavored ServerAdapter.
type Adapter struct {
	name    string
	session session

	mu      sync.Mutex
	cloudID string
}

// New builds an adapter for the given server config. A stdio config with
// no command defaults to bridging through "npx -y mcp-remote <url>";
// SSE/streamable-http connect directly.
func New(cfg adapter.ServerConfig, timeout time.Duration) *Adapter {
	return &Adapter{
		name:    cfg.Name,
		session: mcpconn.New(withStdioDefault(cfg), timeout),
	}
}

func withStdioDefault(cfg adapter.ServerConfig) adapter.ServerConfig {
	if cfg.Transport == adapter.TransportStdio && cfg.Command == "" {
		cfg.Command = "npx"
		cfg.Args = []string{"-y", "mcp-remote", cfg.URL}
	}
	return cfg
}

func newWithSession(name string, s session) *Adapter {
	return &Adapter{name: name, session: s}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.session.Connect(ctx); err != nil {
		return &adapter.ConnectionError{Server: a.name, Err: err}
	}
	return nil
}

func (a *Adapter) Discover(ctx context.Context) ([]adapter.Capability, error) {
	caps, err := a.session.ListTools(ctx)
	if err != nil {
		return nil, &adapter.DiscoveryError{Server: a.name, Err: err}
	}
	return caps, nil
}

// Close releases the underlying session.
func (a *Adapter) Close() error { return a.session.Close() }

// ExecuteTool builds the provider-specific arguments for the known
// Atlassian tools, injects the memoized cloudId, and normalizes the
// response before it enters the transcript.
func (a *Adapter) ExecuteTool(ctx context.Context, tool string, args map[string]any) (adapter.ToolResult, error) {
	cloudID := a.lookupCloudID(ctx)

	callArgs, err := a.buildArgs(ctx, tool, args, cloudID)
	if err != nil {
		return adapter.ToolResult{}, &adapter.ExecutionError{Server: a.name, Tool: tool, Err: err}
	}

	res, err := a.session.CallTool(ctx, tool, callArgs)
	if err != nil {
		return adapter.ToolResult{}, &adapter.ExecutionError{Server: a.name, Tool: tool, Err: err}
	}

	if !res.IsError && isConfluenceTool(tool) {
		res.Content = normalizeConfluenceContent(res.Content)
	}
	return res, nil
}

func (a *Adapter) buildArgs(ctx context.Context, tool string, args map[string]any, cloudID string) (map[string]any, error) {
	out := make(map[string]any, len(args)+2)

	switch tool {
	case "searchJiraIssuesUsingJql":
		jql, _ := args["jql"].(string)
		if strings.TrimSpace(jql) == "" {
			return nil, fmt.Errorf("jql is required")
		}
		out["jql"] = jql
		out["maxResults"] = 20

	case "getJiraIssue":
		key, _ := args["issueIdOrKey"].(string)
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("issueIdOrKey is required")
		}
		out["issueIdOrKey"] = key

	case "createJiraIssue":
		query, _ := args["query"].(string)
		parsed, err := a.parseCreateIssueRequest(ctx, query)
		if err != nil {
			return nil, err
		}
		out = parsed

	case "getConfluenceSpaces":
		// cloudId only.

	case "searchConfluenceUsingCql":
		terms, _ := args["terms"].(string)
		if cql, ok := args["cql"].(string); ok && strings.TrimSpace(cql) != "" {
			out["cql"] = cql
		} else {
			out["cql"] = `text ~ "` + terms + `"`
		}

	default:
		// Generic passthrough for any other discovered tool.
		for k, v := range args {
			out[k] = v
		}
	}

	if cloudID != "" {
		out["cloudId"] = cloudID
	}
	return out, nil
}

// lookupCloudID resolves and memoizes the Atlassian cloud id used for API
// routing. Best effort: some tools work without it.
func (a *Adapter) lookupCloudID(ctx context.Context) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cloudID != "" {
		return a.cloudID
	}

	res, err := a.session.CallTool(ctx, "getAccessibleAtlassianResources", map[string]any{})
	if err != nil || res.IsError {
		return ""
	}

	var resources []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(res.Content), &resources); err != nil || len(resources) == 0 {
		return ""
	}
	a.cloudID = resources[0].ID
	return a.cloudID
}

var (
	titleRe = regexp.MustCompile(`(?i)title[:\s]+"([^"]+)"`)
	summRe  = regexp.MustCompile(`(?i)summary[:\s]+"([^"]+)"`)
	descRe  = regexp.MustCompile(`(?i)description[:\s]+"([^"]+)"`)
	typeRe  = regexp.MustCompile(`(?i)(?:issue )?type[:\s]+"([^"]+)"`)
)

// parseCreateIssueRequest extracts create-issue fields from the raw query
// ('create a ticket title:"..." description:"..."').
func (a *Adapter) parseCreateIssueRequest(ctx context.Context, query string) (map[string]any, error) {
	summary := "New Issue"
	if m := titleRe.FindStringSubmatch(query); m != nil {
		summary = m[1]
	} else if m := summRe.FindStringSubmatch(query); m != nil {
		summary = m[1]
	}

	description := "No description provided"
	if m := descRe.FindStringSubmatch(query); m != nil {
		description = m[1]
	}

	issueType := "Task"
	if m := typeRe.FindStringSubmatch(query); m != nil {
		issueType = m[1]
	}

	return map[string]any{
		"projectKey":  a.defaultProjectKey(ctx),
		"summary":     summary,
		"description": description,
		"issueType":   issueType,
	}, nil
}

// fallbackProjectKey is used when no project can be listed.
const fallbackProjectKey = "KAN"

func (a *Adapter) defaultProjectKey(ctx context.Context) string {
	res, err := a.session.CallTool(ctx, "getVisibleJiraProjects", map[string]any{})
	if err != nil || res.IsError {
		return fallbackProjectKey
	}

	var projects []struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal([]byte(res.Content), &projects); err != nil || len(projects) == 0 {
		return fallbackProjectKey
	}
	if projects[0].Key == "" {
		return fallbackProjectKey
	}
	return projects[0].Key
}

func isConfluenceTool(tool string) bool {
	return strings.Contains(strings.ToLower(tool), "confluence")
}
