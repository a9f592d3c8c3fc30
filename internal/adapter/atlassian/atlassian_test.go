package atlassian

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

// stubSession scripts CallTool responses per tool name and records the
// calls it saw.
type stubSession struct {
	responses map[string]adapter.ToolResult
	errs      map[string]error
	calls     []stubCall
}

type stubCall struct {
	tool string
	args map[string]any
}

func (s *stubSession) Connect(ctx context.Context) error { return nil }
func (s *stubSession) Close() error                      { return nil }

func (s *stubSession) ListTools(ctx context.Context) ([]adapter.Capability, error) {
	return []adapter.Capability{{Name: "getJiraIssue"}}, nil
}

func (s *stubSession) CallTool(ctx context.Context, name string, args map[string]any) (adapter.ToolResult, error) {
	s.calls = append(s.calls, stubCall{tool: name, args: args})
	if err, ok := s.errs[name]; ok {
		return adapter.ToolResult{}, err
	}
	if res, ok := s.responses[name]; ok {
		return res, nil
	}
	return adapter.ToolResult{Content: "{}"}, nil
}

func (s *stubSession) lastCallTo(tool string) (stubCall, bool) {
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].tool == tool {
			return s.calls[i], true
		}
	}
	return stubCall{}, false
}

func TestExecuteToolInjectsAndMemoizesCloudID(t *testing.T) {
	s := &stubSession{responses: map[string]adapter.ToolResult{
		"getAccessibleAtlassianResources": {Content: `[{"id":"cloud-123"}]`},
		"getJiraIssue":                    {Content: "issue body"},
	}}
	a := newWithSession("atlassian", s)

	for i := 0; i < 2; i++ {
		res, err := a.ExecuteTool(context.Background(), "getJiraIssue", map[string]any{"issueIdOrKey": "KAN-4"})
		if err != nil {
			t.Fatalf("ExecuteTool: %v", err)
		}
		if res.Content != "issue body" {
			t.Fatalf("content = %q", res.Content)
		}
	}

	call, ok := s.lastCallTo("getJiraIssue")
	if !ok {
		t.Fatal("getJiraIssue never called")
	}
	if call.args["cloudId"] != "cloud-123" {
		t.Fatalf("cloudId not injected: %+v", call.args)
	}

	lookups := 0
	for _, c := range s.calls {
		if c.tool == "getAccessibleAtlassianResources" {
			lookups++
		}
	}
	if lookups != 1 {
		t.Fatalf("expected cloud id lookup to be memoized, saw %d lookups", lookups)
	}
}

func TestStdioConfigDefaultsToMCPRemoteBridge(t *testing.T) {
	got := withStdioDefault(adapter.ServerConfig{
		Name:      "atlassian",
		Transport: adapter.TransportStdio,
		URL:       "https://mcp.atlassian.com/v1/sse",
	})
	if got.Command != "npx" {
		t.Fatalf("command = %q, want npx", got.Command)
	}
	want := []string{"-y", "mcp-remote", "https://mcp.atlassian.com/v1/sse"}
	if len(got.Args) != len(want) {
		t.Fatalf("args = %v, want %v", got.Args, want)
	}
	for i := range want {
		if got.Args[i] != want[i] {
			t.Fatalf("args = %v, want %v", got.Args, want)
		}
	}

	explicit := withStdioDefault(adapter.ServerConfig{
		Transport: adapter.TransportStdio,
		Command:   "my-bridge",
	})
	if explicit.Command != "my-bridge" || len(explicit.Args) != 0 {
		t.Fatalf("explicit command must win: %+v", explicit)
	}
}

func TestExecuteToolMissingIssueKeyIsHardError(t *testing.T) {
	a := newWithSession("atlassian", &stubSession{})
	_, err := a.ExecuteTool(context.Background(), "getJiraIssue", map[string]any{})
	var ee *adapter.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
}

func TestExecuteToolBusinessErrorPassesThrough(t *testing.T) {
	s := &stubSession{responses: map[string]adapter.ToolResult{
		"getJiraIssue": {Content: "Issue does not exist", IsError: true},
	}}
	a := newWithSession("atlassian", s)

	res, err := a.ExecuteTool(context.Background(), "getJiraIssue", map[string]any{"issueIdOrKey": "KAN-999"})
	if err != nil {
		t.Fatalf("business error must not be a Go error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
}

func TestExecuteToolNormalizesConfluenceStorageFormat(t *testing.T) {
	s := &stubSession{responses: map[string]adapter.ToolResult{
		"searchConfluenceUsingCql": {Content: "<p>Hello <strong>world</strong></p>"},
	}}
	a := newWithSession("atlassian", s)

	res, err := a.ExecuteTool(context.Background(), "searchConfluenceUsingCql", map[string]any{"terms": "hello"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if strings.Contains(res.Content, "<p>") {
		t.Fatalf("storage format not normalized: %q", res.Content)
	}
	if !strings.Contains(res.Content, "Hello world") {
		t.Fatalf("text lost in normalization: %q", res.Content)
	}

	call, _ := s.lastCallTo("searchConfluenceUsingCql")
	if cql, _ := call.args["cql"].(string); !strings.Contains(cql, `text ~ "hello"`) {
		t.Fatalf("cql not built from terms: %+v", call.args)
	}
}

func TestCreateIssueFallsBackToDefaultProject(t *testing.T) {
	s := &stubSession{errs: map[string]error{
		"getVisibleJiraProjects": errors.New("unavailable"),
	}}
	a := newWithSession("atlassian", s)

	_, err := a.ExecuteTool(context.Background(), "createJiraIssue",
		map[string]any{"query": `create a ticket title:"Broken build" description:"CI is red" type:"Bug"`})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}

	call, ok := s.lastCallTo("createJiraIssue")
	if !ok {
		t.Fatal("createJiraIssue never called")
	}
	if call.args["projectKey"] != fallbackProjectKey {
		t.Fatalf("projectKey = %v, want %s", call.args["projectKey"], fallbackProjectKey)
	}
	if call.args["summary"] != "Broken build" {
		t.Fatalf("summary = %v", call.args["summary"])
	}
	if call.args["description"] != "CI is red" {
		t.Fatalf("description = %v", call.args["description"])
	}
	if call.args["issueType"] != "Bug" {
		t.Fatalf("issueType = %v", call.args["issueType"])
	}
}

func TestCreateIssueDefaults(t *testing.T) {
	s := &stubSession{responses: map[string]adapter.ToolResult{
		"getVisibleJiraProjects": {Content: `[{"key":"OPS"}]`},
	}}
	a := newWithSession("atlassian", s)

	_, err := a.ExecuteTool(context.Background(), "createJiraIssue", map[string]any{"query": "create a ticket"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	call, _ := s.lastCallTo("createJiraIssue")
	if call.args["projectKey"] != "OPS" {
		t.Fatalf("projectKey = %v, want OPS", call.args["projectKey"])
	}
	if call.args["summary"] != "New Issue" || call.args["issueType"] != "Task" {
		t.Fatalf("defaults not applied: %+v", call.args)
	}
}
