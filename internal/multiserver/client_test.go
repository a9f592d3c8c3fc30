package multiserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

type fakeAdapter struct {
	name       string
	connectErr error
	caps       []adapter.Capability
	intents    []adapter.ToolIntent
	execResult adapter.ToolResult
	execErr    error
	executed   []string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeAdapter) Discover(ctx context.Context) ([]adapter.Capability, error) {
	return f.caps, nil
}

func (f *fakeAdapter) ParseQueryIntent(query string) []adapter.ToolIntent {
	return f.intents
}

func (f *fakeAdapter) ExecuteTool(ctx context.Context, tool string, args map[string]any) (adapter.ToolResult, error) {
	f.executed = append(f.executed, tool)
	if f.execErr != nil {
		return adapter.ToolResult{}, f.execErr
	}
	return f.execResult, nil
}

func silent(string, ...any) {}

func newTestClient(t *testing.T, adapters ...adapter.ServerAdapter) (*Client, *adapter.Registry) {
	t.Helper()
	reg := adapter.NewRegistry()
	for _, a := range adapters {
		if err := reg.Register(a); err != nil {
			t.Fatalf("register %s: %v", a.Name(), err)
		}
	}
	c := New(reg)
	c.SetLogf(silent)
	return c, reg
}

func TestInitializeAllPartialFailure(t *testing.T) {
	good := &fakeAdapter{name: "good", caps: []adapter.Capability{{Name: "t"}}}
	bad := &fakeAdapter{name: "bad", connectErr: errors.New("refused")}
	c, reg := newTestClient(t, good, bad)

	report := c.InitializeAll(context.Background())

	if report.ReadyCount() != 1 {
		t.Fatalf("ReadyCount = %d, want 1", report.ReadyCount())
	}
	if len(report.Failed) != 1 || report.Failed[0] != "bad" {
		t.Fatalf("Failed = %v", report.Failed)
	}
	if report.Errors["bad"] == nil {
		t.Fatal("expected recorded error for bad adapter")
	}

	caps := reg.AggregateCapabilities()
	if _, _, ok := caps.Lookup("good:t"); !ok {
		t.Fatal("good adapter capabilities not recorded")
	}
	if len(caps["bad"]) != 0 {
		t.Fatal("failed adapter must contribute no capabilities")
	}
}

func TestInitializeAllKeepsRegistrationOrder(t *testing.T) {
	a := &fakeAdapter{name: "zz"}
	b := &fakeAdapter{name: "aa"}
	c, _ := newTestClient(t, a, b)

	report := c.InitializeAll(context.Background())
	if len(report.Ready) != 2 || report.Ready[0] != "zz" || report.Ready[1] != "aa" {
		t.Fatalf("Ready = %v, want registration order", report.Ready)
	}
}

func TestExecuteQueryFansOutIntents(t *testing.T) {
	jira := &fakeAdapter{
		name:       "jira",
		intents:    []adapter.ToolIntent{{Tool: "getJiraIssue", Args: map[string]any{"issueKey": "KAN-4"}}},
		execResult: adapter.ToolResult{Content: "issue data"},
	}
	quiet := &fakeAdapter{name: "quiet"}
	c, _ := newTestClient(t, jira, quiet)
	c.InitializeAll(context.Background())

	results, err := c.ExecuteQuery(context.Background(), "details for KAN-4")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Adapter != "jira" || r.Tool != "getJiraIssue" || r.Result.Content != "issue data" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if len(quiet.executed) != 0 {
		t.Fatal("adapter with no intents must not execute")
	}
}

func TestExecuteQueryRecordsAdapterFailure(t *testing.T) {
	broken := &fakeAdapter{
		name:    "broken",
		intents: []adapter.ToolIntent{{Tool: "x", Args: map[string]any{}}},
		execErr: errors.New("transport down"),
	}
	c, _ := newTestClient(t, broken)
	c.InitializeAll(context.Background())

	results, err := c.ExecuteQuery(context.Background(), "anything")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(results) != 1 || !results[0].Result.IsError {
		t.Fatalf("expected error result, got %+v", results)
	}
}

func TestCallToolRouting(t *testing.T) {
	jira := &fakeAdapter{
		name:       "jira",
		caps:       []adapter.Capability{{Name: "getJiraIssue"}},
		execResult: adapter.ToolResult{Content: "ok"},
	}
	c, _ := newTestClient(t, jira)
	c.InitializeAll(context.Background())

	t.Run("known tool dispatches", func(t *testing.T) {
		res, err := c.CallTool(context.Background(), "jira:getJiraIssue", map[string]any{})
		if err != nil || res.Content != "ok" {
			t.Fatalf("CallTool = %+v, %v", res, err)
		}
	})

	t.Run("unqualified name rejected", func(t *testing.T) {
		_, err := c.CallTool(context.Background(), "getJiraIssue", nil)
		var re *adapter.RoutingError
		if !errors.As(err, &re) {
			t.Fatalf("expected RoutingError, got %v", err)
		}
	})

	t.Run("unknown adapter rejected", func(t *testing.T) {
		_, err := c.CallTool(context.Background(), "nope:getJiraIssue", nil)
		var re *adapter.RoutingError
		if !errors.As(err, &re) {
			t.Fatalf("expected RoutingError, got %v", err)
		}
	})

	t.Run("undiscovered tool rejected", func(t *testing.T) {
		_, err := c.CallTool(context.Background(), "jira:deleteEverything", nil)
		var re *adapter.RoutingError
		if !errors.As(err, &re) {
			t.Fatalf("expected RoutingError, got %v", err)
		}
		if len(jira.executed) > 1 {
			t.Fatal("rejected tool must not reach the adapter")
		}
	})
}

func TestCallToolValidatesArgsAgainstSchema(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"issueKey":{"type":"string"}},"required":["issueKey"]}`)
	jira := &fakeAdapter{
		name:       "jira",
		caps:       []adapter.Capability{{Name: "getJiraIssue", InputSchema: schema}},
		execResult: adapter.ToolResult{Content: "ok"},
	}
	c, _ := newTestClient(t, jira)
	c.InitializeAll(context.Background())

	res, err := c.CallTool(context.Background(), "jira:getJiraIssue", map[string]any{})
	if err != nil {
		t.Fatalf("validation failure must be a business error: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "invalid arguments") {
		t.Fatalf("expected invalid-arguments result, got %+v", res)
	}
	if len(jira.executed) != 0 {
		t.Fatal("invalid args must not reach the adapter")
	}

	res, err = c.CallTool(context.Background(), "jira:getJiraIssue", map[string]any{"issueKey": "KAN-4"})
	if err != nil || res.IsError {
		t.Fatalf("valid args rejected: %+v, %v", res, err)
	}
}
