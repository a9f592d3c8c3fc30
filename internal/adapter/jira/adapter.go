package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

// Adapter talks to a Jira instance over its REST API directly, without
// an MCP server in between. It exposes the same four-operation contract
// as the MCP-backed adapters so the registry treats them uniformly.
type Adapter struct {
	name string
	cfg  Config

	mu sync.Mutex
	c  *client
}

func New(name string, cfg Config) *Adapter {
	if name == "" {
		name = "jira"
	}
	return &Adapter{name: name, cfg: cfg}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.c != nil {
		return nil
	}
	c, err := newClient(a.cfg)
	if err != nil {
		return &adapter.ConnectionError{Server: a.name, Err: err}
	}
	// A cheap authenticated call verifies both reachability and creds.
	if _, err := c.myself(ctx); err != nil {
		return &adapter.ConnectionError{Server: a.name, Err: err}
	}
	a.c = c
	return nil
}

func (a *Adapter) client() (*client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.c == nil {
		return nil, fmt.Errorf("adapter %q not connected", a.name)
	}
	return a.c, nil
}

// Discover returns the fixed tool surface of the REST adapter. There is
// no remote catalog to query; the set is defined by what the client
// implements.
func (a *Adapter) Discover(ctx context.Context) ([]adapter.Capability, error) {
	if _, err := a.client(); err != nil {
		return nil, &adapter.DiscoveryError{Server: a.name, Err: err}
	}
	caps := make([]adapter.Capability, 0, len(toolCatalog))
	for _, t := range toolCatalog {
		caps = append(caps, adapter.Capability{
			Name:        t.name,
			Description: t.description,
			InputSchema: json.RawMessage(t.schema),
		})
	}
	return caps, nil
}

type toolDef struct {
	name        string
	description string
	schema      string
}

var toolCatalog = []toolDef{
	{
		name:        "getJiraIssue",
		description: "Get details for a single Jira issue by key",
		schema:      `{"type":"object","properties":{"issueKey":{"type":"string"}},"required":["issueKey"]}`,
	},
	{
		name:        "searchJiraIssues",
		description: "Search Jira issues with a JQL query",
		schema:      `{"type":"object","properties":{"jql":{"type":"string"},"maxResults":{"type":"integer"}},"required":["jql"]}`,
	},
	{
		name:        "getIssueComments",
		description: "List comments on a Jira issue",
		schema:      `{"type":"object","properties":{"issueKey":{"type":"string"}},"required":["issueKey"]}`,
	},
	{
		name:        "getIssueTransitions",
		description: "List available workflow transitions for a Jira issue",
		schema:      `{"type":"object","properties":{"issueKey":{"type":"string"}},"required":["issueKey"]}`,
	},
	{
		name:        "transitionJiraIssue",
		description: "Move a Jira issue through a workflow transition",
		schema:      `{"type":"object","properties":{"issueKey":{"type":"string"},"transitionId":{"type":"string"}},"required":["issueKey","transitionId"]}`,
	},
	{
		name:        "updateJiraIssue",
		description: "Update the summary or description of a Jira issue",
		schema:      `{"type":"object","properties":{"issueKey":{"type":"string"},"summary":{"type":"string"},"description":{"type":"string"}},"required":["issueKey"]}`,
	},
	{
		name:        "addComment",
		description: "Add a comment to a Jira issue",
		schema:      `{"type":"object","properties":{"issueKey":{"type":"string"},"body":{"type":"string"}},"required":["issueKey","body"]}`,
	},
	{
		name:        "createJiraIssue",
		description: "Create a new Jira issue",
		schema:      `{"type":"object","properties":{"projectKey":{"type":"string"},"summary":{"type":"string"},"description":{"type":"string"},"issueType":{"type":"string"}},"required":["projectKey","summary"]}`,
	},
	{
		name:        "listJiraProjects",
		description: "List Jira projects visible to the configured user",
		schema:      `{"type":"object","properties":{}}`,
	},
}

var issueKeyRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]*-\d+\b`)

const (
	maxIssueKeys  = 3
	jqlAssignedMe = "assignee = currentUser() ORDER BY updated DESC"
	jqlReportedMe = "reporter = currentUser() ORDER BY updated DESC"
	jqlMyIssues   = "assignee = currentUser() OR reporter = currentUser() ORDER BY updated DESC"
	jqlAllRecent  = "ORDER BY updated DESC"
)

// ParseQueryIntent applies the rule set over the lowered query. Issue
// keys win over everything except explicit comment/transition asks,
// which refine what to fetch for those keys.
func (a *Adapter) ParseQueryIntent(query string) []adapter.ToolIntent {
	q := strings.ToLower(query)

	keys := issueKeyRe.FindAllString(strings.ToUpper(query), -1)
	if len(keys) > maxIssueKeys {
		keys = keys[:maxIssueKeys]
	}

	wantComments := strings.Contains(q, "comment")
	wantTransitions := strings.Contains(q, "transition") ||
		strings.Contains(q, "move to") || strings.Contains(q, "change status")

	if len(keys) > 0 {
		var intents []adapter.ToolIntent
		for _, k := range keys {
			switch {
			case wantComments:
				intents = append(intents, adapter.ToolIntent{Tool: "getIssueComments", Args: map[string]any{"issueKey": k}})
			case wantTransitions:
				intents = append(intents, adapter.ToolIntent{Tool: "getIssueTransitions", Args: map[string]any{"issueKey": k}})
			default:
				intents = append(intents, adapter.ToolIntent{Tool: "getJiraIssue", Args: map[string]any{"issueKey": k}})
			}
		}
		return intents
	}

	switch {
	case containsAny(q, "create a ticket", "create ticket", "create issue", "new ticket", "new issue", "open a ticket"):
		args := parseCreateArgs(query)
		return []adapter.ToolIntent{{Tool: "createJiraIssue", Args: args}}
	case containsAny(q, "assigned to me", "my assigned"):
		return []adapter.ToolIntent{{Tool: "searchJiraIssues", Args: map[string]any{"jql": jqlAssignedMe}}}
	case containsAny(q, "reported by me", "i reported"):
		return []adapter.ToolIntent{{Tool: "searchJiraIssues", Args: map[string]any{"jql": jqlReportedMe}}}
	case containsAny(q, "my issues", "my tickets", "my tasks"):
		return []adapter.ToolIntent{{Tool: "searchJiraIssues", Args: map[string]any{"jql": jqlMyIssues}}}
	case containsAny(q, "all issues", "all tickets", "every issue", "recent issues"):
		return []adapter.ToolIntent{{Tool: "searchJiraIssues", Args: map[string]any{"jql": jqlAllRecent}}}
	case containsAny(q, "projects", "list project"):
		return []adapter.ToolIntent{{Tool: "listJiraProjects", Args: map[string]any{}}}
	case containsAny(q, "find", "search", "look for"):
		terms := extractSearchTerms(query)
		if terms != "" {
			jql := fmt.Sprintf("text ~ %q ORDER BY updated DESC", terms)
			return []adapter.ToolIntent{{Tool: "searchJiraIssues", Args: map[string]any{"jql": jql}}}
		}
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var createFieldRes = struct {
	summaryQuoted, summaryBare, description, issueType, project *regexp.Regexp
}{
	summaryQuoted: regexp.MustCompile(`(?i)(?:title|summary|called|named)[:\s]+["']([^"'\n]+)["']`),
	summaryBare:   regexp.MustCompile(`(?i)(?:title|summary|called|named)[:\s]+([^"'\n]+?)(?:\s+(?:with|in|description)\b|$)`),
	description:   regexp.MustCompile(`(?i)description[:\s]+["']?([^"'\n]+?)["']?$`),
	issueType:     regexp.MustCompile(`(?i)\b(bug|task|story|epic)\b`),
	project:       regexp.MustCompile(`(?i)(?:in|to|for)\s+project\s+([A-Z][A-Z0-9]*)`),
}

func parseCreateArgs(query string) map[string]any {
	args := map[string]any{
		"summary":   "New Issue",
		"issueType": "Task",
	}
	if m := createFieldRes.summaryQuoted.FindStringSubmatch(query); m != nil {
		args["summary"] = strings.TrimSpace(m[1])
	} else if m := createFieldRes.summaryBare.FindStringSubmatch(query); m != nil {
		args["summary"] = strings.TrimSpace(m[1])
	}
	if m := createFieldRes.description.FindStringSubmatch(query); m != nil {
		args["description"] = strings.TrimSpace(m[1])
	}
	if m := createFieldRes.issueType.FindStringSubmatch(query); m != nil {
		args["issueType"] = capitalize(strings.ToLower(m[1]))
	}
	if m := createFieldRes.project.FindStringSubmatch(query); m != nil {
		args["projectKey"] = m[1]
	}
	return args
}

var searchStrip = []string{"find", "search for", "search", "look for", "issues", "tickets", "about", "related to"}

func extractSearchTerms(query string) string {
	q := strings.ToLower(query)
	for _, w := range searchStrip {
		q = strings.ReplaceAll(q, w, " ")
	}
	return strings.Join(strings.Fields(q), " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *Adapter) ExecuteTool(ctx context.Context, tool string, args map[string]any) (adapter.ToolResult, error) {
	c, err := a.client()
	if err != nil {
		return adapter.ToolResult{}, &adapter.ExecutionError{Server: a.name, Tool: tool, Err: err}
	}

	var raw []byte
	switch tool {
	case "getJiraIssue":
		raw, err = c.getIssue(ctx, stringArg(args, "issueKey"), issueFields)
		if err == nil {
			return adapter.ToolResult{Content: formatIssue(raw)}, nil
		}
	case "searchJiraIssues":
		raw, err = c.searchIssues(ctx, stringArg(args, "jql"), intArg(args, "maxResults", 20), issueFields)
		if err == nil {
			return adapter.ToolResult{Content: formatIssueList(raw)}, nil
		}
	case "getIssueComments":
		raw, err = c.getComments(ctx, stringArg(args, "issueKey"), 20)
		if err == nil {
			return adapter.ToolResult{Content: formatComments(raw)}, nil
		}
	case "getIssueTransitions":
		raw, err = c.getTransitions(ctx, stringArg(args, "issueKey"))
		if err == nil {
			return adapter.ToolResult{Content: formatTransitions(raw)}, nil
		}
	case "transitionJiraIssue":
		raw, err = c.transitionIssue(ctx, stringArg(args, "issueKey"), stringArg(args, "transitionId"))
		if err == nil {
			return adapter.ToolResult{Content: "Transitioned " + stringArg(args, "issueKey")}, nil
		}
	case "updateJiraIssue":
		fields := map[string]any{}
		if s := stringArg(args, "summary"); s != "" {
			fields["summary"] = s
		}
		if d := stringArg(args, "description"); d != "" {
			if c.apiVersion == 3 {
				fields["description"] = adfDocFromText(d)
			} else {
				fields["description"] = d
			}
		}
		if len(fields) == 0 {
			return adapter.ToolResult{Content: "Nothing to update: provide a summary or description.", IsError: true}, nil
		}
		raw, err = c.updateIssue(ctx, stringArg(args, "issueKey"), fields)
		if err == nil {
			return adapter.ToolResult{Content: "Updated " + stringArg(args, "issueKey")}, nil
		}
	case "addComment":
		raw, err = c.addComment(ctx, stringArg(args, "issueKey"), stringArg(args, "body"))
		if err == nil {
			return adapter.ToolResult{Content: "Comment added to " + stringArg(args, "issueKey")}, nil
		}
	case "createJiraIssue":
		fields := map[string]any{
			"project":   map[string]any{"key": stringArg(args, "projectKey")},
			"summary":   stringArg(args, "summary"),
			"issuetype": map[string]any{"name": stringArgDefault(args, "issueType", "Task")},
		}
		if d := stringArg(args, "description"); d != "" {
			if c.apiVersion == 3 {
				fields["description"] = adfDocFromText(d)
			} else {
				fields["description"] = d
			}
		}
		raw, err = c.createIssue(ctx, fields)
		if err == nil {
			var created struct {
				Key string `json:"key"`
			}
			_ = json.Unmarshal(raw, &created)
			return adapter.ToolResult{Content: "Created issue " + created.Key}, nil
		}
	case "listJiraProjects":
		raw, err = c.listProjects(ctx)
		if err == nil {
			return adapter.ToolResult{Content: formatProjects(raw)}, nil
		}
	default:
		return adapter.ToolResult{}, &adapter.ExecutionError{
			Server: a.name, Tool: tool, Err: fmt.Errorf("unknown tool"),
		}
	}

	// Jira-side rejections (bad JQL, missing issue, validation) come back
	// as a result, not an error. Auth and transport problems stay errors.
	var se *statusError
	if errors.As(err, &se) && se.Status != http.StatusUnauthorized && se.Status != http.StatusForbidden {
		return adapter.ToolResult{Content: se.Error(), IsError: true}, nil
	}
	return adapter.ToolResult{}, &adapter.ExecutionError{Server: a.name, Tool: tool, Err: err}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func stringArgDefault(args map[string]any, key, def string) string {
	if v := stringArg(args, key); v != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
