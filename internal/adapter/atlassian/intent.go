package atlassian

import (
	"regexp"
	"strings"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

// Intent rules for the Atlassian backend: keyword/regex heuristics over
// the raw query text. Pure functions, no I/O.

var issueKeyRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]*-\d+\b`)

// maxIssueKeys caps how many issue keys a single query can fan out to.
const maxIssueKeys = 3

const (
	jqlMyIssues   = "assignee = currentUser() OR reporter = currentUser() ORDER BY updated DESC"
	jqlAllIssues  = "ORDER BY updated DESC"
	jqlAssignedMe = "assignee = currentUser() ORDER BY updated DESC"
)

// ParseQueryIntent recognizes Jira and Confluence intents. Issue keys are
// extracted independently of the phrase rules; when present they take the
// place of the search/general fallbacks.
func (a *Adapter) ParseQueryIntent(query string) []adapter.ToolIntent {
	lower := strings.ToLower(query)
	var intents []adapter.ToolIntent

	switch {
	case isCreateIssueIntent(lower):
		intents = append(intents, adapter.ToolIntent{
			Tool: "createJiraIssue",
			Args: map[string]any{"query": query},
		})
	case isMyIssuesIntent(lower):
		intents = append(intents, jqlIntent(jqlMyIssues))
	case isAllIssuesIntent(lower):
		intents = append(intents, jqlIntent(jqlAllIssues))
	case isAssignedToMeIntent(lower):
		intents = append(intents, jqlIntent(jqlAssignedMe))
	}

	if keys := extractIssueKeys(query); len(keys) > 0 {
		for _, key := range keys {
			intents = append(intents, adapter.ToolIntent{
				Tool: "getJiraIssue",
				Args: map[string]any{"issueIdOrKey": key},
			})
		}
		return intents
	}

	if len(intents) > 0 {
		return intents
	}

	switch {
	case isSearchIntent(lower):
		terms := extractSearchTerms(query)
		jql := `text ~ "` + terms + `" OR summary ~ "` + terms + `" ORDER BY updated DESC`
		intents = append(intents, jqlIntent(jql))
	case isConfluenceSpacesIntent(lower):
		intents = append(intents, adapter.ToolIntent{Tool: "getConfluenceSpaces", Args: map[string]any{}})
	case isConfluenceSearchIntent(lower):
		intents = append(intents, adapter.ToolIntent{
			Tool: "searchConfluenceUsingCql",
			Args: map[string]any{"terms": extractSearchTerms(query)},
		})
	case isGeneralJiraIntent(lower):
		intents = append(intents, jqlIntent(jqlMyIssues))
	}

	return intents
}

func jqlIntent(jql string) adapter.ToolIntent {
	return adapter.ToolIntent{
		Tool: "searchJiraIssuesUsingJql",
		Args: map[string]any{"jql": jql},
	}
}

func isCreateIssueIntent(lower string) bool {
	return containsAny(lower, "create", "new ticket", "new issue", "add ticket", "add issue")
}

func isMyIssuesIntent(lower string) bool {
	return containsAny(lower,
		"what jira issues i have", "what issues i have", "my jira issues",
		"issues i have", "what tickets do i have", "my tickets")
}

func isAllIssuesIntent(lower string) bool {
	return containsAny(lower,
		"all issues", "all my issues", "list all", "project issues",
		"all tickets", "everything", "show me all", "recent issues", "latest issues")
}

func isAssignedToMeIntent(lower string) bool {
	return containsAny(lower,
		"assigned to me", "what am i working on", "currently assigned",
		"my assigned", "working on")
}

func isSearchIntent(lower string) bool {
	return containsAny(lower, "search", "find", "related to")
}

func isGeneralJiraIntent(lower string) bool {
	return containsAny(lower, "issue", "ticket", "task", "jira")
}

func isConfluenceSpacesIntent(lower string) bool {
	return containsAny(lower, "confluence spaces", "what spaces", "list spaces")
}

func isConfluenceSearchIntent(lower string) bool {
	return containsAny(lower, "confluence", "search confluence", "find in confluence")
}

func containsAny(s string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// extractIssueKeys matches against an uppercased copy so "kan-4" finds
// KAN-4; Jira keys are stored uppercase.
func extractIssueKeys(query string) []string {
	keys := issueKeyRe.FindAllString(strings.ToUpper(query), -1)
	if len(keys) > maxIssueKeys {
		keys = keys[:maxIssueKeys]
	}
	return keys
}

func extractSearchTerms(query string) string {
	terms := query
	for _, word := range []string{"find", "search", "related to", "confluence"} {
		terms = strings.ReplaceAll(terms, word, "")
		terms = strings.ReplaceAll(terms, capitalize(word), "")
	}
	return strings.TrimSpace(terms)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
