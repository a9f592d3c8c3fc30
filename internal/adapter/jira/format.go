package jira

import (
	"encoding/json"
	"fmt"
	"strings"
)

var issueFields = []string{"summary", "status", "priority", "assignee", "reporter", "issuetype", "description", "updated"}

type issueJSON struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Reporter *struct {
			DisplayName string `json:"displayName"`
		} `json:"reporter"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Description json.RawMessage `json:"description"`
		Updated     string          `json:"updated"`
	} `json:"fields"`
}

func formatIssue(raw []byte) string {
	var is issueJSON
	if err := json.Unmarshal(raw, &is); err != nil {
		return string(raw)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", is.Key, is.Fields.Summary)
	fmt.Fprintf(&b, "Type: %s | Status: %s", orDash(is.Fields.IssueType.Name), orDash(is.Fields.Status.Name))
	if is.Fields.Priority.Name != "" {
		fmt.Fprintf(&b, " | Priority: %s", is.Fields.Priority.Name)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Assignee: %s | Reporter: %s\n", personName(is.Fields.Assignee), personName(is.Fields.Reporter))
	if desc := descriptionText(is.Fields.Description); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	if is.Fields.Updated != "" {
		fmt.Fprintf(&b, "Updated: %s\n", is.Fields.Updated)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatIssueList(raw []byte) string {
	var page struct {
		Total  int         `json:"total"`
		Issues []issueJSON `json:"issues"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return string(raw)
	}
	if len(page.Issues) == 0 {
		return "No issues found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d issue(s):\n", page.Total)
	for _, is := range page.Issues {
		fmt.Fprintf(&b, "- %s: %s [%s]", is.Key, is.Fields.Summary, orDash(is.Fields.Status.Name))
		if is.Fields.Priority.Name != "" {
			fmt.Fprintf(&b, " (%s)", is.Fields.Priority.Name)
		}
		if n := personName(is.Fields.Assignee); n != "-" {
			fmt.Fprintf(&b, " assignee: %s", n)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatComments(raw []byte) string {
	var page struct {
		Comments []struct {
			Author struct {
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Body    json.RawMessage `json:"body"`
			Created string          `json:"created"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return string(raw)
	}
	if len(page.Comments) == 0 {
		return "No comments."
	}
	var b strings.Builder
	for _, c := range page.Comments {
		fmt.Fprintf(&b, "[%s] %s: %s\n", c.Created, orDash(c.Author.DisplayName), descriptionText(c.Body))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTransitions(raw []byte) string {
	var page struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return string(raw)
	}
	if len(page.Transitions) == 0 {
		return "No transitions available."
	}
	var b strings.Builder
	b.WriteString("Available transitions:\n")
	for _, tr := range page.Transitions {
		fmt.Fprintf(&b, "- %s (id %s) -> %s\n", tr.Name, tr.ID, tr.To.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatProjects(raw []byte) string {
	type proj struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	// v3 pages under "values", v2 returns a bare array.
	var page struct {
		Values []proj `json:"values"`
	}
	var list []proj
	if err := json.Unmarshal(raw, &page); err == nil && len(page.Values) > 0 {
		list = page.Values
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return string(raw)
	}
	if len(list) == 0 {
		return "No projects visible."
	}
	var b strings.Builder
	b.WriteString("Projects:\n")
	for _, p := range list {
		fmt.Fprintf(&b, "- %s: %s\n", p.Key, p.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func personName(p *struct {
	DisplayName string `json:"displayName"`
}) string {
	if p == nil || p.DisplayName == "" {
		return "-"
	}
	return p.DisplayName
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// descriptionText flattens either a plain string (API v2) or an ADF
// document (API v3) into text.
func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var node adfNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return ""
	}
	var b strings.Builder
	node.writeText(&b)
	return strings.TrimSpace(b.String())
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

func (n adfNode) writeText(b *strings.Builder) {
	if n.Type == "text" {
		b.WriteString(n.Text)
		return
	}
	if n.Type == "hardBreak" {
		b.WriteString("\n")
		return
	}
	for _, c := range n.Content {
		c.writeText(b)
	}
	switch n.Type {
	case "paragraph", "heading", "listItem", "codeBlock", "blockquote":
		b.WriteString("\n")
	}
}
