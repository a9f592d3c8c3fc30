package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TransportKind selects how an adapter reaches its tool provider.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportSSE            TransportKind = "sse"
	TransportStreamableHTTP TransportKind = "streamable-http"
)

// ServerConfig describes one remote tool provider. Immutable after
// construction; owned by exactly one adapter.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport TransportKind     `yaml:"transport"`
	URL       string            `yaml:"url,omitempty"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// Capability is one discovered tool on a provider. Read-only; valid for
// the lifetime of the adapter's active connection.
type Capability struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolIntent is a deterministic tool invocation recognized from the raw
// query text by an adapter's intent rules.
type ToolIntent struct {
	Tool string
	Args map[string]any
}

// ToolResult is the normalized outcome of a remote tool call. Remote-side
// business errors ("issue not found") are carried here with IsError=true,
// never as Go errors.
type ToolResult struct {
	Content string
	IsError bool
}

// ServerAdapter wraps one remote tool-providing backend. Connect is
// idempotent; Discover must only be called after a successful Connect;
// ParseQueryIntent is pure and does no I/O.
type ServerAdapter interface {
	Name() string
	Connect(ctx context.Context) error
	Discover(ctx context.Context) ([]Capability, error)
	ParseQueryIntent(query string) []ToolIntent
	ExecuteTool(ctx context.Context, tool string, args map[string]any) (ToolResult, error)
}

// CapabilitySet maps adapter name to its discovered capabilities, in
// discovery order. Rebuilt whenever connections are (re)initialized.
type CapabilitySet map[string][]Capability

// QualifierSep separates adapter name from tool name in qualified tool
// names ("Atlassian:getJiraIssue").
const QualifierSep = ":"

// QualifyName builds the collision-free merged name for a tool.
func QualifyName(adapterName, tool string) string {
	return adapterName + QualifierSep + tool
}

// SplitQualified splits "adapter:tool" back into its parts.
func SplitQualified(qualified string) (adapterName, tool string, ok bool) {
	i := strings.Index(qualified, QualifierSep)
	if i <= 0 || i == len(qualified)-1 {
		return "", "", false
	}
	return qualified[:i], qualified[i+1:], true
}

// Lookup resolves a qualified tool name against the set.
func (cs CapabilitySet) Lookup(qualified string) (adapterName string, cap Capability, ok bool) {
	adapterName, tool, ok := SplitQualified(qualified)
	if !ok {
		return "", Capability{}, false
	}
	for _, c := range cs[adapterName] {
		if c.Name == tool {
			return adapterName, c, true
		}
	}
	return "", Capability{}, false
}

// QualifiedNames returns every merged tool name, sorted for stable output.
func (cs CapabilitySet) QualifiedNames() []string {
	var out []string
	for name, caps := range cs {
		for _, c := range caps {
			out = append(out, QualifyName(name, c.Name))
		}
	}
	sort.Strings(out)
	return out
}

// Summary renders a human-readable capability listing, used for the REPL
// banner and for "what tools do you have?"-style queries.
func (cs CapabilitySet) Summary() string {
	if len(cs) == 0 {
		return "No tool providers are currently connected."
	}

	names := make([]string, 0, len(cs))
	for name := range cs {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		caps := cs[name]
		sb.WriteString(fmt.Sprintf("%s (%d tools):\n", name, len(caps)))
		for _, c := range caps {
			desc := c.Description
			if len(desc) > 100 {
				desc = desc[:97] + "..."
			}
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", c.Name, desc))
		}
	}
	return sb.String()
}
