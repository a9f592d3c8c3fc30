package llm

import (
	"encoding/json"
	"strings"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

// The registry qualifies tool names as "adapter:tool", but provider
// tool names only allow [a-zA-Z0-9_-]. The colon maps to a double
// underscore on the way out and back.
const wireSep = "__"

func ToWireName(qualified string) string {
	return strings.ReplaceAll(qualified, adapter.QualifierSep, wireSep)
}

func FromWireName(wire string) string {
	return strings.Replace(wire, wireSep, adapter.QualifierSep, 1)
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ToolsFromCapabilities flattens an aggregated capability set into the
// provider tool list, one entry per qualified name, sorted.
func ToolsFromCapabilities(caps adapter.CapabilitySet) []Tool {
	var tools []Tool
	for _, qn := range caps.QualifiedNames() {
		_, cap, ok := caps.Lookup(qn)
		if !ok {
			continue
		}
		schema := cap.InputSchema
		if len(schema) == 0 {
			schema = emptyObjectSchema
		}
		tools = append(tools, Tool{
			Name:        ToWireName(qn),
			Description: cap.Description,
			InputSchema: schema,
		})
	}
	return tools
}

// DecodeToolInput unpacks a tool_use input payload into the argument
// map adapters expect.
func DecodeToolInput(input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
