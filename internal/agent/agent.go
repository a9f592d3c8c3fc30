// Package agent runs the chat loop: user query in, adapter intents or
// model-driven tool calls in the middle, assistant answer out.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
	"github.com/golovatskygroup/mcp-chat/internal/llm"
	"github.com/golovatskygroup/mcp-chat/internal/multiserver"
)

const defaultMaxToolRounds = 3

const systemPrompt = `You are a helpful assistant that answers questions about Jira tickets and Confluence pages using the tools provided.

Guidance:
- When searching Jira, write valid JQL. Use currentUser() for the asking user, ORDER BY updated DESC for recency, and quote reserved words.
- Prefer a single well-formed search over many narrow ones.
- When tool output already answers the question, summarize it plainly instead of calling more tools.
- If a tool reports an error, say what failed and suggest what the user could try instead.`

type Config struct {
	MaxToolRounds int
}

type Agent struct {
	llm           llm.Client
	ms            *multiserver.Client
	reg           *adapter.Registry
	transcript    *Transcript
	maxToolRounds int
	logf          func(format string, args ...any)
}

func New(client llm.Client, ms *multiserver.Client, reg *adapter.Registry, cfg Config) *Agent {
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	return &Agent{
		llm:           client,
		ms:            ms,
		reg:           reg,
		transcript:    NewTranscript(),
		maxToolRounds: maxRounds,
		logf:          func(string, ...any) {},
	}
}

func (a *Agent) SetLogf(logf func(format string, args ...any)) {
	if logf != nil {
		a.logf = logf
	}
}

func (a *Agent) Transcript() *Transcript { return a.transcript }

// HandleQuery answers one user query and returns the assistant text.
// Every call appends the user turn, any tool turns, and exactly one
// assistant turn.
func (a *Agent) HandleQuery(ctx context.Context, query string) (string, error) {
	a.transcript.AddUser(query)

	if isCapabilityQuery(query) {
		answer := a.reg.AggregateCapabilities().Summary()
		a.transcript.AddAssistant(answer)
		return answer, nil
	}

	routed, err := a.ms.ExecuteQuery(ctx, query)
	if err != nil {
		return "", err
	}
	if len(routed) > 0 {
		return a.summarizeRouted(ctx, query, routed)
	}
	return a.toolLoop(ctx, query)
}

// isCapabilityQuery answers tool/capability listing questions locally,
// there is nothing for the model or the adapters to add.
func isCapabilityQuery(query string) bool {
	q := strings.ToLower(query)
	for _, phrase := range []string{
		"what tools", "which tools", "list tools", "available tools",
		"what can you do", "capabilities",
	} {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

// summarizeRouted handles the deterministic path: adapter rules already
// produced results, the model only turns them into an answer. One tool
// turn, one model call, one assistant turn.
func (a *Agent) summarizeRouted(ctx context.Context, query string, routed []multiserver.RoutedResult) (string, error) {
	var b strings.Builder
	for _, r := range routed {
		qn := adapter.QualifyName(r.Adapter, r.Tool)
		if r.Result.IsError {
			fmt.Fprintf(&b, "[%s] error: %s\n", qn, r.Result.Content)
		} else {
			fmt.Fprintf(&b, "[%s]\n%s\n", qn, r.Result.Content)
		}
	}
	toolOutput := strings.TrimRight(b.String(), "\n")
	a.transcript.AddTool(qualifiedNames(routed), toolOutput)

	user := fmt.Sprintf("Question: %s\n\nTool output:\n%s\n\nAnswer the question using the tool output.", query, toolOutput)
	resp, err := a.llm.CreateMessage(ctx, llm.Request{
		System:   systemPrompt,
		Messages: []llm.Message{llm.UserText(user)},
	})
	if err != nil {
		return "", err
	}
	answer := resp.Text()
	if answer == "" {
		answer = toolOutput
	}
	a.transcript.AddAssistant(answer)
	return answer, nil
}

func qualifiedNames(routed []multiserver.RoutedResult) string {
	names := make([]string, 0, len(routed))
	for _, r := range routed {
		names = append(names, adapter.QualifyName(r.Adapter, r.Tool))
	}
	return strings.Join(names, ",")
}

// toolLoop lets the model drive tool selection when no adapter rule
// matched. Rounds are bounded; on exhaustion the best text seen so far
// becomes a degraded answer.
func (a *Agent) toolLoop(ctx context.Context, query string) (string, error) {
	tools := llm.ToolsFromCapabilities(a.reg.AggregateCapabilities())
	messages := []llm.Message{llm.UserText(query)}

	var lastText string
	for round := 0; round <= a.maxToolRounds; round++ {
		resp, err := a.llm.CreateMessage(ctx, llm.Request{
			System:   systemPrompt,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", err
		}
		if t := resp.Text(); t != "" {
			lastText = t
		}

		uses := resp.ToolUses()
		if len(uses) == 0 {
			answer := resp.Text()
			a.transcript.AddAssistant(answer)
			return answer, nil
		}
		if round == a.maxToolRounds {
			break
		}

		messages = append(messages, llm.AssistantBlocks(resp.Content))
		messages = append(messages, llm.ToolResults(a.runToolUses(ctx, uses)))
	}

	answer := lastText
	if answer == "" {
		answer = "I could not finish answering within the tool call limit. Try a more specific question."
	}
	a.transcript.AddAssistant(answer)
	return answer, nil
}

// runToolUses executes the requested calls and records one tool turn
// per round. Business failures flow back to the model as error results
// so it can recover or explain.
func (a *Agent) runToolUses(ctx context.Context, uses []llm.ContentBlock) []llm.ContentBlock {
	var blocks []llm.ContentBlock
	var record strings.Builder
	var names []string

	for _, use := range uses {
		qualified := llm.FromWireName(use.Name)
		names = append(names, qualified)

		args, err := llm.DecodeToolInput(use.Input)
		var result adapter.ToolResult
		if err != nil {
			result = adapter.ToolResult{Content: fmt.Sprintf("bad tool input: %v", err), IsError: true}
		} else {
			result, err = a.ms.CallTool(ctx, qualified, args)
			if err != nil {
				a.logf("tool %s failed: %v", qualified, err)
				result = adapter.ToolResult{Content: err.Error(), IsError: true}
			}
		}

		blocks = append(blocks, llm.ContentBlock{
			Type:      "tool_result",
			ToolUseID: use.ID,
			Content:   result.Content,
			IsError:   result.IsError,
		})
		if result.IsError {
			fmt.Fprintf(&record, "[%s] error: %s\n", qualified, result.Content)
		} else {
			fmt.Fprintf(&record, "[%s]\n%s\n", qualified, result.Content)
		}
	}

	a.transcript.AddTool(strings.Join(names, ","), strings.TrimRight(record.String(), "\n"))
	return blocks
}
