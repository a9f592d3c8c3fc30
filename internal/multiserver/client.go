// Package multiserver coordinates a set of registered server adapters:
// parallel initialization, query fan-out, and routed tool execution.
package multiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
)

// InitReport is the outcome of InitializeAll. A failed adapter is
// recorded and skipped, it does not abort the rest.
type InitReport struct {
	Ready  []string
	Failed []string
	Errors map[string]error
}

func (r InitReport) ReadyCount() int { return len(r.Ready) }

// RoutedResult is one tool execution attributed to its adapter.
type RoutedResult struct {
	Adapter string
	Tool    string
	Result  adapter.ToolResult
}

type Client struct {
	reg     *adapter.Registry
	logf    func(format string, args ...any)
	schemas sync.Map // qualified name -> *jsonschema.Schema
}

func New(reg *adapter.Registry) *Client {
	return &Client{reg: reg, logf: log.Printf}
}

// SetLogf overrides the progress logger. Tests pass a silent one.
func (c *Client) SetLogf(logf func(format string, args ...any)) {
	if logf != nil {
		c.logf = logf
	}
}

// InitializeAll connects and discovers every registered adapter
// concurrently. Each adapter fails independently; the report says who
// came up and who did not.
func (c *Client) InitializeAll(ctx context.Context) InitReport {
	names := c.reg.Names()

	var mu sync.Mutex
	report := InitReport{Errors: map[string]error{}}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		a, ok := c.reg.Get(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := c.initOne(gctx, a); err != nil {
				c.logf("adapter %s failed to initialize: %v", name, err)
				mu.Lock()
				report.Failed = append(report.Failed, name)
				report.Errors[name] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Ready = append(report.Ready, name)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Restore registration order; goroutines finish in any order.
	orderOf := map[string]int{}
	for i, n := range names {
		orderOf[n] = i
	}
	sort.Slice(report.Ready, func(i, j int) bool { return orderOf[report.Ready[i]] < orderOf[report.Ready[j]] })
	sort.Slice(report.Failed, func(i, j int) bool { return orderOf[report.Failed[i]] < orderOf[report.Failed[j]] })
	return report
}

func (c *Client) initOne(ctx context.Context, a adapter.ServerAdapter) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	caps, err := a.Discover(ctx)
	if err != nil {
		return err
	}
	c.reg.SetCapabilities(a.Name(), caps)
	return nil
}

// ExecuteQuery asks the relevant adapters to interpret the query and
// runs whatever intents they produce, sequentially per adapter in
// registration order. Adapters with no opinion contribute nothing.
func (c *Client) ExecuteQuery(ctx context.Context, query string) ([]RoutedResult, error) {
	var results []RoutedResult
	for _, name := range c.reg.DetermineRelevantAdapters(query) {
		a, ok := c.reg.Get(name)
		if !ok {
			continue
		}
		for _, intent := range a.ParseQueryIntent(query) {
			res, err := a.ExecuteTool(ctx, intent.Tool, intent.Args)
			if err != nil {
				c.logf("adapter %s tool %s failed: %v", name, intent.Tool, err)
				results = append(results, RoutedResult{
					Adapter: name,
					Tool:    intent.Tool,
					Result:  adapter.ToolResult{Content: err.Error(), IsError: true},
				})
				continue
			}
			results = append(results, RoutedResult{Adapter: name, Tool: intent.Tool, Result: res})
		}
	}
	return results, nil
}

// CallTool routes a qualified "adapter:tool" call. Unknown adapters and
// tools not present in the adapter's discovered capabilities are
// routing errors, never forwarded upstream.
func (c *Client) CallTool(ctx context.Context, qualified string, args map[string]any) (adapter.ToolResult, error) {
	adapterName, tool, ok := adapter.SplitQualified(qualified)
	if !ok {
		return adapter.ToolResult{}, &adapter.RoutingError{Tool: qualified, Reason: "name is not adapter-qualified"}
	}
	a, found := c.reg.Get(adapterName)
	if !found {
		return adapter.ToolResult{}, &adapter.RoutingError{Tool: qualified, Reason: fmt.Sprintf("no adapter named %q", adapterName)}
	}

	caps := c.reg.AggregateCapabilities()
	ownerName, cap, known := caps.Lookup(qualified)
	if !known || ownerName != adapterName {
		return adapter.ToolResult{}, &adapter.RoutingError{Tool: qualified, Reason: "tool not in discovered capabilities"}
	}

	if err := c.validateArgs(qualified, cap, args); err != nil {
		return adapter.ToolResult{Content: fmt.Sprintf("invalid arguments for %s: %v", qualified, err), IsError: true}, nil
	}

	return a.ExecuteTool(ctx, tool, args)
}

// validateArgs checks args against the capability's input schema when
// one was declared. Compiled schemas are cached per qualified name.
func (c *Client) validateArgs(qualified string, cap adapter.Capability, args map[string]any) error {
	if len(cap.InputSchema) == 0 {
		return nil
	}

	var sch *jsonschema.Schema
	if v, ok := c.schemas.Load(qualified); ok {
		sch = v.(*jsonschema.Schema)
	} else {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", bytes.NewReader(cap.InputSchema)); err != nil {
			return nil
		}
		compiled, err := compiler.Compile("schema.json")
		if err != nil {
			// A malformed upstream schema should not block the call.
			return nil
		}
		sch = compiled
		c.schemas.Store(qualified, sch)
	}

	// The validator wants plain decoded JSON values.
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return sch.Validate(doc)
}
