package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/golovatskygroup/mcp-chat/internal/adapter"
	"github.com/golovatskygroup/mcp-chat/internal/adapter/atlassian"
	"github.com/golovatskygroup/mcp-chat/internal/adapter/generic"
	"github.com/golovatskygroup/mcp-chat/internal/adapter/jira"
	"github.com/golovatskygroup/mcp-chat/internal/agent"
	"github.com/golovatskygroup/mcp-chat/internal/config"
	"github.com/golovatskygroup/mcp-chat/internal/llm"
	"github.com/golovatskygroup/mcp-chat/internal/multiserver"
)

func main() {
	serversPath := flag.String("servers", "", "Path to a YAML file listing extra MCP servers")
	query := flag.String("q", "", "Run a single query and exit")
	flag.Parse()

	log.SetFlags(0)
	log.SetOutput(os.Stderr)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *serversPath != "" {
		servers, err := config.LoadServersFile(*serversPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg.Servers = servers
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	reg := adapter.NewRegistry()
	registerAdapters(reg, cfg)

	ms := multiserver.New(reg)
	report := ms.InitializeAll(ctx)
	for _, name := range report.Failed {
		log.Printf("warning: adapter %s unavailable: %v", name, report.Errors[name])
	}
	if report.ReadyCount() == 0 {
		log.Fatalf("no adapters available, nothing to chat with")
	}

	client, err := llm.NewAnthropicClient(cfg.LLM)
	if err != nil {
		log.Fatalf("llm: %v", err)
	}

	ag := agent.New(client, ms, reg, agent.Config{MaxToolRounds: cfg.MaxToolRounds})
	ag.SetLogf(log.Printf)
	ms.SetLogf(log.Printf)

	if *query != "" {
		answer, err := ag.HandleQuery(ctx, *query)
		if err != nil {
			log.Fatalf("query failed: %v", err)
		}
		fmt.Println(answer)
		return
	}

	fmt.Println(reg.AggregateCapabilities().Summary())
	fmt.Println(`Ask about your Jira tickets and Confluence pages. Type "quit" to exit.`)

	if err := repl(ctx, ag); err != nil {
		log.Fatalf("%v", err)
	}
}

func registerAdapters(reg *adapter.Registry, cfg config.Config) {
	if cfg.Jira.Valid() {
		mustRegister(reg, jira.New("jira", cfg.Jira))
	}

	atlCfg := adapter.ServerConfig{
		Name:      "atlassian",
		Transport: adapter.TransportSSE,
		URL:       cfg.AtlassianMCPURL,
	}
	if atlCfg.URL == "" {
		atlCfg.URL = atlassian.DefaultURL
	}
	mustRegister(reg, atlassian.New(atlCfg, cfg.Timeout))

	for _, sc := range cfg.Servers {
		mustRegister(reg, generic.New(sc, cfg.Timeout))
	}
}

func mustRegister(reg *adapter.Registry, a adapter.ServerAdapter) {
	if err := reg.Register(a); err != nil {
		log.Fatalf("register adapter %s: %v", a.Name(), err)
	}
}

func repl(ctx context.Context, ag *agent.Agent) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		q := strings.TrimSpace(line)
		if q == "" {
			continue
		}
		if q == "quit" || q == "exit" {
			return nil
		}

		answer, err := runTurn(ctx, ag, q)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("(cancelled)")
				continue
			}
			log.Printf("error: %v", err)
			continue
		}
		fmt.Println(answer)
	}
}

// runTurn executes one query under a context that Ctrl-C cancels, so a
// stuck tool call does not wedge the prompt.
func runTurn(ctx context.Context, ag *agent.Agent, query string) (string, error) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return ag.HandleQuery(turnCtx, query)
}
