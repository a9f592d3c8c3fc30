package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeAdapter struct {
	name string

	// intents are returned only when the query contains trigger.
	trigger string
	intents []ToolIntent
}

func (f *fakeAdapter) Name() string                      { return f.name }
func (f *fakeAdapter) Connect(ctx context.Context) error { return nil }

func (f *fakeAdapter) ParseQueryIntent(query string) []ToolIntent {
	if f.trigger != "" && strings.Contains(query, f.trigger) {
		return f.intents
	}
	return nil
}

func (f *fakeAdapter) Discover(ctx context.Context) ([]Capability, error) {
	return nil, nil
}

func (f *fakeAdapter) ExecuteTool(ctx context.Context, tool string, args map[string]any) (ToolResult, error) {
	return ToolResult{Content: "ok"}, nil
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeAdapter{name: "jira"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(&fakeAdapter{name: "jira"})
	if !errors.Is(err, ErrDuplicateAdapter) {
		t.Fatalf("expected ErrDuplicateAdapter, got %v", err)
	}
	if got := len(r.Names()); got != 1 {
		t.Fatalf("expected registry unchanged after rejected register, have %d names", got)
	}
}

func TestRegisterRejectsAmbiguousNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"", "with:colon", "double__underscore", "trailing_"} {
		err := r.Register(&fakeAdapter{name: name})
		if !errors.Is(err, ErrInvalidAdapterName) {
			t.Errorf("name %q: expected ErrInvalidAdapterName, got %v", name, err)
		}
	}
	if got := len(r.Names()); got != 0 {
		t.Fatalf("rejected names must not register, have %d", got)
	}

	// Interior single underscores stay legal.
	if err := r.Register(&fakeAdapter{name: "my_jira"}); err != nil {
		t.Fatalf("register my_jira: %v", err)
	}
}

func TestNamesKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&fakeAdapter{name: n}); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	got := r.Names()
	want := []string{"zeta", "alpha", "mid"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestQualifiedNamesDoNotCollide(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeAdapter{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&fakeAdapter{name: "b"}); err != nil {
		t.Fatal(err)
	}
	r.SetCapabilities("a", []Capability{{Name: "getIssue", Description: "from a"}})
	r.SetCapabilities("b", []Capability{{Name: "getIssue", Description: "from b"}})

	caps := r.AggregateCapabilities()
	names := caps.QualifiedNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 qualified names, got %v", names)
	}

	owner, cap, ok := caps.Lookup("a:getIssue")
	if !ok || owner != "a" || cap.Description != "from a" {
		t.Fatalf("a:getIssue resolved to owner=%q cap=%+v ok=%v", owner, cap, ok)
	}
	owner, cap, ok = caps.Lookup("b:getIssue")
	if !ok || owner != "b" || cap.Description != "from b" {
		t.Fatalf("b:getIssue resolved to owner=%q cap=%+v ok=%v", owner, cap, ok)
	}
}

func TestAggregateCapabilitiesIsACopy(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeAdapter{name: "a"}); err != nil {
		t.Fatal(err)
	}
	r.SetCapabilities("a", []Capability{{Name: "x"}})

	caps := r.AggregateCapabilities()
	caps["a"][0].Name = "mutated"
	caps["rogue"] = []Capability{{Name: "y"}}

	again := r.AggregateCapabilities()
	if again["a"][0].Name != "x" {
		t.Fatalf("registry capabilities mutated through aggregate copy")
	}
	if _, ok := again["rogue"]; ok {
		t.Fatalf("registry grew an adapter through aggregate copy")
	}
}

func TestDetermineRelevantAdapters(t *testing.T) {
	r := NewRegistry()
	withIntent := &fakeAdapter{name: "jira", trigger: "KAN-", intents: []ToolIntent{{Tool: "getJiraIssue"}}}
	silent := &fakeAdapter{name: "github"}
	if err := r.Register(withIntent); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(silent); err != nil {
		t.Fatal(err)
	}
	r.SetCapabilities("github", []Capability{
		{Name: "listPulls", Description: "List open pull requests in a repository"},
	})

	t.Run("intent match always includes the adapter", func(t *testing.T) {
		got := r.DetermineRelevantAdapters("get details for KAN-4")
		if !contains(got, "jira") {
			t.Fatalf("expected jira in %v", got)
		}
	})

	t.Run("capability keyword match includes the adapter", func(t *testing.T) {
		got := r.DetermineRelevantAdapters("show open pull requests")
		if !contains(got, "github") {
			t.Fatalf("expected github in %v", got)
		}
	})

	t.Run("no match falls back to every adapter", func(t *testing.T) {
		silent2 := &fakeAdapter{name: "mute"}
		if err := r.Register(silent2); err != nil {
			t.Fatal(err)
		}
		got := r.DetermineRelevantAdapters("zzz qqq xyzzy")
		if len(got) != 3 {
			t.Fatalf("expected all 3 adapters for unmatched query, got %v", got)
		}
	})
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func TestSplitQualified(t *testing.T) {
	cases := []struct {
		in          string
		adapterName string
		tool        string
		ok          bool
	}{
		{"jira:getIssue", "jira", "getIssue", true},
		{"a:b:c", "a", "b:c", true},
		{"noSeparator", "", "", false},
		{":leading", "", "", false},
		{"trailing:", "", "", false},
	}
	for _, tc := range cases {
		a, tool, ok := SplitQualified(tc.in)
		if a != tc.adapterName || tool != tc.tool || ok != tc.ok {
			t.Errorf("SplitQualified(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.in, a, tool, ok, tc.adapterName, tc.tool, tc.ok)
		}
	}
}

func TestSummaryTruncatesLongDescriptions(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "verbose "
	}
	cs := CapabilitySet{"a": {{Name: "t", Description: long}}}
	out := cs.Summary()
	for _, line := range []string{"a (1 tools):", "..."} {
		if !strings.Contains(out, line) {
			t.Fatalf("summary missing %q:\n%s", line, out)
		}
	}
}
