package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/akorchagin/hostsentry/internal/model"
)

type fakeIndex struct {
	hits       []Hit
	lastFilter *Filter
	lastQuery  string
}

func (f *fakeIndex) AddDocuments(context.Context, []model.Document) error { return nil }

func (f *fakeIndex) Search(_ context.Context, query string, k int, filter *Filter) ([]Hit, error) {
	f.lastQuery = query
	f.lastFilter = filter
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeLLM struct {
	reply      string
	lastPrompt string
}

func (f *fakeLLM) Chat(_ context.Context, prompt string) string {
	f.lastPrompt = prompt
	return f.reply
}

func TestEngine_Answer_NoContext(t *testing.T) {
	e := NewEngine(&fakeIndex{}, &fakeLLM{reply: "should not be called"}, zerolog.Nop())

	got := e.Answer(context.Background(), "what happened?")
	if !strings.Contains(got.Answer, "No relevant system events") {
		t.Errorf("Answer = %q", got.Answer)
	}
	if len(got.Citations) != 0 {
		t.Errorf("Citations = %v", got.Citations)
	}
}

func TestEngine_Answer_ParsesCitations(t *testing.T) {
	idx := &fakeIndex{hits: []Hit{
		{ID: "process_1_aa_bb", Text: "Event Type: process\nname: miner"},
		{ID: "network_flow_2_cc_dd", Text: "Event Type: network_flow\ndst: 8.8.8.8"},
	}}
	llm := &fakeLLM{reply: `{"answer":"A miner talked to 8.8.8.8.","citations":["process_1_aa_bb","network_flow_2_cc_dd"]}`}
	e := NewEngine(idx, llm, zerolog.Nop())

	got := e.Answer(context.Background(), "anything mining?")
	if got.Answer != "A miner talked to 8.8.8.8." {
		t.Errorf("Answer = %q", got.Answer)
	}
	if len(got.Citations) != 2 || got.Citations[0] != "process_1_aa_bb" {
		t.Errorf("Citations = %v", got.Citations)
	}
	if !strings.Contains(llm.lastPrompt, "[Document 1 | ID: process_1_aa_bb]") {
		t.Errorf("context not embedded in prompt:\n%s", llm.lastPrompt)
	}
	if !strings.Contains(llm.lastPrompt, "anything mining?") {
		t.Error("question not embedded in prompt")
	}
}

func TestEngine_Answer_FencedJSON(t *testing.T) {
	idx := &fakeIndex{hits: []Hit{{ID: "x", Text: "y"}}}
	llm := &fakeLLM{reply: "```json\n{\"answer\":\"Nothing suspicious.\",\"citations\":[]}\n```"}
	e := NewEngine(idx, llm, zerolog.Nop())

	got := e.Answer(context.Background(), "q")
	if got.Answer != "Nothing suspicious." {
		t.Errorf("Answer = %q", got.Answer)
	}
}

func TestEngine_Answer_PlainTextFallback(t *testing.T) {
	idx := &fakeIndex{hits: []Hit{{ID: "x", Text: "y"}}}
	llm := &fakeLLM{reply: "I could not find anything."}
	e := NewEngine(idx, llm, zerolog.Nop())

	got := e.Answer(context.Background(), "q")
	if got.Answer != "I could not find anything." {
		t.Errorf("Answer = %q", got.Answer)
	}
}

func TestEngine_DescribeProcess_FiltersToProcessEvents(t *testing.T) {
	idx := &fakeIndex{hits: []Hit{{ID: "p", Text: "Event Type: process\nname: sshd"}}}
	llm := &fakeLLM{reply: `{"description":"sshd is the OpenSSH server daemon."}`}
	e := NewEngine(idx, llm, zerolog.Nop())

	got := e.DescribeProcess(context.Background(), "sshd", "/usr/sbin/sshd", "root")
	if got != "sshd is the OpenSSH server daemon." {
		t.Errorf("description = %q", got)
	}
	if idx.lastFilter == nil || idx.lastFilter.Type != "process" {
		t.Errorf("filter = %+v, want type=process", idx.lastFilter)
	}
}

func TestEngine_DescribeProcess_PlainTextReply(t *testing.T) {
	idx := &fakeIndex{}
	llm := &fakeLLM{reply: "Powershell is a shell."}
	e := NewEngine(idx, llm, zerolog.Nop())

	if got := e.DescribeProcess(context.Background(), "powershell", "", ""); got != "Powershell is a shell." {
		t.Errorf("description = %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string // value of "k", empty means nil result
	}{
		{"strict", `{"k":"v"}`, "v"},
		{"fenced", "```json\n{\"k\":\"v\"}\n```", "v"},
		{"prefixed", `Here is the JSON: {"k":"v"} hope it helps`, "v"},
		{"empty", "", ""},
		{"no object", "plain text only", ""},
		{"broken", `{"k": unquoted}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractJSON(tc.in)
			if tc.want == "" {
				if got != nil {
					t.Errorf("extractJSON(%q) = %v, want nil", tc.in, got)
				}
				return
			}
			if got == nil || got["k"] != tc.want {
				t.Errorf("extractJSON(%q) = %v", tc.in, got)
			}
		})
	}
}

func TestMatchesFilter(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	meta := map[string]string{
		"type":      "process",
		"timestamp": now.Format(time.RFC3339),
	}

	if !matchesFilter(meta, nil) {
		t.Error("nil filter must match")
	}
	if !matchesFilter(meta, &Filter{Type: "process"}) {
		t.Error("type match rejected")
	}
	if matchesFilter(meta, &Filter{Type: "network_flow"}) {
		t.Error("type mismatch accepted")
	}
	if !matchesFilter(meta, &Filter{Types: []string{"service_event", "process"}}) {
		t.Error("set membership rejected")
	}
	if matchesFilter(meta, &Filter{Types: []string{"service_event"}}) {
		t.Error("set non-membership accepted")
	}
	if !matchesFilter(meta, &Filter{Since: now.Add(-time.Hour)}) {
		t.Error("recent document rejected by time filter")
	}
	if matchesFilter(meta, &Filter{Since: now.Add(time.Hour)}) {
		t.Error("old document accepted by time filter")
	}
	if matchesFilter(map[string]string{"type": "process"}, &Filter{Since: now}) {
		t.Error("document without timestamp accepted by time filter")
	}
}
