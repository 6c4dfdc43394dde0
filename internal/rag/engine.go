package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Answer is the engine's response to a natural-language question:
// the text plus the document IDs it was grounded on.
type Answer struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// Engine glues retrieval to the LLM.
type Engine struct {
	index VectorIndex
	llm   LLM
	log   zerolog.Logger
}

func NewEngine(index VectorIndex, llm LLM, log zerolog.Logger) *Engine {
	return &Engine{index: index, llm: llm, log: log}
}

// Answer retrieves the most relevant stored events and asks the model
// to answer strictly from them, citing document IDs.
func (e *Engine) Answer(ctx context.Context, query string) Answer {
	hits, err := e.index.Search(ctx, query, 5, nil)
	if err != nil {
		e.log.Warn().Err(err).Msg("retrieval failed")
	}
	if len(hits) == 0 {
		return Answer{Answer: "No relevant system events found in the database.", Citations: []string{}}
	}

	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "\n[Document %d | ID: %s]\n%s\n---\n", i+1, h.ID, h.Text)
	}

	prompt := fmt.Sprintf(`You are a forensic analysis AI.
Use ONLY the context provided below. Do NOT hallucinate.

Context:
%s

Question: %s

Instructions:
1. Analyze the context to answer the question.
2. If the answer is not in the context, say "Not found".
3. Cite the exact Document IDs you used.

OUTPUT FORMAT:
Return ONLY a raw JSON object.
Do NOT use Markdown formatting (no `+"```json"+` blocks).
Do NOT include conversational filler.

Expected JSON Structure:
{
  "answer": "The user ran calc.exe at 14:00...",
  "citations": ["network_flow_123...", "process_456..."]
}`, b.String(), query)

	raw := e.llm.Chat(ctx, prompt)

	data := extractJSON(raw)
	if data == nil {
		return Answer{Answer: strings.TrimSpace(raw), Citations: []string{}}
	}

	out := Answer{Citations: []string{}}
	if s, ok := data["answer"].(string); ok && s != "" {
		out.Answer = s
	} else {
		out.Answer = strings.TrimSpace(raw)
	}
	if raw, ok := data["citations"].([]any); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok {
				out.Citations = append(out.Citations, s)
			}
		}
	}
	return out
}

// DescribeProcess asks the model what a process is, grounded on past
// process events only so packet noise does not confuse it.
func (e *Engine) DescribeProcess(ctx context.Context, name, exe, username string) string {
	query := fmt.Sprintf("process '%s' running from %s", name, exe)

	var contextText string
	hits, err := e.index.Search(ctx, query, 3, &Filter{Type: "process"})
	if err != nil {
		e.log.Warn().Err(err).Msg("process retrieval failed")
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Text)
	}
	contextText = strings.Join(parts, "\n\n---\n\n")

	prompt := fmt.Sprintf(`You are a security analyst.

Context about past system activity:
%s

Task: Describe the process "%s" (running as "%s") in 1-3 sentences.

Requirements:
- Explain what this program usually does.
- Mention if it is built-in, third-party, or unknown.
- State if the context shows valid or suspicious behavior.
- If context is empty, give a generic definition of the process name.

OUTPUT FORMAT:
Return ONLY a raw JSON object.
Do NOT use Markdown formatting (no `+"```json"+` blocks).
Do NOT add conversational text (no "Here is the response").

Example Output:
{
    "description": "Notepad.exe is a built-in Windows text editor. It is generally benign."
}`, contextText, name, username)

	raw := e.llm.Chat(ctx, prompt)

	if data := extractJSON(raw); data != nil {
		if s, ok := data["description"].(string); ok && s != "" {
			return s
		}
	}

	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "```") {
		clean = strings.Trim(clean, "`json \n")
	}
	if clean == "" {
		return fmt.Sprintf("Process %s detected (analysis unavailable).", name)
	}
	return clean
}
