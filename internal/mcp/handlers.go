package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/akorchagin/hostsentry/internal/analysis"
)

// defaultWindow is how many recent events an analyze tool reads when no
// explicit limit applies.
const defaultWindow = 50

func (s *Server) handlePing(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return newTextResult("pong"), nil
}

func (s *Server) handleGetProcesses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.deps.Store.GetRecentEvents("process", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}
	return jsonResult(map[string]any{"processes": emptyIfNil(events)})
}

func (s *Server) handleGetServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.deps.Store.GetRecentEvents("service_event", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}
	return jsonResult(map[string]any{"services": emptyIfNil(events)})
}

func (s *Server) handleGetNetworkFlows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(getArgs(request), "limit", 10)

	flows, err := s.deps.Store.GetRecentEvents("network_flow", limit)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}

	findings := make([]analysis.NetworkFinding, 0, len(flows))
	for _, f := range flows {
		findings = append(findings, analysis.AnalyzeNetworkFlow(f))
	}
	sortByRisk(findings, func(f analysis.NetworkFinding) int { return f.RiskScore })

	return jsonResult(map[string]any{
		"analysis":    findings,
		"total_flows": len(findings),
	})
}

// processReport is a process finding plus its optional AI description.
type processReport struct {
	analysis.ProcessFinding
	RAGDescription string `json:"rag_description,omitempty"`
}

func (s *Server) handleAnalyzeProcesses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.deps.Store.GetRecentEvents("process", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}

	reports := make([]processReport, 0, len(events))
	for _, ev := range events {
		finding := analysis.AnalyzeProcess(ev)
		report := processReport{ProcessFinding: finding}
		if s.deps.Engine != nil {
			report.RAGDescription = s.deps.Engine.DescribeProcess(ctx,
				finding.Name, finding.Exe, finding.Username)
		}
		reports = append(reports, report)
	}
	sortByRisk(reports, func(r processReport) int { return r.RiskScore })

	return jsonResult(map[string]any{
		"analysis":        reports,
		"total_processes": len(events),
	})
}

func (s *Server) handleAnalyzeNetwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flows, err := s.deps.Store.GetRecentEvents("network_flow", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}

	findings := make([]analysis.NetworkFinding, 0, len(flows))
	for _, f := range flows {
		findings = append(findings, analysis.AnalyzeNetworkFlow(f))
	}
	sortByRisk(findings, func(f analysis.NetworkFinding) int { return f.RiskScore })

	return jsonResult(map[string]any{
		"analysis":    findings,
		"total_flows": len(findings),
	})
}

func (s *Server) handleAnalyzeServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.deps.Store.GetRecentEvents("service_event", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}
	if len(events) == 0 {
		return jsonResult(map[string]any{
			"analysis":     []analysis.ServiceFinding{},
			"total_events": 0,
			"note":         "No service logs found",
		})
	}

	findings := make([]analysis.ServiceFinding, 0, len(events))
	for _, ev := range events {
		findings = append(findings, analysis.AnalyzeServiceEvent(ev))
	}
	sortByRisk(findings, func(f analysis.ServiceFinding) int { return f.RiskScore })

	return jsonResult(map[string]any{
		"analysis":     findings,
		"total_events": len(findings),
	})
}

func (s *Server) handleAnalyzeHardware(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(getArgs(request), "limit", 15)

	events, err := s.deps.Store.GetRecentEvents("hardware_spike", limit)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}
	if len(events) == 0 {
		return jsonResult(map[string]any{
			"analysis":     []analysis.HardwareFinding{},
			"total_spikes": 0,
			"status":       "Normal",
		})
	}

	findings := make([]analysis.HardwareFinding, 0, len(events))
	for _, ev := range events {
		findings = append(findings, analysis.AnalyzeHardware(ev))
	}
	sortByRisk(findings, func(f analysis.HardwareFinding) int { return f.RiskScore })

	return jsonResult(map[string]any{
		"analysis":     findings,
		"total_spikes": len(events),
	})
}

func (s *Server) handleAnalyzeAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// One default window per category; per-category limits are not
	// honoured here.
	pevents, err := s.deps.Store.GetRecentEvents("process", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}
	nevents, err := s.deps.Store.GetRecentEvents("network_flow", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}
	sevents, err := s.deps.Store.GetRecentEvents("service_event", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}
	hevents, err := s.deps.Store.GetRecentEvents("hardware_spike", defaultWindow)
	if err != nil {
		return errResult(fmt.Sprintf("read events: %v", err)), nil
	}

	processes := make([]analysis.ProcessFinding, 0, len(pevents))
	for _, ev := range pevents {
		processes = append(processes, analysis.AnalyzeProcess(ev))
	}
	network := make([]analysis.NetworkFinding, 0, len(nevents))
	for _, ev := range nevents {
		network = append(network, analysis.AnalyzeNetworkFlow(ev))
	}
	services := make([]analysis.ServiceFinding, 0, len(sevents))
	for _, ev := range sevents {
		services = append(services, analysis.AnalyzeServiceEvent(ev))
	}
	hardware := make([]analysis.HardwareFinding, 0, len(hevents))
	for _, ev := range hevents {
		hardware = append(hardware, analysis.AnalyzeHardware(ev))
	}

	sortByRisk(processes, func(f analysis.ProcessFinding) int { return f.RiskScore })
	sortByRisk(network, func(f analysis.NetworkFinding) int { return f.RiskScore })
	sortByRisk(services, func(f analysis.ServiceFinding) int { return f.RiskScore })
	sortByRisk(hardware, func(f analysis.HardwareFinding) int { return f.RiskScore })

	return jsonResult(map[string]any{
		"process_analysis":  processes,
		"network_analysis":  network,
		"service_analysis":  services,
		"hardware_analysis": hardware,
	})
}

func (s *Server) handleSearchFindings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := stringArg(getArgs(request), "query", "")
	if query == "" {
		return errResult("missing required argument: query"), nil
	}
	if s.deps.Engine == nil {
		return errResult("semantic search is not configured"), nil
	}
	return jsonResult(s.deps.Engine.Answer(ctx, query))
}

func (s *Server) handleScanFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := stringArg(getArgs(request), "path", "")
	if path == "" {
		return errResult("missing required argument: path"), nil
	}

	report, err := s.deps.Scanner.ScanFile(ctx, path)
	if err != nil {
		return errResult(fmt.Sprintf("scan failed: %v", err)), nil
	}

	out := map[string]any{"intel": report}
	if s.deps.Engine != nil {
		question := fmt.Sprintf(`File hash: %s
MalwareBazaar: %+v
VirusTotal: %+v
URLHaus: %+v

Explain:
1. Whether the file is likely malicious
2. Why
3. What the threat might be
4. What actions a normal user should take`,
			report.SHA256, report.MalwareBazaar, report.VirusTotal, report.URLHaus)
		out["explanation"] = s.deps.Engine.Answer(ctx, question).Answer
	}
	return jsonResult(out)
}

// sortByRisk sorts findings descending by score, keeping the stored
// newest-first order within equal scores.
func sortByRisk[T any](items []T, score func(T) int) {
	sort.SliceStable(items, func(i, j int) bool {
		return score(items[i]) > score(items[j])
	})
}

func emptyIfNil(events []map[string]any) []map[string]any {
	if events == nil {
		return []map[string]any{}
	}
	return events
}

// getArgs extracts the arguments map from a tool request.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// intArg extracts a numeric argument with a default value.
func intArg(args map[string]interface{}, key string, defaultVal int) int {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	f, ok := val.(float64)
	if !ok || f <= 0 {
		return defaultVal
	}
	return int(f)
}

// jsonResult marshals a payload into a successful text result.
func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// errResult creates an MCP tool error result (IsError=true).
// This is returned as a tool-level error, not a transport-level JSON-RPC
// error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
	}
}
