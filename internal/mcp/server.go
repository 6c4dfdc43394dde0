// Package mcp exposes the stored event history and analysis engine to
// external agents over the Model Context Protocol, alongside the
// Prometheus metrics endpoint.
package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/akorchagin/hostsentry/internal/intel"
	"github.com/akorchagin/hostsentry/internal/rag"
)

// EventStore is the read side of the persistence actor.
type EventStore interface {
	GetRecentEvents(eventType string, limit int) ([]map[string]any, error)
}

// RAGEngine answers natural-language questions over stored events.
type RAGEngine interface {
	Answer(ctx context.Context, query string) rag.Answer
	DescribeProcess(ctx context.Context, name, exe, username string) string
}

// FileScanner checks a local file against threat-intel feeds.
type FileScanner interface {
	ScanFile(ctx context.Context, path string) (intel.Report, error)
}

// Deps wires the server to the rest of the daemon. Engine and Scanner
// may be nil; the affected tools then degrade or stay unregistered.
type Deps struct {
	Store   EventStore
	Engine  RAGEngine
	Scanner FileScanner
	Version string
	Log     zerolog.Logger
}

// Server hosts the MCP endpoint and the metrics endpoint on one
// listener.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// NewServer creates the server and registers the full tool and
// resource inventory.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps: deps,
		mcp: server.NewMCPServer("hostsentry", deps.Version,
			server.WithLogging(),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Start serves MCP on /mcp and Prometheus metrics on /metrics until the
// context is cancelled. A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/mcp"),
	))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	s.deps.Log.Info().Str("addr", addr).Msg("rpc listener started")
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// registerTools adds the fixed tool inventory.
func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("ping",
		mcp.WithDescription("Connectivity test. Returns 'pong' if the server is reachable."),
	), s.handlePing)

	s.mcp.AddTool(mcp.NewTool("get_running_processes",
		mcp.WithDescription("Fetch a snapshot of recently observed processes without analysis."),
	), s.handleGetProcesses)

	s.mcp.AddTool(mcp.NewTool("get_running_services",
		mcp.WithDescription("Fetch recent service status changes and service log records."),
	), s.handleGetServices)

	s.mcp.AddTool(mcp.NewTool("get_network_flows",
		mcp.WithDescription("Fetch the most recent network flows, risk-scored and sorted."),
		mcp.WithNumber("limit",
			mcp.Description("Number of flows to return"),
			mcp.DefaultNumber(10),
		),
	), s.handleGetNetworkFlows)

	s.mcp.AddTool(mcp.NewTool("analyze_processes",
		mcp.WithDescription("Risk-score recent processes (suspicious paths, resource abuse, odd sockets) and enrich them with AI descriptions."),
	), s.handleAnalyzeProcesses)

	s.mcp.AddTool(mcp.NewTool("analyze_network",
		mcp.WithDescription("Risk-score recent network traffic (large packets, tunneling protocols, public destinations)."),
	), s.handleAnalyzeNetwork)

	s.mcp.AddTool(mcp.NewTool("analyze_services",
		mcp.WithDescription("Risk-score recent service logs for errors and crash signatures."),
	), s.handleAnalyzeServices)

	s.mcp.AddTool(mcp.NewTool("analyze_hardware_spikes",
		mcp.WithDescription("Risk-score recent hardware resource spikes (CPU, RAM, GPU) and attribute them to processes."),
		mcp.WithNumber("limit",
			mcp.Description("Number of spikes to analyze"),
			mcp.DefaultNumber(15),
		),
	), s.handleAnalyzeHardware)

	s.mcp.AddTool(mcp.NewTool("analyze_all",
		mcp.WithDescription("Full security sweep: processes, network, services and hardware in one report."),
	), s.handleAnalyzeAll)

	s.mcp.AddTool(mcp.NewTool("search_findings",
		mcp.WithDescription("Semantic search over stored events with an AI-synthesized, citation-backed answer."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language question, e.g. 'show me connections to 8.8.8.8'"),
		),
	), s.handleSearchFindings)

	if s.deps.Scanner != nil {
		s.mcp.AddTool(mcp.NewTool("scan_file",
			mcp.WithDescription("Hash a local file and check it against MalwareBazaar, VirusTotal and URLHaus."),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Absolute path of the file to scan"),
			),
		), s.handleScanFile)
	}
}
