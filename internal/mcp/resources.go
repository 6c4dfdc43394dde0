package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerResources adds the URI-addressed reads.
func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource("data://config", "config",
		mcp.WithResourceDescription("Service status and identity."),
		mcp.WithMIMEType("application/json"),
	), s.readConfig)

	s.mcp.AddResource(mcp.NewResource("data://system/processes", "processes",
		mcp.WithResourceDescription("Raw list of the most recent process events."),
		mcp.WithMIMEType("application/json"),
	), s.readProcesses)

	s.mcp.AddResource(mcp.NewResource("data://system/network_flows", "network_flows",
		mcp.WithResourceDescription("Raw list of the most recent network flows."),
		mcp.WithMIMEType("application/json"),
	), s.readNetworkFlows)

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate("data://system/service_events/{limit}", "service_events",
		mcp.WithTemplateDescription("Recent service log records, up to the given count."),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readServiceEvents)

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate("data://system/rag/{query}", "rag",
		mcp.WithTemplateDescription("AI-synthesized answer about system state for the given question."),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readRAG)
}

func (s *Server) readConfig(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, map[string]string{
		"service": "hostsentry",
		"version": s.deps.Version,
		"status":  "running",
	})
}

func (s *Server) readProcesses(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	events, err := s.deps.Store.GetRecentEvents("process", defaultWindow)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return jsonContents(request.Params.URI, emptyIfNil(events))
}

func (s *Server) readNetworkFlows(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	events, err := s.deps.Store.GetRecentEvents("network_flow", defaultWindow)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return jsonContents(request.Params.URI, emptyIfNil(events))
}

func (s *Server) readServiceEvents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	limit := defaultWindow
	if raw := lastSegment(request.Params.URI); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.deps.Store.GetRecentEvents("service_event", limit)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return jsonContents(request.Params.URI, emptyIfNil(events))
}

func (s *Server) readRAG(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	query := lastSegment(request.Params.URI)
	if decoded, err := url.PathUnescape(query); err == nil {
		query = decoded
	}
	if query == "" {
		return jsonContents(request.Params.URI, map[string]string{"error": "Missing query"})
	}
	if s.deps.Engine == nil {
		return jsonContents(request.Params.URI, map[string]string{"error": "semantic search is not configured"})
	}
	return jsonContents(request.Params.URI, s.deps.Engine.Answer(ctx, query))
}

// lastSegment returns the final path element of a resource URI, which
// may be empty when the URI ends with a slash.
func lastSegment(uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return ""
	}
	return uri[idx+1:]
}

func jsonContents(uri string, payload any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal failed: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
