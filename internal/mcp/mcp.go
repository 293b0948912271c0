// Package mcp implements the Model Context Protocol server for Kairo.
//
// The MCP server exposes part search, pairwise compatibility checks and
// full design resolution as tools, plus read-only catalog resources, so
// MCP-compatible agents can drive the resolution pipeline directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kairo-ai/kairo/internal/catalog"
	"github.com/kairo-ai/kairo/internal/compat"
	"github.com/kairo-ai/kairo/internal/model"
	"github.com/kairo-ai/kairo/internal/pipeline"
	"github.com/kairo-ai/kairo/internal/search"
)

// Server wraps the MCP server with Kairo's pipeline stages.
type Server struct {
	mcpServer *mcpserver.MCPServer
	catalog   *catalog.Catalog
	search    *search.Engine
	compat    *compat.Checker
	pipeline  *pipeline.Orchestrator
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(cat *catalog.Catalog, eng *search.Engine, chk *compat.Checker, orch *pipeline.Orchestrator, logger *slog.Logger) *Server {
	s := &Server{
		catalog:  cat,
		search:   eng,
		compat:   chk,
		pipeline: orch,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kairo",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// kairo://catalog/part/{id} — one catalog part record.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"kairo://catalog/part/{id}",
			"Catalog Part",
			mcplib.WithTemplateDescription("A single part record by catalog id"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handlePartResource,
	)
}

func (s *Server) registerTools() {
	// kairo_search_parts — constrained catalog search with ranking.
	s.mcpServer.AddTool(
		mcplib.NewTool("kairo_search_parts",
			mcplib.WithDescription("Search the part catalog by category with optional interface and stock constraints; results are ranked"),
			mcplib.WithString("category", mcplib.Description("Catalog category key, e.g. regulator_buck"), mcplib.Required()),
			mcplib.WithString("interfaces", mcplib.Description("Comma-separated required interfaces, e.g. i2c,spi")),
			mcplib.WithBoolean("in_stock", mcplib.Description("Restrict to in-stock parts")),
			mcplib.WithNumber("limit", mcplib.Description("Maximum results to return")),
		),
		s.handleSearchParts,
	)

	// kairo_check_compatibility — pairwise electrical/interface check.
	s.mcpServer.AddTool(
		mcplib.NewTool("kairo_check_compatibility",
			mcplib.WithDescription("Check power or interface compatibility between two catalog parts"),
			mcplib.WithString("part_a", mcplib.Description("Source part id"), mcplib.Required()),
			mcplib.WithString("part_b", mcplib.Description("Target part id"), mcplib.Required()),
			mcplib.WithString("connection_type", mcplib.Description("power or interface"), mcplib.Required()),
		),
		s.handleCheckCompatibility,
	)

	// kairo_resolve_design — run the full resolution pipeline.
	s.mcpServer.AddTool(
		mcplib.NewTool("kairo_resolve_design",
			mcplib.WithDescription("Resolve an abstract architecture document into a concrete design with netlist and BOM"),
			mcplib.WithString("architecture", mcplib.Description("Architecture graph as a JSON document"), mcplib.Required()),
		),
		s.handleResolveDesign,
	)
}

func (s *Server) handlePartResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimPrefix(uri, "kairo://catalog/part/")
	if id == "" || id == uri {
		return nil, fmt.Errorf("mcp: invalid part URI: %s", uri)
	}

	part, ok := s.catalog.GetByID(id)
	if !ok {
		return nil, fmt.Errorf("mcp: part %q not found", id)
	}

	data, err := json.MarshalIndent(part, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal part: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSearchParts(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	category := request.GetString("category", "")
	if category == "" {
		return errorResult("category is required"), nil
	}

	var cons catalog.Constraints
	if raw := request.GetString("interfaces", ""); raw != "" {
		for _, iface := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(iface); trimmed != "" {
				cons.Interfaces = append(cons.Interfaces, trimmed)
			}
		}
	}
	inStock := request.GetBool("in_stock", false)
	if inStock {
		avail := model.AvailabilityInStock
		cons.Availability = &avail
	}

	ranked := s.search.SearchAndRank(ctx, category, cons, search.Preferences{PreferInStock: inStock})
	if limit := request.GetInt("limit", 10); limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	resultData, _ := json.MarshalIndent(map[string]any{
		"results": ranked,
		"total":   len(ranked),
	}, "", "  ")

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleCheckCompatibility(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idA := request.GetString("part_a", "")
	idB := request.GetString("part_b", "")
	ctRaw := request.GetString("connection_type", "")
	if idA == "" || idB == "" || ctRaw == "" {
		return errorResult("part_a, part_b, and connection_type are required"), nil
	}

	ct := model.ConnectionType(strings.ToLower(ctRaw))
	if ct != model.ConnectionPower && ct != model.ConnectionInterface {
		return errorResult(fmt.Sprintf("unknown connection type %q", ctRaw)), nil
	}

	partA, ok := s.catalog.GetByID(idA)
	if !ok {
		return errorResult(fmt.Sprintf("part %q not found", idA)), nil
	}
	partB, ok := s.catalog.GetByID(idB)
	if !ok {
		return errorResult(fmt.Sprintf("part %q not found", idB)), nil
	}

	result := s.compat.Check(ctx, partA, partB, ct)
	resultData, _ := json.MarshalIndent(result, "", "  ")

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleResolveDesign(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw := request.GetString("architecture", "")
	if raw == "" {
		return errorResult("architecture is required"), nil
	}

	var arch model.ArchitectureGraph
	if err := json.Unmarshal([]byte(raw), &arch); err != nil {
		return errorResult(fmt.Sprintf("invalid architecture document: %v", err)), nil
	}

	res, err := s.pipeline.Run(ctx, arch)
	if err != nil {
		s.logger.Warn("mcp: pipeline run failed", "error", err)
		// The partial design still goes back for inspection.
	}

	payload := map[string]any{
		"run_id":         res.RunID,
		"state":          res.State,
		"skipped_blocks": res.SkippedBlocks,
		"design":         res.Design,
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	resultData, merr := json.MarshalIndent(payload, "", "  ")
	if merr != nil {
		return errorResult(fmt.Sprintf("marshal design: %v", merr)), nil
	}

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
