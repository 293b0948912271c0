package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairo-ai/kairo/internal/cache"
	"github.com/kairo-ai/kairo/internal/catalog"
	"github.com/kairo-ai/kairo/internal/compat"
	"github.com/kairo-ai/kairo/internal/intermediary"
	"github.com/kairo-ai/kairo/internal/model"
	"github.com/kairo-ai/kairo/internal/output"
	"github.com/kairo-ai/kairo/internal/pipeline"
	"github.com/kairo-ai/kairo/internal/search"
)

func f(v float64) *float64 { return &v }

type sliceSource []model.PartRecord

func (s sliceSource) LoadParts(ctx context.Context) ([]model.PartRecord, error) {
	return s, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	parts := []model.PartRecord{
		{
			ID: "mcu-1", MPN: "ESP32-S3", Manufacturer: "Espressif",
			Category:      "mcu_wifi",
			SupplyVoltage: model.VoltageRange{Min: f(3.0), Max: f(3.6), Nominal: f(3.3)},
			Current:       model.CurrentSpec{MaxA: f(0.5)},
			Interfaces:    []string{"wifi", "i2c"},
			Lifecycle:     model.LifecycleActive,
			Availability:  model.AvailabilityInStock,
			Pins:          []string{"VDD", "GND", "SDA", "SCL"},
		},
		{
			ID: "sensor-1", MPN: "BME280", Manufacturer: "Bosch",
			Category:      "sensor_environment",
			SupplyVoltage: model.VoltageRange{Min: f(3.0), Max: f(5.5), Nominal: f(3.3)},
			Current:       model.CurrentSpec{MaxA: f(0.01)},
			Interfaces:    []string{"i2c"},
			Lifecycle:     model.LifecycleActive,
			Availability:  model.AvailabilityInStock,
			Pins:          []string{"VDD", "GND", "SDA", "SCL"},
		},
	}

	mem := cache.NewMemory()
	t.Cleanup(mem.Close)

	cat := catalog.New(sliceSource(parts), mem, time.Minute, logger)
	require.NoError(t, cat.Load(context.Background()))

	eng := search.NewEngine(cat, mem, time.Minute, search.DefaultWeights(), logger)
	chk := compat.NewChecker(nil, mem, time.Minute, time.Second, logger)
	orch := pipeline.New(pipeline.Deps{
		Catalog:  cat,
		Search:   eng,
		Compat:   chk,
		Resolver: intermediary.NewResolver(cat, logger),
		Output:   output.NewGenerator(logger),
		Logger:   logger,
	}, pipeline.Options{})

	return New(cat, eng, chk, orch, logger)
}

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no TextContent found in tool result")
	return ""
}

func TestSearchPartsTool(t *testing.T) {
	s := testServer(t)

	result, err := s.handleSearchParts(context.Background(), toolRequest("kairo_search_parts", map[string]any{
		"category":   "sensor",
		"interfaces": "i2c",
		"in_stock":   true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Results []search.ScoredPart `json:"results"`
		Total   int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &payload))
	require.Equal(t, 1, payload.Total)
	assert.Equal(t, "sensor-1", payload.Results[0].Part.ID)
}

func TestSearchPartsTool_MissingCategory(t *testing.T) {
	s := testServer(t)

	result, err := s.handleSearchParts(context.Background(), toolRequest("kairo_search_parts", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCheckCompatibilityTool(t *testing.T) {
	s := testServer(t)

	result, err := s.handleCheckCompatibility(context.Background(), toolRequest("kairo_check_compatibility", map[string]any{
		"part_a":          "mcu-1",
		"part_b":          "sensor-1",
		"connection_type": "power",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var verdict model.CompatibilityResult
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &verdict))
	assert.True(t, verdict.Compatible)
}

func TestCheckCompatibilityTool_UnknownPart(t *testing.T) {
	s := testServer(t)

	result, err := s.handleCheckCompatibility(context.Background(), toolRequest("kairo_check_compatibility", map[string]any{
		"part_a":          "mcu-1",
		"part_b":          "nope",
		"connection_type": "power",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestResolveDesignTool(t *testing.T) {
	s := testServer(t)

	arch, err := json.Marshal(model.ArchitectureGraph{
		AnchorBlock: model.BlockDescriptor{Type: "mcu", RequiredInterfaces: []string{"i2c"}},
		ChildBlocks: []model.BlockDescriptor{{Type: "sensor", RequiredInterfaces: []string{"i2c"}}},
	})
	require.NoError(t, err)

	result, err := s.handleResolveDesign(context.Background(), toolRequest("kairo_resolve_design", map[string]any{
		"architecture": string(arch),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		State  string          `json:"state"`
		Design json.RawMessage `json:"design"`
	}
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &payload))
	assert.Equal(t, "done", payload.State)

	var design model.DesignState
	require.NoError(t, json.Unmarshal(payload.Design, &design))
	_, ok := design.Part("anchor")
	assert.True(t, ok)
	_, ok = design.Part("sensor")
	assert.True(t, ok)
}

func TestResolveDesignTool_InvalidDocument(t *testing.T) {
	s := testServer(t)

	result, err := s.handleResolveDesign(context.Background(), toolRequest("kairo_resolve_design", map[string]any{
		"architecture": "{not json",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestPartResource(t *testing.T) {
	s := testServer(t)

	contents, err := s.handlePartResource(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: "kairo://catalog/part/mcu-1"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)

	var part model.PartRecord
	require.NoError(t, json.Unmarshal([]byte(text.Text), &part))
	assert.Equal(t, "ESP32-S3", part.MPN)
}

func TestPartResource_NotFound(t *testing.T) {
	s := testServer(t)

	_, err := s.handlePartResource(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: "kairo://catalog/part/ghost"},
	})
	assert.Error(t, err)
}
