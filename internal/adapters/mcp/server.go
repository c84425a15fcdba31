// Package mcpadapter exposes emission factor lookups as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

const (
	serverName    = "tp-companion"
	serverVersion = "1.0.0"

	toolFuelFactor    = "fuel_factor"
	toolGridIntensity = "grid_intensity"
)

type Tools struct {
	factors ports.FactorService
}

func NewTools(factors ports.FactorService) *Tools {
	return &Tools{factors: factors}
}

// NewServer registers the factor tools on a fresh MCP server.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(toolFuelFactor,
		mcp.WithDescription("Emission factor in kg CO2e per liter for a fuel type (diesel, gasoline, lpg, cng)."),
		mcp.WithString("fuelType", mcp.Required(), mcp.Description("Fuel type, e.g. diesel")),
	), tools.FuelFactor)

	s.AddTool(mcp.NewTool(toolGridIntensity,
		mcp.WithDescription("Carbon intensity of a country's electricity grid in g CO2e per kWh."),
		mcp.WithString("country", mcp.Required(), mcp.Description("ISO 3166-1 alpha-2 country code, e.g. DE")),
	), tools.GridIntensity)

	return s
}

// NewHandler serves the MCP streamable HTTP transport. Callers put it behind
// authentication.
func NewHandler(factors ports.FactorService) http.Handler {
	return server.NewStreamableHTTPServer(NewServer(NewTools(factors)))
}

func (t *Tools) FuelFactor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fuelType, err := request.RequireString("fuelType")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	factor, err := t.factors.FuelFactor(ctx, fuelType)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(factor)
}

func (t *Tools) GridIntensity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	country, err := request.RequireString("country")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	intensity, err := t.factors.GridIntensity(ctx, country)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(intensity)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// toolError reports input problems verbatim and hides everything else.
func toolError(err error) *mcp.CallToolResult {
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(domain.KindName(err))
}
