package mcp

import (
	"context"
	"encoding/json"
	"sort"

	mcplib "github.com/felixgeelhaar/mcp-go"

	"github.com/reneee98/layers/pkg/domain/billing"
)

// SchemaVersion is the current MCP tool schema version (semver).
const SchemaVersion = "1.0.0"

const schemaURI = "layers://schema"

// Conventions tells clients how billing values are encoded in tool payloads.
type Conventions struct {
	Money        string   `json:"money"`
	AmountPlaces int32    `json:"amount_places"`
	HoursPlaces  int32    `json:"hours_places"`
	DateFormat   string   `json:"date_format"`
	Currency     string   `json:"currency"`
	RateSources  []string `json:"rate_source_order"`
}

type schemaResponse struct {
	SchemaVersion string      `json:"schema_version"`
	ServerVersion string      `json:"server_version"`
	Conventions   Conventions `json:"conventions"`
	Tools         []string    `json:"tools"`
}

func (s *Server) toolNames() []string {
	tools := s.mcpServer.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// rateSourceOrder lists rate sources in the order the resolver tries them.
func rateSourceOrder() []string {
	var order []string
	for _, st := range billing.DefaultRateStrategies(nil) {
		order = append(order, string(st.Source()))
	}
	return append(order, string(billing.SourceFallback))
}

func (s *Server) schemaDocument() schemaResponse {
	return schemaResponse{
		SchemaVersion: SchemaVersion,
		ServerVersion: Version,
		Conventions: Conventions{
			Money:        "decimal string",
			AmountPlaces: billing.AmountPlaces,
			HoursPlaces:  billing.HoursPlaces,
			DateFormat:   billing.DateLayout,
			Currency:     s.services.Workspace.Config.Currency,
			RateSources:  rateSourceOrder(),
		},
		Tools: s.toolNames(),
	}
}

func (s *Server) registerSchemaResource() {
	s.mcpServer.Resource(schemaURI).
		Name(schemaURI).
		Description("Billing tool schema version, value conventions and tool list").
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			data, err := json.Marshal(s.schemaDocument())
			if err != nil {
				return nil, err
			}
			return &mcplib.ResourceContent{
				URI:      schemaURI,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}
