package mcp

import (
	"encoding/json"
	"sort"
	"strings"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

// OpenAPISpec is the subset of an OpenAPI 3.0 document the tool listing needs.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi"`
	Info    OpenAPIInfo         `json:"info"`
	Tags    []OpenAPITag        `json:"tags,omitempty"`
	Paths   map[string]PathItem `json:"paths"`
}

type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type OpenAPITag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PathItem holds the single POST operation a tool maps to.
type PathItem struct {
	Post *Operation `json:"post,omitempty"`
}

type Operation struct {
	OperationID string              `json:"operationId"`
	Summary     string              `json:"summary,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

type MediaType struct {
	Schema any `json:"schema"`
}

type Response struct {
	Description string `json:"description"`
}

// toolGroups tags tools by the billing area they touch. The first matching
// name fragment wins, so "timer" is checked before "time".
var toolGroups = []struct {
	fragment string
	tag      OpenAPITag
}{
	{"rate", OpenAPITag{Name: "rates", Description: "Hourly rate resolution and rate rules"}},
	{"timer", OpenAPITag{Name: "timers", Description: "Running timers and their finalization into time entries"}},
	{"time", OpenAPITag{Name: "time", Description: "Time entry logging, editing and listing"}},
	{"budget", OpenAPITag{Name: "finance", Description: "Budget consumption and profitability"}},
	{"finance", OpenAPITag{Name: "finance", Description: "Budget consumption and profitability"}},
}

func tagFor(tool string) OpenAPITag {
	for _, g := range toolGroups {
		if strings.Contains(tool, g.fragment) {
			return g.tag
		}
	}
	return OpenAPITag{Name: "billing"}
}

// responsesFor lists the outcomes a tool can produce. Money in responses is
// encoded as decimal strings.
func responsesFor(tool string) map[string]Response {
	r := map[string]Response{
		"200": {Description: "Tool result as JSON"},
		"400": {Description: "Validation failed (malformed amount, date or hours)"},
		"500": {Description: "Internal error"},
	}
	if tool != "layers_list_rate_rules" && tool != "layers_resolve_rate" {
		r["404"] = Response{Description: "Referenced project, task, entry or timer does not exist"}
	}
	if tool == "layers_start_timer" {
		r["409"] = Response{Description: "The user already has a running timer"}
	}
	return r
}

// OpenAPI returns the OpenAPI 3.0 JSON document for this server.
func (s *Server) OpenAPI() ([]byte, error) {
	return GenerateOpenAPI(s.mcpServer)
}

// GenerateOpenAPI maps every registered tool to POST /tools/{name}.
func GenerateOpenAPI(srv *mcplib.Server) ([]byte, error) {
	tools := srv.Tools()

	paths := make(map[string]PathItem, len(tools))
	tags := map[string]OpenAPITag{}
	for _, t := range tools {
		tag := tagFor(t.Name)
		tags[tag.Name] = tag

		op := Operation{
			OperationID: t.Name,
			Summary:     t.Description,
			Tags:        []string{tag.Name},
			Responses:   responsesFor(t.Name),
		}
		if len(schemaProperties(t.InputSchema)) > 0 {
			op.RequestBody = &RequestBody{
				Required: true,
				Content: map[string]MediaType{
					"application/json": {Schema: t.InputSchema},
				},
			}
		}
		paths["/tools/"+t.Name] = PathItem{Post: &op}
	}

	spec := OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "Layers Billing API",
			Description: "Rate resolution, time tracking and project finance tools.",
			Version:     SchemaVersion,
		},
		Paths: paths,
	}
	for _, tag := range tags {
		spec.Tags = append(spec.Tags, tag)
	}
	sort.Slice(spec.Tags, func(i, j int) bool { return spec.Tags[i].Name < spec.Tags[j].Name })

	return json.MarshalIndent(spec, "", "  ")
}

// schemaProperties returns the properties of a JSON Schema, or nil. Tool
// schemas arrive as typed values from mcp-go, so they are read through their
// JSON form.
func schemaProperties(schema any) map[string]json.RawMessage {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.Properties
}
