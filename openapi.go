package uxum

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi" yaml:"openapi"`
	Info    OpenAPIInfo         `json:"info" yaml:"info"`
	Paths   map[string]PathItem `json:"paths" yaml:"paths"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

// PathItem maps lowercase HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path. Handlers attach it
// via WithOperation (or the convenience options); the router fills in the
// operationId and path parameters it can derive itself.
type Operation struct {
	Summary     string              `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID string              `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses,omitempty" yaml:"responses,omitempty"`
	Deprecated  bool                `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string         `json:"name" yaml:"name"`
	In          string         `json:"in" yaml:"in"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool                 `json:"required" yaml:"required"`
	Content  map[string]MediaType `json:"content" yaml:"content"`
}

// MediaType is a media type object with an optional schema.
type MediaType struct {
	Schema map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Response describes a single response of an operation.
type Response struct {
	Description string               `json:"description" yaml:"description"`
	Content     map[string]MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// buildSpec assembles the OpenAPI document from the handlers that survived
// assembly, skipping those configured hidden.
func buildSpec(title, version string, handlers []*Handler, cfg *AppConfig) *OpenAPISpec {
	spec := &OpenAPISpec{
		OpenAPI: "3.1.0",
		Info:    OpenAPIInfo{Title: title, Version: version},
		Paths:   make(map[string]PathItem),
	}

	for _, h := range handlers {
		if cfg.handler(h.name).Hidden {
			continue
		}

		op := h.spec
		if op.OperationID == "" {
			op.OperationID = h.name
		}
		if op.Responses == nil {
			op.Responses = map[string]Response{
				"200": {Description: "Success"},
			}
		}
		op.Parameters = append(pathParameters(h.path), op.Parameters...)

		path := specPath(h.path)
		if spec.Paths[path] == nil {
			spec.Paths[path] = make(PathItem)
		}
		spec.Paths[path][strings.ToLower(h.method)] = op
	}

	return spec
}

// specPath converts ":name" path segments to OpenAPI "{name}" templates.
func specPath(path string) string {
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if strings.HasPrefix(seg, ":") {
			segs[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

// pathParameters derives required path parameters from ":name" segments.
func pathParameters(path string) []Parameter {
	var params []Parameter
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ":") {
			params = append(params, Parameter{
				Name:     seg[1:],
				In:       "path",
				Required: true,
				Schema:   map[string]any{"type": "string"},
			})
		}
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}

// Spec returns the assembled OpenAPI document.
func (r *Router) Spec() *OpenAPISpec {
	return r.spec
}

// WriteSpec writes the OpenAPI spec as indented JSON to w.
func (r *Router) WriteSpec(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.spec)
}

// WriteSpecYAML writes the OpenAPI spec as YAML to w.
func (r *Router) WriteSpecYAML(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(r.spec)
}

func specHandler(spec *OpenAPISpec) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(spec)
	})
}
