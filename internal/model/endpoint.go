package model

// Source identifies how an endpoint was discovered.
type Source string

// Endpoint discovery sources.
const (
	// SourceDOM marks endpoints found in the rendered page markup
	// (href, src, and action attribute values).
	SourceDOM Source = "dom"

	// SourceNetwork marks endpoints observed as browser network requests
	// during page load and interaction.
	SourceNetwork Source = "network"
)

// DOM element kinds recorded in Endpoint.Type for SourceDOM endpoints.
// Network endpoints carry the browser resource type (xhr, fetch, script, ...)
// in the same field.
const (
	TypeAnchor = "anchor"
	TypeScript = "script"
	TypeImage  = "img"
	TypeForm   = "form"
	TypeLink   = "link"
)

// Endpoint is a single URL observed during a scrape.
//
// The field set intentionally stays flat: the report formats (JSON array,
// CSV rows, URL-per-line text) are flat, and anything richer than a URL plus
// discovery metadata is out of scope for this tool.
type Endpoint struct {
	// URL is the absolute URL of the endpoint. Relative attribute values
	// are resolved against the page they were found on before being stored.
	URL string `json:"url"`

	// Source is where the endpoint was observed: "dom" or "network".
	Source Source `json:"source"`

	// Type is the browser resource type for network endpoints
	// (xhr, fetch, document, script, image, ...) or the element kind for
	// DOM endpoints (anchor, script, img, form, link).
	Type string `json:"type,omitempty"`

	// Method is the HTTP method of a network request. Empty for DOM
	// endpoints.
	Method string `json:"method,omitempty"`

	// Page is the URL of the page the endpoint was discovered on.
	Page string `json:"page,omitempty"`
}
