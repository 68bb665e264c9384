// Package resource describes the proxied MarkLogic Management API endpoints
// as data: one Endpoint per route, each carrying its parameter allow-list,
// default format and error relay policy.
package resource

import (
	"net/url"
	"strings"
)

// ManagePrefix is the path prefix shared by the proxy and MarkLogic.
const ManagePrefix = "/manage/v2"

// IDParam is the echo route parameter holding the resource id or name.
const IDParam = "idOrName"

// Kind distinguishes collection listings from single-resource properties.
type Kind string

// Endpoint kinds.
const (
	KindList       Kind = "list"
	KindProperties Kind = "properties"
)

// ErrorPolicy selects how a non-2xx upstream response is relayed.
type ErrorPolicy int

const (
	// ErrorEnvelope replaces the upstream body with
	// {"error":"MarkLogic returned status: <code>"} at the upstream status.
	ErrorEnvelope ErrorPolicy = iota
	// ErrorPassthrough relays the upstream body and status unchanged.
	ErrorPassthrough
	// ErrorPassthroughCollapsed relays the upstream body, collapsing the
	// status to 400, 401, 404 or 500.
	ErrorPassthroughCollapsed
)

// Param is one recognized query parameter.
type Param struct {
	Name string
	// Allowed enumerates accepted values; nil accepts anything.
	Allowed []string
	// Required rejects requests where the parameter is absent or blank.
	Required bool
}

// Endpoint describes one proxied route.
type Endpoint struct {
	Resource string
	Kind     Kind
	// Params are validated and forwarded in this order.
	Params []Param
	// DefaultFormat applies when the request carries no format.
	DefaultFormat Format
	// EchoContentType labels successful responses with the upstream's own
	// Content-Type instead of the format-derived one.
	EchoContentType bool
	ErrorPolicy     ErrorPolicy
}

// Name identifies the endpoint in logs and metrics, e.g. "hosts.properties".
func (e *Endpoint) Name() string {
	return e.Resource + "." + string(e.Kind)
}

// Route is the echo route pattern the endpoint is served on.
func (e *Endpoint) Route() string {
	if e.Kind == KindProperties {
		return ManagePrefix + "/" + e.Resource + "/:" + IDParam + "/properties"
	}
	return ManagePrefix + "/" + e.Resource
}

// UpstreamPath returns the escaped MarkLogic path for the endpoint.
// idOrName is ignored for list endpoints.
func (e *Endpoint) UpstreamPath(idOrName string) string {
	if e.Kind == KindProperties {
		return ManagePrefix + "/" + e.Resource + "/" + url.PathEscape(idOrName) + "/properties"
	}
	return ManagePrefix + "/" + e.Resource
}

var (
	jsonXML         = []string{"json", "xml"}
	jsonXMLHTML     = []string{"json", "xml", "html"}
	trueFalse       = []string{"true", "false"}
	formatJSONXML   = Param{Name: "format", Allowed: jsonXML}
	formatJSONXMLHT = Param{Name: "format", Allowed: jsonXMLHTML}
	fullrefs        = Param{Name: "fullrefs", Allowed: trueFalse}
)

var endpoints = []*Endpoint{
	{
		Resource:      "databases",
		Kind:          KindList,
		Params:        []Param{formatJSONXML, {Name: "view"}},
		DefaultFormat: FormatJSON,
	},
	{
		Resource:      "databases",
		Kind:          KindProperties,
		Params:        []Param{formatJSONXML},
		DefaultFormat: FormatJSON,
	},
	{
		Resource: "forests",
		Kind:     KindList,
		Params: []Param{
			formatJSONXML,
			{Name: "view", Allowed: []string{"schema", "counts", "storage", "metrics", "default", "status"}},
			{Name: "database-id"},
			{Name: "group-id"},
			{Name: "host-id"},
			fullrefs,
		},
		EchoContentType: true,
		ErrorPolicy:     ErrorPassthrough,
	},
	{
		Resource:        "forests",
		Kind:            KindProperties,
		Params:          []Param{formatJSONXML},
		EchoContentType: true,
		ErrorPolicy:     ErrorPassthrough,
	},
	{
		Resource:      "groups",
		Kind:          KindList,
		Params:        []Param{formatJSONXMLHT, {Name: "view", Allowed: []string{"schema", "default"}}},
		DefaultFormat: FormatJSON,
	},
	{
		Resource:      "groups",
		Kind:          KindProperties,
		Params:        []Param{formatJSONXML},
		DefaultFormat: FormatJSON,
	},
	{
		Resource: "hosts",
		Kind:     KindList,
		Params: []Param{
			{Name: "format", Allowed: []string{"html", "json", "xml"}},
			{Name: "group-id"},
			{Name: "view", Allowed: []string{"schema", "status", "metrics", "default"}},
		},
		DefaultFormat: FormatJSON,
		ErrorPolicy:   ErrorPassthrough,
	},
	{
		Resource:      "hosts",
		Kind:          KindProperties,
		Params:        []Param{formatJSONXML},
		DefaultFormat: FormatJSON,
		ErrorPolicy:   ErrorPassthrough,
	},
	{
		Resource: "logs",
		Kind:     KindList,
		Params: []Param{
			{Name: "format", Allowed: []string{"json", "xml", "html", "text"}},
			{Name: "filename", Required: true},
			{Name: "host"},
			{Name: "start"},
			{Name: "end"},
			{Name: "regex"},
		},
		DefaultFormat: FormatXML,
		ErrorPolicy:   ErrorPassthroughCollapsed,
	},
	{
		Resource:      "roles",
		Kind:          KindList,
		Params:        []Param{formatJSONXMLHT},
		DefaultFormat: FormatXML,
	},
	{
		Resource:      "roles",
		Kind:          KindProperties,
		Params:        []Param{formatJSONXML},
		DefaultFormat: FormatXML,
	},
	{
		Resource: "servers",
		Kind:     KindList,
		Params: []Param{
			formatJSONXMLHT,
			{Name: "group-id"},
			{Name: "view", Allowed: []string{"default", "schema", "status", "metrics", "package"}},
			fullrefs,
		},
		DefaultFormat: FormatJSON,
	},
	{
		Resource:      "servers",
		Kind:          KindProperties,
		Params:        []Param{formatJSONXML, {Name: "group-id", Required: true}},
		DefaultFormat: FormatJSON,
	},
	{
		Resource:      "users",
		Kind:          KindList,
		Params:        []Param{formatJSONXMLHT},
		DefaultFormat: FormatJSON,
	},
	{
		Resource:      "users",
		Kind:          KindProperties,
		Params:        []Param{formatJSONXML},
		DefaultFormat: FormatXML,
	},
}

// Endpoints returns the full dispatch table in registration order.
func Endpoints() []*Endpoint {
	return endpoints
}

// Lookup finds an endpoint by resource and kind.
func Lookup(resource string, kind Kind) (*Endpoint, bool) {
	for _, e := range endpoints {
		if e.Resource == resource && e.Kind == kind {
			return e, true
		}
	}
	return nil, false
}

// Resources returns the distinct resource names in table order.
func Resources() []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range endpoints {
		if !seen[e.Resource] {
			seen[e.Resource] = true
			out = append(out, e.Resource)
		}
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
