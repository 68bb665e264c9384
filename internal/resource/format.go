package resource

// Format is the serialization requested with the format query parameter.
type Format string

// Formats understood by the Management API.
const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatHTML Format = "html"
	FormatText Format = "text"
)

var mediaTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatXML:  "application/xml",
	FormatHTML: "text/html",
	FormatText: "text/plain",
}

// MediaType returns the Accept/Content-Type value for f, or "" when f is
// empty or unknown.
func (f Format) MediaType() string {
	return mediaTypes[f]
}
