package resource

import (
	"net/url"
	"slices"
	"strings"

	"marklogic-admin-proxy/internal/model"
)

// ValidationError reports a parameter rejected before any upstream call.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validated is the outcome of a successful Validate.
type Validated struct {
	// Query holds the parameters to forward, in descriptor order.
	Query []model.QueryParam
	// Format is the requested format, or the endpoint default. It is empty
	// only for endpoints without a default when none was requested.
	Format Format
}

// Validate checks query against the endpoint's allow-list. Parameters are
// examined in descriptor order and the first failure is returned as a
// *ValidationError. Blank values count as absent; unrecognized keys are
// dropped.
func (e *Endpoint) Validate(query url.Values) (*Validated, error) {
	out := &Validated{}
	for _, p := range e.Params {
		v := query.Get(p.Name)
		if isBlank(v) {
			if p.Name == "format" && e.DefaultFormat != "" {
				v = string(e.DefaultFormat)
			} else if p.Required {
				return nil, &ValidationError{Param: p.Name, Message: p.Name + " parameter is required"}
			} else {
				continue
			}
		}
		if p.Allowed != nil && !slices.Contains(p.Allowed, v) {
			return nil, &ValidationError{Param: p.Name, Message: invalidMessage(p)}
		}
		if p.Name == "format" {
			out.Format = Format(v)
		}
		out.Query = append(out.Query, model.QueryParam{Name: p.Name, Value: v})
	}
	return out, nil
}

// ValidateID rejects a blank identifier on properties endpoints. List
// endpoints take no identifier and always pass.
func (e *Endpoint) ValidateID(idOrName string) error {
	if e.Kind == KindProperties && isBlank(idOrName) {
		return &ValidationError{Param: IDParam, Message: IDParam + " parameter is required"}
	}
	return nil
}

// invalidMessage renders e.g. "Invalid format parameter. Must be 'json' or 'xml'".
func invalidMessage(p Param) string {
	var b strings.Builder
	b.WriteString("Invalid ")
	b.WriteString(p.Name)
	b.WriteString(" parameter. Must be ")

	quoted := make([]string, len(p.Allowed))
	for i, v := range p.Allowed {
		quoted[i] = "'" + v + "'"
	}

	switch n := len(quoted); {
	case n == 1:
		b.WriteString(quoted[0])
	case n == 2:
		b.WriteString(quoted[0] + " or " + quoted[1])
	case n == 3:
		b.WriteString(quoted[0] + ", " + quoted[1] + ", or " + quoted[2])
	default:
		b.WriteString("one of: ")
		b.WriteString(strings.Join(p.Allowed, ", "))
	}
	return b.String()
}
