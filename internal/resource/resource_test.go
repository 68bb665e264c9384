package resource

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"marklogic-admin-proxy/internal/model"
)

func mustLookup(t *testing.T, res string, kind Kind) *Endpoint {
	t.Helper()
	e, ok := Lookup(res, kind)
	if !ok {
		t.Fatalf("Lookup(%q, %q) not found", res, kind)
	}
	return e
}

func TestEndpoints_CoverEveryRoute(t *testing.T) {
	want := []string{
		"/manage/v2/databases",
		"/manage/v2/databases/:idOrName/properties",
		"/manage/v2/forests",
		"/manage/v2/forests/:idOrName/properties",
		"/manage/v2/groups",
		"/manage/v2/groups/:idOrName/properties",
		"/manage/v2/hosts",
		"/manage/v2/hosts/:idOrName/properties",
		"/manage/v2/logs",
		"/manage/v2/roles",
		"/manage/v2/roles/:idOrName/properties",
		"/manage/v2/servers",
		"/manage/v2/servers/:idOrName/properties",
		"/manage/v2/users",
		"/manage/v2/users/:idOrName/properties",
	}

	got := make(map[string]bool)
	for _, e := range Endpoints() {
		if got[e.Route()] {
			t.Errorf("duplicate route %q", e.Route())
		}
		got[e.Route()] = true
	}
	for _, r := range want {
		if !got[r] {
			t.Errorf("missing route %q", r)
		}
	}
	if len(got) != len(want) {
		t.Errorf("got %d routes, want %d", len(got), len(want))
	}
}

func TestEndpoints_EveryFormatValidatedFirst(t *testing.T) {
	for _, e := range Endpoints() {
		if len(e.Params) == 0 || e.Params[0].Name != "format" {
			t.Errorf("%s: first param = %v, want format", e.Name(), e.Params)
		}
		if e.Params[0].Allowed == nil {
			t.Errorf("%s: format has no allow-list", e.Name())
		}
	}
}

func TestResources(t *testing.T) {
	got := strings.Join(Resources(), ",")
	want := "databases,forests,groups,hosts,logs,roles,servers,users"
	if got != want {
		t.Errorf("Resources() = %q, want %q", got, want)
	}
}

func TestUpstreamPath(t *testing.T) {
	tests := []struct {
		res  string
		kind Kind
		id   string
		want string
	}{
		{"databases", KindList, "", "/manage/v2/databases"},
		{"databases", KindProperties, "Documents", "/manage/v2/databases/Documents/properties"},
		{"hosts", KindProperties, "node 1", "/manage/v2/hosts/node%201/properties"},
		{"forests", KindProperties, "a/b", "/manage/v2/forests/a%2Fb/properties"},
		{"logs", KindList, "ignored", "/manage/v2/logs"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			e := mustLookup(t, tt.res, tt.kind)
			if got := e.UpstreamPath(tt.id); got != tt.want {
				t.Errorf("UpstreamPath(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		res       string
		kind      Kind
		query     string
		wantParam string
		wantMsg   string
	}{
		{"databases bad format", "databases", KindList, "format=yaml", "format", "Invalid format parameter. Must be 'json' or 'xml'"},
		{"forests properties bad format", "forests", KindProperties, "format=invalid", "format", "Invalid format parameter. Must be 'json' or 'xml'"},
		{"forests bad view", "forests", KindList, "view=bogus", "view", "Invalid view parameter. Must be one of: schema, counts, storage, metrics, default, status"},
		{"forests bad fullrefs", "forests", KindList, "fullrefs=yes", "fullrefs", "Invalid fullrefs parameter. Must be 'true' or 'false'"},
		{"groups bad format", "groups", KindList, "format=text", "format", "Invalid format parameter. Must be 'json', 'xml', or 'html'"},
		{"groups bad view", "groups", KindList, "view=status", "view", "Invalid view parameter. Must be 'schema' or 'default'"},
		{"hosts bad format", "hosts", KindList, "format=csv", "format", "Invalid format parameter. Must be 'html', 'json', or 'xml'"},
		{"hosts properties html", "hosts", KindProperties, "format=html", "format", "Invalid format parameter. Must be 'json' or 'xml'"},
		{"logs bad format", "logs", KindList, "format=csv&filename=ErrorLog.txt", "format", "Invalid format parameter. Must be one of: json, xml, html, text"},
		{"logs missing filename", "logs", KindList, "", "filename", "filename parameter is required"},
		{"logs blank filename", "logs", KindList, "filename=%20%20", "filename", "filename parameter is required"},
		{"roles properties html", "roles", KindProperties, "format=html", "format", "Invalid format parameter"},
		{"servers bad view", "servers", KindList, "view=bogus", "view", "Invalid view parameter"},
		{"servers properties missing group-id", "servers", KindProperties, "format=json", "group-id", "group-id parameter is required"},
		{"users bad format", "users", KindList, "format=invalid", "format", "Invalid format parameter"},
		{"format is case sensitive", "users", KindProperties, "format=JSON", "format", "Invalid format parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			_, err = mustLookup(t, tt.res, tt.kind).Validate(q)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", ve.Param, tt.wantParam)
			}
			if !strings.Contains(ve.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", ve.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidate_FirstFailureWins(t *testing.T) {
	q := url.Values{"format": {"bad"}, "view": {"bad"}, "fullrefs": {"bad"}}
	_, err := mustLookup(t, "forests", KindList).Validate(q)

	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Param != "format" {
		t.Fatalf("Validate() error = %v, want format failure", err)
	}

	delete(q, "format")
	_, err = mustLookup(t, "forests", KindList).Validate(q)
	if !errors.As(err, &ve) || ve.Param != "view" {
		t.Fatalf("Validate() error = %v, want view failure", err)
	}
}

func TestValidateID(t *testing.T) {
	for _, e := range Endpoints() {
		for _, id := range []string{"", " ", "\t"} {
			err := e.ValidateID(id)
			if e.Kind == KindList {
				if err != nil {
					t.Errorf("%s: ValidateID(%q) error = %v, want nil", e.Name(), id, err)
				}
				continue
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("%s: ValidateID(%q) error = %v, want *ValidationError", e.Name(), id, err)
			}
			if ve.Param != IDParam || ve.Message != "idOrName parameter is required" {
				t.Errorf("%s: ValidateID(%q) = {%q %q}", e.Name(), id, ve.Param, ve.Message)
			}
		}

		if err := e.ValidateID("Documents"); err != nil {
			t.Errorf("%s: ValidateID(%q) error = %v", e.Name(), "Documents", err)
		}
	}
}

func TestValidate_Accepted(t *testing.T) {
	tests := []struct {
		name       string
		res        string
		kind       Kind
		query      string
		wantQuery  string
		wantFormat Format
	}{
		{"databases default format", "databases", KindList, "", "format=json", FormatJSON},
		{"databases any view", "databases", KindList, "format=xml&view=anything", "format=xml&view=anything", FormatXML},
		{"forests no default", "forests", KindList, "", "", ""},
		{
			"forests all params in order", "forests", KindList,
			"fullrefs=true&host-id=h&group-id=g&database-id=d&view=status&format=json",
			"format=json&view=status&database-id=d&group-id=g&host-id=h&fullrefs=true", FormatJSON,
		},
		{"hosts view and group", "hosts", KindList, "view=schema&format=xml&group-id=Default", "format=xml&group-id=Default&view=schema", FormatXML},
		{"hosts properties default", "hosts", KindProperties, "", "format=json", FormatJSON},
		{"logs default xml", "logs", KindList, "filename=ErrorLog.txt", "format=xml&filename=ErrorLog.txt", FormatXML},
		{"logs text with regex", "logs", KindList, "format=text&filename=ErrorLog.txt&regex=a+b", "format=text&filename=ErrorLog.txt&regex=a+b", FormatText},
		{"roles default xml", "roles", KindList, "", "format=xml", FormatXML},
		{"servers blank view dropped", "servers", KindList, "view=%20&fullrefs=", "format=json", FormatJSON},
		{"servers properties", "servers", KindProperties, "group-id=Default", "format=json&group-id=Default", FormatJSON},
		{"users list default json", "users", KindList, "", "format=json", FormatJSON},
		{"users properties default xml", "users", KindProperties, "", "format=xml", FormatXML},
		{"unknown params dropped", "groups", KindList, "token=x&format=html", "format=html", FormatHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			v, err := mustLookup(t, tt.res, tt.kind).Validate(q)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got := model.EncodeQuery(v.Query); got != tt.wantQuery {
				t.Errorf("query = %q, want %q", got, tt.wantQuery)
			}
			if v.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", v.Format, tt.wantFormat)
			}
		})
	}
}

func TestFormat_MediaType(t *testing.T) {
	tests := []struct {
		f    Format
		want string
	}{
		{FormatJSON, "application/json"},
		{FormatXML, "application/xml"},
		{FormatHTML, "text/html"},
		{FormatText, "text/plain"},
		{"", ""},
		{"yaml", ""},
	}
	for _, tt := range tests {
		if got := tt.f.MediaType(); got != tt.want {
			t.Errorf("Format(%q).MediaType() = %q, want %q", tt.f, got, tt.want)
		}
	}
}
