// Package model defines shared types for the proxy.
package model

import (
	"context"
	"net/url"
)

// ProxyRequest is a validated inbound request ready to be forwarded upstream.
type ProxyRequest struct {
	Ctx context.Context

	// Path is the upstream path, e.g. /manage/v2/hosts/node1/properties.
	Path string
	// Query holds validated parameters in forwarding order.
	Query []QueryParam
	// Accept is the outbound Accept header; empty means none is sent.
	Accept string
}

// QueryParam is one key/value pair of the outbound query string.
type QueryParam struct {
	Name  string
	Value string
}

// EncodeQuery renders params in order. Unlike url.Values.Encode it keeps
// the caller's ordering instead of sorting by key.
func EncodeQuery(params []QueryParam) string {
	buf := make([]byte, 0, 64)
	for i, p := range params {
		if i > 0 {
			buf = append(buf, '&')
		}
		buf = append(buf, url.QueryEscape(p.Name)...)
		buf = append(buf, '=')
		buf = append(buf, url.QueryEscape(p.Value)...)
	}
	return string(buf)
}

// UpstreamResponse is a fully read MarkLogic response.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Successful reports whether the upstream returned a 2xx status.
func (r *UpstreamResponse) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ProxyResponse is what the handler writes back to the caller.
type ProxyResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}
