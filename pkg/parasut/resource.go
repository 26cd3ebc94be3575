package parasut

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
)

// companyPath builds /v4/{company_id}/{segments...}, escaping each segment.
func (c *Client) companyPath(segments ...string) string {
	var b strings.Builder
	b.WriteString(apiVersion)
	b.WriteByte('/')
	b.WriteString(url.PathEscape(c.CompanyID()))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (c *Client) call(ctx context.Context, method Method, path string, body any, params url.Values) (json.RawMessage, error) {
	raw, err := c.exec.Execute(ctx, Request{Method: method, Path: path, Body: body, Query: params})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) download(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.exec.Execute(ctx, Request{Method: MethodGet, Path: path, Query: params, ResponseType: ResponseBytes})
}

// crud is the list/get/create/update/delete set shared by most company resources.
type crud struct {
	c    *Client
	name string
}

// List returns a page of records. params are passed through as query
// parameters (filter[...], page[number], include, ...).
func (r crud) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath(r.name), nil, params)
}

// Get returns one record.
func (r crud) Get(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath(r.name, id), nil, params)
}

// Create posts a new record. data is the full JSON:API document.
func (r crud) Create(ctx context.Context, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPost, r.c.companyPath(r.name), data, nil)
}

// Update replaces a record.
func (r crud) Update(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPut, r.c.companyPath(r.name, id), data, nil)
}

// Delete removes a record.
func (r crud) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	return r.c.call(ctx, MethodDelete, r.c.companyPath(r.name, id), nil, nil)
}

// archivable adds archive/unarchive to crud.
type archivable struct {
	crud
}

func (r archivable) Archive(ctx context.Context, id string) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPatch, r.c.companyPath(r.name, id, "archive"), nil, nil)
}

func (r archivable) Unarchive(ctx context.Context, id string) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPatch, r.c.companyPath(r.name, id, "unarchive"), nil, nil)
}

// document is the create/show/pdf set of the e-document resources.
type document struct {
	c    *Client
	name string
}

func (r document) Create(ctx context.Context, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPost, r.c.companyPath(r.name), data, nil)
}

func (r document) Show(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath(r.name, id), nil, params)
}

// ShowPDF returns the rendered PDF document bytes.
func (r document) ShowPDF(ctx context.Context, id string, params url.Values) ([]byte, error) {
	return r.c.download(ctx, r.c.companyPath(r.name, id, "pdf"), params)
}
