package parasut

import (
	"context"
	"encoding/json"
	"net/url"
)

// emptyObject is sent as the body of state transitions that take no input.
var emptyObject = json.RawMessage(`{}`)

// SalesInvoices are outgoing invoices.
type SalesInvoices struct{ archivable }

func (r *SalesInvoices) ListLines(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath(r.name, id, "lines"), nil, params)
}

// Print returns the invoice rendered as PDF.
func (r *SalesInvoices) Print(ctx context.Context, id string) ([]byte, error) {
	return r.c.download(ctx, r.c.companyPath(r.name, id, "print"), nil)
}

func (r *SalesInvoices) SendEmail(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPost, r.c.companyPath(r.name, id, "send_email"), data, nil)
}

func (r *SalesInvoices) Cancel(ctx context.Context, id string) (json.RawMessage, error) {
	return r.transition(ctx, id, "cancel")
}

func (r *SalesInvoices) Approve(ctx context.Context, id string) (json.RawMessage, error) {
	return r.transition(ctx, id, "approve")
}

// Archive shadows the embedded variant to send an empty JSON object, which
// the invoice endpoints expect.
func (r *SalesInvoices) Archive(ctx context.Context, id string) (json.RawMessage, error) {
	return r.transition(ctx, id, "archive")
}

func (r *SalesInvoices) Unarchive(ctx context.Context, id string) (json.RawMessage, error) {
	return r.transition(ctx, id, "unarchive")
}

func (r *SalesInvoices) transition(ctx context.Context, id, action string) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPatch, r.c.companyPath(r.name, id, action), emptyObject, nil)
}

// SalesOffers are quotes sent to customers.
type SalesOffers struct{ archivable }

// PDF returns the offer rendered as PDF.
func (r *SalesOffers) PDF(ctx context.Context, id string) ([]byte, error) {
	return r.c.download(ctx, r.c.companyPath(r.name, id, "pdf"), nil)
}

func (r *SalesOffers) Details(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath(r.name, id, "details"), nil, params)
}

func (r *SalesOffers) UpdateStatus(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPatch, r.c.companyPath(r.name, id, "update_status"), data, nil)
}
