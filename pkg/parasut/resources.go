package parasut

import (
	"context"
	"encoding/json"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// ApiHome is the /me entry point.
type ApiHome struct{ c *Client }

// Get returns the authenticated user with its links.
func (r *ApiHome) Get(ctx context.Context) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, apiVersion+"/me", nil, nil)
}

// Companies are not scoped by company id.
type Companies struct{ c *Client }

func (r *Companies) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, apiVersion+"/companies", nil, params)
}

func (r *Companies) Get(ctx context.Context, companyID string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, apiVersion+"/companies/"+url.PathEscape(companyID), nil, params)
}

func (r *Companies) Update(ctx context.Context, companyID string, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPut, apiVersion+"/companies/"+url.PathEscape(companyID), data, nil)
}

// Accounts are cash and bank accounts.
type Accounts struct{ archivable }

// AccountWithTransactions pairs an account with its transaction list.
type AccountWithTransactions struct {
	Account      json.RawMessage `json:"account"`
	Transactions json.RawMessage `json:"transactions"`
}

func (r *Accounts) ListTransactions(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath(r.name, id, "transactions"), nil, params)
}

func (r *Accounts) GetTransaction(ctx context.Context, id, transactionID string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath(r.name, id, "transactions", transactionID), nil, params)
}

// GetWithTransactions fetches an account and its transactions concurrently.
// params are sent with both requests.
func (r *Accounts) GetWithTransactions(ctx context.Context, id string, params url.Values) (*AccountWithTransactions, error) {
	var out AccountWithTransactions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Account, err = r.Get(gctx, id, params)
		return err
	})
	g.Go(func() error {
		var err error
		out.Transactions, err = r.ListTransactions(gctx, id, params)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Accounts) CreateDebitTransaction(ctx context.Context, id string, data any, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPost, r.c.companyPath(r.name, id, "debit_transactions"), data, params)
}

func (r *Accounts) CreateCreditTransaction(ctx context.Context, id string, data any, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPost, r.c.companyPath(r.name, id, "credit_transactions"), data, params)
}

type BankFees struct{ archivable }

type Contacts struct{ archivable }

type Employees struct{ archivable }

type PurchaseBills struct{ archivable }

type Salaries struct{ archivable }

type Taxes struct{ archivable }

type ItemCategories struct{ crud }

type Products struct{ crud }

type ShipmentDocuments struct{ crud }

type Tags struct{ crud }

type Warehouses struct{ crud }

type Webhooks struct{ crud }

type EArchives struct{ document }

type EInvoices struct{ document }

type ESmms struct{ document }

// EInvoiceInboxes lists the e-invoice inboxes registered for a tax number.
type EInvoiceInboxes struct{ c *Client }

func (r *EInvoiceInboxes) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath("e_invoice_inboxes"), nil, params)
}

func (r *EInvoiceInboxes) Get(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath("e_invoice_inboxes", id), nil, params)
}

type InventoryLevels struct{ c *Client }

// List returns stock levels of a product per warehouse.
func (r *InventoryLevels) List(ctx context.Context, productID string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath("products", productID, "inventory_levels"), nil, params)
}

type StockMovements struct{ c *Client }

func (r *StockMovements) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath("stock_movements"), nil, params)
}

func (r *StockMovements) Create(ctx context.Context, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPost, r.c.companyPath("stock_movements"), data, nil)
}

type StockUpdates struct{ c *Client }

func (r *StockUpdates) Create(ctx context.Context, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPost, r.c.companyPath("stock_updates"), data, nil)
}

// TrackableJobs report progress of asynchronous operations such as e-invoice submission.
type TrackableJobs struct{ c *Client }

func (r *TrackableJobs) Get(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath("trackable_jobs", id), nil, params)
}

type Transactions struct{ c *Client }

func (r *Transactions) Get(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return r.c.call(ctx, MethodGet, r.c.companyPath("transactions", id), nil, params)
}

func (r *Transactions) Update(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return r.c.call(ctx, MethodPut, r.c.companyPath("transactions", id), data, nil)
}

func (r *Transactions) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	return r.c.call(ctx, MethodDelete, r.c.companyPath("transactions", id), nil, nil)
}
