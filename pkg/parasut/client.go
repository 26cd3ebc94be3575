// Package parasut is a client for the Parasut accounting API.
//
// A Client authenticates with the OAuth2 password grant, caches the bearer
// token per instance and renews it shortly before it expires. Each API
// resource is exposed as a field (Contacts, SalesInvoices, ...) whose methods
// return the response body exactly as the API sent it.
package parasut

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adilumer/parasut-api-client/internal/httpclient"
	"github.com/adilumer/parasut-api-client/pkg/auth"
)

const (
	// DefaultBaseURL is the production API origin.
	DefaultBaseURL = "https://api.parasut.com"
	// DefaultCallbackURL is the out-of-band redirect URI registered for password-grant apps.
	DefaultCallbackURL = "urn:ietf:wg:oauth:2.0:oob"

	apiVersion = "/v4"
)

type (
	Request      = httpclient.Request
	Method       = httpclient.Method
	ResponseType = httpclient.ResponseType
)

const (
	MethodGet    = httpclient.MethodGet
	MethodPost   = httpclient.MethodPost
	MethodPut    = httpclient.MethodPut
	MethodPatch  = httpclient.MethodPatch
	MethodDelete = httpclient.MethodDelete

	ResponseJSON  = httpclient.ResponseJSON
	ResponseBytes = httpclient.ResponseBytes
)

// Options configures a Client. ClientID, ClientSecret, Username and Password
// are required by the token endpoint; their absence is reported on the first
// call rather than at construction.
type Options struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// CompanyID scopes company resources. When empty, Initialize adopts the
	// first company visible to the user.
	CompanyID string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// InstanceID keys this client's credentials and token in Store.
	// Defaults to "parasut-client-<uuid>".
	InstanceID  string
	CallbackURL string

	// OnTokenReceived is called after every successful authentication so the
	// host can persist the token; see UpdateToken for restoring it.
	OnTokenReceived auth.Observer

	// Store defaults to a private auth.MemoryStore. Sharing one store between
	// clients requires distinct InstanceIDs.
	Store      auth.Store
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Now overrides the clock used for token expiry.
	Now func() time.Time
}

// Client is the entry point to the Parasut API.
type Client struct {
	logger     *zap.Logger
	instanceID string
	store      auth.Store
	tokens     *auth.Authority
	exec       *httpclient.Executor

	mu        sync.RWMutex
	companyID string
	userInfo  json.RawMessage
	companies []Company

	ApiHome           *ApiHome
	Companies         *Companies
	Accounts          *Accounts
	BankFees          *BankFees
	Contacts          *Contacts
	EArchives         *EArchives
	EInvoiceInboxes   *EInvoiceInboxes
	EInvoices         *EInvoices
	ESmms             *ESmms
	Employees         *Employees
	InventoryLevels   *InventoryLevels
	ItemCategories    *ItemCategories
	Products          *Products
	PurchaseBills     *PurchaseBills
	Salaries          *Salaries
	SalesInvoices     *SalesInvoices
	SalesOffers       *SalesOffers
	ShipmentDocuments *ShipmentDocuments
	StockMovements    *StockMovements
	StockUpdates      *StockUpdates
	Tags              *Tags
	Taxes             *Taxes
	TrackableJobs     *TrackableJobs
	Transactions      *Transactions
	Warehouses        *Warehouses
	Webhooks          *Webhooks
}

// New builds a Client and registers its credentials in the store under the
// instance ID.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.CallbackURL == "" {
		opts.CallbackURL = DefaultCallbackURL
	}
	if opts.InstanceID == "" {
		opts.InstanceID = "parasut-client-" + uuid.NewString()
	}
	if opts.Store == nil {
		opts.Store = auth.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := opts.Logger.With(zap.String("instance", opts.InstanceID))

	opts.Store.Register(opts.InstanceID, auth.Credentials{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Username:     opts.Username,
		Password:     opts.Password,
		BaseURL:      opts.BaseURL,
		CompanyID:    opts.CompanyID,
	})

	authOpts := []auth.Option{auth.WithClock(opts.Now)}
	if opts.OnTokenReceived != nil {
		authOpts = append(authOpts, auth.WithObserver(opts.OnTokenReceived))
	}
	tokens := auth.NewAuthority(logger, opts.Store, opts.HTTPClient, authOpts...)

	c := &Client{
		logger:     logger,
		instanceID: opts.InstanceID,
		store:      opts.Store,
		tokens:     tokens,
		exec:       httpclient.New(logger, tokens, opts.HTTPClient, opts.BaseURL, opts.InstanceID, errorDetails),
		companyID:  opts.CompanyID,
	}
	c.wireResources()
	return c
}

func (c *Client) wireResources() {
	c.ApiHome = &ApiHome{c}
	c.Companies = &Companies{c}
	c.Accounts = &Accounts{archivable{crud{c, "accounts"}}}
	c.BankFees = &BankFees{archivable{crud{c, "bank_fees"}}}
	c.Contacts = &Contacts{archivable{crud{c, "contacts"}}}
	c.EArchives = &EArchives{document{c, "e_archives"}}
	c.EInvoiceInboxes = &EInvoiceInboxes{c}
	c.EInvoices = &EInvoices{document{c, "e_invoices"}}
	c.ESmms = &ESmms{document{c, "e_smm"}}
	c.Employees = &Employees{archivable{crud{c, "employees"}}}
	c.InventoryLevels = &InventoryLevels{c}
	c.ItemCategories = &ItemCategories{crud{c, "item_categories"}}
	c.Products = &Products{crud{c, "products"}}
	c.PurchaseBills = &PurchaseBills{archivable{crud{c, "purchase_bills"}}}
	c.Salaries = &Salaries{archivable{crud{c, "salaries"}}}
	c.SalesInvoices = &SalesInvoices{archivable{crud{c, "sales_invoices"}}}
	c.SalesOffers = &SalesOffers{archivable{crud{c, "sales_offers"}}}
	c.ShipmentDocuments = &ShipmentDocuments{crud{c, "shipment_documents"}}
	c.StockMovements = &StockMovements{c}
	c.StockUpdates = &StockUpdates{c}
	c.Tags = &Tags{crud{c, "tags"}}
	c.Taxes = &Taxes{archivable{crud{c, "taxes"}}}
	c.TrackableJobs = &TrackableJobs{c}
	c.Transactions = &Transactions{c}
	c.Warehouses = &Warehouses{crud{c, "warehouses"}}
	c.Webhooks = &Webhooks{crud{c, "webhooks"}}
}

// InstanceID returns the key this client's token is stored under.
func (c *Client) InstanceID() string { return c.instanceID }

// CompanyID returns the company resources are scoped to.
func (c *Client) CompanyID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.companyID
}

// UserInfo returns the /me document loaded by Initialize.
func (c *Client) UserInfo() json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userInfo
}

// CompanyList returns the companies loaded by Initialize.
func (c *Client) CompanyList() []Company {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Company(nil), c.companies...)
}

// Initialize loads the current user and the companies it can access. If no
// CompanyID was configured, the first company becomes the default.
func (c *Client) Initialize(ctx context.Context) error {
	me, err := c.ApiHome.Get(ctx)
	if err != nil {
		return fmt.Errorf("load user info: %w", err)
	}

	var list struct {
		Data []Company `json:"data"`
	}
	if err := c.exec.DoJSON(ctx, Request{Method: MethodGet, Path: apiVersion + "/companies"}, &list); err != nil {
		return fmt.Errorf("load companies: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.userInfo = me
	c.companies = list.Data
	if c.companyID == "" && len(list.Data) > 0 {
		c.companyID = list.Data[0].ID
		c.logger.Info("parasut.company_selected", zap.String("company_id", c.companyID))
	}
	return nil
}

// UpdateToken seeds the store with a previously persisted token. A token that
// is already expired is stored but never used.
func (c *Client) UpdateToken(accessToken string, expiresAt time.Time) error {
	return c.store.SetToken(c.instanceID, accessToken, expiresAt)
}

// Token returns a currently valid bearer token, authenticating if needed.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.GetValidToken(ctx, c.instanceID)
}

// Do executes an arbitrary authorized request and returns the raw body.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	return c.exec.Execute(ctx, r)
}
