package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adilumer/parasut-api-client/internal/metrics"
	"github.com/adilumer/parasut-api-client/pkg/auth"
)

// Method is one of the HTTP verbs a resource call may use.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ResponseType tells the executor how the caller intends to read the body.
type ResponseType int

const (
	// ResponseJSON asks for application/json.
	ResponseJSON ResponseType = iota
	// ResponseBytes accepts any content type (PDF downloads and similar).
	ResponseBytes
)

// Request describes one outbound resource call. Path is appended to the
// executor's base URL verbatim. Body is sent as-is when it is a []byte or
// json.RawMessage and JSON-encoded otherwise.
type Request struct {
	Method       Method
	Path         string
	Body         any
	Query        url.Values
	Header       http.Header
	ResponseType ResponseType
}

// TokenSource yields a valid bearer token for a client identifier.
type TokenSource interface {
	GetValidToken(ctx context.Context, clientKey string) (string, error)
}

// Executor issues authorized requests for a single client identifier. It
// performs no retries: the first failure is returned to the caller.
type Executor struct {
	logger       *zap.Logger
	tokens       TokenSource
	http         *http.Client
	baseURL      string
	clientKey    string
	errorDetails func(status int, body []byte) []string
}

// New creates an Executor. errorDetails, if non-nil, extracts API-specific
// messages from a rejected response body; they are attached to the error.
func New(
	logger *zap.Logger,
	tokens TokenSource,
	httpClient *http.Client,
	baseURL string,
	clientKey string,
	errorDetails func(status int, body []byte) []string,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:       logger,
		tokens:       tokens,
		http:         httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientKey:    clientKey,
		errorDetails: errorDetails,
	}
}

// Execute runs r with a bearer token attached and returns the response body
// exactly as received.
//
// Caller-supplied headers are applied after Authorization, so a request may
// override it.
func (e *Executor) Execute(ctx context.Context, r Request) ([]byte, error) {
	if r.Method == "" {
		r.Method = MethodGet
	}
	token, err := e.tokens.GetValidToken(ctx, e.clientKey)
	if err != nil {
		return nil, err
	}

	req, err := e.newRequest(ctx, r)
	if err != nil {
		return nil, &auth.Error{Kind: auth.KindRequestTransportError, ClientID: e.clientKey, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for name, values := range r.Header {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	method := string(r.Method)
	start := time.Now()
	resp, err := e.http.Do(req)
	if err != nil {
		metrics.IncAPIRequest(method, 0)
		e.logger.Warn("parasut.http_failed",
			zap.String("client", e.clientKey),
			zap.String("method", method),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, &auth.Error{Kind: auth.KindRequestTransportError, ClientID: e.clientKey, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	metrics.IncAPIRequest(method, resp.StatusCode)
	metrics.ObserveDuration(metrics.APIRequestDuration, start, method)
	if err != nil {
		return nil, &auth.Error{Kind: auth.KindRequestTransportError, ClientID: e.clientKey, Cause: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rejected := &auth.Error{
			Kind:       auth.KindRequestRejected,
			ClientID:   e.clientKey,
			Status:     resp.StatusCode,
			StatusText: auth.StatusText(resp),
		}
		if e.errorDetails != nil {
			rejected.Details = e.errorDetails(resp.StatusCode, body)
		}
		e.logger.Warn("parasut.request_rejected",
			zap.String("client", e.clientKey),
			zap.String("method", method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Strings("details", rejected.Details))
		return nil, rejected
	}

	e.logger.Debug("parasut.http_success",
		zap.String("method", method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return body, nil
}

// DoJSON executes r and decodes a non-empty JSON response into out.
func (e *Executor) DoJSON(ctx context.Context, r Request, out any) error {
	body, err := e.Execute(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Method, r.Path, err)
	}
	return nil
}

func (e *Executor) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	u, err := url.Parse(e.baseURL + r.Path)
	if err != nil {
		return nil, err
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		var data []byte
		switch b := r.Body.(type) {
		case []byte:
			data = b
		case json.RawMessage:
			data = b
		default:
			if data, err = json.Marshal(b); err != nil {
				return nil, fmt.Errorf("encode body: %w", err)
			}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, string(r.Method), u.String(), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.ResponseType == ResponseJSON {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}
