package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adilumer/parasut-api-client/internal/metrics"
	"github.com/adilumer/parasut-api-client/pkg/auth"
)

// staticTokens is a TokenSource that always returns the same token or error.
type staticTokens struct {
	token string
	err   error
	calls atomic.Int32
}

func (s *staticTokens) GetValidToken(context.Context, string) (string, error) {
	s.calls.Add(1)
	return s.token, s.err
}

func newExec(srv *httptest.Server, tokens TokenSource) *Executor {
	return New(zap.NewNop(), tokens, srv.Client(), srv.URL, "acme", nil)
}

// ─── Basic success ────────────────────────────────────────────────────────────

func TestExecute_ReturnsBodyVerbatim(t *testing.T) {
	const payload = `{"data": [ {"id":"1"} ],  "meta": {}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	body, err := newExec(srv, &staticTokens{token: "t"}).Execute(context.Background(), Request{Method: MethodGet, Path: "/v4/1/contacts"})
	require.NoError(t, err)
	assert.Equal(t, payload, string(body), "body must not be reshaped")
}

func TestExecute_SendsMethodPathQueryAndBody(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotCT, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := newExec(srv, &staticTokens{token: "t"}).Execute(context.Background(), Request{
		Method: MethodPost,
		Path:   "/v4/1/contacts",
		Body:   map[string]any{"data": map[string]string{"type": "contacts"}},
		Query:  url.Values{"page[number]": []string{"2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v4/1/contacts", gotPath)
	assert.Equal(t, "page%5Bnumber%5D=2", gotQuery)
	assert.Equal(t, "application/json", gotCT)
	assert.JSONEq(t, `{"data":{"type":"contacts"}}`, gotBody)
}

func TestExecute_BytesResponseSkipsJSONAccept(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4\x00\x01"))
	}))
	defer srv.Close()

	body, err := newExec(srv, &staticTokens{token: "t"}).Execute(context.Background(), Request{
		Method:       MethodGet,
		Path:         "/v4/1/sales_invoices/9/print",
		ResponseType: ResponseBytes,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4\x00\x01"), body)
	assert.Empty(t, accept)
}

// ─── Authorization header ─────────────────────────────────────────────────────

func TestExecute_AttachesBearerToken(t *testing.T) {
	var authz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	_, err := newExec(srv, &staticTokens{token: "abc"}).Execute(context.Background(), Request{Method: MethodGet, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", authz)
}

func TestExecute_CallerHeadersOverrideAuthorization(t *testing.T) {
	var authz, custom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		custom = r.Header.Get("X-Request-Id")
	}))
	defer srv.Close()

	_, err := newExec(srv, &staticTokens{token: "abc"}).Execute(context.Background(), Request{
		Method: MethodGet,
		Path:   "/x",
		Header: http.Header{"Authorization": {"Bearer override"}, "X-Request-Id": {"r-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer override", authz)
	assert.Equal(t, "r-1", custom)
}

// ─── Failures ─────────────────────────────────────────────────────────────────

func TestExecute_TokenErrorStopsBeforeRequest(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { count.Add(1) }))
	defer srv.Close()

	tokens := &staticTokens{err: &auth.Error{Kind: auth.KindMissingCredentials}}
	_, err := newExec(srv, tokens).Execute(context.Background(), Request{Method: MethodGet, Path: "/x"})
	require.ErrorIs(t, err, auth.ErrMissingCredentials)
	assert.EqualValues(t, 0, count.Load())
}

func TestExecute_RejectedIsNotRetried(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newExec(srv, &staticTokens{token: "t"}).Execute(context.Background(), Request{Method: MethodGet, Path: "/x"})
	require.ErrorIs(t, err, auth.ErrRequestRejected)
	assert.EqualValues(t, 1, count.Load(), "no retries on any status")

	var authErr *auth.Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusServiceUnavailable, authErr.Status)
	assert.Equal(t, "Service Unavailable", authErr.StatusText)
	assert.Equal(t, "request failed: 503 Service Unavailable", err.Error())
}

func TestExecute_ErrorDetailsAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"INVALID"}`))
	}))
	defer srv.Close()

	var gotStatus int
	exec := New(zap.NewNop(), &staticTokens{token: "t"}, srv.Client(), srv.URL, "acme", func(status int, body []byte) []string {
		gotStatus = status
		return []string{string(body)}
	})

	_, err := exec.Execute(context.Background(), Request{Method: MethodPost, Path: "/x", Body: []byte(`{}`)})
	require.ErrorIs(t, err, auth.ErrRequestRejected)
	assert.Equal(t, http.StatusUnprocessableEntity, gotStatus)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "INVALID")
}

func TestExecute_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	exec := newExec(srv, &staticTokens{token: "t"})
	srv.Close()

	_, err := exec.Execute(context.Background(), Request{Method: MethodGet, Path: "/x"})
	require.ErrorIs(t, err, auth.ErrRequestTransportError)

	var authErr *auth.Error
	require.True(t, errors.As(err, &authErr))
	require.Error(t, authErr.Cause)
	assert.Contains(t, err.Error(), authErr.Cause.Error())
}

// ─── Metrics ──────────────────────────────────────────────────────────────────

func TestExecute_RecordsRequestMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	counter := metrics.APIRequestsTotal.WithLabelValues("DELETE", "404")
	before := testutil.ToFloat64(counter)

	_, err := newExec(srv, &staticTokens{token: "t"}).Execute(context.Background(), Request{Method: MethodDelete, Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestExecute_EmptyMethodIsGETInRequestAndMetrics(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	getCounter := metrics.APIRequestsTotal.WithLabelValues("GET", "418")
	blankCounter := metrics.APIRequestsTotal.WithLabelValues("", "418")
	before, blankBefore := testutil.ToFloat64(getCounter), testutil.ToFloat64(blankCounter)

	_, err := newExec(srv, &staticTokens{token: "t"}).Execute(context.Background(), Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, before+1, testutil.ToFloat64(getCounter))
	assert.Equal(t, blankBefore, testutil.ToFloat64(blankCounter))
}

// ─── DoJSON ───────────────────────────────────────────────────────────────────

func TestDoJSON_DecodesInto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	var out map[string]string
	require.NoError(t, newExec(srv, &staticTokens{token: "t"}).DoJSON(context.Background(), Request{Method: MethodGet, Path: "/x"}, &out))
	assert.Equal(t, "ok", out["result"])
}

func TestDoJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not-json"))
	}))
	defer srv.Close()

	var out map[string]string
	err := newExec(srv, &staticTokens{token: "t"}).DoJSON(context.Background(), Request{Method: MethodGet, Path: "/x"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode GET /x")
}

// ─── With the real token authority ────────────────────────────────────────────

// newParasutServer serves /oauth/token with the given tokens in order and
// records the Authorization header of every other request.
func newParasutServer(t *testing.T, tokens []string, tokenCalls *atomic.Int32, seenAuth *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == auth.TokenPath {
			n := int(tokenCalls.Add(1))
			tok := tokens[min(n, len(tokens))-1]
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": tok, "expires_in": 3600})
			return
		}
		*seenAuth = append(*seenAuth, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
}

func registerAcme(store auth.Store, baseURL string) {
	store.Register("acme", auth.Credentials{
		ClientID: "cid", ClientSecret: "sec", Username: "u", Password: "p", BaseURL: baseURL,
	})
}

func TestExecute_EndToEndBearerFromTokenEndpoint(t *testing.T) {
	var tokenCalls atomic.Int32
	var seen []string
	srv := newParasutServer(t, []string{"tok1"}, &tokenCalls, &seen)
	defer srv.Close()

	store := auth.NewMemoryStore()
	registerAcme(store, srv.URL)
	authority := auth.NewAuthority(zap.NewNop(), store, srv.Client())
	exec := New(zap.NewNop(), authority, srv.Client(), srv.URL, "acme", nil)

	_, err := exec.Execute(context.Background(), Request{Method: MethodGet, Path: "/widgets"})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "Bearer tok1", seen[0])
	assert.EqualValues(t, 1, tokenCalls.Load())
}

func TestExecute_ExpiredTokenReauthenticatesOnce(t *testing.T) {
	var tokenCalls atomic.Int32
	var seen []string
	srv := newParasutServer(t, []string{"fresh"}, &tokenCalls, &seen)
	defer srv.Close()

	store := auth.NewMemoryStore()
	registerAcme(store, srv.URL)
	require.NoError(t, store.SetToken("acme", "stale", time.Now().Add(-time.Minute)))

	authority := auth.NewAuthority(zap.NewNop(), store, srv.Client())
	exec := New(zap.NewNop(), authority, srv.Client(), srv.URL, "acme", nil)

	_, err := exec.Execute(context.Background(), Request{Method: MethodGet, Path: "/v4/1/contacts"})
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), Request{Method: MethodGet, Path: "/v4/1/contacts"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, tokenCalls.Load(), "exactly one re-authentication")
	assert.Equal(t, []string{"Bearer fresh", "Bearer fresh"}, seen)
}
