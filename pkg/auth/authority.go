package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adilumer/parasut-api-client/internal/metrics"
	"github.com/adilumer/parasut-api-client/pkg/utils"
)

const (
	// TokenPath is the OAuth2 token endpoint, relative to the API origin.
	TokenPath = "/oauth/token"
	// expirySafetyMargin is subtracted from expires_in so tokens are renewed
	// before the remote side expires them.
	expirySafetyMargin = time.Minute
	// defaultFlightTimeout bounds a token exchange when the HTTP client has no timeout.
	defaultFlightTimeout = 30 * time.Second
	// maxExpiresIn is the largest expires_in, in seconds, that fits a time.Duration.
	maxExpiresIn = float64(math.MaxInt64) / float64(time.Second)
)

// errCredentialsReplaced reports that the credentials changed while an
// exchange was in flight; its token is discarded.
var errCredentialsReplaced = errors.New("credentials replaced during authentication")

// Observer is notified after every successful authentication. It runs
// synchronously; a panic inside it is recovered and does not affect the
// authentication result.
type Observer func(accessToken string, expiresAt time.Time, clientKey string)

// tokenRequest is the password-grant payload for POST /oauth/token.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

// tokenResponse is the subset of the token endpoint response we use.
type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

// Option configures an Authority.
type Option func(*Authority)

// WithObserver registers fn as the post-authentication observer.
func WithObserver(fn Observer) Option {
	return func(a *Authority) { a.observer = fn }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

// Authority hands out valid bearer tokens per client identifier and performs
// the password-grant exchange when the stored token is absent or expired.
//
// Concurrent GetValidToken calls for the same identifier that all miss the
// cache share one in-flight exchange.
type Authority struct {
	logger   *zap.Logger
	store    Store
	client   *http.Client
	now      func() time.Time
	observer Observer
	flights  singleflight.Group
}

// NewAuthority creates an Authority over store. A nil httpClient uses a
// client with a 30s timeout.
func NewAuthority(logger *zap.Logger, store Store, httpClient *http.Client, opts ...Option) *Authority {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	a := &Authority{
		logger: logger,
		store:  store,
		client: httpClient,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetValidToken returns a token for clientKey that is valid right now,
// authenticating first if the stored one is missing or expired.
//
// The exchange is detached from ctx and bounded by the HTTP client timeout;
// ctx only bounds how long this caller waits for it.
func (a *Authority) GetValidToken(ctx context.Context, clientKey string) (string, error) {
	if tok, ok, err := a.store.Token(clientKey); err != nil {
		return "", err
	} else if ok && tok.Valid(a.now()) {
		return tok.AccessToken, nil
	}

	ch := a.flights.DoChan(clientKey, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.flightTimeout())
		defer cancel()
		return a.refresh(flightCtx, clientKey)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			a.logger.Debug("parasut.auth.flight_shared", zap.String("client", clientKey))
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &Error{Kind: KindAuthenticationTransportError, ClientID: clientKey, Cause: ctx.Err()}
	}
}

func (a *Authority) flightTimeout() time.Duration {
	if a.client.Timeout > 0 {
		return a.client.Timeout
	}
	return defaultFlightTimeout
}

// refresh runs inside the flight for clientKey.
func (a *Authority) refresh(ctx context.Context, clientKey string) (string, error) {
	// Re-check inside the flight: a previous flight may have just stored a token.
	if tok, ok, err := a.store.Token(clientKey); err != nil {
		return "", err
	} else if ok && tok.Valid(a.now()) {
		return tok.AccessToken, nil
	}

	// A second attempt covers credentials replaced while the first exchange was in flight.
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = a.authenticate(ctx, clientKey); !errors.Is(err, errCredentialsReplaced) {
			break
		}
	}
	if errors.Is(err, errCredentialsReplaced) {
		return "", &Error{Kind: KindTokenUnavailable, ClientID: clientKey}
	}
	if err != nil {
		return "", err
	}

	tok, ok, err := a.store.Token(clientKey)
	if err != nil {
		return "", err
	}
	if !ok || !tok.Valid(a.now()) {
		return "", &Error{Kind: KindTokenUnavailable, ClientID: clientKey}
	}
	return tok.AccessToken, nil
}

// authenticate performs one password-grant round-trip and stores the result.
func (a *Authority) authenticate(ctx context.Context, clientKey string) error {
	creds, err := a.store.Credentials(clientKey)
	if err != nil {
		return err
	}
	if !creds.complete() {
		metrics.IncTokenExchange("missing_credentials")
		return &Error{Kind: KindMissingCredentials, ClientID: clientKey}
	}

	payload, err := json.Marshal(tokenRequest{
		GrantType:    "password",
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Username:     creds.Username,
		Password:     creds.Password,
	})
	if err != nil {
		return fmt.Errorf("encode token request: %w", err)
	}

	url := strings.TrimRight(creds.BaseURL, "/") + TokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: KindAuthenticationTransportError, ClientID: clientKey, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		metrics.IncTokenExchange("transport_error")
		a.logger.Warn("parasut.auth.http_failed",
			zap.String("client", clientKey),
			zap.String("url", url),
			zap.Error(err))
		return &Error{Kind: KindAuthenticationTransportError, ClientID: clientKey, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncTokenExchange("rejected")
		a.logger.Warn("parasut.auth.rejected",
			zap.String("client", clientKey),
			zap.Int("status", resp.StatusCode))
		return &Error{
			Kind:       KindAuthenticationRejected,
			ClientID:   clientKey,
			Status:     resp.StatusCode,
			StatusText: StatusText(resp),
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		metrics.IncTokenExchange("invalid_response")
		return &Error{Kind: KindInvalidAuthenticationResponse, ClientID: clientKey, Cause: err}
	}
	if tr.AccessToken == "" {
		metrics.IncTokenExchange("invalid_response")
		return &Error{Kind: KindInvalidAuthenticationResponse, ClientID: clientKey}
	}
	lifetime, ok := tokenLifetime(tr.ExpiresIn)
	if !ok {
		metrics.IncTokenExchange("invalid_response")
		return &Error{
			Kind:     KindInvalidAuthenticationResponse,
			ClientID: clientKey,
			Cause:    fmt.Errorf("expires_in %v leaves no usable lifetime", tr.ExpiresIn),
		}
	}

	if current, err := a.store.Credentials(clientKey); err != nil {
		return err
	} else if current != creds {
		metrics.IncTokenExchange("discarded")
		a.logger.Info("parasut.auth.credentials_replaced", zap.String("client", clientKey))
		return errCredentialsReplaced
	}

	expiresAt := a.now().Add(lifetime - expirySafetyMargin)
	if err := a.store.SetToken(clientKey, tr.AccessToken, expiresAt); err != nil {
		return err
	}

	metrics.IncTokenExchange("success")
	a.logger.Info("parasut.auth.token_refreshed",
		zap.String("client", clientKey),
		zap.String("token", utils.MaskToken(tr.AccessToken)),
		zap.Time("expires_at", expiresAt))

	a.notify(tr.AccessToken, expiresAt, clientKey)
	return nil
}

// tokenLifetime converts expires_in to a duration. It reports false when the
// value is not a number, overflows a Duration, or does not exceed the safety margin.
func tokenLifetime(expiresIn float64) (time.Duration, bool) {
	if !(expiresIn > 0) || expiresIn >= maxExpiresIn {
		return 0, false
	}
	d := time.Duration(expiresIn * float64(time.Second))
	if d <= expirySafetyMargin {
		return 0, false
	}
	return d, true
}

func (a *Authority) notify(accessToken string, expiresAt time.Time, clientKey string) {
	if a.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("parasut.auth.observer_panic",
				zap.String("client", clientKey),
				zap.Any("panic", r))
		}
	}()
	a.observer(accessToken, expiresAt, clientKey)
}

// StatusText returns the reason phrase of resp, falling back to the
// standard text for its code.
func StatusText(resp *http.Response) string {
	if text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
