package secrets

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// ParasutCredentials is the content of a Parasut credentials secret.
type ParasutCredentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	CompanyID    string
	BaseURL      string
}

// Resolver loads ParasutCredentials from a Provider, caching results locally
// to reduce API calls.
type Resolver struct {
	logger   *zap.Logger
	provider Provider
	cache    *Cache[ParasutCredentials]
}

// NewResolver constructs a Resolver. A nil cache disables caching.
func NewResolver(logger *zap.Logger, provider Provider, cache *Cache[ParasutCredentials]) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger, provider: provider, cache: cache}
}

// Resolve returns the credentials stored under secretName.
func (r *Resolver) Resolve(ctx context.Context, secretName string) (ParasutCredentials, error) {
	key := strings.ToLower(secretName)
	if r.cache != nil {
		if creds, ok := r.cache.Get(key); ok {
			return creds, nil
		}
	}

	raw, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("parasut.secret_fetch_failed",
			zap.String("secret", secretName),
			zap.Error(err))
		return ParasutCredentials{}, fmt.Errorf("resolve parasut credentials: %w", err)
	}

	creds, err := parseCredentials(raw)
	if err != nil {
		return ParasutCredentials{}, fmt.Errorf("parse secret %q: %w", secretName, err)
	}

	if r.cache != nil {
		r.cache.Put(key, creds)
	}
	r.logger.Info("parasut.credentials_resolved", zap.String("secret", secretName))
	return creds, nil
}

// Invalidate drops the cached value for secretName.
func (r *Resolver) Invalidate(secretName string) {
	if r.cache != nil {
		r.cache.Bust(strings.ToLower(secretName))
	}
}

func parseCredentials(m map[string]string) (ParasutCredentials, error) {
	creds := ParasutCredentials{
		ClientID:     m["client_id"],
		ClientSecret: m["client_secret"],
		Username:     m["username"],
		Password:     m["password"],
		CompanyID:    m["company_id"],
		BaseURL:      m["base_url"],
	}

	var missing []string
	for field, v := range map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"username":      creds.Username,
		"password":      creds.Password,
	} {
		if v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return ParasutCredentials{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return creds, nil
}
