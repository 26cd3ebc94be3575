package auth

import (
	"sync"
	"time"
)

// Credentials are the OAuth2 password-grant inputs plus the per-client
// addressing data. CompanyID is carried for URL construction by callers and
// is not read by this package.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	BaseURL      string
	CompanyID    string
}

func (c Credentials) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

// Token is a bearer token and the instant after which it must not be used.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token is present and now is strictly before its expiry.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// Store holds credentials and token state keyed by client identifier.
type Store interface {
	// Register inserts or replaces the record for clientKey. Any token held
	// by a previous record is discarded, and an exchange already in flight
	// with the old credentials does not store its token.
	Register(clientKey string, creds Credentials)
	// Credentials returns the registered credentials for clientKey.
	Credentials(clientKey string) (Credentials, error)
	// Token returns the stored token and whether one has ever been stored.
	Token(clientKey string) (Token, bool, error)
	// SetToken overwrites only the token fields of an existing record.
	SetToken(clientKey, accessToken string, expiresAt time.Time) error
}

type record struct {
	creds Credentials
	token Token
}

// MemoryStore is the in-process Store. A zero token expiry means "already
// expired", so a freshly registered record always authenticates first.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record)}
}

func (s *MemoryStore) Register(clientKey string, creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[clientKey] = &record{creds: creds}
}

func (s *MemoryStore) Credentials(clientKey string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[clientKey]
	if !ok {
		return Credentials{}, &Error{Kind: KindUnknownClient, ClientID: clientKey}
	}
	return rec.creds, nil
}

func (s *MemoryStore) Token(clientKey string) (Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[clientKey]
	if !ok {
		return Token{}, false, &Error{Kind: KindUnknownClient, ClientID: clientKey}
	}
	return rec.token, rec.token.AccessToken != "", nil
}

func (s *MemoryStore) SetToken(clientKey, accessToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[clientKey]
	if !ok {
		return &Error{Kind: KindUnknownClient, ClientID: clientKey}
	}
	rec.token = Token{AccessToken: accessToken, ExpiresAt: expiresAt}
	return nil
}
