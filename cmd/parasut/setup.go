package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adilumer/parasut-api-client/pkg/auth"
	"github.com/adilumer/parasut-api-client/pkg/config"
	"github.com/adilumer/parasut-api-client/pkg/logger"
	"github.com/adilumer/parasut-api-client/pkg/parasut"
	"github.com/adilumer/parasut-api-client/pkg/secrets"
	"github.com/adilumer/parasut-api-client/pkg/tokensink"
	"github.com/adilumer/parasut-api-client/pkg/utils"
)

// newSecretsProvider is replaced in tests.
var newSecretsProvider = func(ctx context.Context, region string) (secrets.Provider, error) {
	return secrets.NewAWSProvider(ctx, region)
}

// session bundles a ready client with the resources to release afterwards.
type session struct {
	client *parasut.Client
	logger *zap.Logger

	// env is the configuration as loaded, before secret values are applied.
	env      config.Config
	resolver *secrets.Resolver
	rdb      *redis.Client
	sink     *tokensink.RedisSink
}

func (s *session) Close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	_ = s.logger.Sync()
}

// withSession runs fn against a fresh session. When credentials come from a
// secret and the token endpoint rejects them, the secret is fetched again
// and fn is retried once.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	err = fn(ctx, s)
	if !errors.Is(err, auth.ErrAuthenticationRejected) || s.resolver == nil {
		return err
	}

	s.logger.Warn("parasut.cli.credentials_rejected",
		zap.String("secret", s.env.SecretName),
		zap.Error(err))
	s.resolver.Invalidate(s.env.SecretName)
	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("reload credentials: %w", err)
	}
	return fn(ctx, s)
}

// newSession loads configuration and builds a client from it.
func newSession(ctx context.Context) (*session, error) {
	cfg := config.Load()
	if companyOverride != "" {
		cfg.CompanyID = companyOverride
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	s := &session{logger: log, env: *cfg}
	if cfg.SecretName != "" {
		provider, err := newSecretsProvider(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		s.resolver = secrets.NewResolver(log, provider, secrets.NewCache[secrets.ParasutCredentials](cfg.SecretsCacheTTL))
	}
	if cfg.TokenCacheEnabled {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPass,
		})
		s.sink = tokensink.NewRedisSink(s.rdb, log)
	}

	if err := s.connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// connect resolves credentials and (re)builds the client.
func (s *session) connect(ctx context.Context) error {
	cfg := s.env
	if s.resolver != nil {
		creds, err := s.resolver.Resolve(ctx, cfg.SecretName)
		if err != nil {
			return err
		}
		applySecret(&cfg, creds)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = stableInstanceID(&cfg)
	}

	s.logger.Debug("parasut.cli_config",
		zap.String("base_url", utils.MaskDSN(cfg.BaseURL)),
		zap.String("client_id", cfg.ClientID),
		zap.String("client_secret", utils.MaskSecret(cfg.ClientSecret)),
		zap.String("company_id", cfg.CompanyID),
		zap.Bool("token_cache", cfg.TokenCacheEnabled))

	opts := parasut.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Username:     cfg.Username,
		Password:     cfg.Password,
		CompanyID:    cfg.CompanyID,
		BaseURL:      cfg.BaseURL,
		InstanceID:   cfg.InstanceID,
		HTTPClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:       s.logger,
	}
	if s.sink != nil {
		opts.OnTokenReceived = s.sink.Observe
	}

	s.client = parasut.New(opts)

	if s.sink != nil {
		if _, err := s.sink.Restore(ctx, s.client); err != nil {
			s.logger.Warn("parasut.token_restore_failed", zap.Error(err))
		}
	}
	return nil
}

// applySecret fills configuration values that the environment left empty.
func applySecret(cfg *config.Config, creds secrets.ParasutCredentials) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&cfg.ClientID, creds.ClientID)
	fill(&cfg.ClientSecret, creds.ClientSecret)
	fill(&cfg.Username, creds.Username)
	fill(&cfg.Password, creds.Password)
	fill(&cfg.CompanyID, creds.CompanyID)
	if creds.BaseURL != "" && cfg.BaseURL == parasut.DefaultBaseURL {
		cfg.BaseURL = creds.BaseURL
	}
}

// stableInstanceID keys cached tokens by account so separate CLI runs share them.
func stableInstanceID(cfg *config.Config) string {
	return "parasut-cli:" + cfg.ClientID + ":" + cfg.Username
}
