package bootstrap

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/quayside/authgate/config"
	"github.com/quayside/authgate/internal/adapters/github"
	redisadapter "github.com/quayside/authgate/internal/adapters/redis"
	"github.com/quayside/authgate/internal/data"
	"github.com/quayside/authgate/internal/service"
	"github.com/quayside/authgate/internal/token"
)

// ServiceContainer holds the constructed application services.
type ServiceContainer struct {
	Sessions *service.SessionService
	Clients  *service.ClientService
}

// ServicesConfig contains the dependencies needed to build the services.
type ServicesConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildServices wires repositories, adapters, and services from the loaded
// configuration and open connections.
func BuildServices(cfg ServicesConfig) (ServiceContainer, error) {
	if cfg.Config == nil {
		return ServiceContainer{}, fmt.Errorf("app config is required")
	}
	if cfg.DB == nil {
		return ServiceContainer{}, fmt.Errorf("database connection is required")
	}
	if cfg.RedisClient == nil {
		return ServiceContainer{}, fmt.Errorf("redis client is required")
	}

	codec, err := NewTokenCodec(cfg.Config.Auth.Token)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build token codec: %w", err)
	}

	provider, err := github.NewProvider(github.ProviderConfig{
		ClientID:     cfg.Config.Auth.SSO.ClientID,
		ClientSecret: cfg.Config.Auth.SSO.ClientSecret,
		RedirectURL:  cfg.Config.Auth.SSO.RedirectURL,
		AuthBaseURL:  cfg.Config.Auth.SSO.AuthBaseURL,
		APIBaseURL:   cfg.Config.Auth.SSO.APIBaseURL,
		HTTPClient:   &http.Client{Timeout: cfg.Config.Auth.SSO.HTTPTimeout},
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build github provider: %w", err)
	}

	users := data.NewUserRepo(cfg.DB)
	reconciler := service.NewReconciler(service.ReconcilerOptions{
		Users: users,
		Policy: service.NewDomainPolicy(
			cfg.Config.Auth.Allowlist.Domains,
			cfg.Config.Auth.Allowlist.AllowSubdomains,
		),
		Logger: cfg.Logger,
	})

	sessions := service.NewSessionService(service.SessionServiceOptions{
		Provider:   provider,
		Reconciler: reconciler,
		Codec:      codec,
		States:     redisadapter.NewStateCache(cfg.RedisClient),
		Users:      users,
		Logger:     cfg.Logger,
	})

	clients := service.NewClientService(service.ClientServiceOptions{
		Repo:   data.NewClientRepo(cfg.DB),
		Logger: cfg.Logger,
	})

	return ServiceContainer{Sessions: sessions, Clients: clients}, nil
}

// NewTokenCodec converts token configuration into a signing codec. Key
// material problems surface here, at startup.
func NewTokenCodec(cfg config.TokenConfig) (*token.Codec, error) {
	tc := token.Config{
		Audience:   cfg.Audience,
		SessionTTL: cfg.SessionTTL,
		StateTTL:   cfg.StateTTL,
	}

	switch cfg.Algorithm {
	case config.TokenAlgorithmHS256:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("TOKEN_SECRET is required for the hs256 algorithm")
		}
		tc.Algorithm = token.AlgorithmHS256
		tc.Secret = []byte(cfg.Secret)

	case config.TokenAlgorithmEdDSA:
		seed, err := hex.DecodeString(cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("TOKEN_SEED must be hex encoded: %w", err)
		}
		tc.Algorithm = token.AlgorithmEdDSA
		tc.Seed = seed

	default:
		return nil, fmt.Errorf("unsupported token algorithm %q", cfg.Algorithm)
	}

	return token.NewCodec(tc)
}
