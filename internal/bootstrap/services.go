package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/adapters/devauth"
	"github.com/leafcart/storefront-api/internal/adapters/oidc"
	redisstore "github.com/leafcart/storefront-api/internal/adapters/redis"
	"github.com/leafcart/storefront-api/internal/data"
	"github.com/leafcart/storefront-api/internal/ports"
	"github.com/leafcart/storefront-api/internal/service"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Sessions *service.SessionService
	Auth     *service.AuthService
	Migrator *service.CartMigrator
	Cleanup  *service.CleanupService
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	Provider    *config.Provider // Optional: lets services pick up reloaded config
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires stores, repositories, and domain services. The context
// covers one-time setup work such as OIDC issuer discovery.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}

	sessionStore := redisstore.NewSessionStore(deps.RedisClient)
	rateLimitStore := redisstore.NewRateLimitStore(deps.RedisClient)

	limiter, err := service.NewRateLimiter(service.RateLimiterOptions{
		Store:    rateLimitStore,
		Config:   cfg.RateLimit,
		Provider: deps.Provider,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build rate limiter: %w", err)
	}

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:    sessionStore,
		Limiter:  limiter,
		Config:   cfg.Session,
		Provider: deps.Provider,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build session service: %w", err)
	}

	migrator, err := service.NewCartMigrator(service.CartMigratorOptions{
		Products: data.NewProductRepo(deps.DB),
		Carts:    data.NewCartRepo(deps.DB),
		Sessions: sessionStore,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build cart migrator: %w", err)
	}

	verifier, registrar, err := buildCredentialVerifier(ctx, cfg, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	auth, err := service.NewAuthService(service.AuthServiceOptions{
		Verifier:  verifier,
		Registrar: registrar,
		Sessions:  sessions,
		Migrator:  migrator,
		Logger:    logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build auth service: %w", err)
	}

	cleanup, err := service.NewCleanupService(service.CleanupServiceOptions{
		Sessions:   sessionStore,
		RateLimits: rateLimitStore,
		Config:     cfg.Cleanup,
		Window:     cfg.RateLimit.Window,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build cleanup service: %w", err)
	}

	return ServiceContainer{
		Sessions: sessions,
		Auth:     auth,
		Migrator: migrator,
		Cleanup:  cleanup,
	}, nil
}

// buildCredentialVerifier selects the credential verifier for the configured
// auth mode. The mock verifier is gated to development so a misconfigured
// production deploy cannot silently accept static credentials.
//
//nolint:ireturn // ports.CredentialVerifier is the seam the auth service consumes.
func buildCredentialVerifier(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (ports.CredentialVerifier, ports.UserRegistrar, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if !cfg.IsDev {
			return nil, nil, errors.New("mock auth mode is only allowed in development")
		}
		logger.Warn("using mock credential verifier", "email", cfg.Auth.DevAuth.Email)
		static := devauth.New(cfg.Auth.DevAuth)
		return static, static, nil
	case config.AuthModeOIDC:
		verifier, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			IssuerURL:    cfg.Auth.OIDC.IssuerURL,
			Scope:        cfg.Auth.OIDC.Scope,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build oidc verifier: %w", err)
		}
		// Registration goes through the identity provider, not this API.
		return verifier, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported auth mode: %q", cfg.Auth.Mode)
	}
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Provider *config.Provider // Optional: enables SIGHUP config reloads
	Services ServiceContainer
	Logger   *slog.Logger
}

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// RunServicesWithShutdown starts all enabled services and manages their
// lifecycle. It blocks until a shutdown signal is received or a service
// fails, then stops the remaining services gracefully.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Provider != nil {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		g.Go(func() error {
			defer signal.Stop(hup)
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hup:
					if reloadErr := cfg.Provider.Reload(); reloadErr != nil {
						// The previous snapshot stays in effect.
						logger.Error("config reload failed", "error", reloadErr)
						continue
					}
					logger.Info("config reloaded")
				}
			}
		})
	}

	if enabled[config.ServiceModeHTTP] {
		server := NewHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})

		g.Go(func() error {
			logger.Info("starting HTTP server", "addr", server.Addr)
			if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", serveErr)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return ShutdownHTTPServer(ShutdownConfig{
				Context: context.Background(),
				Server:  server,
				Logger:  logger,
			})
		})
	}

	if enabled[config.ServiceModeCleanup] {
		g.Go(func() error {
			logger.Info("starting cleanup sweeper", "interval", cfg.Config.Cleanup.Interval)
			if runErr := cfg.Services.Cleanup.Run(gctx); runErr != nil {
				return fmt.Errorf("cleanup sweeper: %w", runErr)
			}
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		return waitErr
	}

	logger.Info("all services stopped")
	return nil
}
