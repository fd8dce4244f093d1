package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/modernapi/identity-system/internal/api"
	"github.com/modernapi/identity-system/internal/api/handler"
	"github.com/modernapi/identity-system/internal/core/domain"
	"github.com/modernapi/identity-system/internal/core/ports"
	"github.com/modernapi/identity-system/internal/core/service"
	"github.com/modernapi/identity-system/internal/core/validation"
	"github.com/modernapi/identity-system/internal/infrastructure/config"
	mongodb "github.com/modernapi/identity-system/internal/infrastructure/db/mongo"
	redisdb "github.com/modernapi/identity-system/internal/infrastructure/db/redis"
	"github.com/modernapi/identity-system/internal/infrastructure/email"
	"github.com/modernapi/identity-system/internal/infrastructure/identity"
	"github.com/modernapi/identity-system/internal/infrastructure/queue"
	"github.com/modernapi/identity-system/internal/infrastructure/token"
	"github.com/modernapi/identity-system/internal/infrastructure/tracing"
	"github.com/modernapi/identity-system/pkg/logger"
)

const serviceName = "identity-system"

// @title                       Identity System API
// @version                     1.0
// @description                 User accounts, roles and policy-based authorization.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})
	log.Info().Str("environment", cfg.Env).Msg("starting identity server")

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// 3. Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.Endpoint, serviceName, cfg.Env, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	// 4. Connect MongoDB and ensure indexes
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	// 5. Connect Redis
	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB, Password: cfg.Redis.Password})
	if err != nil {
		return err
	}
	defer rdb.Close()

	// 6. Initialize repositories and the credential store
	userRepo := mongodb.NewUserRepository(db)
	roleRepo := mongodb.NewRoleRepository(db)

	storeOpts := identity.DefaultOptions()
	storeOpts.EmailConfirmationTTL = cfg.Tokens.EmailConfirmationTTL
	storeOpts.PasswordResetTTL = cfg.Tokens.PasswordResetTTL
	store := identity.NewStore(userRepo, roleRepo, redisdb.NewTokenStore(rdb), storeOpts, logger.Component("credential_store"))

	// 7. Seed the administrator role and account
	policies := domain.NewPolicyCatalogue(cfg.Policies.Users, cfg.Policies.Roles)
	if err := store.Seed(ctx, policies, identity.Admin{
		Role:     cfg.Admin.Role,
		UserName: cfg.Admin.UserName,
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
	}); err != nil {
		return err
	}

	// 8. Start the email dispatcher
	var delivery ports.Notifier = email.NewLogNotifier(logger.Component("email"))
	if cfg.Email.Host != "" {
		delivery = email.NewSMTPNotifier(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			UserName: cfg.Email.UserName,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}, logger.Component("email"))
	}
	dispatcher := queue.NewDispatcher(cfg.Email.Workers, delivery, logger.Component("email_dispatcher"))
	deliveryCtx, cancelDelivery := context.WithCancel(context.Background())
	defer cancelDelivery()
	dispatcher.Start(deliveryCtx)

	// 9. Initialize services
	validator := validation.New()
	userService := service.NewUserService(store, userRepo, dispatcher, validator, logger.Component("user_service"))
	roleService := service.NewRoleService(store, roleRepo, validator, policies, logger.Component("role_service"))

	// 10. Build the router and serve
	e := api.NewRouter(api.Dependencies{
		Users: userService,
		Roles: roleService,
		Tokens: token.NewIssuer(token.Config{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
			TTL:      cfg.JWT.TTL,
		}),
		Checks:            []handler.DependencyCheck{handler.MongoCheck(db), handler.RedisCheck(rdb)},
		Log:               logger.Component("http"),
		AuthenticateRate:  cfg.RateLimit.AuthenticateRate,
		AuthenticateBurst: cfg.RateLimit.AuthenticateBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(e, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Queued emails are flushed before the stores close.
	dispatcher.Close()
	return nil
}
