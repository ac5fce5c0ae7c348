package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/config"
	"github.com/gestaozabele/identidade/internal/db"
	"github.com/gestaozabele/identidade/internal/event"
	"github.com/gestaozabele/identidade/internal/gateway"
	internalhttp "github.com/gestaozabele/identidade/internal/http"
	"github.com/gestaozabele/identidade/internal/pipeline"
	"github.com/gestaozabele/identidade/internal/repo"
	"github.com/gestaozabele/identidade/internal/service"
	"github.com/gestaozabele/identidade/internal/twofactor"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	jwtOpts := auth.Options{
		Secret:      cfg.JWTSecret,
		AccessTTL:   cfg.JWTAccessTTL,
		Issuer:      cfg.JWTIssuer,
		Application: cfg.ApplicationID,
	}
	if cfg.JWTRSAKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.JWTRSAKeyPath)
		if err != nil {
			return fmt.Errorf("jwt rsa key: %w", err)
		}
		key, err := auth.ParseRSAPrivateKeyPEM(pemBytes)
		if err != nil {
			return fmt.Errorf("jwt rsa key: %w", err)
		}
		jwtOpts.Secret = ""
		jwtOpts.RSAPrivateKey = key
	}
	jwtManager, err := auth.NewJWTManager(jwtOpts)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	repository := repo.New(pool)
	runner := db.NewRunner(pool)
	pipe := pipeline.New(repository, runner)

	var events event.Publisher = event.NoopPublisher{}
	if cfg.EventWebhookURL != "" {
		events = event.NewWebhookPublisher(cfg.EventWebhookURL)
	}

	registry := twofactor.NewRegistry()
	if cfg.GatewayAPIToken != "" {
		gw, err := gateway.New(gateway.Config{
			APIToken: cfg.GatewayAPIToken,
			APIBase:  cfg.GatewayAPIBase,
			Sender:   cfg.GatewaySender,
		})
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		registry.Register(repo.ProviderSms, twofactor.SMSSender{Client: gw})
		registry.Register(repo.ProviderWhatsApp, twofactor.WhatsAppSender{Client: gw})
		registry.Register(repo.ProviderEmail, twofactor.EmailSender{Client: gw})
	}

	codes := twofactor.NewCodeCache(redisClient, cfg.OTPTTL)
	pending := twofactor.NewPendingCache(redisClient, cfg.PendingTTL)
	tfService := twofactor.NewService(registry, codes, repository, events, cfg.JWTIssuer, cfg.OTPLength)

	authService := service.NewAuthService(repository, redisClient, jwtManager, tfService, pending, events, runner, cfg.JWTRefreshTTL, cfg.ConfirmTTL, cfg.RefreshEnabled)
	teamService := service.NewTeamService(repository, pipe, events)

	handler := internalhttp.NewRouter(cfg, jwtManager, authService, teamService)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
