// Package app wires configuration, storage, the chat front end, and the
// admin API into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cretee/creteebot/internal/automation"
	"github.com/cretee/creteebot/internal/bot"
	"github.com/cretee/creteebot/internal/bulk"
	"github.com/cretee/creteebot/internal/config"
	"github.com/cretee/creteebot/internal/db"
	adminapi "github.com/cretee/creteebot/internal/http/api/admin"
	"github.com/cretee/creteebot/internal/onboarding"
	"github.com/cretee/creteebot/internal/ratelimit"
	"github.com/cretee/creteebot/internal/store"
	"github.com/cretee/creteebot/internal/vault"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, errDSN := config.LoadDatabaseDSN(configPath)
	if errDSN != nil {
		return errDSN
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the bot and the admin API and blocks until the context is
// cancelled or either part fails.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	dsn, errDSN := config.LoadDatabaseDSN(configPath)
	if errDSN != nil {
		return errDSN
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	bootstrap, errBootstrap := config.LoadAdminBootstrap(configPath)
	if errBootstrap != nil {
		return errBootstrap
	}
	if errAdmin := EnsureAdmin(conn, bootstrap.Username, bootstrap.Password); errAdmin != nil {
		return errAdmin
	}
	if initialized, errInit := HasAdminInitialized(conn); errInit != nil {
		return errInit
	} else if !initialized {
		log.Warn("app: admin api is up with no registered operators")
	}

	vaultKey, errKey := config.LoadVaultKey(configPath)
	if errKey != nil {
		return errKey
	}
	sessionVault := vault.New(vaultKey)

	svcCfg, errSvc := config.LoadServiceConfig(configPath)
	if errSvc != nil {
		return errSvc
	}
	if svcCfg.Automation.Endpoint == "" {
		return fmt.Errorf("app: missing automation endpoint (set `service.automation.endpoint` in config file)")
	}
	dialer := automation.NewHTTPDialer(svcCfg.Automation.Endpoint)

	jwtCfg, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}

	botToken, errToken := config.LoadBotToken(configPath)
	if errToken != nil {
		return errToken
	}
	api, errBot := tgbotapi.NewBotAPI(botToken)
	if errBot != nil {
		return fmt.Errorf("app: bot transport: %w", errBot)
	}

	st := store.New(conn)
	machine := onboarding.NewMachine(
		onboarding.NewRegistry(), st, sessionVault, dialer,
		svcCfg.Quotas.Standard, svcCfg.Quotas.Premium,
	)
	runner := bulk.NewRunner(st, sessionVault, dialer, svcCfg.Bulk.MaxCount, svcCfg.Bulk.ItemDelay)

	limiter := ratelimit.NewManager(ratelimit.StaticProvider(ratelimit.SettingsConfig{
		Limit:         svcCfg.RateLimit.PerUserPerSecond,
		RedisAddr:     svcCfg.RateLimit.RedisAddr,
		RedisPassword: svcCfg.RateLimit.RedisPassword,
		RedisDB:       svcCfg.RateLimit.RedisDB,
		RedisPrefix:   svcCfg.RateLimit.RedisPrefix,
	}), nil, nil)

	front := bot.New(api, st, machine, runner, limiter, svcCfg.RateLimit.PerUserPerSecond)

	engine := gin.New()
	engine.Use(gin.Recovery())
	adminapi.RegisterAdminRoutes(engine, conn, jwtCfg)
	server := &http.Server{Addr: svcCfg.Admin.Listen, Handler: engine}

	errCh := make(chan error, 2)
	go func() {
		log.WithField("addr", svcCfg.Admin.Listen).Info("app: admin api listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- fmt.Errorf("app: admin api: %w", errServe)
		}
	}()
	go func() {
		if errRun := front.Run(ctx); errRun != nil && !errors.Is(errRun, context.Canceled) {
			errCh <- fmt.Errorf("app: bot: %w", errRun)
		}
	}()

	var errExit error
	select {
	case <-ctx.Done():
	case errExit = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Warn("app: admin api shutdown")
	}
	return errExit
}
