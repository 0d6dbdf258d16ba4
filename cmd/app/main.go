// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-tier-entitlements/internal/config"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	tele "telegram-tier-entitlements/internal/infra/adapters/telegram"
	pg "telegram-tier-entitlements/internal/infra/db/postgres"
	"telegram-tier-entitlements/internal/infra/i18n"
	"telegram-tier-entitlements/internal/infra/logging"
	"telegram-tier-entitlements/internal/infra/metrics"
	red "telegram-tier-entitlements/internal/infra/redis"
	"telegram-tier-entitlements/internal/infra/sched"
	"telegram-tier-entitlements/internal/infra/web"
	"telegram-tier-entitlements/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled; telegram adapter is a no-op")
	}

	// ---- Catalog ----
	tiers := make([]model.TierDefinition, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		tiers = append(tiers, model.TierDefinition{
			Name:         t.Name,
			Price:        t.Price,
			Priority:     t.Priority,
			DurationDays: t.DurationDays,
			ChatID:       t.ChatID,
		})
	}
	catalog, err := model.NewCatalog(tiers)
	if err != nil {
		logger.Fatal().Err(err).Msg("tier catalog")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	rateLimiter := red.NewRateLimiter(redisClient)
	cooldowns := red.NewCooldownLedger(redisClient)

	// ---- Repositories ----
	entRepo := pg.NewEntitlementRepo(pool)
	walletRepo := pg.NewWalletRepo(pool)
	letterRepo := pg.NewNotificationLogRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Platform adapters ----
	var (
		authority adapter.RoleAuthority
		notifier  adapter.Notifier
		mod       adapter.Moderation
		bot       *tgbotapi.BotAPI
	)
	if cfg.Runtime.Dev {
		noop := tele.NewNoopAuthority(catalog)
		authority, notifier, mod = noop, noop, noop
	} else {
		// Every platform call has to finish inside a bound; a hung call
		// would otherwise stall a sweep while it holds an account lock.
		bot, err = tgbotapi.NewBotAPIWithClient(cfg.Bot.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		authority = tele.NewTierAuthority(bot, catalog, rateLimiter, logger)
		notifier = tele.NewNotifier(bot, letterRepo, logger)
		mod = tele.NewModeration(bot, catalog, logger)
	}

	// ---- Use cases ----
	purchaseUC := usecase.NewPurchaseUseCase(catalog, entRepo, txm, authority, walletRepo, mod, notifier, logger)
	saleUC := usecase.NewSaleUseCase(catalog, entRepo, txm, authority, walletRepo, mod, notifier, logger)
	sweepUC := usecase.NewSweepUseCase(entRepo, txm, authority, notifier, logger)
	bumpUC := usecase.NewBumpUseCase(cooldowns, walletRepo, cfg.Bump.Bonus, cfg.Bump.Window, logger)

	// ---- Member-facing bot ----
	if bot != nil {
		tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
		if err != nil {
			logger.Fatal().Err(err).Msg("translator")
		}
		memberBot := tele.NewBot(bot, catalog, purchaseUC, saleUC, bumpUC, entRepo, walletRepo, tr, 8, logger)
		go func() {
			if err := memberBot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("bot polling stopped")
			}
		}()
	}

	// ---- Reconciliation sweep ----
	sweeper := sched.NewSweepWorker(cfg.Sweep.Schedule, sweepUC, logger).
		WithLeaderLock(red.NewLocker(redisClient))
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("sweep worker")
	}
	defer sweeper.Stop()

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Ops API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := web.NewServer(catalog, purchaseUC, saleUC, sweepUC, entRepo, walletRepo, letterRepo, auth, cfg.Admin.APIKey, logger)
	go func() {
		if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Admin.Port)); err != nil {
			logger.Error().Err(err).Msg("ops API stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
