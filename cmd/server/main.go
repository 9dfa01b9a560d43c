package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nayudayo/terminal-sub000/internal/adapters/chain"
	"github.com/nayudayo/terminal-sub000/internal/adapters/eventbus"
	"github.com/nayudayo/terminal-sub000/internal/adapters/identity"
	"github.com/nayudayo/terminal-sub000/internal/adapters/memory"
	"github.com/nayudayo/terminal-sub000/internal/adapters/postgres"
	"github.com/nayudayo/terminal-sub000/internal/adapters/security"
	"github.com/nayudayo/terminal-sub000/internal/adapters/telegram"
	"github.com/nayudayo/terminal-sub000/internal/adapters/textgen"
	"github.com/nayudayo/terminal-sub000/internal/api"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
	"github.com/nayudayo/terminal-sub000/internal/core/protocol"
	"github.com/nayudayo/terminal-sub000/internal/core/referral"
	"github.com/nayudayo/terminal-sub000/internal/shared/config"
	"github.com/nayudayo/terminal-sub000/internal/shared/logger"
	"github.com/nayudayo/terminal-sub000/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	isDevMode := cfg.AppEnv == "dev"
	baseLogger := logger.New(isDevMode)
	baseLogger.Info().Str("app_env", cfg.AppEnv).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres is authoritative; dev mode without a database
	// falls back to the in-memory store.
	var (
		sessionStore ports.SessionStore
		referralRepo ports.ReferralRepository
		completion   ports.CompletionRepository
		channelCodes ports.ChannelCodeRepository
	)
	if cfg.Postgres.URL != "" {
		encryptionKey, err := hex.DecodeString(cfg.Security.EncryptionKey)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to decode encryption key")
		}
		securityService, err := security.NewAESService(encryptionKey, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize security service")
		}

		db, err := postgres.NewDB(ctx, cfg.Postgres.URL, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		sessionStore = postgres.NewSessionStore(db, cfg.Session.TTL, securityService, &baseLogger)
		referralRepo = postgres.NewReferralRepository(db, &baseLogger)
		completion = postgres.NewCompletionRepository(db, &baseLogger)
		channelCodes = postgres.NewChannelCodeRepository(db, &baseLogger)
	} else {
		baseLogger.Warn().Msg("No DATABASE_URL set, using in-memory stores (dev only)")
		sessionStore = memory.NewSessionStore(cfg.Session.TTL, &baseLogger)
		referralRepo = memory.NewReferralRepository()
		completion = memory.NewCompletionRepository()
		channelCodes = memory.NewChannelCodeRepository()
	}

	// Verification adapters.
	identityClient := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout, &baseLogger)
	solana := chain.NewSolanaClient(cfg.ChainA.RPCURL, cfg.ChainA.Destination, cfg.ChainA.Timeout, &baseLogger)
	near := chain.NewNearClient(cfg.ChainB.RPCURL, cfg.ChainB.Destination, cfg.ChainB.Timeout, &baseLogger)
	confirmer := chain.NewConfirmer(solana, near)

	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize Telegram bot API")
		}
	} else {
		baseLogger.Warn().Msg("No Telegram token set, membership cross-check disabled")
	}
	channelVerifier := telegram.NewChannelVerifier(botAPI, channelCodes, cfg.Telegram.ChannelID, &baseLogger)

	// Observability: transition events flow over the bus into logs
	// and counters, independent of persistence.
	bus := eventbus.NewInMemoryBus(&baseLogger)
	m := metrics.New()
	m.Attach(bus, &baseLogger)

	issuer := referral.NewIssuer(referralRepo, cfg.Referral.PerHour, &baseLogger)

	orchestrator := protocol.New(protocol.Deps{
		Store:         sessionStore,
		Identity:      identityClient,
		Transfers:     confirmer,
		Channel:       channelVerifier,
		Completion:    completion,
		Referrals:     issuer,
		TextGen:       textgen.New(&baseLogger),
		Bus:           bus,
		ValidateAddrA: chain.ValidateSolanaAddress,
		ValidateAddrB: chain.ValidateNearAddress,
		EngageDelay:   cfg.Protocol.EngageDelay,
		InviteLink:    cfg.Telegram.InviteLink,
	}, &baseLogger)

	handlers := api.NewHandlers(orchestrator, issuer, &baseLogger)
	router := api.NewRouter(handlers, m.Handler(), &baseLogger)
	server := api.NewServer(cfg.HTTP.Addr, router, &baseLogger)

	baseLogger.Info().Msg("All services initialized successfully")
	if err := server.Start(ctx); err != nil {
		baseLogger.Fatal().Err(err).Msg("Server exited with error")
	}
}
