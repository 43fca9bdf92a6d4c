// AI Trader NPC - automated market maker for on-chain game items
//
// Watches ItemBought/ItemSold events from the AITrader contract, keeps a
// bounded per-item demand signal, asks the pricing oracle for a new price
// and submits updatePrice transactions back to the ledger.
//
// Modes:
//
//	serve  - HTTP API + event listener + repricing loop (default)
//	update - one-shot deterministic reprice of all known items
//	listen - subscribe to ledger events and print them, no writes
//	loop   - deterministic reprice of all known items on an interval
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/aitrader/internal/catalog"
	"github.com/web3guy0/aitrader/internal/config"
	"github.com/web3guy0/aitrader/internal/demand"
	"github.com/web3guy0/aitrader/internal/httpapi"
	"github.com/web3guy0/aitrader/internal/ledger"
	"github.com/web3guy0/aitrader/internal/listener"
	"github.com/web3guy0/aitrader/internal/notify"
	"github.com/web3guy0/aitrader/internal/pricing"
	"github.com/web3guy0/aitrader/internal/trader"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	mode := flag.String("mode", "serve", "serve, update, listen or loop")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	contractABI, err := ledger.LoadABI(cfg.ABIPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load contract ABI")
	}

	log.Info().
		Str("version", version).
		Str("mode", *mode).
		Str("contract", cfg.ContractAddress.Hex()).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ AI Trader NPC starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "serve":
		runServe(ctx, cfg, contractABI)
	case "update":
		runReprice(ctx, cfg, contractABI, false)
	case "loop":
		runReprice(ctx, cfg, contractABI, true)
	case "listen":
		runListen(ctx, cfg, contractABI)
	default:
		log.Fatal().Str("mode", *mode).Msg("Unknown mode")
	}
}

func newGateway(ctx context.Context, cfg *config.Config, contractABI abi.ABI, signing bool) *ledger.Gateway {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RPC endpoint")
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch chain ID")
	}

	key := ""
	if signing {
		key = cfg.PrivateKey
	}

	gw, err := ledger.New(client, contractABI, cfg.ContractAddress, key, chainID, cfg.DryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger gateway")
	}
	return gw
}

func newOracle(cfg *config.Config) *pricing.Oracle {
	if err := cfg.RequireAdvisor(); err != nil {
		log.Fatal().Err(err).Msg("Invalid advisor configuration")
	}

	var advisor pricing.Advisor
	switch cfg.AdvisorProvider {
	case "openai":
		advisor = pricing.NewOpenAIAdvisor(cfg.OpenAIAPIKey)
	case "gemini":
		advisor = pricing.NewGeminiAdvisor(cfg.GeminiAPIKey)
	}

	log.Info().Str("provider", cfg.AdvisorProvider).Msg("🧠 Pricing advisor configured")
	return pricing.NewOracle(advisor, cfg.AdvisorTimeout)
}

func newTransport(cfg *config.Config, contractABI abi.ABI) listener.Transport {
	if cfg.WSSRPCURL != "" {
		return listener.NewWSTransport(cfg.WSSRPCURL, contractABI, cfg.ContractAddress)
	}
	log.Info().Msg("No WSS_RPC_URL configured, falling back to log polling")
	return listener.NewPollTransport(cfg.RPCURL, contractABI, cfg.ContractAddress, cfg.PollInterval)
}

func runServe(ctx context.Context, cfg *config.Config, contractABI abi.ABI) {
	if err := cfg.RequireSigner(); err != nil {
		log.Fatal().Err(err).Msg("Invalid signer configuration")
	}

	store, err := catalog.Open(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open catalog database")
	}

	gateway := newGateway(ctx, cfg, contractABI, true)
	oracle := newOracle(cfg)
	tracker := demand.NewTracker()

	agent := trader.New(gateway, oracle, tracker)
	agent.SetNameResolver(store.NameOf)
	if cfg.TelegramEnabled() {
		if tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID); err != nil {
			log.Warn().Err(err).Msg("Telegram disabled")
		} else {
			agent.SetNotifier(tg)
		}
	}

	hub := httpapi.NewHub()
	dispatcher := trader.NewDispatcher(ctx, cfg.Workers, cfg.QueueSize, agent.HandleEvent)
	manager := listener.NewManager(newTransport(cfg, contractABI))

	go manager.Subscribe(ctx, func(ev listener.Event) {
		hub.Broadcast(ev)
		dispatcher.Dispatch(ev)
	})

	api := httpapi.New(store, oracle, hub)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("🌐 HTTP API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	dispatcher.Stop()

	log.Info().Uint64("dropped_events", dispatcher.Dropped()).Msg("👋 Stopped")
}

func runReprice(ctx context.Context, cfg *config.Config, contractABI abi.ABI, repeat bool) {
	if err := cfg.RequireSigner(); err != nil {
		log.Fatal().Err(err).Msg("Invalid signer configuration")
	}

	gateway := newGateway(ctx, cfg, contractABI, true)
	agent := trader.New(gateway, nil, demand.NewTracker())

	items := itemUniverse(cfg)
	if len(items) == 0 {
		log.Fatal().Msg("No items to reprice: set ITEMS or add catalog items with addresses")
	}

	agent.RepriceAll(ctx, items)
	if !repeat {
		return
	}

	ticker := time.NewTicker(cfg.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("👋 Stopped")
			return
		case <-ticker.C:
			agent.RepriceAll(ctx, items)
		}
	}
}

func runListen(ctx context.Context, cfg *config.Config, contractABI abi.ABI) {
	manager := listener.NewManager(newTransport(cfg, contractABI))
	manager.Subscribe(ctx, func(ev listener.Event) {
		log.Info().
			Str("kind", ev.Kind.String()).
			Str("item", ev.Item.Hex()).
			Str("actor", ev.Actor.Hex()).
			Str("qty", ev.Qty.String()).
			Uint64("block", ev.Block).
			Msg("🔔 Ledger event")
	})
}

// itemUniverse prefers catalog items with on-chain addresses and falls
// back to the ITEMS environment variable.
func itemUniverse(cfg *config.Config) []common.Address {
	store, err := catalog.Open(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Warn().Err(err).Msg("Catalog unavailable, using ITEMS only")
		return cfg.Items
	}

	addrs, err := store.Addresses()
	if err != nil || len(addrs) == 0 {
		return cfg.Items
	}
	return addrs
}
