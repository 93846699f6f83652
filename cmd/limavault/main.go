package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/amun/limavault/internal/config"
	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/nav"
	"github.com/amun/limavault/internal/oracle"
	"github.com/amun/limavault/internal/rebalance"
	"github.com/amun/limavault/internal/registry"
	"github.com/amun/limavault/internal/scheduler"
	"github.com/amun/limavault/internal/state"
	"github.com/amun/limavault/internal/swap"
	"github.com/amun/limavault/internal/token"
	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/web"
)

// main is the entry point for the vault service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("LimaVault Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load fee parameters, seeding defaults on first boot
	params, err := state.LoadActiveVaultParameters()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active vault parameters, using defaults and saving.")
		defaults := config.DefaultVaultParameters
		if _, err := state.SaveVaultParameters(defaults, 1, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default vault parameters.")
		}
		params = &defaults
	}
	log.Info().Msg("Vault parameters loaded successfully.")

	// Load asset manifest
	manifest, err := config.LoadAssetManifest(config.AssetsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load asset manifest")
	}

	owner, err := types.ParseAddress(config.OwnerAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad VAULT_OWNER_ADDRESS")
	}
	vaultAddr, err := types.ParseAddress(config.VaultAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad VAULT_ADDRESS")
	}
	oracleAddr, err := types.ParseAddress(config.OracleAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad ORACLE_ADDRESS")
	}

	// --- 2. Core Object Construction ---
	ledger := token.NewLedger()
	shares := token.NewShareToken(manifest.ShareToken.Name, manifest.ShareToken.Symbol)

	feeRecipient := params.FeeRecipient
	if feeRecipient.IsZero() {
		feeRecipient = owner
	}

	reg, err := registry.New(registry.Config{
		Owner:              owner,
		FeeRecipient:       feeRecipient,
		CurrentUnderlying:  types.MustParseAddress(manifest.CurrentUnderlying),
		UnderlyingAssets:   manifest.UnderlyingAddresses(),
		MintFeeBps:         params.MintFeeBps,
		BurnFeeBps:         params.BurnFeeBps,
		PerformanceFeeBps:  params.PerformanceFeeBps,
		Oracle:             oracleAddr,
		GovernanceToken:    config.OptionalAddress(manifest.GovernanceToken),
		FeeFundingAsset:    config.OptionalAddress(manifest.FeeFundingAsset),
		FeeSettlementAsset: config.OptionalAddress(manifest.FeeSettlementAsset),
		RebalanceInterval:  params.RebalanceInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct vault registry")
	}

	for _, ib := range manifest.InterestBearing {
		backend, _ := types.ParseLendingBackend(ib.Backend)
		if err := reg.RegisterInterestBearing(owner, types.MustParseAddress(ib.Address), backend, types.MustParseAddress(ib.Wraps)); err != nil {
			log.Fatal().Err(err).Str("asset", ib.Symbol).Msg("Failed to register interest-bearing asset")
		}
	}
	for _, user := range manifest.AllowedUsers {
		if err := reg.AddAllowedUser(owner, types.MustParseAddress(user)); err != nil {
			log.Fatal().Err(err).Str("user", user).Msg("Failed to add allowed user")
		}
	}
	if manifest.Restricted {
		if err := reg.SwitchRestrictedMode(owner); err != nil {
			log.Fatal().Err(err).Msg("Failed to enable restricted mode")
		}
	}

	// The sim router fills in place against the vault's own balances, which
	// is what the engine and the rebalance machine expect of a venue.
	router := swap.NewSimRouter(ledger, vaultAddr)

	engine, err := nav.NewEngine(reg, shares, ledger, router, vaultAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct NAV engine")
	}

	// The machine and the bridge reference each other: the machine sends
	// requests through the bridge, the bridge answers through the machine's
	// callback. Break the cycle with a late-bound deliver function.
	var machine *rebalance.Machine
	bridge, err := oracle.NewBridgeStub(oracleAddr, oracle.HoldCurrentChooser,
		func(sender types.Address, requestID string, payload []byte) error {
			return machine.HandleOracleData(sender, requestID, payload)
		})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct oracle bridge")
	}

	machine, err = rebalance.NewMachine(rebalance.Config{
		Registry:  reg,
		Engine:    engine,
		Ledger:    ledger,
		Router:    router,
		Oracle:    bridge,
		Authority: owner,
		Store:     state.Store{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct rebalance machine")
	}

	// --- 3. Service Surfaces ---
	webServer := web.NewWebServer(formatPort(config.WebPort), reg, engine, machine)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	sched, err := scheduler.New(config.RebalanceCron, machine)
	if err != nil {
		log.Fatal().Err(err).Str("spec", config.RebalanceCron).Msg("Bad rebalance cron expression")
	}
	sched.Start()

	log.Info().Msg("LimaVault is running")
	waitForShutdown(sched)
}

func formatPort(port uint64) string {
	if port == 0 {
		return ""
	}
	return strconv.FormatUint(port, 10)
}

func waitForShutdown(sched *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")
	sched.Stop()
}
