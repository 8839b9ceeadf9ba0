package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/config"
	"github.com/S-Axhwin/ransomwar-engine/internal/delivery/cli"
	"github.com/S-Axhwin/ransomwar-engine/internal/delivery/httpapi"
	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/infrastructure"
	"github.com/S-Axhwin/ransomwar-engine/internal/usecase"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load application configuration
	cfg := config.Load()

	responseCfg, err := config.LoadResponseConfig(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] Failed to load response configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Apply(responseCfg)

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "protect":
		err = runProtectionMode(cfg, responseCfg)
	case "deploy":
		err = runDeploy(cfg, responseCfg)
	case "verify":
		err = runVerify(cfg, responseCfg)
	case "scan":
		err = runScan(cfg, responseCfg, args)
	case "cleanup":
		err = runCleanup(cfg, responseCfg)
	case "config":
		showConfiguration(cfg, responseCfg)
	case "version":
		showVersion()
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

// runProtectionMode starts real-time protection and blocks until SIGINT/SIGTERM
func runProtectionMode(cfg *config.Config, responseCfg *config.ResponseConfig) error {
	logger, logFile, err := infrastructure.SetupLogging(cfg.LogDir, cfg.LogLevel, cfg.ConsoleLogs)
	if err != nil {
		logger = infrastructure.NewConsoleLogger(cfg.LogLevel)
		logger.Warn().Err(err).Msg("file logging unavailable, using console only")
	} else {
		defer logFile.Close()
	}

	if removed, err := infrastructure.CleanupOldLogs(cfg.LogDir, cfg.LogRetention, logger); err != nil {
		logger.Warn().Err(err).Msg("failed to cleanup old logs")
	} else if removed > 0 {
		logger.Info().Int("removed", removed).Msg("old log files removed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, responseCfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.start(ctx); err != nil {
		stop()
		eng.stop()
		return err
	}

	server := httpapi.NewServer(httpapi.Dependencies{
		Containment: eng.containment,
		Canaries:    eng.decoys,
		Components: map[string]httpapi.StatsProvider{
			"decoys":   eng.decoys,
			"response": eng.orchestrator,
			"scanner":  eng.scannerStats(),
		},
		Metrics: eng.metrics.Handler(),
		OnReset: func(domain.ContainmentState) {
			eng.metrics.SetContainmentState(eng.containment.State())
		},
		OperatorToken: cfg.OperatorToken,
		Logger:        logger,
	})
	if cfg.OperatorToken == "" {
		logger.Warn().Msg("OPERATOR_TOKEN not set, canary and containment routes are disabled")
	}
	eng.goFunc(func() {
		if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Str("addr", cfg.HTTPAddr).Msg("operator API stopped")
		}
	})

	eng.goFunc(func() { reportStatistics(ctx, eng, cfg.StatsInterval, logger) })

	logger.Info().
		Bool("safe_mode", eng.containment.SafeMode()).
		Bool("kill_offenders", responseCfg.Containment.KillOffenders).
		Int("shutdown_after_alerts", responseCfg.Containment.ShutdownAfterAlerts).
		Int("decoys", eng.decoys.Ledger().Len()).
		Bool("entropy_scan", eng.scanner != nil).
		Strs("sinks", eng.sinks.Names()).
		Str("http", cfg.HTTPAddr).
		Msg("PROTECTION MODE ACTIVE, press Ctrl+C to stop")

	<-ctx.Done()

	logger.Info().Msg("shutdown signal received, stopping protection")
	eng.stop()
	logger.Info().Msg("ransomtrap shutdown complete")
	return nil
}

// reportStatistics periodically logs component statistics
func reportStatistics(ctx context.Context, eng *engine, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			response := eng.orchestrator.Stats()
			decoys := eng.decoys.Stats()

			event := logger.Info().
				Interface("events_processed", response["events_processed"]).
				Interface("events_dropped", response["events_dropped"]).
				Interface("processes_terminated", response["processes_terminated"]).
				Interface("containment_state", response["containment_state"]).
				Interface("decoys", decoys["total_decoys"]).
				Interface("decoys_broken", decoys["reported_broken"])
			if eng.scanner != nil {
				scanner := eng.scanner.Stats()
				event = event.Interface("scans", scanner["scans"]).Interface("files_flagged", scanner["flagged"])
			}
			event.Msg("statistics")
		}
	}
}

// runDeploy plants the configured decoys and persists the ledger
func runDeploy(cfg *config.Config, responseCfg *config.ResponseConfig) error {
	logger := infrastructure.NewConsoleLogger(cfg.LogLevel)
	ctx := context.Background()

	store, closeStore, err := openLedgerStore(ctx, responseCfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	decoys := usecase.NewDecoyService(responseCfg.Decoy.Directory, responseCfg.Decoy.SizeRange, logger)
	if _, _, err := decoys.Restore(ctx, store); err != nil {
		logger.Warn().Err(err).Msg("existing ledger not restored")
	}

	deployed, err := decoys.Deploy(responseCfg.Decoy.Names, responseCfg.Decoy.Extension, responseCfg.Decoy.Overwrite)
	if err != nil && len(deployed) == 0 {
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("some decoys were not deployed")
	}

	if err := decoys.Persist(ctx, store); err != nil {
		return err
	}
	return cli.NewCanaryCLI(os.Stdout, nil).ShowDeployed(deployed)
}

// runVerify checks every persisted decoy and exits non-zero when any is broken
func runVerify(cfg *config.Config, responseCfg *config.ResponseConfig) error {
	logger := infrastructure.NewConsoleLogger(cfg.LogLevel)
	ctx := context.Background()

	store, closeStore, err := openLedgerStore(ctx, responseCfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	stored, err := store.Load(ctx)
	if err != nil {
		return err
	}

	decoys := usecase.NewDecoyService(responseCfg.Decoy.Directory, responseCfg.Decoy.SizeRange, logger)
	for _, decoy := range stored {
		decoys.Ledger().Register(decoy)
	}

	broken, err := cli.NewCanaryCLI(os.Stdout, nil).VerifyCanaries(decoys)
	if err != nil {
		return err
	}
	if broken > 0 {
		return fmt.Errorf("%d decoys tampered", broken)
	}
	return nil
}

// runScan runs one entropy pass over args (or the configured roots) and prints flagged files
func runScan(cfg *config.Config, responseCfg *config.ResponseConfig, args []string) error {
	logger := infrastructure.NewConsoleLogger(cfg.LogLevel)

	roots := args
	if len(roots) == 0 {
		roots = responseCfg.ScanRoots()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := domain.NewCanaryLedger()
	if store, closeStore, err := openLedgerStore(ctx, responseCfg, logger); err == nil {
		if stored, err := store.Load(ctx); err == nil {
			for _, decoy := range stored {
				ledger.Register(decoy)
			}
		}
		closeStore()
	}

	scanner, err := usecase.NewEntropyScanner(scannerSettings(responseCfg, roots, nil), ledger, logger)
	if err != nil {
		return err
	}

	result, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	inspector := infrastructure.NewProcessInspector(logger)
	return cli.NewCanaryCLI(os.Stdout, inspector).ShowScanResult(ctx, result)
}

// runCleanup removes every decoy recorded in the ledger store
func runCleanup(cfg *config.Config, responseCfg *config.ResponseConfig) error {
	logger := infrastructure.NewConsoleLogger(cfg.LogLevel)
	ctx := context.Background()

	store, closeStore, err := openLedgerStore(ctx, responseCfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	stored, err := store.Load(ctx)
	if err != nil {
		return err
	}

	decoys := usecase.NewDecoyService(responseCfg.Decoy.Directory, responseCfg.Decoy.SizeRange, logger)
	for _, decoy := range stored {
		decoys.Ledger().Register(decoy)
	}
	decoys.Cleanup()

	return decoys.Persist(ctx, store)
}

// showConfiguration displays current configuration
func showConfiguration(cfg *config.Config, responseCfg *config.ResponseConfig) {
	fmt.Println("CONFIGURATION SUMMARY")
	fmt.Println()
	fmt.Printf("Policy file: %s (version %s)\n", cfg.ConfigPath, responseCfg.Version)
	fmt.Printf("Log directory: %s (level %s, retention %s)\n", cfg.LogDir, cfg.LogLevel, cfg.LogRetention)
	fmt.Printf("Operator API: %s\n", cfg.HTTPAddr)
	fmt.Printf("Operator token: %v\n", cfg.OperatorToken != "")
	fmt.Println()

	watchRoot, _ := responseCfg.WatchRoot()
	fmt.Printf("Monitor root: %s\n", watchRoot)
	fmt.Println()

	fmt.Println("Decoys:")
	fmt.Printf("  Directory: %s\n", responseCfg.Decoy.Directory)
	fmt.Printf("  Names: %s (extension %s)\n", strings.Join(responseCfg.Decoy.Names, ", "), responseCfg.Decoy.Extension)
	fmt.Printf("  Payload size: %d-%d KiB\n", responseCfg.Decoy.SizeRange.MinKiB, responseCfg.Decoy.SizeRange.MaxKiB)
	fmt.Printf("  Check interval: %s\n", responseCfg.Decoy.CheckInterval)
	fmt.Println()

	fmt.Println("Containment:")
	fmt.Printf("  Safe mode: %v\n", responseCfg.Containment.SafeMode)
	fmt.Printf("  Kill offenders: %v\n", responseCfg.Containment.KillOffenders)
	fmt.Printf("  Shutdown after alerts: %d\n", responseCfg.Containment.ShutdownAfterAlerts)
	fmt.Println()

	fmt.Println("Entropy scan:")
	fmt.Printf("  Enabled: %v\n", responseCfg.Entropy.Enabled)
	fmt.Printf("  Threshold: %.2f bits/byte\n", responseCfg.Entropy.Threshold)
	fmt.Printf("  Roots: %s\n", strings.Join(responseCfg.ScanRoots(), ", "))
	fmt.Printf("  Interval: %s\n", responseCfg.Entropy.ScanInterval)
	fmt.Println()

	fmt.Println("Sinks:")
	fmt.Printf("  Journal: %s\n", responseCfg.Sinks.Journal.Path)
	if responseCfg.Sinks.NATS.URL != "" {
		fmt.Printf("  NATS: %s (%s)\n", responseCfg.Sinks.NATS.URL, responseCfg.Sinks.NATS.Subject)
	}
	if len(responseCfg.Sinks.Kafka.Brokers) > 0 {
		fmt.Printf("  Kafka: %s (%s)\n", strings.Join(responseCfg.Sinks.Kafka.Brokers, ","), responseCfg.Sinks.Kafka.Topic)
	}
	fmt.Printf("Ledger store: %s\n", responseCfg.LedgerStore.Type)
	fmt.Println()

	fmt.Printf("Ransomware Extensions Monitored: %d\n", len(responseCfg.RansomwareExtensions))
	for i := 0; i < len(responseCfg.RansomwareExtensions) && i < 20; i++ {
		fmt.Printf("    - %s\n", responseCfg.RansomwareExtensions[i])
	}
	if len(responseCfg.RansomwareExtensions) > 20 {
		fmt.Printf("    ... and %d more\n", len(responseCfg.RansomwareExtensions)-20)
	}

	if responseCfg.Whitelist.Enabled {
		fmt.Println()
		fmt.Printf("Whitelisted paths: %d\n", len(responseCfg.Whitelist.Paths))
		for _, path := range responseCfg.Whitelist.Paths {
			fmt.Printf("    - %s\n", path)
		}
	}
}

// showVersion displays version information
func showVersion() {
	fmt.Printf("ransomtrap v%s\n", version)
	fmt.Println("Decoy-based ransomware detection and containment")
	fmt.Println()
	fmt.Println("Features:")
	fmt.Println("  - Canary-token decoy files with tamper verification")
	fmt.Println("  - Recursive filesystem monitoring of decoys")
	fmt.Println("  - Shannon entropy scanning for in-place encryption")
	fmt.Println("  - Safe-mode containment with operator reset")
}

// printUsage displays usage information
func printUsage() {
	fmt.Println("ransomtrap - decoy-based ransomware detection")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ransomtrap protect          - Deploy decoys and start real-time protection")
	fmt.Println("  ransomtrap deploy           - Deploy decoys and record them in the ledger")
	fmt.Println("  ransomtrap verify           - Verify every recorded decoy")
	fmt.Println("  ransomtrap scan [dir...]    - Run one entropy scan")
	fmt.Println("  ransomtrap cleanup          - Remove recorded decoys")
	fmt.Println("  ransomtrap config           - Show current configuration")
	fmt.Println("  ransomtrap version          - Show version information")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  RANSOMTRAP_CONFIG   policy file (default " + config.DefaultConfigPath + ")")
	fmt.Println("  OPERATOR_TOKEN      bearer token for /canaries and /containment routes")
	fmt.Println("  LOG_DIR, LOG_LEVEL, HTTP_ADDR, NATS_URL, KAFKA_BROKERS, REDIS_ADDR, FORCE_SAFE_MODE")
	fmt.Println()
}
