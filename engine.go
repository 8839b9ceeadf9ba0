package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/config"
	"github.com/S-Axhwin/ransomwar-engine/internal/delivery/httpapi"
	"github.com/S-Axhwin/ransomwar-engine/internal/infrastructure"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
	"github.com/S-Axhwin/ransomwar-engine/internal/usecase"
)

// engine holds every long-running component of protect mode
type engine struct {
	cfg    *config.ResponseConfig
	logger zerolog.Logger

	metrics      *infrastructure.Metrics
	journal      *infrastructure.EventJournal
	sinks        *infrastructure.MultiSink
	store        repository.LedgerStore
	closeStore   func()
	inspector    *infrastructure.ProcessInspector
	containment  *usecase.Containment
	orchestrator *usecase.ResponseOrchestrator
	decoys       *usecase.DecoyService
	monitor      *usecase.FileMonitor
	scanner      *usecase.EntropyScanner

	wg sync.WaitGroup
}

func newEngine(ctx context.Context, cfg *config.ResponseConfig, logger zerolog.Logger) (*engine, error) {
	e := &engine{
		cfg:     cfg,
		logger:  logger,
		metrics: infrastructure.NewMetrics(),
	}

	journal, err := infrastructure.NewEventJournal(cfg.Sinks.Journal.Path, cfg.Sinks.Journal.MaxBytes, cfg.Sinks.Journal.MaxBackups, logger)
	if err != nil {
		return nil, err
	}
	e.journal = journal
	e.sinks = infrastructure.NewMultiSink(infrastructure.NamedSink{Name: "journal", Sink: journal})

	if cfg.Sinks.NATS.URL != "" {
		sink, err := infrastructure.NewNATSSink(cfg.Sinks.NATS.URL, cfg.Sinks.NATS.Subject, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("NATS sink disabled")
		} else {
			e.sinks.Add("nats", sink)
		}
	}
	if len(cfg.Sinks.Kafka.Brokers) > 0 {
		sink, err := infrastructure.NewKafkaSink(strings.Join(cfg.Sinks.Kafka.Brokers, ","), cfg.Sinks.Kafka.Topic, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Kafka sink disabled")
		} else {
			e.sinks.Add("kafka", sink)
		}
	}

	store, closeStore, err := openLedgerStore(ctx, cfg, logger)
	if err != nil {
		e.sinks.Close()
		return nil, err
	}
	e.store = store
	e.closeStore = closeStore

	e.inspector = infrastructure.NewProcessInspector(logger)
	e.containment = usecase.NewContainment(cfg.Containment.SafeMode, e.inspector, logger,
		usecase.WithActionObserver(e.metrics.ObserveAction),
		usecase.WithActionObserver(journal.RecordAction),
	)
	e.orchestrator = usecase.NewResponseOrchestrator(e.containment, e.sinks, e.inspector, e.metrics, usecase.ResponseSettings{
		KillOffenders:       cfg.Containment.KillOffenders,
		ShutdownAfterAlerts: cfg.Containment.ShutdownAfterAlerts,
		QueueSize:           cfg.Containment.QueueSize,
	}, logger)

	e.decoys = usecase.NewDecoyService(cfg.Decoy.Directory, cfg.Decoy.SizeRange, logger)
	e.monitor = usecase.NewFileMonitor(infrastructure.NewFSWatcher, logger)

	if cfg.Entropy.Enabled {
		scanner, err := usecase.NewEntropyScanner(scannerSettings(cfg, cfg.ScanRoots(), e.metrics), e.decoys.Ledger(), logger)
		if err != nil {
			e.close()
			return nil, err
		}
		e.scanner = scanner
	}

	return e, nil
}

// start restores and deploys decoys, then starts every consumer.
// The monitor is started last so its ledger snapshot contains every decoy.
func (e *engine) start(ctx context.Context) error {
	if err := e.orchestrator.Start(ctx); err != nil {
		return err
	}

	_, broken, err := e.decoys.Restore(ctx, e.store)
	if err != nil {
		e.logger.Warn().Err(err).Msg("ledger not restored, deploying fresh decoys")
	}
	for _, event := range broken {
		event.Detail = "decoy tampered while protection was stopped"
		e.orchestrator.Submit(event)
	}

	if _, err := e.decoys.Deploy(e.cfg.Decoy.Names, e.cfg.Decoy.Extension, e.cfg.Decoy.Overwrite); err != nil {
		if e.decoys.Ledger().Len() == 0 {
			return fmt.Errorf("no decoys deployed: %w", err)
		}
		e.logger.Warn().Err(err).Msg("some decoys were not deployed")
	}
	if err := e.decoys.Persist(ctx, e.store); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist ledger")
	}
	e.metrics.SetDecoysTracked(e.decoys.Ledger().Len())

	root, ok := e.cfg.WatchRoot()
	if !ok {
		e.logger.Warn().
			Str("monitor_root", e.cfg.Monitor.Root).
			Str("decoy_dir", e.cfg.Decoy.Directory).
			Msg("decoy directory is outside monitor.root, watching the decoy directory only")
	}
	if err := e.monitor.Start(root, e.decoys.Ledger(), e.orchestrator.Submit); err != nil {
		return err
	}

	e.goFunc(func() { e.decoys.StartCanaryMonitoring(ctx, e.cfg.Decoy.CheckInterval, e.orchestrator.Submit) })

	if e.scanner != nil {
		e.goFunc(func() { e.scanner.Start(ctx, e.cfg.Entropy.ScanInterval, e.orchestrator.Submit) })
	}
	return nil
}

func (e *engine) goFunc(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// stop halts producers before the orchestrator so queued events are still handled.
// Callers cancel the start context first.
func (e *engine) stop() {
	e.monitor.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		e.logger.Warn().Msg("background workers did not stop in time")
	}

	e.orchestrator.Stop()

	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.decoys.Persist(persistCtx, e.store); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist ledger")
	}
}

func (e *engine) close() {
	if err := e.sinks.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to close sinks")
	}
	if e.closeStore != nil {
		e.closeStore()
	}
}

// scannerStats keeps a nil scanner out of the operator API
func (e *engine) scannerStats() httpapi.StatsProvider {
	if e.scanner == nil {
		return disabledStats{}
	}
	return e.scanner
}

type disabledStats struct{}

func (disabledStats) Stats() map[string]interface{} {
	return map[string]interface{}{"enabled": false}
}

// openLedgerStore returns the configured store and a function releasing it
func openLedgerStore(ctx context.Context, cfg *config.ResponseConfig, logger zerolog.Logger) (repository.LedgerStore, func(), error) {
	switch cfg.LedgerStore.Type {
	case config.LedgerStoreRedis:
		redisCfg := cfg.LedgerStore.Redis
		store, err := infrastructure.NewRedisLedgerStore(ctx, redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.Key, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return infrastructure.NewFileLedgerStore(cfg.LedgerStore.Path), func() {}, nil
	}
}

func scannerSettings(cfg *config.ResponseConfig, roots []string, metrics *infrastructure.Metrics) usecase.ScannerSettings {
	settings := usecase.ScannerSettings{
		Roots:                roots,
		Threshold:            cfg.Entropy.Threshold,
		SampleBytes:          cfg.Entropy.SampleBytes,
		CacheSize:            cfg.Entropy.CacheSize,
		RansomwareExtensions: cfg.RansomwareExtensions,
		IsWhitelisted:        cfg.IsWhitelisted,
	}
	if metrics != nil {
		settings.OnScanComplete = func(result *usecase.ScanResult) {
			metrics.ObserveScan(result.FilesSampled, result.Duration.Seconds())
		}
	}
	return settings
}
