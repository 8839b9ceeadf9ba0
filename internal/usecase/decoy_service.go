package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

// AlertFunc receives detection events. It runs on the caller's goroutine and must not block for long.
type AlertFunc func(event domain.DetectionEvent)

// DecoyService deploys bait files and owns the canary ledger
type DecoyService struct {
	decoyDir  string
	sizeRange domain.SizeRange
	ledger    *domain.CanaryLedger
	logger    zerolog.Logger

	// paths already reported by periodic checks, so a broken decoy alerts once
	reported    map[string]struct{}
	reportedMux sync.Mutex

	// paths that failed verification on restore; their on-disk token is never adopted
	distrusted map[string]struct{}
}

// NewDecoyService creates a decoy service writing into decoyDir
func NewDecoyService(decoyDir string, sizeRange domain.SizeRange, logger zerolog.Logger) *DecoyService {
	return &DecoyService{
		decoyDir:  decoyDir,
		sizeRange: sizeRange,
		ledger:    domain.NewCanaryLedger(),
		logger:    logger.With().Str("component", "canary").Logger(),
		reported:   make(map[string]struct{}),
		distrusted: make(map[string]struct{}),
	}
}

// Ledger returns the ledger shared with the monitor
func (ds *DecoyService) Ledger() *domain.CanaryLedger {
	return ds.ledger
}

// CreateDecoy writes a decoy file and registers it.
// On failure the ledger is left untouched.
func (ds *DecoyService) CreateDecoy(baseName, extension string, sizeRange domain.SizeRange) (*domain.DecoyFile, error) {
	decoy, err := domain.WriteDecoyFile(ds.decoyDir, baseName, extension, sizeRange)
	if err != nil {
		ds.logger.Error().Err(err).Str("name", baseName+extension).Msg("failed to create decoy")
		return nil, err
	}

	ds.ledger.Register(*decoy)
	ds.clearReported(decoy.Path)
	ds.trust(decoy.Path)

	ds.logger.Info().
		Str("path", decoy.Path).
		Int64("payload_bytes", decoy.SizeBytes).
		Msg("decoy deployed")

	return decoy, nil
}

// Deploy creates one decoy per base name. When overwrite is false an existing
// file with a readable token is adopted instead of being rewritten, unless
// Restore found it tampered.
func (ds *DecoyService) Deploy(names []string, extension string, overwrite bool) ([]domain.DecoyFile, error) {
	deployed := make([]domain.DecoyFile, 0, len(names))
	var errs []error

	for _, name := range names {
		if !overwrite {
			if decoy, ok := ds.adoptExisting(name, extension); ok {
				deployed = append(deployed, decoy)
				continue
			}
		}

		decoy, err := ds.CreateDecoy(name, extension, ds.sizeRange)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		deployed = append(deployed, *decoy)
	}

	ds.logger.Info().Int("deployed", len(deployed)).Int("failed", len(errs)).Msg("decoy deployment complete")

	if len(deployed) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("failed to deploy any decoy: %w", errors.Join(errs...))
	}
	return deployed, errors.Join(errs...)
}

func (ds *DecoyService) adoptExisting(name, extension string) (domain.DecoyFile, bool) {
	absDir, err := filepath.Abs(ds.decoyDir)
	if err != nil {
		return domain.DecoyFile{}, false
	}
	path := filepath.Join(absDir, name+extension)

	if ds.isDistrusted(path) {
		ds.logger.Warn().Str("path", path).Msg("existing decoy failed verification, rewriting")
		return domain.DecoyFile{}, false
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return domain.DecoyFile{}, false
	}

	token, err := domain.ReadDecoyToken(path)
	if err != nil {
		ds.logger.Warn().Err(err).Str("path", path).Msg("existing file has no canary token, rewriting")
		return domain.DecoyFile{}, false
	}

	decoy := domain.DecoyFile{
		Path:      path,
		Token:     token,
		SizeBytes: info.Size(),
		Extension: extension,
		CreatedAt: info.ModTime(),
	}
	ds.ledger.Register(decoy)

	ds.logger.Info().Str("path", path).Msg("tracked existing decoy")
	return decoy, true
}

// VerifyCanary reports whether the decoy at path still carries its recorded token.
// Unknown paths, unreadable files, missing markers and mismatched tokens all return false.
func (ds *DecoyService) VerifyCanary(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	decoy, ok := ds.ledger.Lookup(path)
	if !ok {
		ds.logger.Debug().Str("path", path).Msg("file is not in ledger")
		return false
	}

	token, err := domain.ReadDecoyToken(path)
	if err != nil {
		ds.logger.Debug().Err(err).Str("path", path).Msg("canary unreadable")
		return false
	}

	return token == decoy.Token
}

// CheckAll verifies every ledger entry and returns an event for each broken decoy
func (ds *DecoyService) CheckAll() []domain.DetectionEvent {
	decoys := ds.ledger.Snapshot()
	if len(decoys) == 0 {
		return nil
	}

	ds.logger.Debug().Int("decoys", len(decoys)).Msg("checking decoys")

	var events []domain.DetectionEvent
	for _, decoy := range decoys {
		if ds.VerifyCanary(decoy.Path) {
			continue
		}

		kind := domain.KindDecoyModified
		if _, err := os.Stat(decoy.Path); errors.Is(err, fs.ErrNotExist) {
			kind = domain.KindDecoyDeleted
		}

		event := domain.NewDetectionEvent(kind, decoy.Path)
		event.Detail = "periodic canary verification failed"
		events = append(events, event)
	}

	if len(events) == 0 {
		ds.logger.Debug().Int("decoys", len(decoys)).Msg("all decoys intact")
	}
	return events
}

// StartCanaryMonitoring re-verifies the ledger on a ticker until ctx is cancelled.
// It catches tampering that happened while no watcher was attached.
func (ds *DecoyService) StartCanaryMonitoring(ctx context.Context, interval time.Duration, onAlert AlertFunc) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ds.logger.Info().Dur("interval", interval).Msg("periodic canary monitoring started")

	for {
		select {
		case <-ctx.Done():
			ds.logger.Info().Msg("periodic canary monitoring stopped")
			return
		case <-ticker.C:
			for _, event := range ds.CheckAll() {
				if !ds.markReported(event.SubjectPath) {
					continue
				}
				ds.logger.Error().Str("path", event.SubjectPath).Str("kind", string(event.Kind)).Msg("decoy compromised")
				if onAlert != nil {
					onAlert(event)
				}
			}
		}
	}
}

func (ds *DecoyService) markReported(path string) bool {
	ds.reportedMux.Lock()
	defer ds.reportedMux.Unlock()

	if _, seen := ds.reported[path]; seen {
		return false
	}
	ds.reported[path] = struct{}{}
	return true
}

func (ds *DecoyService) clearReported(path string) {
	ds.reportedMux.Lock()
	defer ds.reportedMux.Unlock()

	delete(ds.reported, path)
}

func (ds *DecoyService) distrust(path string) {
	ds.reportedMux.Lock()
	defer ds.reportedMux.Unlock()

	ds.distrusted[filepath.Clean(path)] = struct{}{}
}

func (ds *DecoyService) trust(path string) {
	ds.reportedMux.Lock()
	defer ds.reportedMux.Unlock()

	delete(ds.distrusted, filepath.Clean(path))
}

func (ds *DecoyService) isDistrusted(path string) bool {
	ds.reportedMux.Lock()
	defer ds.reportedMux.Unlock()

	_, ok := ds.distrusted[filepath.Clean(path)]
	return ok
}

// Restore re-admits decoys from an external store. Only entries whose on-disk token
// still matches are registered; the rest are returned as events and will be
// rewritten with a fresh token by the next Deploy.
func (ds *DecoyService) Restore(ctx context.Context, store repository.LedgerStore) (int, []domain.DetectionEvent, error) {
	decoys, err := store.Load(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	restored := 0
	var broken []domain.DetectionEvent
	for _, decoy := range decoys {
		token, err := domain.ReadDecoyToken(decoy.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			ds.distrust(decoy.Path)
			broken = append(broken, domain.NewDetectionEvent(domain.KindDecoyDeleted, decoy.Path))
		case err != nil || token != decoy.Token:
			ds.distrust(decoy.Path)
			broken = append(broken, domain.NewDetectionEvent(domain.KindDecoyModified, decoy.Path))
		default:
			ds.ledger.Register(decoy)
			restored++
		}
	}

	ds.logger.Info().Int("restored", restored).Int("broken", len(broken)).Msg("ledger restored")
	return restored, broken, nil
}

// Persist writes the current ledger to an external store
func (ds *DecoyService) Persist(ctx context.Context, store repository.LedgerStore) error {
	if err := store.Save(ctx, ds.ledger.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

// Cleanup removes all decoy files and their ledger entries
func (ds *DecoyService) Cleanup() {
	decoys := ds.ledger.Snapshot()
	ds.logger.Info().Int("decoys", len(decoys)).Msg("cleaning up decoys")

	for _, decoy := range decoys {
		if err := os.Remove(decoy.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			ds.logger.Warn().Err(err).Str("path", decoy.Path).Msg("failed to remove decoy")
			continue
		}
		ds.ledger.Remove(decoy.Path)
	}
}

// Stats returns statistics about decoys
func (ds *DecoyService) Stats() map[string]interface{} {
	ds.reportedMux.Lock()
	compromised := len(ds.reported)
	ds.reportedMux.Unlock()

	return map[string]interface{}{
		"total_decoys":      ds.ledger.Len(),
		"reported_broken":   compromised,
		"decoy_directory":   ds.decoyDir,
		"payload_range_kib": fmt.Sprintf("%d-%d", ds.sizeRange.MinKiB, ds.sizeRange.MaxKiB),
	}
}
