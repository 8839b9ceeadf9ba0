package usecase

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// ScannerSettings configures the periodic entropy scan
type ScannerSettings struct {
	Roots                []string
	Threshold            float64
	SampleBytes          int
	CacheSize            int
	RansomwareExtensions []string

	// IsWhitelisted excludes paths from scanning, may be nil
	IsWhitelisted func(path string) bool

	// OnScanComplete receives every finished pass, may be nil
	OnScanComplete func(result *ScanResult)
}

// ScanResult summarizes one pass over the roots
type ScanResult struct {
	FilesSeen    int
	FilesSampled int
	CacheHits    int
	Forgotten    int
	Errors       int
	Events       []domain.DetectionEvent
	Duration     time.Duration
}

// EntropyScanner periodically samples non-decoy files and flags ones that look freshly encrypted
type EntropyScanner struct {
	settings ScannerSettings
	ledger   *domain.CanaryLedger
	tracker  *domain.EntropyTracker
	logger   zerolog.Logger

	scanMu sync.Mutex

	statsMu sync.Mutex
	stats   struct {
		scans        int
		filesSampled int
		flagged      int
		lastScan     time.Time
	}
}

// NewEntropyScanner creates a scanner that skips every path in ledger
func NewEntropyScanner(settings ScannerSettings, ledger *domain.CanaryLedger, logger zerolog.Logger) (*EntropyScanner, error) {
	if settings.Threshold <= 0 {
		settings.Threshold = domain.DefaultEntropyThreshold
	}
	if settings.SampleBytes <= 0 {
		settings.SampleBytes = domain.DefaultSampleBytes
	}

	tracker, err := domain.NewEntropyTracker(settings.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create entropy tracker: %w", err)
	}

	return &EntropyScanner{
		settings: settings,
		ledger:   ledger,
		tracker:  tracker,
		logger:   logger.With().Str("component", "entropy").Logger(),
	}, nil
}

// Scan walks every root once. Per-file failures are logged and counted, never fatal.
func (s *EntropyScanner) Scan(ctx context.Context) (*ScanResult, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	start := time.Now()
	result := &ScanResult{}
	seen := make(map[string]struct{})
	complete := true

	for _, root := range s.settings.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			result.Errors++
			complete = false
			continue
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				s.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
				result.Errors++
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			result.FilesSeen++
			seen[path] = struct{}{}
			if event, ok := s.evaluate(path, d, result); ok {
				result.Events = append(result.Events, event)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Warn().Err(err).Str("root", absRoot).Msg("failed to scan root")
			result.Errors++
			complete = false
		}
	}

	// baselines of files gone from a full pass are dropped; a recreated file starts over
	if complete {
		for _, path := range s.tracker.Paths() {
			if _, ok := seen[path]; !ok {
				s.tracker.Forget(path)
				result.Forgotten++
			}
		}
	}

	result.Duration = time.Since(start)

	s.statsMu.Lock()
	s.stats.scans++
	s.stats.filesSampled += result.FilesSampled
	s.stats.flagged += len(result.Events)
	s.stats.lastScan = start
	s.statsMu.Unlock()

	if s.settings.OnScanComplete != nil {
		s.settings.OnScanComplete(result)
	}

	s.logger.Debug().
		Int("files", result.FilesSeen).
		Int("sampled", result.FilesSampled).
		Int("cache_hits", result.CacheHits).
		Int("flagged", len(result.Events)).
		Dur("took", result.Duration).
		Msg("entropy scan complete")

	return result, nil
}

func (s *EntropyScanner) evaluate(path string, d fs.DirEntry, result *ScanResult) (domain.DetectionEvent, bool) {
	if s.ledger != nil && s.ledger.Contains(path) {
		return domain.DetectionEvent{}, false
	}
	if s.settings.IsWhitelisted != nil && s.settings.IsWhitelisted(path) {
		return domain.DetectionEvent{}, false
	}

	info, err := d.Info()
	if err != nil {
		result.Errors++
		return domain.DetectionEvent{}, false
	}
	if info.Size() == 0 {
		return domain.DetectionEvent{}, false
	}

	if record, ok := s.tracker.GetEntropyRecord(path); ok && record.Unchanged(info.Size(), info.ModTime()) {
		result.CacheHits++
		return domain.DetectionEvent{}, false
	}

	ext := filepath.Ext(path)
	threshold := max(s.settings.Threshold, domain.ThresholdForExtension(ext))

	analysis, err := domain.AnalyzeFileEntropy(path, threshold, s.settings.SampleBytes)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", path).Msg("failed to analyze file")
		result.Errors++
		return domain.DetectionEvent{}, false
	}
	result.FilesSampled++

	isNew, delta, record := s.tracker.TrackFileEntropy(analysis)

	if !analysis.IsLikelyEncrypted {
		record.Flagged = false
		return domain.DetectionEvent{}, false
	}
	if record.Flagged {
		return domain.DetectionEvent{}, false
	}

	signature, _ := domain.MatchSignature(analysis.Header, ext)
	if signature == domain.SignatureMatch {
		return domain.DetectionEvent{}, false
	}

	var reason string
	switch {
	case !isNew && record.OriginalEntropy <= threshold:
		reason = fmt.Sprintf("entropy rose from %.2f to %.2f (delta %.2f)", record.OriginalEntropy, analysis.Entropy, delta)
		if domain.IsSignificantEntropyIncrease(delta) {
			reason += ", significant increase"
		}
	case domain.IsRansomwareExtension(path, s.settings.RansomwareExtensions):
		reason = "high entropy with ransomware extension"
	case signature == domain.SignatureMismatch:
		reason = fmt.Sprintf("header does not match %s signature", ext)
	default:
		// first sighting of an opaque high-entropy file becomes its baseline
		return domain.DetectionEvent{}, false
	}

	record.Flagged = true

	event := domain.NewDetectionEvent(domain.KindHighEntropy, path)
	event.Entropy = analysis.Entropy
	event.Detail = reason

	s.logger.Warn().
		Str("path", path).
		Float64("entropy", analysis.Entropy).
		Float64("threshold", threshold).
		Str("reason", reason).
		Msg("file looks encrypted")

	return event, true
}

// Start scans on a ticker until ctx is cancelled, forwarding flagged files to onAlert
func (s *EntropyScanner) Start(ctx context.Context, interval time.Duration, onAlert AlertFunc) {
	if interval <= 0 {
		interval = time.Minute
	}

	s.logger.Info().Strs("roots", s.settings.Roots).Dur("interval", interval).Msg("entropy scanner started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := s.Scan(ctx)
		if err != nil {
			s.logger.Info().Msg("entropy scanner stopped")
			return
		}
		if onAlert != nil {
			for _, event := range result.Events {
				onAlert(event)
			}
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("entropy scanner stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stats returns scanner statistics
func (s *EntropyScanner) Stats() map[string]interface{} {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	return map[string]interface{}{
		"scans":         s.stats.scans,
		"files_sampled": s.stats.filesSampled,
		"flagged":       s.stats.flagged,
		"tracked_files": s.tracker.Len(),
		"last_scan":     s.stats.lastScan,
	}
}
