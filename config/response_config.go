package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// DefaultConfigPath is where the policy file is looked up when RANSOMTRAP_CONFIG is unset
const DefaultConfigPath = "config/ransomtrap.yaml"

// Ledger store backends
const (
	LedgerStoreFile  = "file"
	LedgerStoreRedis = "redis"
)

// DefaultRansomwareExtensions are used when the policy file lists none
var DefaultRansomwareExtensions = []string{
	".encrypted", ".locked", ".enc", ".crypt", ".locky", ".cerber",
	".zepto", ".thor", ".aesir", ".cryptolocker", ".cryptowall",
	".teslacrypt", ".wannacry", ".wcry", ".wncry", ".lockbit",
	".ryuk", ".sodinokibi", ".revil", ".conti", ".blackmatter",
	".alphv", ".hive",
}

// ResponseConfig holds the detection and response policy
type ResponseConfig struct {
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`

	Monitor              MonitorConfig     `yaml:"monitor"`
	Decoy                DecoyConfig       `yaml:"decoy"`
	Containment          ContainmentConfig `yaml:"containment"`
	Entropy              EntropyConfig     `yaml:"entropy"`
	Sinks                SinksConfig       `yaml:"sinks"`
	LedgerStore          LedgerStoreConfig `yaml:"ledger_store"`
	Whitelist            WhitelistConfig   `yaml:"whitelist"`
	RansomwareExtensions []string          `yaml:"ransomware_extensions"`
}

// MonitorConfig defines the tree watched for decoy tampering.
// The decoy directory should live under Root so renames out of it keep their destination.
type MonitorConfig struct {
	Root string `yaml:"root"`
}

// DecoyConfig defines where and how decoys are planted
type DecoyConfig struct {
	Directory     string           `yaml:"directory"`
	Names         []string         `yaml:"names"`
	Extension     string           `yaml:"extension"`
	SizeRange     domain.SizeRange `yaml:"size_range"`
	Overwrite     bool             `yaml:"overwrite"`
	CheckInterval time.Duration    `yaml:"check_interval"`
}

// ContainmentConfig defines automated response behavior
type ContainmentConfig struct {
	SafeMode            bool `yaml:"safe_mode"`
	KillOffenders       bool `yaml:"kill_offenders"`
	ShutdownAfterAlerts int  `yaml:"shutdown_after_alerts"`
	QueueSize           int  `yaml:"queue_size"`
}

// EntropyConfig defines the periodic entropy scan
type EntropyConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Threshold    float64       `yaml:"threshold"`
	SampleBytes  int           `yaml:"sample_bytes"`
	ScanInterval time.Duration `yaml:"scan_interval"`
	Roots        []string      `yaml:"roots"`
	CacheSize    int           `yaml:"cache_size"`
}

// SinksConfig lists the event destinations. Empty NATS URL or Kafka brokers disable that sink.
type SinksConfig struct {
	Journal JournalConfig `yaml:"journal"`
	NATS    NATSConfig    `yaml:"nats"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

type JournalConfig struct {
	Path       string `yaml:"path"`
	MaxBytes   int64  `yaml:"max_bytes"`
	MaxBackups int    `yaml:"max_backups"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LedgerStoreConfig selects where the canary ledger survives restarts
type LedgerStoreConfig struct {
	Type  string      `yaml:"type"`
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// WhitelistConfig defines paths exempt from entropy scanning
type WhitelistConfig struct {
	Enabled bool     `yaml:"enabled"`
	Paths   []string `yaml:"paths"`
}

// DefaultResponseConfig returns the built-in policy. Containment starts in safe mode.
func DefaultResponseConfig() *ResponseConfig {
	return &ResponseConfig{
		Version: "1",
		Monitor: MonitorConfig{Root: "."},
		Decoy: DecoyConfig{
			Directory:     "decoys",
			Names:         append([]string(nil), domain.DefaultDecoyNames...),
			Extension:     ".docx",
			SizeRange:     domain.DefaultSizeRange,
			CheckInterval: 30 * time.Second,
		},
		Containment: ContainmentConfig{
			SafeMode:  true,
			QueueSize: 256,
		},
		Entropy: EntropyConfig{
			Threshold:    domain.DefaultEntropyThreshold,
			SampleBytes:  domain.DefaultSampleBytes,
			ScanInterval: time.Minute,
			CacheSize:    domain.DefaultTrackerSize,
		},
		Sinks: SinksConfig{
			Journal: JournalConfig{
				Path:       "logs/events.jsonl",
				MaxBytes:   5 * 1024 * 1024,
				MaxBackups: 5,
			},
			NATS:  NATSConfig{Subject: "ransomtrap.events"},
			Kafka: KafkaConfig{Topic: "ransomtrap-events"},
		},
		LedgerStore: LedgerStoreConfig{
			Type: LedgerStoreFile,
			Path: "decoys/.ledger.json",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "ransomtrap:ledger",
			},
		},
		RansomwareExtensions: append([]string(nil), DefaultRansomwareExtensions...),
	}
}

// LoadResponseConfig reads the policy file over the defaults.
// A missing file yields DefaultResponseConfig.
func LoadResponseConfig(configPath string) (*ResponseConfig, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	config := DefaultResponseConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read response config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse response config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid response config %s: %w", configPath, err)
	}

	config.normalize()
	return config, nil
}

// Validate rejects policies the engine cannot run
func (rc *ResponseConfig) Validate() error {
	if err := rc.Decoy.SizeRange.Validate(); err != nil {
		return err
	}
	if rc.Decoy.Directory == "" {
		return errors.New("decoy.directory is required")
	}
	if rc.Entropy.Threshold < 0 || rc.Entropy.Threshold > 8 {
		return fmt.Errorf("entropy.threshold %.2f outside [0, 8]", rc.Entropy.Threshold)
	}
	if rc.Containment.ShutdownAfterAlerts < 0 {
		return errors.New("containment.shutdown_after_alerts must not be negative")
	}
	switch rc.LedgerStore.Type {
	case "", LedgerStoreFile, LedgerStoreRedis:
	default:
		return fmt.Errorf("unknown ledger_store.type %q", rc.LedgerStore.Type)
	}
	return nil
}

func (rc *ResponseConfig) normalize() {
	if rc.Monitor.Root == "" {
		rc.Monitor.Root = "."
	}
	if len(rc.Decoy.Names) == 0 {
		rc.Decoy.Names = append([]string(nil), domain.DefaultDecoyNames...)
	}
	if rc.Decoy.Extension != "" && !strings.HasPrefix(rc.Decoy.Extension, ".") {
		rc.Decoy.Extension = "." + rc.Decoy.Extension
	}
	if rc.LedgerStore.Type == "" {
		rc.LedgerStore.Type = LedgerStoreFile
	}
	if len(rc.RansomwareExtensions) == 0 {
		rc.RansomwareExtensions = append([]string(nil), DefaultRansomwareExtensions...)
	}
	for i := range rc.RansomwareExtensions {
		rc.RansomwareExtensions[i] = strings.ToLower(rc.RansomwareExtensions[i])
	}
}

// WatchRoot returns the directory the monitor subscribes to. When the decoy
// directory is not under monitor.root the decoy directory is watched instead
// and ok is false.
func (rc *ResponseConfig) WatchRoot() (root string, ok bool) {
	absRoot, err := filepath.Abs(rc.Monitor.Root)
	if err != nil {
		return rc.Decoy.Directory, false
	}
	absDecoys, err := filepath.Abs(rc.Decoy.Directory)
	if err != nil {
		return rc.Decoy.Directory, false
	}

	rel, err := filepath.Rel(absRoot, absDecoys)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rc.Decoy.Directory, false
	}
	return rc.Monitor.Root, true
}

// ScanRoots returns entropy.roots, or the watch root when none are listed
func (rc *ResponseConfig) ScanRoots() []string {
	if len(rc.Entropy.Roots) > 0 {
		return rc.Entropy.Roots
	}
	root, _ := rc.WatchRoot()
	return []string{root}
}

// IsRansomwareExtension checks if file extension matches ransomware pattern
func (rc *ResponseConfig) IsRansomwareExtension(extension string) bool {
	extLower := strings.ToLower(extension)
	for _, ransomExt := range rc.RansomwareExtensions {
		if extLower == ransomExt {
			return true
		}
	}
	return false
}

// IsWhitelisted checks if a path is whitelisted
func (rc *ResponseConfig) IsWhitelisted(path string) bool {
	if !rc.Whitelist.Enabled {
		return false
	}

	pathLower := strings.ToLower(path)
	for _, whitelistPath := range rc.Whitelist.Paths {
		if strings.HasPrefix(pathLower, strings.ToLower(whitelistPath)) {
			return true
		}
	}

	return false
}

// SaveConfig saves the configuration back to file
func (rc *ResponseConfig) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(rc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
