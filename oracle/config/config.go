package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/types"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	ModeFixed = "fixed"
	ModePoll  = "poll"

	SourceBlockfrost = "blockfrost"
	SourceExecutor   = "executor"

	// NetworkUnset makes the session prompt for the network.
	NetworkUnset = -1
)

var (
	globalConfig = defaultConfig()
	home         = DefaultHome()
	walletSeed   string
	mu           sync.RWMutex
)

type configData struct {
	Network    networkConfig    `toml:"network"`
	Executor   executorConfig   `toml:"executor"`
	Blockfrost blockfrostConfig `toml:"blockfrost"`
	Rng        rngConfig        `toml:"rng"`
	Ogmios     ogmiosConfig     `toml:"ogmios"`
	Contracts  contractsConfig  `toml:"contracts"`
	Confirm    confirmConfig    `toml:"confirm"`
	Status     statusConfig     `toml:"status"`
	Journal    journalConfig    `toml:"journal"`
	Log        logConfig        `toml:"log"`
}

type networkConfig struct {
	Selector int `toml:"selector"`
}

type executorConfig struct {
	Endpoint string `toml:"endpoint"`
	Timeout  string `toml:"timeout"`
}

type blockfrostConfig struct {
	APIKey string `toml:"api_key"`
}

type rngConfig struct {
	APIURL       string `toml:"api_url"`
	OutputLength int    `toml:"output_length"`
}

type ogmiosConfig struct {
	URL string `toml:"url"`
}

type contractsConfig struct {
	OracleCBORFile string `toml:"oracle_cbor_file"`
	RngCBORFile    string `toml:"rng_cbor_file"`
}

type confirmConfig struct {
	Mode     string `toml:"mode"`
	Source   string `toml:"source"`
	Delay    string `toml:"delay"`
	Timeout  string `toml:"timeout"`
	Interval string `toml:"interval"`
}

type statusConfig struct {
	Enabled        bool     `toml:"enabled"`
	Listen         string   `toml:"listen"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type journalConfig struct {
	Enabled bool   `toml:"enabled"`
	File    string `toml:"file"`
}

type logConfig struct {
	Verbose bool `toml:"verbose"`
	ToFile  bool `toml:"to_file"`
}

func defaultConfig() configData {
	return configData{
		Network:  networkConfig{Selector: NetworkUnset},
		Executor: executorConfig{Endpoint: "http://localhost:8090", Timeout: "60s"},
		Rng:      rngConfig{OutputLength: 0},
		Confirm: confirmConfig{
			Mode:     ModePoll,
			Source:   SourceBlockfrost,
			Delay:    "120s",
			Timeout:  "10m",
			Interval: "20s",
		},
		Status: statusConfig{
			Enabled:        true,
			Listen:         "127.0.0.1:8091",
			AllowedOrigins: []string{"*"},
		},
		Journal: journalConfig{Enabled: true, File: "journal.yaml"},
		Log:     logConfig{Verbose: false, ToFile: true},
	}
}

// DefaultHome is ~/.rngoracled.
func DefaultHome() string {
	osHome, err := os.UserHomeDir()
	if err != nil {
		return ".rngoracled"
	}

	return filepath.Join(osHome, ".rngoracled")
}

// Load reads <homeDir>/config.toml, creating a default file on first run, then
// applies overrides from v (flags and RNGORACLE_* env vars). v may be nil.
func Load(homeDir string, v *viper.Viper) error {
	if homeDir == "" {
		homeDir = DefaultHome()
	}
	path := filepath.Join(homeDir, "config.toml")

	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefaultConfig(path, cfg); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}

	seed := ""
	if v != nil {
		applyOverrides(&cfg, v)
		seed = strings.TrimSpace(v.GetString("wallet.seed"))
	}

	if err := validateConfig(cfg); err != nil {
		return err
	}

	mu.Lock()
	globalConfig = cfg
	home = homeDir
	walletSeed = seed
	mu.Unlock()

	log.Infof("Loaded config from %s", path)

	return nil
}

func createDefaultConfig(path string, cfg configData) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal TOML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func applyOverrides(cfg *configData, v *viper.Viper) {
	if v.IsSet("network.selector") {
		cfg.Network.Selector = cast.ToInt(v.Get("network.selector"))
	}
	if v.IsSet("executor.endpoint") {
		cfg.Executor.Endpoint = v.GetString("executor.endpoint")
	}
	if v.IsSet("blockfrost.api_key") {
		cfg.Blockfrost.APIKey = v.GetString("blockfrost.api_key")
	}
	if v.IsSet("rng.api_url") {
		cfg.Rng.APIURL = v.GetString("rng.api_url")
	}
	if v.IsSet("rng.output_length") {
		cfg.Rng.OutputLength = cast.ToInt(v.Get("rng.output_length"))
	}
	if v.IsSet("ogmios.url") {
		cfg.Ogmios.URL = v.GetString("ogmios.url")
	}
	if v.IsSet("confirm.mode") {
		cfg.Confirm.Mode = v.GetString("confirm.mode")
	}
	if v.IsSet("confirm.source") {
		cfg.Confirm.Source = v.GetString("confirm.source")
	}
	if v.IsSet("confirm.delay") {
		cfg.Confirm.Delay = v.GetString("confirm.delay")
	}
	if v.IsSet("confirm.timeout") {
		cfg.Confirm.Timeout = v.GetString("confirm.timeout")
	}
	if v.IsSet("confirm.interval") {
		cfg.Confirm.Interval = v.GetString("confirm.interval")
	}
	if v.IsSet("executor.timeout") {
		cfg.Executor.Timeout = v.GetString("executor.timeout")
	}
	if v.IsSet("journal.enabled") {
		cfg.Journal.Enabled = v.GetBool("journal.enabled")
	}
	if v.IsSet("status.listen") {
		cfg.Status.Listen = v.GetString("status.listen")
	}
	if v.IsSet("status.enabled") {
		cfg.Status.Enabled = v.GetBool("status.enabled")
	}
	if v.IsSet("log.verbose") {
		cfg.Log.Verbose = v.GetBool("log.verbose")
	}
}

func validateConfig(cfg configData) error {
	if cfg.Network.Selector != NetworkUnset {
		if _, err := types.ParseNetwork(cfg.Network.Selector); err != nil {
			return types.ErrInvalidConfig.Wrapf("network selector %d", cfg.Network.Selector)
		}
	}

	if cfg.Executor.Endpoint == "" {
		return types.ErrInvalidConfig.Wrap("executor endpoint is required")
	}

	if cfg.Rng.OutputLength < 0 {
		return types.ErrInvalidConfig.Wrap("rng output length must not be negative")
	}

	switch cfg.Confirm.Mode {
	case ModeFixed, ModePoll:
	default:
		return types.ErrInvalidConfig.Wrapf("unknown confirm mode %q", cfg.Confirm.Mode)
	}

	switch cfg.Confirm.Source {
	case SourceBlockfrost, SourceExecutor:
	default:
		return types.ErrInvalidConfig.Wrapf("unknown confirm source %q", cfg.Confirm.Source)
	}

	for name, value := range map[string]string{
		"executor.timeout": cfg.Executor.Timeout,
		"confirm.delay":    cfg.Confirm.Delay,
		"confirm.timeout":  cfg.Confirm.Timeout,
		"confirm.interval": cfg.Confirm.Interval,
	} {
		d, err := cast.ToDurationE(value)
		if err != nil || d <= 0 {
			return types.ErrInvalidConfig.Wrapf("%s must be a positive duration, got %q", name, value)
		}
	}

	if cfg.Status.Enabled && cfg.Status.Listen == "" {
		return types.ErrInvalidConfig.Wrap("status listen address is required when status is enabled")
	}

	return nil
}

func Print() {
	log.Infof("%-18s: %s", "Home", Home())
	log.Infof("%-18s: %d", "Network", NetworkSelector())
	log.Infof("%-18s: %s", "Executor", ExecutorEndpoint())
	log.Infof("%-18s: %s", "RNG API", RngAPIURL())
	log.Infof("%-18s: %s", "Ogmios", OgmiosURL())
	log.Infof("%-18s: %s", "Confirm Mode", ConfirmMode())
	log.Infof("%-18s: %s", "Confirm Source", ConfirmSource())
	log.Infof("%-18s: %v", "Confirm Delay", ConfirmDelay())
	log.Infof("%-18s: %v", "Confirm Timeout", ConfirmTimeout())
	log.Infof("%-18s: %v", "Status Enabled", StatusEnabled())
	log.Infof("%-18s: %s", "Status Listen", StatusListen())
	log.Infof("%-18s: %v", "Journal", JournalEnabled())
}

func get() configData {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig
}

func Home() string {
	mu.RLock()
	defer mu.RUnlock()

	return home
}

func NetworkSelector() int {
	return get().Network.Selector
}

func ExecutorEndpoint() string {
	return strings.TrimRight(get().Executor.Endpoint, "/")
}

func ExecutorTimeout() time.Duration {
	return cast.ToDuration(get().Executor.Timeout)
}

func BlockfrostAPIKey() string {
	return get().Blockfrost.APIKey
}

func RngAPIURL() string {
	return get().Rng.APIURL
}

func RngOutputLength() int {
	return get().Rng.OutputLength
}

func OgmiosURL() string {
	return get().Ogmios.URL
}

// WalletSeed is only ever taken from the environment or flags, never the file.
func WalletSeed() string {
	mu.RLock()
	defer mu.RUnlock()

	return walletSeed
}

// OracleCBOR returns the compiled oracle contract, or "" when no file is configured.
func OracleCBOR() (string, error) {
	return readContract(get().Contracts.OracleCBORFile)
}

// RngCBOR returns the compiled RNG contract, or "" when no file is configured.
func RngCBOR() (string, error) {
	return readContract(get().Contracts.RngCBORFile)
}

func readContract(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(Home(), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read contract %s: %w", path, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func ConfirmMode() string {
	return get().Confirm.Mode
}

// ConfirmSource names the status checker used in poll mode.
func ConfirmSource() string {
	return get().Confirm.Source
}

func ConfirmDelay() time.Duration {
	return cast.ToDuration(get().Confirm.Delay)
}

func ConfirmTimeout() time.Duration {
	return cast.ToDuration(get().Confirm.Timeout)
}

func ConfirmInterval() time.Duration {
	return cast.ToDuration(get().Confirm.Interval)
}

func StatusEnabled() bool {
	return get().Status.Enabled
}

func StatusListen() string {
	return get().Status.Listen
}

func StatusAllowedOrigins() []string {
	return get().Status.AllowedOrigins
}

func JournalEnabled() bool {
	return get().Journal.Enabled
}

func JournalPath() string {
	file := get().Journal.File
	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(Home(), file)
}

func LogVerbose() bool {
	return get().Log.Verbose
}

func LogToFile() bool {
	return get().Log.ToFile
}

// SetForTesting installs defaults rooted at homeDir, then applies overrides
// keyed like the config file ("confirm.mode", "rng.output_length", ...).
func SetForTesting(homeDir string, overrides map[string]any) {
	cfg := defaultConfig()
	v := viper.New()
	for key, value := range overrides {
		v.Set(key, value)
	}
	applyOverrides(&cfg, v)

	mu.Lock()
	defer mu.Unlock()

	globalConfig = cfg
	home = homeDir
	walletSeed = strings.TrimSpace(v.GetString("wallet.seed"))
}
