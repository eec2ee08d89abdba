package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDataFile          = "binance.db"
	defaultCacheFile         = "price-cache.db"
	defaultJournalDir        = "journal"
	defaultValuationInterval = 6 * time.Hour
	defaultReferenceAsset    = "BTC"
	defaultCommissionAsset   = "BNB"
	defaultSpeed             = 8
	maxSpeed                 = 10
)

// Config runtime configuration of a statement run.
type Config struct {
	DataFile   string
	CacheFile  string
	JournalDir string

	UnitsOfAccount    []string
	StartMonth        int
	StartYear         int
	ValuationInterval time.Duration
	ReferenceAsset    string
	CommissionAsset   string

	// Sync pulls balances and transfers from Binance before the replay.
	Sync bool
	// SyncFills additionally pulls the trade history of every listed symbol.
	SyncFills bool
	// Speed paces Binance calls from 0 (slowest) to 10 (no pause).
	Speed int

	DashboardAddr    string
	DashboardDomains []string

	LogLevel string
	LogFile  string

	// Setup runs the configuration wizard instead of a statement.
	Setup bool
}

// ConfigTmp yaml representation of Config.
type ConfigTmp struct {
	DataFile          string        `yaml:"data_file,omitempty"`
	CacheFile         string        `yaml:"cache_file,omitempty"`
	JournalDir        string        `yaml:"journal_dir,omitempty"`
	UnitsOfAccount    []string      `yaml:"units_of_account"`
	StartMonth        int           `yaml:"start_month,omitempty"`
	StartYear         int           `yaml:"start_year,omitempty"`
	ValuationInterval time.Duration `yaml:"valuation_interval,omitempty"`
	ReferenceAsset    string        `yaml:"reference_asset,omitempty"`
	CommissionAsset   string        `yaml:"commission_asset,omitempty"`
	Sync              *bool         `yaml:"sync,omitempty"`
	SyncFills         *bool         `yaml:"sync_fills,omitempty"`
	Speed             *int          `yaml:"speed,omitempty"`
	DashboardAddr     string        `yaml:"dashboard_addr,omitempty"`
	DashboardDomains  []string      `yaml:"dashboard_domains,omitempty"`
	LogLevel          string        `yaml:"log_level,omitempty"`
	LogFile           string        `yaml:"log_file,omitempty"`
}

// Get parses args (without the program name). A --config path loads the yaml
// file, otherwise the remaining flags are used.
func Get(args []string) (Config, error) {
	fs := flag.NewFlagSet("binstatement", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	setup := fs.Bool("setup", false, "run the configuration wizard")
	cli := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *setup {
		return Config{Setup: true}, nil
	}

	var (
		c   Config
		err error
	)
	if *configPath != "" {
		c, err = getYaml(*configPath)
	} else {
		c, err = cli.config()
	}
	if err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}
	return tmp.Config(), nil
}

// Config applies defaults to the yaml fields.
func (c ConfigTmp) Config() Config {
	cfg := Config{
		DataFile:          orDefault(c.DataFile, defaultDataFile),
		CacheFile:         orDefault(c.CacheFile, defaultCacheFile),
		JournalDir:        orDefault(c.JournalDir, defaultJournalDir),
		UnitsOfAccount:    normalizeAssets(c.UnitsOfAccount),
		StartMonth:        c.StartMonth,
		StartYear:         c.StartYear,
		ValuationInterval: c.ValuationInterval,
		ReferenceAsset:    strings.ToUpper(orDefault(c.ReferenceAsset, defaultReferenceAsset)),
		CommissionAsset:   strings.ToUpper(orDefault(c.CommissionAsset, defaultCommissionAsset)),
		Sync:              true,
		Speed:             defaultSpeed,
		DashboardAddr:     c.DashboardAddr,
		DashboardDomains:  c.DashboardDomains,
		LogLevel:          orDefault(c.LogLevel, "info"),
		LogFile:           c.LogFile,
	}
	if cfg.ValuationInterval == 0 {
		cfg.ValuationInterval = defaultValuationInterval
	}
	if c.Sync != nil {
		cfg.Sync = *c.Sync
	}
	if c.SyncFills != nil {
		cfg.SyncFills = *c.SyncFills
	}
	if c.Speed != nil {
		cfg.Speed = *c.Speed
	}
	return cfg
}

// Validate checks the configuration for values the replay cannot work with.
func (c Config) Validate() error {
	if len(c.UnitsOfAccount) == 0 {
		return fmt.Errorf("at least one unit of account is required")
	}
	for _, u := range c.UnitsOfAccount {
		if u == "" {
			return fmt.Errorf("empty unit of account")
		}
	}
	if (c.StartMonth == 0) != (c.StartYear == 0) {
		return fmt.Errorf("start month and start year must be set together")
	}
	if c.StartMonth < 0 || c.StartMonth > 12 {
		return fmt.Errorf("invalid start month %d, must be 1-12", c.StartMonth)
	}
	if c.ValuationInterval < time.Minute {
		return fmt.Errorf("valuation interval %s is shorter than one minute", c.ValuationInterval)
	}
	if c.Speed < 0 || c.Speed > maxSpeed {
		return fmt.Errorf("invalid speed %d, must be 0-%d", c.Speed, maxSpeed)
	}
	if c.SyncFills && !c.Sync {
		return fmt.Errorf("sync_fills requires sync")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func normalizeAssets(assets []string) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, strings.ToUpper(strings.TrimSpace(a)))
	}
	return out
}
