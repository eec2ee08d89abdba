package config

import (
	"flag"
	"strings"
	"time"
)

type cliFlags struct {
	dataFile          *string
	cacheFile         *string
	journalDir        *string
	units             *string
	startMonth        *int
	startYear         *int
	valuationInterval *time.Duration
	referenceAsset    *string
	commissionAsset   *string
	sync              *bool
	syncFills         *bool
	speed             *int
	dashboardAddr     *string
	dashboardDomains  *string
	logLevel          *string
	logFile           *string
}

func registerFlags(fs *flag.FlagSet) *cliFlags {
	return &cliFlags{
		dataFile:          fs.String("datafile", defaultDataFile, "sqlite file with synchronized account records"),
		cacheFile:         fs.String("cachefile", defaultCacheFile, "sqlite file with cached prices and candles"),
		journalDir:        fs.String("journaldir", defaultJournalDir, "directory of the statement event journal"),
		units:             fs.String("units", "USDT", "comma separated units of account, example: USDT,BTC"),
		startMonth:        fs.Int("startmonth", 0, "first month (1-12) to report, 0 reports everything"),
		startYear:         fs.Int("startyear", 0, "year of --startmonth"),
		valuationInterval: fs.Duration("valuationinterval", defaultValuationInterval, "interval between portfolio snapshots"),
		referenceAsset:    fs.String("referenceasset", defaultReferenceAsset, "asset used to triangulate prices"),
		commissionAsset:   fs.String("commissionasset", defaultCommissionAsset, "asset Binance charges commission in when not taken from proceeds"),
		sync:              fs.Bool("sync", true, "synchronize balances and transfers from Binance"),
		syncFills:         fs.Bool("syncfills", false, "synchronize trade history of every symbol (slow)"),
		speed:             fs.Int("speed", defaultSpeed, "Binance request speed 0-10, 10 means no pause"),
		dashboardAddr:     fs.String("dashboard", "", "address of the statement stream server, example: :8080"),
		dashboardDomains:  fs.String("domains", "", "comma separated domains for ACME TLS certificates"),
		logLevel:          fs.String("loglevel", "info", "log level: debug, info, warn, error"),
		logFile:           fs.String("logfile", "", "rotated log file, empty logs to stderr only"),
	}
}

func (f *cliFlags) config() (Config, error) {
	return Config{
		DataFile:          *f.dataFile,
		CacheFile:         *f.cacheFile,
		JournalDir:        *f.journalDir,
		UnitsOfAccount:    normalizeAssets(splitList(*f.units)),
		StartMonth:        *f.startMonth,
		StartYear:         *f.startYear,
		ValuationInterval: *f.valuationInterval,
		ReferenceAsset:    strings.ToUpper(*f.referenceAsset),
		CommissionAsset:   strings.ToUpper(*f.commissionAsset),
		Sync:              *f.sync,
		SyncFills:         *f.syncFills,
		Speed:             *f.speed,
		DashboardAddr:     *f.dashboardAddr,
		DashboardDomains:  splitList(*f.dashboardDomains),
		LogLevel:          *f.logLevel,
		LogFile:           *f.logFile,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
