package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// Notifier backend selectors accepted in the [reports] section.
const (
	NotifierNone  = "none"
	NotifierStomp = "stomp"
	NotifierRedis = "redis"
	NotifierKafka = "kafka"
)

const (
	defaultMinDiskFreeMB = 512
	defaultWorkers       = 2
	maxWorkers           = 4

	defaultAPIBaseURL     = "https://transform.shadowserver.org/api2/"
	defaultDownloadURL    = "https://dl.shadowserver.org/"
	defaultLedgerFilename = ".reportsync-ledger.jsonl"
)

// Config is the explicit value object handed to the sync driver at
// construction. Nothing below main reads files or the environment.
type Config struct {
	Reports ReportsConfig
	API     APIConfig
	Stomp   BrokerConfig
	Redis   BrokerConfig
	Kafka   BrokerConfig
}

type ReportsConfig struct {
	Directory    string
	MinDiskFree  int    // MB
	Notifier     string // none|stomp|redis|kafka
	URLPrefix    string
	LedgerDSN    string   // file path or postgres:// DSN
	MailingLists []string // "reports" filter
	Types        []string // "types" filter
	Workers      int      // bounded fetch concurrency
}

type APIConfig struct {
	Key         string
	Secret      string
	BaseURL     string
	DownloadURL string
}

type BrokerConfig struct {
	Server   string
	Port     int
	Queue    string
	User     string
	Password string
}

// Addr joins server and port into a dialable address.
func (b BrokerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Server, b.Port)
}

// Load parses the INI configuration file. The [reports] section is required
// and must name a directory; when a notifier other than "none" is selected,
// a section of the same name must describe the broker. API credentials may
// be overridden through REPORTS_API_KEY / REPORTS_API_SECRET /
// REPORTS_API_URI.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if !file.HasSection("reports") {
		return nil, fmt.Errorf("config is missing the required [reports] section")
	}
	reports := file.Section("reports")

	directory := reports.Key("directory").String()
	if directory == "" {
		return nil, fmt.Errorf("[reports] section is missing the required 'directory' key")
	}

	cfg := &Config{
		Reports: ReportsConfig{
			Directory:    directory,
			MinDiskFree:  reports.Key("min_disk_free").MustInt(defaultMinDiskFreeMB),
			Notifier:     strings.ToLower(reports.Key("notifier").MustString(NotifierNone)),
			URLPrefix:    reports.Key("url_prefix").String(),
			LedgerDSN:    reports.Key("ledger").String(),
			MailingLists: splitList(reports.Key("reports").String()),
			Types:        splitList(reports.Key("types").String()),
			Workers:      reports.Key("workers").MustInt(defaultWorkers),
		},
	}
	if cfg.Reports.LedgerDSN == "" {
		cfg.Reports.LedgerDSN = filepath.Join(directory, defaultLedgerFilename)
	}
	if cfg.Reports.Workers < 1 {
		cfg.Reports.Workers = 1
	}
	if cfg.Reports.Workers > maxWorkers {
		cfg.Reports.Workers = maxWorkers
	}

	api := file.Section("api")
	cfg.API = APIConfig{
		Key:         envOr("REPORTS_API_KEY", api.Key("key").String()),
		Secret:      envOr("REPORTS_API_SECRET", api.Key("secret").String()),
		BaseURL:     envOr("REPORTS_API_URI", api.Key("uri").MustString(defaultAPIBaseURL)),
		DownloadURL: api.Key("download_uri").MustString(defaultDownloadURL),
	}

	switch cfg.Reports.Notifier {
	case NotifierNone:
	case NotifierStomp, NotifierRedis, NotifierKafka:
		broker, err := loadBroker(file, cfg.Reports.Notifier)
		if err != nil {
			return nil, err
		}
		switch cfg.Reports.Notifier {
		case NotifierStomp:
			cfg.Stomp = broker
		case NotifierRedis:
			cfg.Redis = broker
		case NotifierKafka:
			cfg.Kafka = broker
		}
	default:
		return nil, fmt.Errorf("unknown notifier type %q (expected none, stomp, redis or kafka)", cfg.Reports.Notifier)
	}

	return cfg, nil
}

func loadBroker(file *ini.File, name string) (BrokerConfig, error) {
	if !file.HasSection(name) {
		return BrokerConfig{}, fmt.Errorf("notifier %q selected but the [%s] section is missing", name, name)
	}
	section := file.Section(name)
	broker := BrokerConfig{
		Server:   section.Key("server").String(),
		Port:     section.Key("port").MustInt(0),
		Queue:    section.Key("queue").String(),
		User:     section.Key("user").String(),
		Password: section.Key("password").String(),
	}
	if broker.Server == "" {
		return BrokerConfig{}, fmt.Errorf("[%s] section is missing the required 'server' key", name)
	}
	if broker.Port == 0 {
		return BrokerConfig{}, fmt.Errorf("[%s] section is missing the required 'port' key", name)
	}
	if broker.Queue == "" {
		return BrokerConfig{}, fmt.Errorf("[%s] section is missing the required 'queue' key", name)
	}
	return broker, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}
