package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the top-level tolmol configuration.
type Config struct {
	Daemon      DaemonConfig      `json:"daemon"`
	Discovery   DiscoveryConfig   `json:"discovery"`
	Negotiation NegotiationConfig `json:"negotiation"`
	Safety      SafetyConfig      `json:"safety"`
	Telephony   TelephonyConfig   `json:"telephony"`
	Notify      NotifyConfig      `json:"notify"`
	Sweeper     SweeperConfig     `json:"sweeper"`
}

// DaemonConfig holds daemon-level settings.
type DaemonConfig struct {
	DataDir     string `json:"data_dir"`
	CountryCode string `json:"country_code,omitempty"` // default "91"
	LogBuffer   int    `json:"log_buffer,omitempty"`   // in-memory log entries, default 1000
}

// DBPath is where the SQLite database lives inside the data directory.
func (d DaemonConfig) DBPath() string {
	return filepath.Join(d.DataDir, "tolmol.db")
}

// DiscoveryConfig holds vendor discovery settings.
type DiscoveryConfig struct {
	// Directories are web listing pages to scrape for vendors.
	Directories []DirectoryConfig `json:"directories,omitempty"`
	// Simulated enables the built-in fixture sources. Useful without
	// network access and in dry runs.
	Simulated bool `json:"simulated,omitempty"`
	// HeuristicMarketRate lets ranking fall back to a category baseline
	// when no listing carries a quoted price. Off by default: no estimate
	// means no anchoring.
	HeuristicMarketRate bool `json:"heuristic_market_rate,omitempty"`
}

// DirectoryConfig names one scrapeable vendor listing.
type DirectoryConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NegotiationConfig holds bargaining loop settings.
type NegotiationConfig struct {
	MaxRounds          int `json:"max_rounds,omitempty"`           // default 6
	MaxConcurrentCalls int `json:"max_concurrent_calls,omitempty"` // default 3
	SessionTimeout     int `json:"session_timeout,omitempty"`      // seconds of inactivity, default 300
	DialRetries        int `json:"dial_retries,omitempty"`         // extra attempts, default 2
}

// SafetyConfig holds vendor vetting thresholds.
type SafetyConfig struct {
	MinSample       int     `json:"min_sample,omitempty"`        // calls before rates mean anything, default 5
	LowSuccessRate  float64 `json:"low_success_rate,omitempty"`  // below this is RED, default 0.4
	FairSuccessRate float64 `json:"fair_success_rate,omitempty"` // below this is YELLOW, default 0.7
}

// TelephonyConfig holds voice bridge settings.
type TelephonyConfig struct {
	// BridgeURL is the websocket endpoint of the voice bridge. Empty means
	// calls are simulated in process.
	BridgeURL string `json:"bridge_url,omitempty"`
}

// NotifyConfig holds settings for outcome notification channels.
type NotifyConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// SweeperConfig holds the resume sweep schedule.
type SweeperConfig struct {
	// Schedule is a cron expression; default "@every 1m".
	Schedule string `json:"schedule,omitempty"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a minimal config from environment variables with
// TOLMOL_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Daemon: DaemonConfig{
			DataDir:     getenv("TOLMOL_DATA_DIR", "/data"),
			CountryCode: getenv("TOLMOL_COUNTRY_CODE", "91"),
		},
		Discovery: DiscoveryConfig{
			Simulated: os.Getenv("TOLMOL_SIMULATED") == "1",
		},
		Negotiation: NegotiationConfig{
			MaxRounds:          getenvInt("TOLMOL_MAX_ROUNDS", 0),
			MaxConcurrentCalls: getenvInt("TOLMOL_MAX_CONCURRENT_CALLS", 0),
			SessionTimeout:     getenvInt("TOLMOL_SESSION_TIMEOUT", 0),
		},
		Telephony: TelephonyConfig{
			BridgeURL: os.Getenv("TOLMOL_BRIDGE_URL"),
		},
		Sweeper: SweeperConfig{
			Schedule: os.Getenv("TOLMOL_SWEEP_SCHEDULE"),
		},
	}

	if token := os.Getenv("TOLMOL_TELEGRAM_TOKEN"); token != "" {
		chatID, err := strconv.ParseInt(getenv("TOLMOL_TELEGRAM_CHAT_ID", "0"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: TOLMOL_TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Notify.Telegram = &TelegramConfig{Token: token, ChatID: chatID}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Daemon.DataDir == "" {
		errs = append(errs, "daemon.data_dir is required")
	}

	for i, d := range c.Discovery.Directories {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("discovery.directories[%d].name is required", i))
		}
		if d.URL == "" {
			errs = append(errs, fmt.Sprintf("discovery.directories[%d].url is required", i))
		}
	}

	if c.Negotiation.MaxRounds < 0 {
		errs = append(errs, "negotiation.max_rounds must not be negative")
	}
	if c.Negotiation.MaxConcurrentCalls < 0 {
		errs = append(errs, "negotiation.max_concurrent_calls must not be negative")
	}
	if c.Negotiation.SessionTimeout < 0 {
		errs = append(errs, "negotiation.session_timeout must not be negative")
	}

	if low, fair := c.Safety.LowSuccessRate, c.Safety.FairSuccessRate; low != 0 && fair != 0 && low > fair {
		errs = append(errs, "safety.low_success_rate must not exceed safety.fair_success_rate")
	}

	if c.Notify.Telegram != nil {
		if c.Notify.Telegram.Token == "" {
			errs = append(errs, "notify.telegram.token is required")
		}
		if c.Notify.Telegram.ChatID == 0 {
			errs = append(errs, "notify.telegram.chat_id is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
