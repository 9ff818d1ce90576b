package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Target    TargetConfig
	Browser   BrowserConfig
	Timing    TimingConfig
	Telegram  TelegramConfig
	Store     StoreConfig
	Cooldown  CooldownConfig
	Dump      DumpConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// TargetConfig identifies the booking site and what to check on it.
type TargetConfig struct {
	// BookingURL is the appointment booking page.
	BookingURL string // default: https://konzinfobooking.mfa.gov.hu/

	// Embassy is the embassy identifier recorded with every run.
	Embassy string // default: "hungary"

	// Consulates lists the consulate dropdown options to check, in order.
	// Each entry gets its own fresh browser session.
	Consulates []string // default: ["Serbia - Subotica"]

	// VisaType is the visa-type dropdown option to select.
	VisaType string // default: "Visa application (Schengen visa- type 'C')"

	// Country is the egress VPN country recorded with blocked-IP entries.
	Country string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is an optional proxy URL for all browser traffic.
	Proxy string
}

// TimingConfig fixes the waits the availability check depends on.
// The booking site renders its modals asynchronously, so these are
// deliberate blocking waits, not tunables for speed.
type TimingConfig struct {
	// PageLoadWait bounds the wait for the booking form to appear.
	PageLoadWait time.Duration // default: 20s

	// ModalSettle is the fixed delay after submit before probing for modals.
	ModalSettle time.Duration // default: 6s

	// AlertWait bounds the wait for an element with role="alert".
	AlertWait time.Duration // default: 6s

	// CharDelay is the per-character typing delay for guarded fields.
	CharDelay time.Duration // default: 80ms

	// NavRetries is the number of navigation attempts on connection errors.
	NavRetries int // default: 3
}

// TelegramConfig holds the bot credentials for operator notifications.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// StoreConfig controls the run-statistics database.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string // default: "embassy_eye.db"
}

// CooldownConfig controls the captcha cooldown gate.
type CooldownConfig struct {
	// Path is the cooldown record file.
	Path string // default: "captcha_cooldown.json"

	// RequiredSkips is how many runs to skip after a captcha detection.
	RequiredSkips int // default: 2
}

// DumpConfig controls where page-source dumps are written.
type DumpConfig struct {
	// Dir receives timestamped HTML dumps (zero fields filled, slots found).
	Dir string // default: "dumps"
}

// ServerConfig controls the stats HTTP API (serve subcommand).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// RateLimitConfig controls per-IP rate limiting on the stats API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per client IP.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Target: TargetConfig{
			BookingURL: envOr("EYE_BOOKING_URL", "https://konzinfobooking.mfa.gov.hu/"),
			Embassy:    envOr("EYE_EMBASSY", "hungary"),
			Consulates: envSliceOr("EYE_CONSULATES", []string{"Serbia - Subotica"}),
			VisaType:   envOr("EYE_VISA_TYPE", "Visa application (Schengen visa- type 'C')"),
			Country:    os.Getenv("EYE_VPN_COUNTRY"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("EYE_HEADLESS", true),
			NoSandbox:  envBoolOr("EYE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("EYE_BROWSER_BIN"),
			Proxy:      os.Getenv("EYE_PROXY"),
		},
		Timing: TimingConfig{
			PageLoadWait: envDurationOr("EYE_PAGE_LOAD_WAIT", 20*time.Second),
			ModalSettle:  envDurationOr("EYE_MODAL_SETTLE", 6*time.Second),
			AlertWait:    envDurationOr("EYE_ALERT_WAIT", 6*time.Second),
			CharDelay:    envDurationOr("EYE_CHAR_DELAY", 80*time.Millisecond),
			NavRetries:   envIntOr("EYE_NAV_RETRIES", 3),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_USER_ID"),
		},
		Store: StoreConfig{
			Path: envOr("EYE_DB_PATH", "embassy_eye.db"),
		},
		Cooldown: CooldownConfig{
			Path:          envOr("EYE_COOLDOWN_PATH", "captcha_cooldown.json"),
			RequiredSkips: envIntOr("EYE_COOLDOWN_SKIPS", 2),
		},
		Dump: DumpConfig{
			Dir: envOr("EYE_DUMP_DIR", "dumps"),
		},
		Server: ServerConfig{
			Host: envOr("EYE_HOST", "0.0.0.0"),
			Port: envIntOr("EYE_PORT", 8080),
			Mode: envOr("EYE_MODE", "release"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("EYE_RATE_RPS", 5.0),
			Burst:             envIntOr("EYE_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("EYE_LOG_LEVEL", "info"),
			Format: envOr("EYE_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
