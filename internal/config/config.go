// Package config loads the process configuration from environment
// variables. Every knob has a default that yields a runnable instance, so
// a bare `go run` works; validation rejects values that would only fail
// later at an awkward moment (zero timeouts, out-of-range sampler ratios,
// impossible ports). Settings that vary per tenant live in the database,
// not here; this package covers process-wide wiring only: server, store,
// scraper, summarizer credentials, delivery transports, scheduler, and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig carries the HSTS toggles applied by the security headers
// middleware.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig wires the OpenTelemetry trace exporter.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port of the collector
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE, plaintext gRPC when true
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ScraperConfig defines the browser acquisition settings. The delay and
// distance values shape the scroll cadence; the defaults mimic a human
// reading pace closely enough to avoid trivial automation fingerprints.
type ScraperConfig struct {
	FeedURL         string        // SCRAPER_FEED_URL, feed origin to navigate to
	ProfilesDir     string        // SCRAPER_PROFILES_DIR, root for per-tenant browser profiles
	Headless        bool          // SCRAPER_HEADLESS
	PageLoadTimeout time.Duration // SCRAPER_PAGE_LOAD_TIMEOUT, hard ceiling per navigation
	ScrollDistance  int           // SCRAPER_SCROLL_DISTANCE, pixels per scroll step
	MinScrollDelay  time.Duration // SCRAPER_MIN_SCROLL_DELAY, lower jitter bound between scrolls
	MaxScrollDelay  time.Duration // SCRAPER_MAX_SCROLL_DELAY, upper jitter bound between scrolls
	KnownStreak     int           // SCRAPER_KNOWN_STREAK, consecutive known items that end a run
	UserAgent       string        // SCRAPER_USER_AGENT
	Locale          string        // SCRAPER_LOCALE, browser Accept-Language locale
	Timezone        string        // SCRAPER_TIMEZONE, browser-reported IANA timezone
	ViewportWidth   int           // SCRAPER_VIEWPORT_WIDTH
	ViewportHeight  int           // SCRAPER_VIEWPORT_HEIGHT
}

// FeedAPIConfig defines the live-API acquisition source, the alternative to
// browser scraping for tenants whose feed_source is "api".
type FeedAPIConfig struct {
	BaseURL     string        // FEED_API_BASE_URL
	BearerToken string        // FEED_API_BEARER_TOKEN
	RateRPS     float64       // FEED_API_RATE_RPS, client-side request rate
	RateBurst   int           // FEED_API_RATE_BURST
	MaxAttempts int           // FEED_API_MAX_ATTEMPTS, per request incl. retries
	BaseBackoff time.Duration // FEED_API_BASE_BACKOFF, first retry delay
}

// LLMConfig defines summarizer provider settings. Providers are selected per
// tenant; this block carries the credentials and shared generation knobs.
type LLMConfig struct {
	OpenAIKey       string        // OPENAI_API_KEY
	OpenAIModel     string        // OPENAI_MODEL
	OpenAIBaseURL   string        // OPENAI_BASE_URL
	AnthropicKey    string        // ANTHROPIC_API_KEY
	AnthropicModel  string        // ANTHROPIC_MODEL
	LMStudioBaseURL string        // LMSTUDIO_BASE_URL
	LMStudioModel   string        // LMSTUDIO_MODEL
	RequestTimeout  time.Duration // LLM_TIMEOUT
	Temperature     float64       // LLM_TEMPERATURE
	MaxTokens       int           // LLM_MAX_TOKENS
	PromptsPath     string        // PROMPTS_PATH, YAML file of named prompt presets
}

// DeliveryConfig defines the outbound channels a finished briefing can be
// pushed through. Channels are toggled per tenant; this block carries the
// process-wide transport credentials.
type DeliveryConfig struct {
	SMTPHost         string // SMTP_HOST
	SMTPPort         int    // SMTP_PORT
	SMTPUsername     string // SMTP_USERNAME
	SMTPPassword     string // SMTP_PASSWORD
	SMTPFrom         string // SMTP_FROM, sender address on outgoing mail
	TelegramBotToken string // TELEGRAM_BOT_TOKEN
}

// SchedulerConfig defines the periodic digest dispatcher.
type SchedulerConfig struct {
	Enabled       bool          // SCHEDULER_ENABLED
	CheckInterval time.Duration // SCHEDULER_CHECK_INTERVAL, how often due tenants are evaluated
	Workers       int           // SCHEDULER_WORKERS, concurrent pipeline job cap
	JobTimeout    time.Duration // SCHEDULER_JOB_TIMEOUT, hard ceiling per pipeline run
	BriefingGuard time.Duration // SCHEDULER_BRIEFING_GUARD, skip tenants with a briefing newer than this
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Store
	DBPath string // SQLite path

	// Acquisition
	Scraper ScraperConfig
	FeedAPI FeedAPIConfig

	// Summarization / delivery / scheduling
	LLM       LLMConfig
	Delivery  DeliveryConfig
	Scheduler SchedulerConfig

	// Rate limiting (HTTP edge)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// defaultUserAgent is a current desktop Chrome UA. Keeping it pinned avoids
// the "HeadlessChrome" token that stock headless builds advertise.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              envStr("PORT", "8080"),
		ReadTimeout:       envDur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    envInt("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(envStr("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(envStr("LOG_LEVEL", "info")),
		LogPretty:      envBool("LOG_PRETTY", false),
		SwaggerEnabled: envBool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(envStr("API_BASE_PATH", "/api/v1")),

		// Store
		DBPath: envStr("DB_PATH", "digest.db"),

		// Acquisition
		Scraper: ScraperConfig{
			FeedURL:         envStr("SCRAPER_FEED_URL", "https://x.com"),
			ProfilesDir:     envStr("SCRAPER_PROFILES_DIR", "profiles"),
			Headless:        envBool("SCRAPER_HEADLESS", true),
			PageLoadTimeout: envDur("SCRAPER_PAGE_LOAD_TIMEOUT", 60*time.Second),
			ScrollDistance:  envInt("SCRAPER_SCROLL_DISTANCE", 800),
			MinScrollDelay:  envDur("SCRAPER_MIN_SCROLL_DELAY", 1500*time.Millisecond),
			MaxScrollDelay:  envDur("SCRAPER_MAX_SCROLL_DELAY", 3*time.Second),
			KnownStreak:     envInt("SCRAPER_KNOWN_STREAK", 3),
			UserAgent:       envStr("SCRAPER_USER_AGENT", defaultUserAgent),
			Locale:          envStr("SCRAPER_LOCALE", "de-DE"),
			Timezone:        envStr("SCRAPER_TIMEZONE", "Europe/Berlin"),
			ViewportWidth:   envInt("SCRAPER_VIEWPORT_WIDTH", 1280),
			ViewportHeight:  envInt("SCRAPER_VIEWPORT_HEIGHT", 900),
		},
		FeedAPI: FeedAPIConfig{
			BaseURL:     envStr("FEED_API_BASE_URL", "https://api.twitter.com/2"),
			BearerToken: envStr("FEED_API_BEARER_TOKEN", ""),
			RateRPS:     envFloat("FEED_API_RATE_RPS", 1.0),
			RateBurst:   envInt("FEED_API_RATE_BURST", 2),
			MaxAttempts: envInt("FEED_API_MAX_ATTEMPTS", 4),
			BaseBackoff: envDur("FEED_API_BASE_BACKOFF", 500*time.Millisecond),
		},

		// Summarization
		LLM: LLMConfig{
			OpenAIKey:       envStr("OPENAI_API_KEY", ""),
			OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:   envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AnthropicKey:    envStr("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			LMStudioBaseURL: envStr("LMSTUDIO_BASE_URL", "http://localhost:1234/v1"),
			LMStudioModel:   envStr("LMSTUDIO_MODEL", "local-model"),
			RequestTimeout:  envDur("LLM_TIMEOUT", 120*time.Second),
			Temperature:     envFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:       envInt("LLM_MAX_TOKENS", 2048),
			PromptsPath:     envStr("PROMPTS_PATH", "prompts.yaml"),
		},

		// Delivery
		Delivery: DeliveryConfig{
			SMTPHost:         envStr("SMTP_HOST", ""),
			SMTPPort:         envInt("SMTP_PORT", 587),
			SMTPUsername:     envStr("SMTP_USERNAME", ""),
			SMTPPassword:     envStr("SMTP_PASSWORD", ""),
			SMTPFrom:         envStr("SMTP_FROM", ""),
			TelegramBotToken: envStr("TELEGRAM_BOT_TOKEN", ""),
		},

		// Scheduling
		Scheduler: SchedulerConfig{
			Enabled:       envBool("SCHEDULER_ENABLED", true),
			CheckInterval: envDur("SCHEDULER_CHECK_INTERVAL", time.Hour),
			Workers:       envInt("SCHEDULER_WORKERS", 2),
			JobTimeout:    envDur("SCHEDULER_JOB_TIMEOUT", 10*time.Minute),
			BriefingGuard: envDur("SCHEDULER_BRIEFING_GUARD", 20*time.Hour),
		},

		// Rate limiting
		RateRPS:   envFloat("RATE_RPS", 5.0),
		RateBurst: envInt("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: csvList(envStr("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: envBool("ENABLE_HSTS", false),
			HSTSMaxAge: envDur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: envDur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			Endpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: envStr("OTEL_SERVICE_NAME", "go-feed-digest"),
			SampleRatio: envFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize rewrites values that are recoverable rather than wrong: alias
// spellings, unknown gin modes, and a scroll-delay window turned inside out.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.Scraper.MaxScrollDelay < c.Scraper.MinScrollDelay {
		c.Scraper.MaxScrollDelay = c.Scraper.MinScrollDelay
	}
}

func (c Config) validate() error {
	// Server and logging
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if c.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}

	// Store
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}

	// Acquisition
	if strings.TrimSpace(c.Scraper.ProfilesDir) == "" {
		return errors.New("SCRAPER_PROFILES_DIR must not be empty")
	}
	if c.Scraper.PageLoadTimeout <= 0 {
		return errors.New("SCRAPER_PAGE_LOAD_TIMEOUT must be > 0")
	}
	if c.Scraper.ScrollDistance <= 0 {
		return errors.New("SCRAPER_SCROLL_DISTANCE must be > 0")
	}
	if c.Scraper.MinScrollDelay < 0 {
		return errors.New("SCRAPER_MIN_SCROLL_DELAY must be >= 0")
	}
	if c.Scraper.KnownStreak < 1 {
		return errors.New("SCRAPER_KNOWN_STREAK must be >= 1")
	}
	if c.Scraper.ViewportWidth <= 0 || c.Scraper.ViewportHeight <= 0 {
		return errors.New("scraper viewport dimensions must be > 0")
	}
	if c.FeedAPI.RateRPS < 0 {
		return errors.New("FEED_API_RATE_RPS must be >= 0")
	}
	if c.FeedAPI.MaxAttempts < 1 {
		return errors.New("FEED_API_MAX_ATTEMPTS must be >= 1")
	}

	// Summarization
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("LLM_MAX_TOKENS must be > 0")
	}
	if c.LLM.RequestTimeout <= 0 {
		return errors.New("LLM_TIMEOUT must be > 0")
	}

	// Delivery and scheduling
	if c.Delivery.SMTPPort <= 0 || c.Delivery.SMTPPort > 65535 {
		return errors.New("SMTP_PORT must be a valid port number")
	}
	if c.Scheduler.CheckInterval <= 0 {
		return errors.New("SCHEDULER_CHECK_INTERVAL must be > 0")
	}
	if c.Scheduler.Workers < 1 {
		return errors.New("SCHEDULER_WORKERS must be >= 1")
	}
	if c.Scheduler.JobTimeout <= 0 {
		return errors.New("SCHEDULER_JOB_TIMEOUT must be > 0")
	}
	if c.Scheduler.BriefingGuard < 0 {
		return errors.New("SCHEDULER_BRIEFING_GUARD must be >= 0")
	}

	// HTTP edge
	if c.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if c.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if c.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if c.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}

	// Observability
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Env lookups below treat empty and unset alike, and fall back to the
// default on parse failures instead of erroring: a typo in an optional
// tuning knob should not keep the service down.

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// csvList splits a comma separated value, dropping empties and padding.
func csvList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeBasePath yields a path with a leading slash and no trailing one;
// blank input collapses to the root.
func normalizeBasePath(p string) string {
	trimmed := strings.Trim(strings.TrimSpace(p), "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed
}
