package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

// The defaults tests assume a clean environment; strip anything the host
// may have exported before the suite runs.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "GIN_MODE", "LOG_LEVEL", "API_BASE_PATH", "DB_PATH"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad should panic when Load fails")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_DefaultsAreValid(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad panicked on defaults: %v", r)
		}
	}()
	if cfg := MustLoad(); cfg.APIBasePath == "" {
		t.Fatal("unexpected empty config from MustLoad")
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // unknown mode falls back to release

	t.Setenv("LOG_LEVEL", "warning") // alias spelling normalizes to warn
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // missing lead slash, extra tail slash

	t.Setenv("DB_PATH", "db.sqlite")

	t.Setenv("SCRAPER_FEED_URL", "https://example.test")
	t.Setenv("SCRAPER_PROFILES_DIR", "var/profiles")
	t.Setenv("SCRAPER_HEADLESS", "0")
	t.Setenv("SCRAPER_SCROLL_DISTANCE", "640")
	t.Setenv("SCRAPER_MIN_SCROLL_DELAY", "4s")
	t.Setenv("SCRAPER_MAX_SCROLL_DELAY", "2s") // below min, lifted to 4s
	t.Setenv("SCRAPER_KNOWN_STREAK", "5")

	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("LLM_MAX_TOKENS", "512")

	t.Setenv("SCHEDULER_WORKERS", "4")
	t.Setenv("SCHEDULER_BRIEFING_GUARD", "12h")

	t.Setenv("RATE_RPS", "x")      // unparsable, keeps default 5.0
	t.Setenv("RATE_BURST", "nope") // unparsable, keeps default 10

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("IDEMPOTENCY_TTL", "48h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8088" || cfg.MaxHeaderBytes != 8192 {
		t.Fatalf("port/header = %q/%d", cfg.Port, cfg.MaxHeaderBytes)
	}
	if cfg.ReadTimeout != 2*time.Second || cfg.ReadHeaderTimeout != time.Second ||
		cfg.WriteTimeout != 3*time.Second || cfg.IdleTimeout != 4*time.Second {
		t.Fatalf("timeouts = %v/%v/%v/%v", cfg.ReadTimeout, cfg.ReadHeaderTimeout, cfg.WriteTimeout, cfg.IdleTimeout)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q, want unknown mode rewritten to release", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want 'warning' normalized to warn", cfg.LogLevel)
	}
	if !cfg.LogPretty || !cfg.SwaggerEnabled {
		t.Fatalf("pretty/swagger = %v/%v, want both on", cfg.LogPretty, cfg.SwaggerEnabled)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q, want normalized /api/v1", cfg.APIBasePath)
	}
	if cfg.DBPath != "db.sqlite" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}

	sc := cfg.Scraper
	if sc.FeedURL != "https://example.test" || sc.ProfilesDir != "var/profiles" || sc.Headless {
		t.Fatalf("scraper identity = %+v", sc)
	}
	if sc.ScrollDistance != 640 || sc.KnownStreak != 5 {
		t.Fatalf("scroll/streak = %d/%d", sc.ScrollDistance, sc.KnownStreak)
	}
	if sc.MinScrollDelay != 4*time.Second || sc.MaxScrollDelay != 4*time.Second {
		t.Fatalf("delay window = %v..%v, want max lifted to min", sc.MinScrollDelay, sc.MaxScrollDelay)
	}

	if cfg.LLM.Temperature != 0.3 || cfg.LLM.MaxTokens != 512 {
		t.Fatalf("llm = %+v", cfg.LLM)
	}
	if cfg.Scheduler.Workers != 4 || cfg.Scheduler.BriefingGuard != 12*time.Hour {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate = %v/%d, want defaults kept on bad parse", cfg.RateRPS, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("origins = %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security = %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
	o := cfg.OTEL
	if !o.Enabled || o.Endpoint != "otel:4317" || o.Insecure || o.ServiceName != "svc" || o.SampleRatio != 0.75 {
		t.Fatalf("otel = %+v", o)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath default = %q", cfg.APIBasePath)
	}
	sc := cfg.Scraper
	if sc.ScrollDistance != 800 || sc.KnownStreak != 3 || sc.PageLoadTimeout != 60*time.Second {
		t.Fatalf("scraper defaults = %+v", sc)
	}
	if sc.MinScrollDelay != 1500*time.Millisecond || sc.MaxScrollDelay != 3*time.Second {
		t.Fatalf("scroll delay defaults = %v..%v", sc.MinScrollDelay, sc.MaxScrollDelay)
	}
	if sc.Locale != "de-DE" || sc.Timezone != "Europe/Berlin" || sc.ViewportWidth != 1280 || sc.ViewportHeight != 900 {
		t.Fatalf("browser identity defaults = %+v", sc)
	}
	if cfg.Scheduler.CheckInterval != time.Hour || cfg.Scheduler.BriefingGuard != 20*time.Hour {
		t.Fatalf("scheduler defaults = %+v", cfg.Scheduler)
	}
	if cfg.LLM.Temperature != 0.7 || cfg.LLM.MaxTokens != 2048 {
		t.Fatalf("llm defaults = %+v", cfg.LLM)
	}
}

// Each case sets exactly one variable to a rejected value; everything else
// stays at its (valid) default.
func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key  string
		val  string
		want string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"PORT", "   ", "PORT must not be empty"},
		{"READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"DB_PATH", "   ", "DB_PATH must not be empty"},
		{"SCRAPER_PROFILES_DIR", "   ", "SCRAPER_PROFILES_DIR"},
		{"SCRAPER_PAGE_LOAD_TIMEOUT", "0s", "SCRAPER_PAGE_LOAD_TIMEOUT"},
		{"SCRAPER_SCROLL_DISTANCE", "0", "SCRAPER_SCROLL_DISTANCE"},
		{"SCRAPER_MIN_SCROLL_DELAY", "-1s", "SCRAPER_MIN_SCROLL_DELAY"},
		{"SCRAPER_KNOWN_STREAK", "0", "SCRAPER_KNOWN_STREAK"},
		{"SCRAPER_VIEWPORT_WIDTH", "-1", "viewport"},
		{"FEED_API_RATE_RPS", "-0.5", "FEED_API_RATE_RPS"},
		{"FEED_API_MAX_ATTEMPTS", "0", "FEED_API_MAX_ATTEMPTS"},
		{"LLM_TEMPERATURE", "2.5", "LLM_TEMPERATURE"},
		{"LLM_MAX_TOKENS", "0", "LLM_MAX_TOKENS"},
		{"LLM_TIMEOUT", "0s", "LLM_TIMEOUT"},
		{"SMTP_PORT", "70000", "SMTP_PORT"},
		{"SCHEDULER_CHECK_INTERVAL", "0s", "SCHEDULER_CHECK_INTERVAL"},
		{"SCHEDULER_WORKERS", "0", "SCHEDULER_WORKERS"},
		{"SCHEDULER_JOB_TIMEOUT", "0s", "SCHEDULER_JOB_TIMEOUT"},
		{"SCHEDULER_BRIEFING_GUARD", "-1h", "SCHEDULER_BRIEFING_GUARD"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func Test_envStr(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if envStr("X_EMPTY", "d") != "d" {
		t.Fatal("empty var should fall back to default")
	}
	t.Setenv("X_SET", "val")
	if envStr("X_SET", "d") != "val" {
		t.Fatal("set var should win over default")
	}
}

func Test_envParsers(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	t.Setenv("F_BAD", "nope")
	if envFloat("F_VALID", 0) != 3.14 || envFloat("F_BAD", 1.23) != 1.23 {
		t.Fatal("envFloat parse/fallback broken")
	}

	t.Setenv("I_VALID", "42")
	t.Setenv("I_BAD", "x")
	if envInt("I_VALID", 0) != 42 || envInt("I_BAD", 7) != 7 {
		t.Fatal("envInt parse/fallback broken")
	}

	t.Setenv("D_VALID", "150ms")
	t.Setenv("D_BAD", "zzz")
	if envDur("D_VALID", time.Second) != 150*time.Millisecond || envDur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatal("envDur parse/fallback broken")
	}
}

func Test_envBool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		key := "B_T_" + strconv.Itoa(i)
		t.Setenv(key, v)
		if !envBool(key, false) {
			t.Fatalf("envBool(%q) = false, want true", v)
		}
	}
	for i, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		key := "B_F_" + strconv.Itoa(i)
		t.Setenv(key, v)
		if envBool(key, true) {
			t.Fatalf("envBool(%q) = true, want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !envBool("B_EMPTY", true) || envBool("B_EMPTY", false) {
		t.Fatal("unset/empty should keep the default")
	}
	t.Setenv("B_GARBAGE", "maybe")
	if !envBool("B_GARBAGE", true) || envBool("B_GARBAGE", false) {
		t.Fatal("unrecognized spelling should keep the default")
	}
}

func Test_csvList(t *testing.T) {
	if out := csvList(""); out != nil {
		t.Fatalf("empty input should yield nil, got %#v", out)
	}
	want := []string{"a", "b", "c"}
	if got := csvList(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, want) {
		t.Fatalf("csvList = %#v, want %#v", got, want)
	}
}

func Test_normalizeBasePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{" / ", "/"},
		{"v1", "/v1"},
		{"/v1/", "/v1"},
		{"api/v1/", "/api/v1"},
		{"/api/v1", "/api/v1"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
