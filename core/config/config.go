package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	// Stacks is "on" or "off"; empty enables panic stacks on debug and dev
	// profiles only.
	Stacks  string `yaml:"stacks"`
	Dir     string `yaml:"dir"`
	BotFile string `yaml:"bot_file"`
	// ErrorsFile receives WARN and above in addition to the bot file.
	ErrorsFile string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// QuizConfig points at the directory of quiz documents.
type QuizConfig struct {
	Dir       string `yaml:"dir" envconfig:"QUIZ_DIR"`
	DefaultID string `yaml:"default_id" envconfig:"QUIZ_DEFAULT_ID"`
}

// AssetsConfig controls how image references in quiz documents become URLs.
type AssetsConfig struct {
	BaseURL      string `yaml:"base_url" envconfig:"ASSETS_BASE_URL"`
	ManifestPath string `yaml:"manifest_path" envconfig:"ASSETS_MANIFEST_PATH"`
	// UseManifest switches on .png -> .webp rewriting through the manifest.
	UseManifest bool `yaml:"use_manifest" envconfig:"ASSETS_USE_MANIFEST"`
}

// HTTPConfig holds the Mini App API settings.
type HTTPConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"HTTP_ENABLED"`
	Listen    string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	WebAppURL string `yaml:"webapp_url" envconfig:"WEBAPP_URL"`
	// AllowedOrigins lists CORS origins; empty allows any origin.
	AllowedOrigins        []string `yaml:"allowed_origins" envconfig:"HTTP_ALLOWED_ORIGINS"`
	RequireInitData       bool     `yaml:"require_init_data" envconfig:"HTTP_REQUIRE_INIT_DATA"`
	InitDataMaxAgeSeconds int      `yaml:"init_data_max_age_seconds" envconfig:"HTTP_INIT_DATA_MAX_AGE_SECONDS"`
	ReadTimeoutSeconds    int      `yaml:"read_timeout_seconds" envconfig:"HTTP_READ_TIMEOUT_SECONDS"`
	ShutdownTimeoutSecs   int      `yaml:"shutdown_timeout_seconds" envconfig:"HTTP_SHUTDOWN_TIMEOUT_SECONDS"`
}

// ReadTimeout returns the request read timeout.
func (h HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (h HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(h.ShutdownTimeoutSecs) * time.Second
}

// InitDataMaxAge returns how old a WebApp initData payload may be.
func (h HTTPConfig) InitDataMaxAge() time.Duration {
	return time.Duration(h.InitDataMaxAgeSeconds) * time.Second
}

const (
	// SessionBackendMemory keeps sessions in process memory.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps sessions in Redis.
	SessionBackendRedis = "redis"
)

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Backend       string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix" envconfig:"SESSION_KEY_PREFIX"`
	TTLSeconds    int    `yaml:"ttl_seconds" envconfig:"SESSION_TTL_SECONDS"`
}

// TTL returns the session expiry.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// Defaults applied by Normalize.
const (
	DefaultQuizDir          = "quizzes"
	DefaultHTTPListen       = ":8080"
	DefaultInitDataMaxAge   = 24 * 60 * 60
	DefaultReadTimeout      = 10
	DefaultShutdownTimeout  = 5
	DefaultSessionKeyPrefix = "plantdoctor:session:"
	DefaultSessionTTL       = 7 * 24 * 60 * 60
)

// Config aggregates the configuration shared by the bot and the HTTP API.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Quiz      QuizConfig      `yaml:"quiz"`
	Assets    AssetsConfig    `yaml:"assets"`
	HTTP      HTTPConfig      `yaml:"http"`
	Session   SessionConfig   `yaml:"session"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills out from the YAML file at path and then overlays environment
// variables. out may be any struct that embeds or contains Config.
func Decode(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize validates required fields and fills defaults in place.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeQuiz(&cfg.Quiz); err != nil {
		return err
	}
	normalizeAssets(&cfg.Assets)
	if err := normalizeHTTP(&cfg.HTTP); err != nil {
		return err
	}
	return normalizeSession(&cfg.Session)
}

func normalizeQuiz(q *QuizConfig) error {
	q.Dir = strings.TrimSpace(q.Dir)
	if q.Dir == "" {
		q.Dir = DefaultQuizDir
	}
	q.DefaultID = strings.TrimSpace(q.DefaultID)
	return nil
}

func normalizeAssets(a *AssetsConfig) {
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	if a.BaseURL == "" {
		a.BaseURL = "/"
	}
	a.ManifestPath = strings.TrimSpace(a.ManifestPath)
}

func normalizeHTTP(h *HTTPConfig) error {
	h.Listen = strings.TrimSpace(h.Listen)
	if h.Listen == "" {
		h.Listen = DefaultHTTPListen
	}
	h.WebAppURL = strings.TrimSpace(h.WebAppURL)
	if h.WebAppURL != "" && !strings.HasPrefix(h.WebAppURL, "https://") {
		return fmt.Errorf("http.webapp_url must use https, got %q", h.WebAppURL)
	}
	if h.InitDataMaxAgeSeconds < 0 {
		return fmt.Errorf("http.init_data_max_age_seconds must be >= 0")
	}
	if h.InitDataMaxAgeSeconds == 0 {
		h.InitDataMaxAgeSeconds = DefaultInitDataMaxAge
	}
	if h.ReadTimeoutSeconds <= 0 {
		h.ReadTimeoutSeconds = DefaultReadTimeout
	}
	if h.ShutdownTimeoutSecs <= 0 {
		h.ShutdownTimeoutSecs = DefaultShutdownTimeout
	}
	origins := h.AllowedOrigins[:0]
	for _, o := range h.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, strings.TrimSuffix(o, "/"))
		}
	}
	h.AllowedOrigins = origins
	return nil
}

func normalizeSession(s *SessionConfig) error {
	backend := strings.ToLower(strings.TrimSpace(s.Backend))
	if backend == "" {
		backend = SessionBackendMemory
	}
	switch backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if strings.TrimSpace(s.RedisAddr) == "" {
			return fmt.Errorf("session.redis_addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", s.Backend)
	}
	s.Backend = backend
	if s.KeyPrefix == "" {
		s.KeyPrefix = DefaultSessionKeyPrefix
	}
	if s.TTLSeconds < 0 {
		return fmt.Errorf("session.ttl_seconds must be >= 0")
	}
	if s.TTLSeconds == 0 {
		s.TTLSeconds = DefaultSessionTTL
	}
	return nil
}
