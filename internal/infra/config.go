package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
// Provider credentials are all optional: a provider without credentials is
// excluded from its chain at startup instead of failing the boot.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
	DefaultLocale    string

	// Optional upload persistence. Empty StoragePath keeps uploads
	// pass-through.
	StoragePath   string
	StaticBaseURL string

	GeminiAPIKey       string
	GeminiBaseURL      string
	GeminiComposeModel string
	VeoModel           string

	ReplicateAPIToken string
	ReplicateBaseURL  string
	ReplicateVersion  string

	ArkAPIKey  string
	ArkBaseURL string
	ArkModel   string

	VideoProviderPriority []string

	ComposeMaxAttempts      int
	ComposeRetryBackoff     time.Duration
	SubmitMaxAttempts       int
	SubmitRetryBackoff      time.Duration
	DegradeOnComposeFailure bool

	PollInterval    time.Duration
	PollMaxAttempts int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "ko"),

		StoragePath:   os.Getenv("STORAGE_PATH"),
		StaticBaseURL: getEnv("STATIC_BASE_URL", "http://localhost:8080/static"),

		GeminiAPIKey:       cleanSecret(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiComposeModel: getEnv("GEMINI_COMPOSE_MODEL", "gemini-2.5-flash-image"),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.0-generate-001"),

		ReplicateAPIToken: cleanSecret(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateVersion:  os.Getenv("REPLICATE_MODEL_VERSION"),

		ArkAPIKey:  cleanSecret(os.Getenv("ARK_API_KEY")),
		ArkBaseURL: getEnv("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkModel:   getEnv("ARK_MODEL", "doubao-seedance-1-0-lite-i2v-250428"),

		VideoProviderPriority: splitCSV(getEnv("VIDEO_PROVIDER_PRIORITY", "replicate,veo,ark")),

		ComposeMaxAttempts:      getEnvInt("COMPOSE_MAX_ATTEMPTS", 3),
		ComposeRetryBackoff:     time.Second * time.Duration(getEnvInt("COMPOSE_RETRY_BACKOFF_SECONDS", 2)),
		SubmitMaxAttempts:       getEnvInt("SUBMIT_MAX_ATTEMPTS", 3),
		SubmitRetryBackoff:      time.Second * time.Duration(getEnvInt("SUBMIT_RETRY_BACKOFF_SECONDS", 2)),
		DegradeOnComposeFailure: getEnvBool("DEGRADE_ON_COMPOSE_FAILURE", true),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 120),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// cleanSecret strips whitespace and the UTF-8 BOM that pasted keys sometimes
// carry. A key with an invisible BOM authenticates as garbage, which shows up
// as a confusing 401 instead of a missing-credential skip.
func cleanSecret(v string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "\ufeff"))
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
