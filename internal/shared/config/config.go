package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string

	MaxUploadBytes    int64
	MaxQuestionLength int
	SessionTTL        time.Duration
	SweepInterval     time.Duration

	UploadLimit         Limit
	QuestionLimit       Limit
	WhatsAppLimit       Limit
	RateLimitPolicyFile string

	LLMProvider  string
	LLMModel     string
	GeminiAPIKey string
	OpenAIAPIKey string
	LLMTimeout   time.Duration

	DatabaseURL string

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	WhatsAppWorkers      int
	WhatsAppQueueSize    int
	WhatsAppSendRPS      float64
}

// Limit is a fixed-window admission rule.
type Limit struct {
	Count  int
	Window time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Count, l.Window)
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	provider := normalizeProvider(getEnv("LLM_PROVIDER", "gemini"))

	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  env,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		MaxUploadBytes:       int64(getEnvInt("MAX_FILE_SIZE", 10*1024*1024)),
		MaxQuestionLength:    getEnvInt("MAX_QUESTION_LENGTH", 1000),
		SessionTTL:           time.Duration(getEnvInt("SESSION_TIMEOUT", 3600)) * time.Second,
		SweepInterval:        time.Duration(getEnvInt("SESSION_SWEEP_INTERVAL", 300)) * time.Second,
		UploadLimit:          getEnvLimit("RATE_LIMIT_UPLOAD", Limit{Count: 5, Window: 300 * time.Second}),
		QuestionLimit:        getEnvLimit("RATE_LIMIT_QUESTION", Limit{Count: 20, Window: 300 * time.Second}),
		WhatsAppLimit:        getEnvLimit("RATE_LIMIT_WHATSAPP", Limit{Count: 50, Window: 300 * time.Second}),
		RateLimitPolicyFile:  getEnv("RATE_LIMIT_POLICY_FILE", ""),
		LLMProvider:          provider,
		LLMModel:             getEnv("LLM_MODEL", defaultModel(provider)),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		LLMTimeout:           time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppNumber: getEnv("TWILIO_WHATSAPP_NUMBER", "whatsapp:+14155238886"),
		WhatsAppWorkers:      getEnvInt("WHATSAPP_WORKERS", 4),
		WhatsAppQueueSize:    getEnvInt("WHATSAPP_QUEUE_SIZE", 64),
		WhatsAppSendRPS:      getEnvFloat("WHATSAPP_SEND_RPS", 1),
	}

	if cfg.Env == "production" && cfg.GeminiAPIKey == "" && cfg.OpenAIAPIKey == "" {
		log.Printf("no LLM API key configured in production; responses will use the demo client")
	}
	return cfg
}

// ParseLimit parses "<count>/<duration>", e.g. "5/300s" or "20/5m".
func ParseLimit(raw string) (Limit, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "/", 2)
	if len(parts) != 2 {
		return Limit{}, fmt.Errorf("limit %q: expected <count>/<duration>", raw)
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || count <= 0 {
		return Limit{}, fmt.Errorf("limit %q: invalid count", raw)
	}
	window, err := time.ParseDuration(strings.TrimSpace(parts[1]))
	if err != nil || window <= 0 {
		return Limit{}, fmt.Errorf("limit %q: invalid window", raw)
	}
	return Limit{Count: count, Window: window}, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid number %q, using %g", key, raw, def)
		return def
	}
	return val
}

func getEnvLimit(key string, def Limit) Limit {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	l, err := ParseLimit(raw)
	if err != nil {
		log.Printf("config: %s: %v, using %s", key, err, def)
		return def
	}
	return l
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "mock", "demo":
		return "mock"
	default:
		return "gemini"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "demo"
	}
}
