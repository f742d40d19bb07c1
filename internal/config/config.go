package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const defaultSystemPrompt = "Welcome to HeadstarterAI's customer support! I'm here to assist you with any questions or issues you may have regarding our AI-powered interview platform for software engineering jobs. Here's how I can help: 1. Account Management: Assistance with account creation, login issues, profile updates, and password resets.; 2. Interview Preparation: Guidance on how to prepare for AI-powered interviews, including tips on answering questions, understanding feedback, and using our preparation resources.; 3. Technical Support: Help with any technical issues you might encounter on our platform, including problems with the interview process, connectivity issues, or system errors.; 4. Interview Process: Information on how our AI-powered interviews work, the types of questions asked, and the evaluation process.; 5. Subscription and Billing: Details about our subscription plans, billing inquiries, and payment issues.; 6. Feedback and Improvement: Collecting feedback to help us improve our platform and user experience.; 7. General Inquiries: Any other questions or concerns you may have about HeadstarterAI. Please provide as much detail as possible regarding your query, and I'll do my best to assist you promptly."

type Config struct {
	// Server
	Port               string
	Env                string
	FrontendURL        string
	StreamWriteTimeout time.Duration

	// Upstream LLM
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	HTTPReferer  string
	AppTitle     string
	GeminiAPIKey string

	// Relay
	SystemPrompt string

	// Logging
	LogLevel  string
	LogFormat string
}

// ExtraHeaders returns the attribution headers sent with every upstream
// request. OpenRouter reads HTTP-Referer and X-Title; other providers ignore them.
func (c *Config) ExtraHeaders() map[string]string {
	headers := map[string]string{}
	if c.HTTPReferer != "" {
		headers["HTTP-Referer"] = c.HTTPReferer
	}
	if c.AppTitle != "" {
		headers["X-Title"] = c.AppTitle
	}
	return headers
}

// Load reads configuration from the environment. A .env file is loaded if
// present, and RELAY_CONFIG may name a YAML file of KEY: value pairs that act
// as defaults underneath the real environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	src := source{}
	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		values, err := readFileValues(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{
		Port:               src.getOrDefault("PORT", "8080"),
		Env:                src.getOrDefault("ENV", "development"),
		FrontendURL:        src.getOrDefault("FRONTEND_URL", "*"),
		StreamWriteTimeout: src.getDurationOrDefault("STREAM_WRITE_TIMEOUT", 5*time.Minute),
		Provider:           strings.ToLower(src.getOrDefault("LLM_PROVIDER", ProviderOpenAI)),
		BaseURL:            src.getOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		HTTPReferer:        src.getOrDefault("LLM_HTTP_REFERER", ""),
		AppTitle:           src.getOrDefault("LLM_APP_TITLE", ""),
		SystemPrompt:       src.getOrDefault("SYSTEM_PROMPT", defaultSystemPrompt),
		LogLevel:           src.getOrDefault("LOG_LEVEL", "info"),
		LogFormat:          src.getOrDefault("LOG_FORMAT", "console"),
	}

	if path := src.getOrDefault("SYSTEM_PROMPT_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read system prompt file: %w", err)
		}
		cfg.SystemPrompt = strings.TrimSpace(string(data))
	}

	var err error
	switch cfg.Provider {
	case ProviderOpenAI:
		cfg.Model = src.getOrDefault("LLM_MODEL", "gpt-4o-mini")
		cfg.APIKey, err = src.mustGetAny("LLM_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY")
	case ProviderGemini:
		cfg.Model = src.getOrDefault("LLM_MODEL", "gemini-1.5-flash")
		cfg.GeminiAPIKey, err = src.mustGetAny("GEMINI_API_KEY")
	default:
		err = fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func readFileValues(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return values, nil
}

// source resolves a key from the environment first, then from the optional
// config file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return s.file[key]
}

func (s source) mustGetAny(keys ...string) (string, error) {
	for _, key := range keys {
		if val := s.lookup(key); val != "" {
			return val, nil
		}
	}
	return "", fmt.Errorf("required environment variable %s is not set", strings.Join(keys, " or "))
}

func (s source) getOrDefault(key, defaultVal string) string {
	val := s.lookup(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s source) getIntOrDefault(key string, defaultVal int) int {
	val := s.lookup(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func (s source) getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := s.lookup(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	// Bare integers are seconds.
	if n := s.getIntOrDefault(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
