// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the llmrouter gateway.
type Config struct {
	Server    ServerConfig              `koanf:"server"`
	Features  FeatureConfig             `koanf:"features"`
	Providers map[string]ProviderConfig `koanf:"providers"`
	Redis     RedisConfig               `koanf:"redis"`
	Cache     CacheConfig               `koanf:"cache"`
	Timeouts  TimeoutConfig             `koanf:"timeouts"`
	Logging   LoggingConfig             `koanf:"logging"`
	CORS      CORSConfig                `koanf:"cors"`
	Auth      AuthConfig                `koanf:"auth"`
	Billing   BillingConfig             `koanf:"billing"`
}

// AuthConfig holds the base URLs of the external introspection services.
// UserURL is read even when ServiceAuth is disabled. ServiceURL is loaded
// from AUTH_SERVICE_URL but not consulted: service auth compares the
// caller's token against ServiceKey.
type AuthConfig struct {
	ServiceURL string `koanf:"service_url"`
	UserURL    string `koanf:"user_url"`
	ServiceKey string `koanf:"service_key"`
}

// BillingConfig holds the connection settings for the external billing
// service, consulted only when Features.Billing is true.
type BillingConfig struct {
	ServiceURL string `koanf:"service_url"`
	APIKey     string `koanf:"api_key"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// FeatureConfig is the set of top-level ENABLE_* toggles.
type FeatureConfig struct {
	Auth               bool `koanf:"auth"`
	ServiceAuth        bool `koanf:"service_auth"`
	Cache              bool `koanf:"cache"`
	Billing            bool `koanf:"billing"`
	OpenAICompatible   bool `koanf:"openai_compatible"`
	ServerInfoEndpoint bool `koanf:"server_info_endpoint"`
}

// ProviderConfig holds the settings for a single LLM provider. Not every
// field applies to every provider; unused fields are left zero.
type ProviderConfig struct {
	Enabled bool     `koanf:"enabled"`
	APIKey  string   `koanf:"api_key"`
	BaseURL string   `koanf:"base_url"`
	Models  []string `koanf:"models"`

	// GigaChat-specific: either APIKey (a pre-issued service token) or a
	// Login/Password pair to run the OAuth client-credentials exchange.
	Login    string `koanf:"login"`
	Password string `koanf:"password"`

	// Yandex-specific.
	FolderID string `koanf:"folder_id"`

	// Ollama-specific: one gateway may front several Ollama servers;
	// BaseURLs/APIKeys are parallel slices split from a semicolon-separated
	// env var.
	BaseURLs []string `koanf:"base_urls"`
	APIKeys  []string `koanf:"api_keys"`

	// OpenRouter / OpenRouter-proxy supported-model whitelist.
	SupportedModels []string `koanf:"supported_models"`

	// OpenRouter-proxy tunnel settings.
	ProxyUser       string `koanf:"proxy_user"`
	ProxyPassword   string `koanf:"proxy_password"`
	ProxyHTTPSocks5 string `koanf:"proxy_http_socks5_port"`
	ProxyScheme     string `koanf:"proxy_scheme"`

	DisableSSLVerify bool `koanf:"disable_ssl_verification"`
}

// RedisConfig holds the connection settings for the model-catalog cache.
type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	DB       int    `koanf:"db"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Prefix   string `koanf:"prefix"`
}

// CacheConfig holds cache-wide settings layered on top of RedisConfig.
type CacheConfig struct {
	Prefix string        `koanf:"prefix"`
	TTL    time.Duration `koanf:"ttl"`
}

// TimeoutConfig collects every client-facing timeout.
type TimeoutConfig struct {
	Provider         time.Duration `koanf:"provider"`
	AuthService      time.Duration `koanf:"auth_service"`
	AuthServiceCache time.Duration `koanf:"auth_service_cache_ttl"`
	OpenRouterProxy  time.Duration `koanf:"openrouter_proxy"`
}

// LoggingConfig controls the zerolog sink built by the logging package.
type LoggingConfig struct {
	Level       string            `koanf:"level"`
	Format      string            `koanf:"format"` // "json" | "text" | "structured"
	ExtraFields map[string]string `koanf:"extra_fields"`
}

// CORSConfig lists the origins the HTTP server accepts cross-origin
// requests from.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// knownProviders is the static registry of provider ids the gateway
// understands, used by the registry to reject an unknown provider prefix
// with a 400 rather than silently passing it through.
var knownProviders = map[string]bool{
	"deepseek":         true,
	"openrouter":       true,
	"openrouter_proxy": true,
	"zai":              true,
	"ollama":           true,
	"xrouter":          true,
	"gigachat":         true,
	"yandex":           true,
	"agents":           true,
}

// IsKnownProvider reports whether id is in the gateway's static provider
// registry.
func IsKnownProvider(id string) bool { return knownProviders[id] }

// Default timeouts, applied when a config file and the environment both
// leave the field zero.
const (
	DefaultProviderTimeout        = 300 * time.Second
	DefaultAuthServiceTimeout     = 30 * time.Second
	DefaultOpenRouterProxyTimeout = 15 * time.Second
)

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, and returns a fully populated Config. path may be
// empty, in which case only the environment and built-in defaults apply.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	// This is the equivalent of require('dotenv').config() in Node.
	_ = godotenv.Load()

	// Create a new koanf instance. The "." delimiter tells koanf how to
	// separate nested keys internally (e.g., "server.port").
	k := koanf.New(".")

	// Load the YAML config file, if one was given and exists. file.Provider
	// reads the file, yaml.Parser() decodes the YAML format into koanf's
	// internal map.
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	}

	// Layer environment variables on top. Any env var starting with
	// "LLMROUTER_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   LLMROUTER_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("LLMROUTER_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "LLMROUTER_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal the loaded key-value pairs into our Config struct.
	// The "" means start from the root. &cfg passes a pointer so koanf
	// can write into the struct (like passing by reference in Node).
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)
	applyProviderEnv(&cfg)
	expandSecretPlaceholders(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Timeouts.Provider == 0 {
		cfg.Timeouts.Provider = DefaultProviderTimeout
	}
	if cfg.Timeouts.AuthService == 0 {
		cfg.Timeouts.AuthService = DefaultAuthServiceTimeout
	}
	if cfg.Timeouts.OpenRouterProxy == 0 {
		cfg.Timeouts.OpenRouterProxy = DefaultOpenRouterProxyTimeout
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
}

// applyProviderEnv fills per-provider config directly from each provider's
// own env vars, independent of whatever a YAML file already set, so a bare
// environment (no config.yaml at all) is enough to run the gateway.
func applyProviderEnv(cfg *Config) {
	get := func(id string) ProviderConfig { return cfg.Providers[id] }
	put := func(id string, p ProviderConfig) { cfg.Providers[id] = p }

	for _, id := range []string{"deepseek", "openrouter", "openrouter_proxy", "zai", "xrouter"} {
		envName := strings.ToUpper(id)
		p := get(id)
		if v := os.Getenv("ENABLE_" + envName); v != "" {
			p.Enabled = parseBool(v)
		}
		if v := os.Getenv(envName + "_API_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv(envName + "_BASE_URL"); v != "" {
			p.BaseURL = v
		}
		if v := os.Getenv(envName + "_SUPPORTED_MODELS"); v != "" {
			p.SupportedModels = splitJSONArrayOrCSV(v)
		}
		put(id, p)
	}

	{
		p := get("openrouter_proxy")
		if v := os.Getenv("OPENROUTER_PROXY_USER"); v != "" {
			p.ProxyUser = v
		}
		if v := os.Getenv("OPENROUTER_PROXY_PASSWORD"); v != "" {
			p.ProxyPassword = v
		}
		if v := os.Getenv("OPENROUTER_PROXY_BASE_URL"); v != "" {
			p.BaseURL = v
		}
		if v := os.Getenv("OPENROUTER_PROXY_HTTP_SOCKS5_PORT"); v != "" {
			p.ProxyHTTPSocks5 = v
		}
		if v := os.Getenv("OPENROUTER_PROXY_SCHEME"); v != "" {
			p.ProxyScheme = v
		}
		put("openrouter_proxy", p)
	}

	{
		p := get("gigachat")
		if v := os.Getenv("ENABLE_GIGACHAT"); v != "" {
			p.Enabled = parseBool(v)
		}
		if v := os.Getenv("GIGACHAT_API_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv("GIGACHAT_LOGIN"); v != "" {
			p.Login = v
		}
		if v := os.Getenv("GIGACHAT_PASSWORD"); v != "" {
			p.Password = v
		}
		if v := os.Getenv("GIGACHAT_BASE_URL"); v != "" {
			p.BaseURL = v
		}
		put("gigachat", p)
	}

	{
		p := get("yandex")
		if v := os.Getenv("ENABLE_YANDEX"); v != "" {
			p.Enabled = parseBool(v)
		}
		if v := os.Getenv("YANDEX_API_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv("YANDEX_FOLDER_ID"); v != "" {
			p.FolderID = v
		}
		if v := os.Getenv("YANDEX_BASE_URL"); v != "" {
			p.BaseURL = v
		}
		put("yandex", p)
	}

	{
		p := get("ollama")
		if v := os.Getenv("ENABLE_OLLAMA"); v != "" {
			p.Enabled = parseBool(v)
		}
		if v := os.Getenv("OLLAMA_BASE_URLS"); v != "" {
			p.BaseURLs = strings.Split(v, ";")
		}
		if v := os.Getenv("OLLAMA_API_KEYS"); v != "" {
			p.APIKeys = strings.Split(v, ";")
		}
		put("ollama", p)
	}

	if v := os.Getenv("ENABLE_AUTH"); v != "" {
		cfg.Features.Auth = parseBool(v)
	}
	if v := os.Getenv("ENABLE_SERVICE_AUTH"); v != "" {
		cfg.Features.ServiceAuth = parseBool(v)
	}
	if v := os.Getenv("ENABLE_CACHE"); v != "" {
		cfg.Features.Cache = parseBool(v)
	}
	if v := os.Getenv("ENABLE_LLM_BILLING"); v != "" {
		cfg.Features.Billing = parseBool(v)
	}
	if v := os.Getenv("ENABLE_OPENAI_COMPATIBLE_API"); v != "" {
		cfg.Features.OpenAICompatible = parseBool(v)
	}
	if v := os.Getenv("ENABLE_SERVER_INFO_ENDPOINT"); v != "" {
		cfg.Features.ServerInfoEndpoint = parseBool(v)
	}

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = n
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("REDIS_USER"); v != "" {
		cfg.Redis.User = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		cfg.Redis.Prefix = v
	}
	if v := os.Getenv("CACHE_PREFIX"); v != "" {
		cfg.Cache.Prefix = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeouts.Provider = d
		}
	}
	if v := os.Getenv("AUTH_SERVICE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeouts.AuthService = d
		}
	}
	if v := os.Getenv("AUTH_SERVICE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeouts.AuthServiceCache = d
		}
	}
	if v := os.Getenv("AUTH_SERVICE_URL"); v != "" {
		cfg.Auth.ServiceURL = v
	}
	if v := os.Getenv("USER_AUTH_SERVICE_URL"); v != "" {
		cfg.Auth.UserURL = v
	}
	if v := os.Getenv("SERVICE_API_KEY"); v != "" {
		cfg.Auth.ServiceKey = v
	}
	if v := os.Getenv("BILLING_SERVICE_URL"); v != "" {
		cfg.Billing.ServiceURL = v
	}
	if v := os.Getenv("BILLING_SERVICE_API_KEY"); v != "" {
		cfg.Billing.APIKey = v
	}

	if v := os.Getenv("DISABLE_SSL_VERIFICATION"); v != "" {
		disable := parseBool(v)
		for id, p := range cfg.Providers {
			p.DisableSSLVerify = disable
			cfg.Providers[id] = p
		}
	}
	if v := os.Getenv("BACKEND_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitJSONArrayOrCSV(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOG_EXTRA_FIELDS"); v != "" {
		cfg.Logging.ExtraFields = parseKVList(v)
	}
}

// expandSecretPlaceholders expands ${VAR_NAME} placeholders in provider API
// keys/logins/passwords coming from the YAML file. koanf doesn't do this
// automatically, so it's handled here using os.Getenv.
func expandSecretPlaceholders(cfg *Config) {
	expand := func(s string) string {
		if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			return os.Getenv(s[2 : len(s)-1])
		}
		return s
	}
	for name, p := range cfg.Providers {
		p.APIKey = expand(p.APIKey)
		p.Login = expand(p.Login)
		p.Password = expand(p.Password)
		cfg.Providers[name] = p
	}
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return strings.EqualFold(s, "yes") || strings.EqualFold(s, "on")
	}
	return v
}

// splitJSONArrayOrCSV accepts either a JSON array string (`["a","b"]`) or a
// plain comma-separated list for model whitelist env vars.
func splitJSONArrayOrCSV(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		s = strings.Trim(s, "[]")
		var out []string
		for _, part := range strings.Split(s, ",") {
			part = strings.Trim(strings.TrimSpace(part), `"'`)
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseKVList(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}
