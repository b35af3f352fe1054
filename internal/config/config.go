package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/inrsta/dait-meetup-langfuse/internal/trace"
)

// ProviderConfig holds per-provider settings. Options are forwarded
// verbatim to the provider client and into trace metadata.
type ProviderConfig struct {
	APIKey            string         `koanf:"api_key"`
	Model             string         `koanf:"model"`
	Instructions      string         `koanf:"instructions"`
	BaseURL           string         `koanf:"base_url"`
	Temperature       float64        `koanf:"temperature"`
	MaxTokens         int            `koanf:"max_tokens"`
	TopP              float64        `koanf:"top_p"`
	RequestsPerSecond float64        `koanf:"requests_per_second"`
	Options           map[string]any `koanf:"options"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port      int    `koanf:"port"`
	JWTSecret string `koanf:"jwt_secret"`
}

// Config represents the application configuration
type Config struct {
	General struct {
		DefaultProvider string `koanf:"default_provider"`
	} `koanf:"general"`

	Providers map[string]ProviderConfig `koanf:"providers"`
	Langfuse  trace.LangfuseConfig      `koanf:"langfuse"`
	Server    ServerConfig              `koanf:"server"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"general.default_provider": "openai",
		"langfuse.host":            "https://cloud.langfuse.com",
		"langfuse.enabled":         true,
		"server.port":              8888,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations
		defaultPaths := []string{"./daitchat.toml", "$HOME/.daitchat.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix DAITCHAT_
	k.Load(env.Provider("DAITCHAT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DAITCHAT_")), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Fill credential gaps from the conventional env vars the original
	// deployment used in its .env file.
	applyCredentialEnv(&config)

	return &config, nil
}

// applyCredentialEnv fills empty API keys from conventional env vars.
func applyCredentialEnv(config *Config) {
	envKeys := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"gemini":    "GEMINI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"cohere":    "COHERE_API_KEY",
	}

	for name, envKey := range envKeys {
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}
		if config.Providers == nil {
			config.Providers = make(map[string]ProviderConfig)
		}
		pc := config.Providers[name]
		if pc.APIKey == "" {
			pc.APIKey = val
			config.Providers[name] = pc
		}
	}

	if config.Langfuse.PublicKey == "" {
		config.Langfuse.PublicKey = os.Getenv("LANGFUSE_PUBLIC_KEY")
	}
	if config.Langfuse.SecretKey == "" {
		config.Langfuse.SecretKey = os.Getenv("LANGFUSE_SECRET_KEY")
	}
	if host := os.Getenv("LANGFUSE_HOST"); host != "" {
		config.Langfuse.Host = host
	}
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# daitchat Configuration

[general]
default_provider = "openai"

[providers.openai]
api_key = "your-openai-api-key"
model = "gpt-4o-mini"
instructions = "You are a coding assistant that talks like a pirate."
temperature = 0.7

[providers.gemini]
api_key = "your-gemini-api-key"
model = "gemini-1.5-flash"

[providers.anthropic]
api_key = "your-anthropic-api-key"
model = "claude-3-5-sonnet-latest"
max_tokens = 1024

[langfuse]
host = "https://cloud.langfuse.com"
public_key = "pk-lf-..."
secret_key = "sk-lf-..."
enabled = true

[server]
port = 8888
jwt_secret = "change-me"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.General.DefaultProvider == "" {
		return fmt.Errorf("default provider is required")
	}

	providerConfig, ok := config.Providers[config.General.DefaultProvider]
	if !ok {
		return fmt.Errorf("configuration for provider %s not found", config.General.DefaultProvider)
	}

	if providerConfig.Model == "" {
		return fmt.Errorf("model is required for provider %s", config.General.DefaultProvider)
	}

	// Ollama talks to a local server and needs no key
	if providerConfig.APIKey == "" && config.General.DefaultProvider != "ollama" {
		return fmt.Errorf("api key is required for provider %s", config.General.DefaultProvider)
	}

	if config.Langfuse.Enabled {
		if config.Langfuse.PublicKey == "" || config.Langfuse.SecretKey == "" {
			return fmt.Errorf("langfuse is enabled but public_key or secret_key is missing")
		}
	}

	return nil
}
