package vectorflow

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/strokeworks/vectorflow/model"
)

// Store kinds.
const (
	StoreMemory     = "memory"
	StoreFilesystem = "fs"
	StorePostgres   = "postgres"
)

// Provider kinds.
const (
	ProviderScripted  = "scripted"
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
	ProviderRemote    = "remote"
)

// Config is the serialisable service configuration. The zero value of every
// nested field inherits its package default; callers populate it directly or
// through LoadConfig.
type Config struct {
	// BranchFactor is the variant fan-out width of the default pipeline.
	BranchFactor int `json:"branchFactor,omitempty" yaml:"branchFactor,omitempty"`

	// DefinitionURL points at a custom pipeline definition document. When
	// empty the built-in vector-studio pipeline is used.
	DefinitionURL string `json:"definitionURL,omitempty" yaml:"definitionURL,omitempty"`

	Store    StoreConfig    `json:"store" yaml:"store"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
}

// StoreConfig selects and parameterises the document store.
type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	// Path roots the filesystem store.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// DSN connects the PostgreSQL store.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// LockTimeoutMs bounds filesystem lock acquisition.
	LockTimeoutMs int `json:"lockTimeoutMs,omitempty" yaml:"lockTimeoutMs,omitempty"`
}

// ProviderConfig selects and parameterises the generation provider.
type ProviderConfig struct {
	Kind     string `json:"kind" yaml:"kind"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	// APIKey is the literal key; prefer APIKeySecretURL outside of tests.
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	// APIKeySecretURL resolves the key from a secret resource.
	APIKeySecretURL string `json:"apiKeySecretURL,omitempty" yaml:"apiKeySecretURL,omitempty"`
	// SecretKey optionally decrypts the secret resource.
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
	// BaseURL roots the remote batch backend.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// GatewayConfig parameterises the HTTP gateway.
type GatewayConfig struct {
	Address            string `json:"address,omitempty" yaml:"address,omitempty"`
	HeartbeatIntervalS int    `json:"heartbeatIntervalS,omitempty" yaml:"heartbeatIntervalS,omitempty"`
}

// DefaultConfig returns the in-memory, scripted-provider configuration used
// by tests and local experimentation.
func DefaultConfig() *Config {
	return &Config{
		BranchFactor: model.MinBranchFactor,
		Store:        StoreConfig{Kind: StoreMemory},
		Provider:     ProviderConfig{Kind: ProviderScripted},
		Gateway:      GatewayConfig{Address: ":8080"},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.BranchFactor != 0 && (c.BranchFactor < model.MinBranchFactor || c.BranchFactor > model.MaxBranchFactor) {
		return fmt.Errorf("branchFactor %d outside [%d, %d]", c.BranchFactor, model.MinBranchFactor, model.MaxBranchFactor)
	}
	switch c.Store.Kind {
	case "", StoreMemory:
	case StoreFilesystem:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s store", StoreFilesystem)
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s store", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	switch c.Provider.Kind {
	case "", ProviderScripted:
	case ProviderAnthropic, ProviderDeepSeek:
		if c.Provider.APIKey == "" && c.Provider.APIKeySecretURL == "" {
			return fmt.Errorf("provider %s requires apiKey or apiKeySecretURL", c.Provider.Kind)
		}
	case ProviderRemote:
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider %s requires baseURL", ProviderRemote)
		}
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	return nil
}

// LoadConfig reads and validates a YAML configuration document from any URL
// the abstract file system supports.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
