package vectorflow

import (
	"context"
	"fmt"
	"time"

	"github.com/strokeworks/vectorflow/gateway"
	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/service/coordinator"
	"github.com/strokeworks/vectorflow/service/dao"
	"github.com/strokeworks/vectorflow/service/dao/fs"
	"github.com/strokeworks/vectorflow/service/dao/memory"
	"github.com/strokeworks/vectorflow/service/dao/postgres"
	"github.com/strokeworks/vectorflow/service/engine"
	"github.com/strokeworks/vectorflow/service/event"
	"github.com/strokeworks/vectorflow/service/generation"
)

// Service is the assembled pipeline: store, event bus, generation provider,
// coordinator, engine and HTTP gateway, wired from one Config.
type Service struct {
	config     *Config
	definition *model.Definition
	store      dao.Service
	bus        *event.Service
	provider   generation.Service
	engine     *engine.Service
	gateway    *gateway.Service
}

// New assembles the service. Options override individual collaborators;
// everything left unset is built from the configuration.
func New(ctx context.Context, options ...Option) (*Service, error) {
	s := &Service{}
	for _, opt := range options {
		opt(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) init(ctx context.Context) error {
	if s.definition == nil {
		if err := s.initDefinition(ctx); err != nil {
			return err
		}
	}
	if s.store == nil {
		if err := s.initStore(ctx); err != nil {
			return err
		}
	}
	if s.bus == nil {
		s.bus = event.New()
	}
	if s.provider == nil {
		if err := s.initProvider(ctx); err != nil {
			return err
		}
	}

	coordinatorOptions := []coordinator.Option{
		coordinator.WithProviderName(s.providerName()),
	}
	if batch, ok := s.provider.(generation.Batch); ok {
		coordinatorOptions = append(coordinatorOptions, coordinator.WithBatch(batch))
	}
	s.engine = engine.New(s.store, s.bus, s.definition,
		engine.WithCoordinator(coordinator.New(s.provider, coordinatorOptions...)))

	gatewayOptions := []gateway.Option{}
	if s.config.Gateway.HeartbeatIntervalS > 0 {
		gatewayOptions = append(gatewayOptions,
			gateway.WithHeartbeatInterval(time.Duration(s.config.Gateway.HeartbeatIntervalS)*time.Second))
	}
	s.gateway = gateway.New(s.engine, s.bus, gatewayOptions...)
	return nil
}

func (s *Service) initDefinition(ctx context.Context) error {
	if s.config.DefinitionURL != "" {
		definition, err := model.Load(ctx, s.config.DefinitionURL)
		if err != nil {
			return err
		}
		s.definition = definition
		return nil
	}
	factor := s.config.BranchFactor
	if factor == 0 {
		factor = model.MinBranchFactor
	}
	s.definition = model.DefaultDefinition(factor)
	return nil
}

func (s *Service) initStore(ctx context.Context) error {
	switch s.config.Store.Kind {
	case "", StoreMemory:
		s.store = memory.New()
	case StoreFilesystem:
		var options []fs.Option
		if s.config.Store.LockTimeoutMs > 0 {
			options = append(options, fs.WithLockTimeout(time.Duration(s.config.Store.LockTimeoutMs)*time.Millisecond))
		}
		store, err := fs.New(s.config.Store.Path, options...)
		if err != nil {
			return err
		}
		s.store = store
	case StorePostgres:
		store, err := postgres.Open(ctx, s.config.Store.DSN)
		if err != nil {
			return err
		}
		s.store = store
	default:
		return fmt.Errorf("unknown store kind %q", s.config.Store.Kind)
	}
	return nil
}

func (s *Service) initProvider(ctx context.Context) error {
	settings := s.config.Provider
	apiKey := settings.APIKey
	if apiKey == "" && settings.APIKeySecretURL != "" {
		resolved, err := generation.ResolveAPIKey(ctx, settings.APIKeySecretURL, settings.SecretKey)
		if err != nil {
			return err
		}
		apiKey = resolved
	}
	switch settings.Kind {
	case "", ProviderScripted:
		s.provider = generation.NewScripted()
	case ProviderAnthropic:
		var options []generation.AnthropicOption
		if settings.Endpoint != "" {
			options = append(options, generation.WithAnthropicEndpoint(settings.Endpoint))
		}
		if settings.Model != "" {
			options = append(options, generation.WithAnthropicModel(settings.Model))
		}
		s.provider = generation.NewAnthropic(apiKey, options...)
	case ProviderDeepSeek:
		var options []generation.DeepSeekOption
		if settings.Endpoint != "" {
			options = append(options, generation.WithDeepSeekEndpoint(settings.Endpoint))
		}
		if settings.Model != "" {
			options = append(options, generation.WithDeepSeekModel(settings.Model))
		}
		s.provider = generation.NewDeepSeek(apiKey, options...)
	case ProviderRemote:
		s.provider = generation.NewRemote(settings.BaseURL)
	default:
		return fmt.Errorf("unknown provider kind %q", settings.Kind)
	}
	return nil
}

func (s *Service) providerName() string {
	if s.config.Provider.Kind == "" {
		return ProviderScripted
	}
	return s.config.Provider.Kind
}

// Engine returns the action engine.
func (s *Service) Engine() *engine.Service {
	return s.engine
}

// Bus returns the event bus.
func (s *Service) Bus() *event.Service {
	return s.bus
}

// Gateway returns the HTTP gateway.
func (s *Service) Gateway() *gateway.Service {
	return s.gateway
}

// Definition returns the pipeline definition in use.
func (s *Service) Definition() *model.Definition {
	return s.definition
}

// Start serves the HTTP gateway on the configured address until Shutdown.
func (s *Service) Start() error {
	address := s.config.Gateway.Address
	if address == "" {
		address = ":8080"
	}
	return s.gateway.Start(address)
}

// Shutdown drains the gateway.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.gateway.Shutdown(ctx)
}
