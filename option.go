package vectorflow

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/service/dao"
	"github.com/strokeworks/vectorflow/service/event"
	"github.com/strokeworks/vectorflow/service/generation"
	"github.com/strokeworks/vectorflow/tracing"
)

// Option customises service assembly.
type Option func(s *Service)

// WithConfig supplies the full configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithDefinition overrides the pipeline definition.
func WithDefinition(definition *model.Definition) Option {
	return func(s *Service) { s.definition = definition }
}

// WithStore overrides the document store.
func WithStore(store dao.Service) Option {
	return func(s *Service) { s.store = store }
}

// WithEventService overrides the event bus.
func WithEventService(bus *event.Service) Option {
	return func(s *Service) { s.bus = bus }
}

// WithProvider overrides the generation provider.
func WithProvider(provider generation.Service) Option {
	return func(s *Service) { s.provider = provider }
}

// WithTracing configures OpenTelemetry tracing. An empty outputFile selects
// the stdout exporter. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures tracing with a custom span exporter, for
// OTLP or other backends. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
