// Package taskroute provides a top-level convenience entry point for routing
// tasks in-process with minimal boilerplate.
//
// Usage:
//
//	import "github.com/taskroute/taskroute"
//
//	eng, err := taskroute.New(taskroute.WithBackend("http://localhost:8080/v1"))
//	eng, err := taskroute.New(
//		taskroute.WithBackend("http://localhost:8080/v1"),
//		taskroute.WithProvidersFile("providers.yaml"),
//	)
//
//	resp, err := eng.Route(ctx, taskroute.NewTaskRequest("summarize the report"))
//
// This wires the same components the HTTP service in cmd/taskroute uses
// (registry, client factory, dispatcher, gateway, router) without the server,
// metrics, or cache layers. Use it when embedding task routing in another
// program.
package taskroute

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskroute/taskroute/backend"
	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/routing"
)

// TaskRequest is a type alias for routing.TaskRequest so callers never need
// to import routing/.
type TaskRequest = routing.TaskRequest

// TaskResponse is a type alias for routing.TaskResponse.
type TaskResponse = routing.TaskResponse

// Option configures the engine created by [New].
type Option func(*options)

type options struct {
	backendURL     string
	defaultModel   string
	providersFile  string
	providers      []capability.Provider
	reportFailures bool
	maxConcurrent  int
	requestTimeout time.Duration
	logger         *zap.Logger
}

// WithBackend sets the inference backend base URL. Required.
func WithBackend(baseURL string) Option {
	return func(o *options) { o.backendURL = baseURL }
}

// WithModel sets the default model used when a request does not name one.
func WithModel(model string) Option {
	return func(o *options) { o.defaultModel = model }
}

// WithProvidersFile loads the capability provider registry from a YAML file.
func WithProvidersFile(path string) Option {
	return func(o *options) { o.providersFile = path }
}

// WithProviders registers capability providers directly. Takes precedence
// over [WithProvidersFile].
func WithProviders(providers ...capability.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, providers...) }
}

// WithReportFailures includes failed capability invocations in task responses.
func WithReportFailures() Option {
	return func(o *options) { o.reportFailures = true }
}

// WithMaxConcurrent caps concurrent capability invocations per task.
func WithMaxConcurrent(n int) Option {
	return func(o *options) { o.maxConcurrent = n }
}

// WithRequestTimeout bounds each backend and capability call.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Engine routes tasks through the capability dispatch and backend pipeline.
type Engine struct {
	router   *routing.Router
	registry *capability.Registry
}

// New creates an [Engine] with minimal configuration.
// At minimum, a backend must be specified via [WithBackend].
func New(opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.backendURL == "" {
		return nil, fmt.Errorf("backend is required: use WithBackend")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	// Resolve the provider registry.
	var registry *capability.Registry
	var err error
	switch {
	case len(o.providers) > 0:
		registry, err = capability.NewRegistry(o.providers)
	default:
		registry, err = capability.LoadProviders(o.providersFile)
	}
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	clients := capability.NewClientFactory(capability.ClientFactoryConfig{
		RequestTimeout: o.requestTimeout,
	}, nil, nil, o.logger)

	dispatcher := capability.NewDispatcher(registry, clients, capability.DispatcherConfig{
		MaxConcurrent:  o.maxConcurrent,
		RequestTimeout: o.requestTimeout,
	}, nil, o.logger)

	gateway := backend.New(backend.Config{
		BaseURL:        o.backendURL,
		RequestTimeout: o.requestTimeout,
	}, nil, o.logger)

	router := routing.NewRouter(dispatcher, gateway, routing.Config{
		DefaultModel:   o.defaultModel,
		ReportFailures: o.reportFailures,
	}, nil, o.logger)

	return &Engine{router: router, registry: registry}, nil
}

// NewTaskRequest builds a prompt-mode task request.
func NewTaskRequest(prompt string) *TaskRequest {
	return &TaskRequest{Prompt: &prompt}
}

// Route processes one task request to a terminal state.
func (e *Engine) Route(ctx context.Context, req *TaskRequest) (*TaskResponse, error) {
	return e.router.Route(ctx, req)
}

// Providers lists the registered capability providers in registration order.
func (e *Engine) Providers() []capability.Provider {
	return e.registry.List()
}
