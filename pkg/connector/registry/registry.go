// Package registry manages connector registration and instantiation.
// Connector packages register a factory from init, keyed by provider name;
// the host creates instances with the shared dependencies.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/logger"
)

// ConnectorFactory creates a connector instance from the shared deps.
type ConnectorFactory func(deps *core.Deps) (core.Connector, error)

// Registry manages connector registration and instantiation
type Registry struct {
	connectors map[string]ConnectorFactory
	mu         sync.RWMutex
	logger     *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]ConnectorFactory),
		logger:     logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register registers a connector factory
func (r *Registry) Register(name string, factory ConnectorFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connectors[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s already registered", name))
	}

	r.connectors[name] = factory
	r.logger.Info("connector registered", zap.String("name", name))
	return nil
}

// Create creates a connector instance
func (r *Registry) Create(name string, deps *core.Deps) (core.Connector, error) {
	r.mu.RLock()
	factory, exists := r.connectors[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s not found", name))
	}

	connector, err := factory(deps)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create connector %s", name))
	}

	return connector, nil
}

// List returns the registered connector names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a connector is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.connectors[name]
	return exists
}

// Clear removes all registered connectors (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors = make(map[string]ConnectorFactory)
}

// Global registry functions

// Register registers a connector in the global registry
func Register(name string, factory ConnectorFactory) error {
	return globalRegistry.Register(name, factory)
}

// MustRegister registers a connector and panics on conflict. Connector
// packages call this from init.
func MustRegister(name string, factory ConnectorFactory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// Create creates a connector from the global registry
func Create(name string, deps *core.Deps) (core.Connector, error) {
	return globalRegistry.Create(name, deps)
}

// List returns registered connectors from the global registry
func List() []string {
	return globalRegistry.List()
}

// Has checks if a connector is registered in the global registry
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
