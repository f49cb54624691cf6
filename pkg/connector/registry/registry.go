// Package registry holds the connector factories. Concrete connectors
// register themselves from init functions; pipelines and the CLI look them
// up by name.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/connector/core"
	"github.com/tablecast/tablecast/pkg/errors"
	"github.com/tablecast/tablecast/pkg/logger"
	stringpool "github.com/tablecast/tablecast/pkg/strings"
)

// SourceFactory builds a configured source connector.
type SourceFactory func(cfg *config.BaseConfig) (core.Source, error)

// DestinationFactory builds a configured destination connector.
type DestinationFactory func(cfg *config.BaseConfig) (core.Destination, error)

// Registry maps connector names to their factories.
type Registry struct {
	mu           sync.RWMutex
	sources      map[string]SourceFactory
	destinations map[string]DestinationFactory
	infos        map[string]*ConnectorInfo
	logger       *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry. Most callers use the package-level
// functions backed by the global registry instead.
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		destinations: make(map[string]DestinationFactory),
		infos:        make(map[string]*ConnectorInfo),
		logger:       logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// RegisterSource adds a source factory under name. Registering the same
// name twice is a configuration error.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.New(errors.ErrorTypeConfig,
			stringpool.Sprintf("source connector %s already registered", name))
	}
	r.sources[name] = factory
	r.logger.Debug("source connector registered", zap.String("name", name))
	return nil
}

// RegisterDestination adds a destination factory under name.
func (r *Registry) RegisterDestination(name string, factory DestinationFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.destinations[name]; exists {
		return errors.New(errors.ErrorTypeConfig,
			stringpool.Sprintf("destination connector %s already registered", name))
	}
	r.destinations[name] = factory
	r.logger.Debug("destination connector registered", zap.String("name", name))
	return nil
}

// CreateSource instantiates the named source with cfg.
func (r *Registry) CreateSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig,
			stringpool.Sprintf("source connector %s not found", name))
	}
	source, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig,
			stringpool.Sprintf("failed to create source connector %s", name))
	}
	return source, nil
}

// CreateDestination instantiates the named destination with cfg.
func (r *Registry) CreateDestination(name string, cfg *config.BaseConfig) (core.Destination, error) {
	r.mu.RLock()
	factory, exists := r.destinations[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig,
			stringpool.Sprintf("destination connector %s not found", name))
	}
	destination, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig,
			stringpool.Sprintf("failed to create destination connector %s", name))
	}
	return destination, nil
}

// ListSources returns the registered source names, sorted.
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListDestinations returns the registered destination names, sorted.
func (r *Registry) ListDestinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasSource reports whether a source factory is registered under name.
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// HasDestination reports whether a destination factory is registered under
// name.
func (r *Registry) HasDestination(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.destinations[name]
	return exists
}

// ConnectorInfo describes a registered connector for the CLI catalog.
type ConnectorInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// RegisterInfo attaches catalog metadata to a connector name.
func (r *Registry) RegisterInfo(info *ConnectorInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos[info.Name+"/"+info.Type] = info
}

// ListInfo returns catalog entries sorted by name then type.
func (r *Registry) ListInfo() []*ConnectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.infos))
	for k := range r.infos {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	infos := make([]*ConnectorInfo, 0, len(keys))
	for _, k := range keys {
		infos = append(infos, r.infos[k])
	}
	return infos
}

// Global registry wrappers. Connector init functions use these.

func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

func RegisterDestination(name string, factory DestinationFactory) error {
	return globalRegistry.RegisterDestination(name, factory)
}

func CreateSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

func CreateDestination(name string, cfg *config.BaseConfig) (core.Destination, error) {
	return globalRegistry.CreateDestination(name, cfg)
}

func ListSources() []string { return globalRegistry.ListSources() }

func ListDestinations() []string { return globalRegistry.ListDestinations() }

func HasSource(name string) bool { return globalRegistry.HasSource(name) }

func HasDestination(name string) bool { return globalRegistry.HasDestination(name) }

func RegisterInfo(info *ConnectorInfo) { globalRegistry.RegisterInfo(info) }

func ListInfo() []*ConnectorInfo { return globalRegistry.ListInfo() }
