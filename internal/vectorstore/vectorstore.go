// Package vectorstore provides the vector index backends behind the
// endpoint registry. Drivers register themselves by name; the factory
// resolves the configured one at startup.
package vectorstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/config"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/contracts"
)

// Factory creates a vector store driver from configuration.
type Factory func(cfg config.VectorConfig) (contracts.VectorStoreDriver, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a driver factory under the given name. Later
// registrations with the same name overwrite earlier ones.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// New creates the driver named in the configuration.
func New(cfg config.VectorConfig) (contracts.VectorStoreDriver, error) {
	mu.RLock()
	f, ok := factories[cfg.Driver]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vectorstore: unknown driver %q (available: %v)", cfg.Driver, Available())
	}
	return f(cfg)
}

// Available lists registered driver names, sorted.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
