package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// StoreFactory opens a store from configuration.
type StoreFactory func(ctx context.Context, cfg core.StoreConfig, logger *slog.Logger) (core.Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]StoreFactory)
)

// Register adds a store factory to the registry.
// Called by store implementations in their init() functions.
func Register(name string, factory StoreFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Get retrieves a store factory by name.
func Get(name string) (StoreFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// NewStore opens a store based on config type.
// The logger parameter is passed to the store factory (nil uses discard logger).
func NewStore(ctx context.Context, cfg core.StoreConfig, logger *slog.Logger) (core.Store, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("store type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownStoreError{
			Type:      cfg.Type,
			Available: ListStores(),
		}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Type, err)
	}
	return store, nil
}

// ListStores returns all registered store names (sorted).
func ListStores() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a store type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(name)]
	return ok
}
