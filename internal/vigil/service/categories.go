package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/store"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/types"
)

var (
	ErrInvalidDeviceID = errors.New("device_id is required")
	ErrInvalidCategory = errors.New("unknown category")
)

// Categories is the externally maintained deviceId -> category mapping.
// Every change is flushed to the store before Set returns.
type Categories struct {
	store  store.CategoryStore
	logger *slog.Logger

	mu sync.RWMutex
	m  map[string]types.Category
}

func NewCategories(st store.CategoryStore, logger *slog.Logger) *Categories {
	return &Categories{store: st, logger: logger, m: make(map[string]types.Category)}
}

// Restore replaces the in-memory mapping with the stored one. On failure the
// mapping is left empty and the error is returned for the caller to log.
func (c *Categories) Restore(ctx context.Context) error {
	m, err := c.store.LoadCategories(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.m = make(map[string]types.Category)
		return fmt.Errorf("%w: categories: %w", ErrStoreLoad, err)
	}
	if m == nil {
		m = make(map[string]types.Category)
	}
	c.m = m
	return nil
}

func (c *Categories) Get(deviceID string) types.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cat, ok := c.m[deviceID]; ok {
		return cat
	}
	return types.CategoryUndefined
}

func (c *Categories) All() map[string]types.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.m)
}

// Set assigns a category and flushes the whole mapping. Setting the value a
// device already has is a no-op and does not write.
func (c *Categories) Set(ctx context.Context, deviceID string, cat types.Category) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	if cat != types.CategoryUndefined && !cat.Assignable() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, cat)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.m[deviceID]; ok && prev == cat {
		return nil
	}
	next := maps.Clone(c.m)
	next[deviceID] = cat

	if err := c.store.SaveCategories(ctx, next); err != nil {
		return fmt.Errorf("%w: categories: %w", ErrPersistenceWrite, err)
	}
	c.m = next
	c.logger.Info("category updated", "device_id", deviceID, "category", cat)
	return nil
}
