// Package spi computes the Surgical Pleth Index from photoplethysmogram
// pulse morphology. The computation itself lives behind the Filter
// interface so a vendor implementation can replace the built-in one; which
// filter runs is fixed at startup by configuration, never probed at runtime.
package spi

import (
	"context"
	"fmt"
	"sync"

	"github.com/nistring/VitalRecoder-ANI/internal/vital"
	apperrors "github.com/nistring/VitalRecoder-ANI/pkg/errors"
)

// Filter consumes a recording's cleaned PLETH track and attaches a 1 Hz
// "SPI" track to the recording.
type Filter interface {
	Name() string
	Run(ctx context.Context, rec *vital.Recording, sampleRate float64) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Filter{}
)

// Register makes a filter available under its name. Built-in filters
// register from init; vendor builds may register their own.
func Register(f Filter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[f.Name()] = f
}

// Lookup resolves a filter by name. Resolution happens once at startup; an
// unknown name is a configuration error.
func Lookup(name string) (Filter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: spi filter %q", apperrors.ErrFilterUnavailable, name)
	}
	return f, nil
}
