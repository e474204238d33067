package metadata

import (
	"errors"
	"fmt"

	"github.com/tinyrange/aot/internal/ids"
)

var ErrInsufficientGas = errors.New("insufficient gas")

// GasMetadata is the static resource-cost data of a compiled program.
type GasMetadata struct {
	// Metered is false when no function withdraws gas; such programs never
	// need an initial budget.
	Metered bool
	// InitialGas is the budget granted to a function when the caller does not
	// supply one, keyed by function id.
	InitialGas map[uint64]uint64
	// StaticCost is the sum of the gas withdrawals lowered into each function,
	// keyed by function id.
	StaticCost map[uint64]uint64
}

// InitialAvailableGas derives the budget for a call to id. An explicit budget
// always takes precedence. Without one, unmetered programs start at zero and
// metered programs must have a metadata entry.
func (m GasMetadata) InitialAvailableGas(id ids.FunctionId, explicit *uint64) (uint64, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if !m.Metered {
		return 0, nil
	}
	gas, ok := m.InitialGas[id.Id]
	if !ok {
		return 0, fmt.Errorf("%w: no initial gas for %s", ErrInsufficientGas, id)
	}
	return gas, nil
}

// Cost returns the static cost recorded for id.
func (m GasMetadata) Cost(id ids.FunctionId) (uint64, bool) {
	c, ok := m.StaticCost[id.Id]
	return c, ok
}
