package cfihos

import (
	"errors"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

// Sentinel errors for the failure classes of a run. Use the Is*Err helpers
// to tell them apart.
var (
	// ErrConfiguration is returned when a required setting is missing or
	// invalid, or a scope name or seed does not resolve. The run aborts
	// before any processing.
	ErrConfiguration = errors.New("cfihos: invalid configuration")

	// ErrConsistency matches the aggregated *taxonomy.ConsistencyError
	// returned when merged sources conflict.
	ErrConsistency = taxonomy.ErrConsistency

	// ErrInvalidTransition is returned when run stages are called out of
	// order.
	ErrInvalidTransition = errors.New("cfihos: invalid stage transition")

	// ErrUnknownStrategy is returned when a registry has no constructor for
	// a strategy name.
	ErrUnknownStrategy = errors.New("cfihos: unknown strategy")
)

// IsConfigurationErr returns true if err is or wraps ErrConfiguration.
func IsConfigurationErr(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsConsistencyErr returns true if err is or wraps ErrConsistency.
func IsConsistencyErr(err error) bool {
	return errors.Is(err, ErrConsistency)
}

// IsInvalidTransitionErr returns true if err is or wraps ErrInvalidTransition.
func IsInvalidTransitionErr(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsUnknownStrategyErr returns true if err is or wraps ErrUnknownStrategy.
func IsUnknownStrategyErr(err error) bool {
	return errors.Is(err, ErrUnknownStrategy)
}
