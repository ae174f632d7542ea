package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheCorrupt marks a fix cache file that exists but cannot be decoded.
	ErrCacheCorrupt = errors.New("fix cache corrupt")
	// ErrPolicyBlock marks a fragment refused by the danger filter.
	ErrPolicyBlock = errors.New("blocked by danger filter")
	// ErrNoModel is returned when no model definition can be selected.
	ErrNoModel = errors.New("no model configured")
)

// OracleError wraps a failed round trip to the repair oracle.
type OracleError struct {
	Provider string
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Provider, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}
