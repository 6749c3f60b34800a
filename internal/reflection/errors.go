package reflection

import (
	"errors"
	"fmt"
)

var (
	// ErrIO indicates the source of a declaration could not be read.
	ErrIO = errors.New("header read failed")

	// ErrConsistency indicates the parsed declaration name does not match
	// the name the reflector was created for.
	ErrConsistency = errors.New("declaration name mismatch")

	// ErrOracle indicates the ancestor lookup failed for a named ancestor.
	ErrOracle = errors.New("ancestor lookup failed")

	// ErrUnknownClass is returned by an AncestorLookup that has no
	// knowledge of the requested class. It is cached as an empty set.
	ErrUnknownClass = errors.New("unknown class")
)

// IOError wraps a failure to open or read a declaration's source.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// ConsistencyError reports that a file declares a different name than
// expected, which usually means a stale or mismatched index.
type ConsistencyError struct {
	Expected string
	Actual   string
	Path     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s declares %q, expected %q", e.Path, e.Actual, e.Expected)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistency
}

// OracleError wraps an AncestorLookup failure for a single ancestor.
type OracleError struct {
	Name string
	Err  error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("ancestors of %s: %v", e.Name, e.Err)
}

func (e *OracleError) Unwrap() []error {
	return []error{ErrOracle, e.Err}
}
