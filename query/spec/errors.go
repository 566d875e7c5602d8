package spec

import (
	"fmt"
	"strings"
)

// InvalidMappingSpecError reports a mapping spec that failed validation.
// It carries the specific sub-reason, surfaced at build time so that
// materialization only ever fails on data-shape mismatches.
type InvalidMappingSpecError struct {
	Reason string
	Err    error
}

func (e *InvalidMappingSpecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid mapping spec: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid mapping spec: %s", e.Reason)
}

func (e *InvalidMappingSpecError) Unwrap() error { return e.Err }

// IncompleteInheritanceMappingError reports an entity return whose explicit
// property mapping does not cover the base type and all its subtypes.
type IncompleteInheritanceMappingError struct {
	Entity  string
	Missing []string
}

func (e *IncompleteInheritanceMappingError) Error() string {
	return fmt.Sprintf("entity %s participates in an inheritance hierarchy; mapping must include all properties for the base class and its subclasses (missing: %s)",
		e.Entity, strings.Join(e.Missing, ", "))
}
