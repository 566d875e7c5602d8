package materializer

import "fmt"

// TypeCoercionError reports a raw column value that could not be converted
// to its declared scalar type. It aborts the whole materialization pass.
type TypeCoercionError struct {
	Column       string
	ExpectedType string
	ActualValue  any
	Err          error
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("cannot coerce column %q value %v (%T) to %s", e.Column, e.ActualValue, e.ActualValue, e.ExpectedType)
}

func (e *TypeCoercionError) Unwrap() error { return e.Err }

// UnknownDiscriminatorError reports a discriminator value with no mapped
// subtype. The row never falls back to the base type.
type UnknownDiscriminatorError struct {
	Entity string
	Value  string
}

func (e *UnknownDiscriminatorError) Error() string {
	return fmt.Sprintf("discriminator value %q is not mapped to a subtype of entity %s", e.Value, e.Entity)
}

// FragmentedCollectionError reports collection-fetch rows that were not
// delivered grouped by owner key. The backend must order rows so that all
// rows of one owner arrive adjacently.
type FragmentedCollectionError struct {
	OwnerKey string
}

func (e *FragmentedCollectionError) Error() string {
	return fmt.Sprintf("collection rows for owner %s arrived after the owner's group was emitted; deliver rows grouped by owner key", e.OwnerKey)
}

// CancelledError reports a materialization pass aborted by context
// cancellation. Partially built identity-map state is discarded.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("materialization cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
