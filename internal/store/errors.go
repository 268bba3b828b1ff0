package store

import "fmt"

// ReferenceIntegrityError reports a record that violates the reference
// graph's constraints: a duplicate explicit id, a duplicate case-insensitive
// name, or a foreign key to a parent that does not exist. It identifies the
// offending record so the caller can point at the bad source line.
type ReferenceIntegrityError struct {
	Table  string
	Record string
	Reason string
}

// Error implements the error interface.
func (e *ReferenceIntegrityError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Table, e.Record, e.Reason)
}

// ProvisionError is returned when the physical store cannot be created or
// written. It is fatal to the synchronization run; no schema version is
// committed.
type ProvisionError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision store %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisionError) Unwrap() error {
	return e.Err
}
