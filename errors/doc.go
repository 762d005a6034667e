// Package errors provides structured error types for the frame host.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a detail message, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
//		Value(ptr).
//		Detail("view [%d, %d) outside memory", ptr, ptr+n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidHandle(errors.PhaseRegistry, 7)
//	err := errors.BufferOverflow(errors.PhaseResource, 32, 16)
//
// The package-level sentinels (ErrInvalidHandle, ErrBufferOverflow, ...) match
// errors of their kind from any phase:
//
//	if errors.Is(err, hosterrors.ErrInvalidHandle) { ... }
package errors
