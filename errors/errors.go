package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the host the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // image fetch and instantiation
	PhaseRegistry  Phase = "registry"  // handle lookup
	PhaseMemory    Phase = "memory"    // guest memory views
	PhaseSchedule  Phase = "schedule"  // frame loop and ticks
	PhaseResource  Phase = "resource"  // guest resource reads
	PhaseHost      Phase = "host"      // host import surface
	PhaseTransport Phase = "transport" // file and network fetches
	PhaseConfig    Phase = "config"    // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindLoad            Kind = "load_error"
	KindInvalidHandle   Kind = "invalid_handle"
	KindInvalidLength   Kind = "invalid_length"
	KindInvalidEncoding Kind = "invalid_encoding"
	KindBufferOverflow  Kind = "buffer_overflow"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindUpdateTrap      Kind = "update_trap"
	KindFetch           Kind = "fetch_failed"
	KindSignature       Kind = "signature_mismatch"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindRegistration    Kind = "registration"
	KindReentrant       Kind = "reentrant"
	KindClosed          Kind = "closed"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrLoad            = &Error{Kind: KindLoad}
	ErrInvalidHandle   = &Error{Kind: KindInvalidHandle}
	ErrInvalidLength   = &Error{Kind: KindInvalidLength}
	ErrInvalidEncoding = &Error{Kind: KindInvalidEncoding}
	ErrBufferOverflow  = &Error{Kind: KindBufferOverflow}
	ErrOutOfBounds     = &Error{Kind: KindOutOfBounds}
	ErrUpdateTrap      = &Error{Kind: KindUpdateTrap}
	ErrFetch           = &Error{Kind: KindFetch}
)

// Error is the structured error type used throughout the host
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Kinds must be equal; phases are compared only when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoad,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidHandle creates an error for a handle that was never issued or was removed
func InvalidHandle(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %d is not registered", handle),
		Value:  handle,
	}
}

// InvalidLength creates an error for a byte length that is not a multiple of the element width
func InvalidLength(phase Phase, length, width uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidLength,
		Detail: fmt.Sprintf("length %d is not a multiple of %d", length, width),
		Value:  length,
	}
}

// InvalidEncoding creates an invalid UTF-8 error
func InvalidEncoding(phase Phase, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEncoding,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// BufferOverflow creates an error for data that does not fit its destination
func BufferOverflow(phase Phase, size, capacity uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBufferOverflow,
		Detail: fmt.Sprintf("%d bytes do not fit in %d byte destination", size, capacity),
		Value:  size,
	}
}

// OutOfBounds creates an error for a guest memory range outside the current memory
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) outside memory of %d bytes", offset, uint64(offset)+uint64(length), size),
		Value:  offset,
	}
}

// UpdateTrap wraps a failure raised by a guest's update export
func UpdateTrap(handle uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseSchedule,
		Kind:   KindUpdateTrap,
		Detail: fmt.Sprintf("update of handle %d failed", handle),
		Value:  handle,
		Cause:  cause,
	}
}

// Fetch wraps a transport failure
func Fetch(location string, cause error) *Error {
	return &Error{
		Phase:  PhaseTransport,
		Kind:   KindFetch,
		Detail: fmt.Sprintf("fetch %q", location),
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host import registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MismatchedExport describes one guest export whose signature differs from the ABI
type MismatchedExport struct {
	Name string
	Want string
	Got  string // empty when the export is missing
}

// SignatureError is returned when a guest does not export what the host expects
type SignatureError struct {
	Exports []MismatchedExport
}

func (e *SignatureError) Error() string {
	if len(e.Exports) == 0 {
		return "[load] signature_mismatch: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("guest exports do not match the host ABI (%d):", len(e.Exports)))
	for _, ex := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(ex.Name)
		if ex.Got == "" {
			b.WriteString(": missing, want ")
			b.WriteString(ex.Want)
			continue
		}
		b.WriteString(": got ")
		b.WriteString(ex.Got)
		b.WriteString(", want ")
		b.WriteString(ex.Want)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *SignatureError) Is(target error) bool {
	switch t := target.(type) {
	case *SignatureError:
		return true
	case *Error:
		return t.Kind == KindSignature && (t.Phase == "" || t.Phase == PhaseLoad)
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
