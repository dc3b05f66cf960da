// Package kerr defines the kernel's error value. It is split out from the
// main kernel package so that the lower-level mm/vmm and mm/pmm packages can
// return it without creating an import cycle back into kernel.
package kerr

// Code classifies an Error so a syscall can always translate a failure into
// the single negative return-register convention the ABI requires.
type Code int

const (
	// Generic covers failures with no more specific code.
	Generic Code = iota
	// NoMemory is returned when the frame allocator is exhausted.
	NoMemory
	// InvalidArgument covers malformed syscall arguments.
	InvalidArgument
	// Precondition covers state-precondition failures (e.g. wait with no
	// children, write to a full pipe).
	Precondition
	// Fatal covers faults that terminate the offending process.
	Fatal
)

// Error is the kernel's trivial, allocation-light error value: a module tag,
// a human-readable message, and a classification code. It deliberately does
// not implement wrapping/unwrapping machinery; Code exists only because
// every syscall must collapse its failure into one of a few ABI-visible
// buckets.
type Error struct {
	Module  string
	Message string
	Code    Code
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}

// New constructs an Error in one call, the way call sites in this codebase
// construct *kernel.Error literals inline.
func New(module, message string, code Code) *Error {
	return &Error{Module: module, Message: message, Code: code}
}
