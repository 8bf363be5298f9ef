package vm

import "github.com/pkg/errors"

// Error kinds raised by the dispatcher and its supporting primitives. The
// assembler has its own taxonomy (see package asm); these cover only
// failures that originate once bytecode is actually running.
var (
	// ErrOutOfInstructions is raised when fewer than two bytes (one full
	// opcode) remain between the program counter and the end of the image
	// before a Halt executes.
	ErrOutOfInstructions = errors.New("program counter ran past the end of the instruction image")
	// ErrInvalidOpcode is raised when a fetched opcode tag is not smaller
	// than the dispatch table's entry count.
	ErrInvalidOpcode = errors.New("opcode tag exceeds the known instruction count")
	// ErrInvalidSyscall is raised when a SysCall's id operand is not
	// smaller than the syscall table's entry count.
	ErrInvalidSyscall = errors.New("syscall id exceeds the known syscall count")
	// ErrOutOfRange is raised by the flat address space when an access
	// would read or write outside every known region.
	ErrOutOfRange = errors.New("address is outside the image, heap, and handle regions")
	// ErrBadHandle is raised when a file syscall is given an offset that
	// does not name a currently open handle.
	ErrBadHandle = errors.New("address does not name an open file handle")
)

// RuntimeError wraps a dispatch-time failure with the thread state at the
// moment it occurred, mirroring the recovered-panic diagnostics a thread
// reports when it can no longer continue.
type RuntimeError struct {
	Cause        error
	ThreadName   string
	PC           uint64
	StackPointer uint64

	// Thread is the faulting thread itself, kept alive past the panic so
	// callers can inspect or dump its full register/stack state.
	Thread *Thread
}

func (e *RuntimeError) Error() string {
	return errors.Wrapf(e.Cause, "thread %q @ pc=%d, sp=%d", e.ThreadName, e.PC, e.StackPointer).Error()
}

func (e *RuntimeError) Unwrap() error { return e.Cause }
