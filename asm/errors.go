package asm

import "github.com/pkg/errors"

// Error kinds raised by the tokenizer and assembler core. These surface as
// fatal, non-recoverable termination of assembly with a descriptive
// message (spec §7); there is no retry or partial-result path.
var (
	ErrInvalidEncoding  = errors.New("source is not valid UTF-8")
	ErrUnexpectedToken  = errors.New("token violates the grammar at this position")
	ErrUnknownInstr     = errors.New("identifier is neither a known opcode nor a syscall")
	ErrUnknownSyscall   = errors.New("syscall name is not recognised")
	ErrUndefinedLabel   = errors.New("reference to a label that was never declared")
	ErrUndefinedSize    = errors.New("reference to a size that was never declared")
	ErrCaptureOverflow  = errors.New("fixed-width capture body exceeds its declared size")
	ErrSliceOutOfRange  = errors.New("slice bounds must satisfy 0 <= a <= b <= 7")
	ErrUnexpectedChar   = errors.New("unmatched character in source")
)

// PositionError wraps an assembly failure with the byte offset of the
// token or character that triggered it.
type PositionError struct {
	Cause  error
	Offset int
}

func (e *PositionError) Error() string {
	return errors.Wrapf(e.Cause, "at offset %d", e.Offset).Error()
}

func (e *PositionError) Unwrap() error { return e.Cause }

func posErr(cause error, offset int) error {
	return &PositionError{Cause: cause, Offset: offset}
}

func wrap(kind error, msg string) error {
	return errors.Wrap(kind, msg)
}

func wrapName(kind error, name string) error {
	return errors.Wrapf(kind, "%q", name)
}
