package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Thread is a single strand of execution: its own register file, ALU
// flags, and byte stack, dispatching against the Machine's shared code
// image and handler tables. One goroutine backs one Thread for the
// lifetime of Run/Spawn (see machine.go).
type Thread struct {
	Name    string
	machine *Machine

	Registers Registers
	Flags     Flags
	stack     byteStack
	running   bool
}

func newThread(m *Machine, name string, start uint64) *Thread {
	t := &Thread{Name: name, machine: m, running: true}
	t.Registers[ProgramCounterRegister] = start
	return t
}

// pc returns the current program counter.
func (t *Thread) pc() uint64 { return t.Registers[ProgramCounterRegister] }

func (t *Thread) setPC(addr uint64) { t.Registers[ProgramCounterRegister] = addr }

// next reads width bytes at the current program counter (unaligned
// permitted) and advances the counter by width, the fetch-and-advance
// primitive every handler uses to consume its immediates.
func (t *Thread) next(width Width) uint64 {
	v, err := t.machine.addr.Load(t.pc(), width)
	if err != nil {
		panic(errors.Wrap(err, "fetch immediate"))
	}
	t.setPC(t.pc() + uint64(width))
	return v
}

func (t *Thread) nextByte() uint8    { return uint8(t.next(Byte)) }
func (t *Thread) nextAddress() uint64 { return t.next(Long) }

// sp returns the current stack pointer register value.
func (t *Thread) sp() *uint64 { return &t.Registers[StackPointerRegister] }

func (t *Thread) pushStack(v uint64, width Width) { t.stack.push(t.sp(), v, width) }
func (t *Thread) popStack(width Width) uint64     { return t.stack.pop(t.sp(), width) }

// run executes the fetch-decode-dispatch loop until the thread halts or a
// handler faults. Faults are recovered at this boundary and reported as a
// RuntimeError carrying the thread's name, PC, and stack pointer — the
// only place a panic from a handler is allowed to surface.
func (t *Thread) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			err = &RuntimeError{Cause: cause, ThreadName: t.Name, PC: t.pc(), StackPointer: t.Registers[StackPointerRegister], Thread: t}
		}
	}()

	for t.running {
		if t.pc()+uint64(Short) > uint64(len(t.machine.addr.image)) {
			return errors.Wrapf(ErrOutOfInstructions, "thread %q", t.Name)
		}
		op := Opcode(t.next(Short))
		if !op.Valid() {
			return errors.Wrapf(ErrInvalidOpcode, "thread %q, opcode %d", t.Name, op)
		}
		t.machine.rules[op](t)
	}
	return nil
}
