package vm

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/LuisNordlSlav/arsenalVM/internal/iox"
)

// Machine owns the shared, self-modifiable code image and the two
// dispatch tables built once at construction time. All Thread values
// spawned from a Machine share these; only a Thread's own registers,
// flags, and stack are private to it.
type Machine struct {
	addr     *addressSpace
	rules    [OpcodeCount]func(*Thread)
	syscalls [SysCallCount]func(*Thread)

	stdout *iox.ErrWriter

	mu      sync.Mutex
	workers []*Thread
	wg      sync.WaitGroup
	errs    []error
}

// Option configures a Machine at construction time, following the same
// functional-options shape used throughout this module's VM configuration
// surface.
type Option func(*Machine) error

// Stdout overrides the writer PrintRegister/PrintRegisterSigned/
// PrintCString write to. Defaults to os.Stdout. Writes are tracked through
// an iox.ErrWriter, so a broken destination surfaces as a RuntimeError on
// the next print syscall instead of being silently dropped.
func Stdout(w io.Writer) Option {
	return func(m *Machine) error {
		m.stdout = iox.NewErrWriter(w)
		return nil
	}
}

// New takes ownership of image (the assembler's output) and returns a
// Machine ready to Run or Spawn threads against it.
func New(image []byte, opts ...Option) (*Machine, error) {
	m := &Machine{
		addr:   newAddressSpace(image),
		stdout: iox.NewErrWriter(os.Stdout),
	}
	buildRules(m)
	buildSyscalls(m)
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.Wrap(err, "configure machine")
		}
	}
	return m, nil
}

// Run creates the main thread at program counter 0 and blocks until it
// halts or faults.
func (m *Machine) Run() error {
	t := newThread(m, "main", 0)
	return t.run()
}

// Spawn creates a worker thread starting at start and tracks it for Wait.
// It does not block; the caller observes completion via Wait.
func (m *Machine) Spawn(start uint64) {
	t := newThread(m, "worker", start)
	m.mu.Lock()
	m.workers = append(m.workers, t)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := t.run(); err != nil {
			m.mu.Lock()
			m.errs = append(m.errs, err)
			m.mu.Unlock()
		}
	}()
}

// Wait blocks until every spawned worker thread has halted, best-effort:
// the source contract does not require the VM to join workers on
// shutdown, but it must be possible for a caller that wants to.
func (m *Machine) Wait() []error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errs...)
}

// Image returns a read-only view of the current code image bytes, useful
// for disassembly or dumping a running program's self-modifications.
func (m *Machine) Image() []byte {
	return append([]byte(nil), m.addr.image...)
}
