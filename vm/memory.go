package vm

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Address-as-offset-from-image-base convention (see spec §9): bytecode
// never sees a real host pointer. Every value a running program treats as
// an address is a uint64 offset into one flat space rooted at byte 0 of
// the code image. heapBase and handleBase sit far above any realistic
// image so the three regions never collide.
const (
	heapBase   uint64 = 1 << 40
	handleBase uint64 = 1 << 48
)

// addressSpace is the memory model backing all MoveMemoryRegisterW,
// MoveRegisterMemoryW, PushMemoryW, PopMemoryW instructions and the
// MemoryAllocate/MemoryFree/FOpen family of syscalls. It replaces the
// original's raw pointer arithmetic against the host heap with three
// bounds-checked regions addressed by plain offset, preserving the
// "single flat address space rooted at the code image" contract without
// unsafe pointer math.
type addressSpace struct {
	image []byte // [0, len(image)) — the mutable, self-modifiable code image

	heapMu sync.Mutex
	heap   []byte // [heapBase, heapBase+len(heap)) — bump-allocated arena
	free   []freeRun

	handleMu sync.Mutex
	handles  []*os.File // index i lives at handleBase+i; nil means free
}

type freeRun struct {
	offset uint64
	size   uint64
}

func newAddressSpace(image []byte) *addressSpace {
	return &addressSpace{image: image}
}

// region classifies an address into the image, heap, or handle table, or
// reports that it falls in none of them.
func (a *addressSpace) region(addr uint64) (kind string, local uint64) {
	switch {
	case addr < uint64(len(a.image)):
		return "image", addr
	case addr >= heapBase && addr < handleBase:
		local = addr - heapBase
		a.heapMu.Lock()
		inBounds := local < uint64(len(a.heap))
		a.heapMu.Unlock()
		if inBounds {
			return "heap", local
		}
	case addr >= handleBase:
		return "handle", addr - handleBase
	}
	return "", 0
}

// Load reads width bytes at addr, little-endian, zero-extended into a
// uint64. Reads may cross machine-word boundaries at any byte offset.
func (a *addressSpace) Load(addr uint64, width Width) (uint64, error) {
	buf := make([]byte, width)
	if err := a.LoadBytes(addr, buf); err != nil {
		return 0, err
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

// Store writes the low width bytes of v to addr, little-endian.
func (a *addressSpace) Store(addr uint64, width Width, v uint64) error {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = byte(v)
		v >>= 8
	}
	return a.StoreBytes(addr, buf)
}

// LoadBytes fills dst from the address space starting at addr.
func (a *addressSpace) LoadBytes(addr uint64, dst []byte) error {
	kind, local := a.region(addr)
	switch kind {
	case "image":
		if local+uint64(len(dst)) > uint64(len(a.image)) {
			return errors.Wrapf(ErrOutOfRange, "read %d bytes from image offset %d", len(dst), addr)
		}
		copy(dst, a.image[local:])
		return nil
	case "heap":
		a.heapMu.Lock()
		defer a.heapMu.Unlock()
		if local+uint64(len(dst)) > uint64(len(a.heap)) {
			return errors.Wrapf(ErrOutOfRange, "read %d bytes from heap offset %d", len(dst), local)
		}
		copy(dst, a.heap[local:])
		return nil
	default:
		return errors.Wrapf(ErrOutOfRange, "address %#x", addr)
	}
}

// StoreBytes writes src into the address space starting at addr.
func (a *addressSpace) StoreBytes(addr uint64, src []byte) error {
	kind, local := a.region(addr)
	switch kind {
	case "image":
		if local+uint64(len(src)) > uint64(len(a.image)) {
			return errors.Wrapf(ErrOutOfRange, "write %d bytes to image offset %d", len(src), addr)
		}
		copy(a.image[local:], src)
		return nil
	case "heap":
		a.heapMu.Lock()
		defer a.heapMu.Unlock()
		if local+uint64(len(src)) > uint64(len(a.heap)) {
			return errors.Wrapf(ErrOutOfRange, "write %d bytes to heap offset %d", len(src), local)
		}
		copy(a.heap[local:], src)
		return nil
	default:
		return errors.Wrapf(ErrOutOfRange, "address %#x", addr)
	}
}

// CString reads a NUL-terminated byte string starting at addr.
func (a *addressSpace) CString(addr uint64) (string, error) {
	var out []byte
	for i := uint64(0); ; i++ {
		var b [1]byte
		if err := a.LoadBytes(addr+i, b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		out = append(out, b[0])
	}
	return string(out), nil
}

// Allocate grows the heap arena by size bytes (reusing a freed run first
// when one fits) and returns the address of the new region.
func (a *addressSpace) Allocate(size uint64) uint64 {
	a.heapMu.Lock()
	defer a.heapMu.Unlock()

	for i, run := range a.free {
		if run.size >= size {
			a.free[i].offset += size
			a.free[i].size -= size
			if a.free[i].size == 0 {
				a.free = append(a.free[:i], a.free[i+1:]...)
			}
			return heapBase + run.offset
		}
	}
	offset := uint64(len(a.heap))
	a.heap = append(a.heap, make([]byte, size)...)
	return heapBase + offset
}

// Free returns a previously allocated region to the free list. The
// original never frees safely either (see spec §5); this is a best-effort
// bookkeeping free list, not a real deallocator — it never shrinks heap.
func (a *addressSpace) Free(addr uint64, size uint64) error {
	kind, local := a.region(addr)
	if kind != "heap" {
		return errors.Wrapf(ErrOutOfRange, "free of non-heap address %#x", addr)
	}
	a.heapMu.Lock()
	defer a.heapMu.Unlock()
	a.free = append(a.free, freeRun{offset: local, size: size})
	return nil
}

// OpenFile opens name with mode (a subset of the fopen mode strings: r, w,
// a, r+, w+, a+, with an optional "b") and returns its handle address.
func (a *addressSpace) OpenFile(name, mode string) (uint64, error) {
	flag, err := fopenFlag(mode)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return 0, errors.Wrapf(err, "open %q", name)
	}

	a.handleMu.Lock()
	defer a.handleMu.Unlock()
	for i, h := range a.handles {
		if h == nil {
			a.handles[i] = f
			return handleBase + uint64(i), nil
		}
	}
	a.handles = append(a.handles, f)
	return handleBase + uint64(len(a.handles)-1), nil
}

func fopenFlag(mode string) (int, error) {
	switch mode {
	case "r", "rb":
		return os.O_RDONLY, nil
	case "w", "wb":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case "a", "ab":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case "r+", "r+b", "rb+":
		return os.O_RDWR, nil
	case "w+", "w+b", "wb+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
	case "a+", "a+b", "ab+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, nil
	default:
		return 0, errors.Errorf("unsupported file mode %q", mode)
	}
}

// Handle resolves a handle address to the open file it names.
func (a *addressSpace) Handle(addr uint64) (*os.File, error) {
	kind, local := a.region(addr)
	if kind != "handle" {
		return nil, errors.Wrapf(ErrBadHandle, "address %#x", addr)
	}
	a.handleMu.Lock()
	defer a.handleMu.Unlock()
	if local >= uint64(len(a.handles)) || a.handles[local] == nil {
		return nil, errors.Wrapf(ErrBadHandle, "address %#x", addr)
	}
	return a.handles[local], nil
}

// CloseFile closes the handle at addr and frees its slot for reuse.
func (a *addressSpace) CloseFile(addr uint64) error {
	kind, local := a.region(addr)
	if kind != "handle" {
		return errors.Wrapf(ErrBadHandle, "address %#x", addr)
	}
	a.handleMu.Lock()
	defer a.handleMu.Unlock()
	if local >= uint64(len(a.handles)) || a.handles[local] == nil {
		return errors.Wrapf(ErrBadHandle, "address %#x", addr)
	}
	err := a.handles[local].Close()
	a.handles[local] = nil
	return err
}
