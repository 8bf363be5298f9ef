package vm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// prog is a tiny hand-assembled byte-image builder used by these tests,
// standing in for the asm package's output so the VM can be exercised in
// isolation of the assembler.
type prog struct {
	buf bytes.Buffer
}

func (p *prog) op(op Opcode) *prog {
	binary.Write(&p.buf, binary.LittleEndian, uint16(op))
	return p
}

func (p *prog) u8(v uint8) *prog {
	p.buf.WriteByte(v)
	return p
}

func (p *prog) u64(v uint64) *prog {
	binary.Write(&p.buf, binary.LittleEndian, v)
	return p
}

func (p *prog) bytes() []byte { return p.buf.Bytes() }

func nibbles(hi, lo uint8) uint8 { return hi<<4 | lo }

func TestCountToTen(t *testing.T) {
	// LoadRegisterByte r5, 0
	// loop:
	// IncrementRegister r5
	// CompareRegisterLiteralByte r5, 10
	// JumpIfLessThan loop
	// Halt
	p := &prog{}
	p.op(LoadRegisterByte).u8(5).u8(0)
	loop := p.buf.Len()
	p.op(IncrementRegister).u8(5)
	p.op(CompareRegisterLiteralByte).u8(5).u8(10)
	p.op(JumpIfLessThan).u64(uint64(loop))
	p.op(Halt)

	m, err := New(p.bytes())
	if err != nil {
		t.Fatal(err)
	}
	th := newThread(m, "main", 0)
	if err := th.run(); err != nil {
		t.Fatal(err)
	}
	if got := th.Registers[5]; got != 10 {
		t.Fatalf("r5 = %d, want 10", got)
	}
}

func TestPushPopRegisterPreservesWidth(t *testing.T) {
	for _, w := range widths {
		t.Run(w.String(), func(t *testing.T) {
			m, err := New(make([]byte, 64))
			if err != nil {
				t.Fatal(err)
			}
			th := newThread(m, "t", 0)
			th.Registers[3] = 0xffffffffffffffff
			th.Registers.storeWidth(3, w, 0x11)
			before := th.Registers[3]
			th.pushStack(th.Registers.loadWidth(3, w), w)
			th.Registers[3] = 0
			th.Registers.storeWidth(3, w, th.popStack(w))
			// The register was zeroed before the pop, so only its low w
			// bytes come back; the upper bytes stay zero.
			want := maskWidth(before, w)
			if th.Registers[3] != want {
				t.Fatalf("round trip width %d: got %#x want %#x", w, th.Registers[3], want)
			}
		})
	}
}

func (w Width) String() string {
	switch w {
	case Byte:
		return "Byte"
	case Short:
		return "Short"
	case Int:
		return "Int"
	case Long:
		return "Long"
	default:
		return "?"
	}
}

func TestWidthWriteLeavesUpperBytesUnchanged(t *testing.T) {
	var r Registers
	r[0] = 0xAABBCCDDEEFF0011
	r.storeWidth(0, Byte, 0x99)
	if r[0] != 0xAABBCCDDEEFF0099 {
		t.Fatalf("byte write touched upper bytes: %#x", r[0])
	}
	r[0] = 0xAABBCCDDEEFF0011
	r.storeWidth(0, Short, 0x9988)
	if r[0] != 0xAABBCCDDEEFF9988 {
		t.Fatalf("short write touched upper bytes: %#x", r[0])
	}
}

func TestByteStackSentinelFill(t *testing.T) {
	var s byteStack
	var sp uint64
	s.pushByte(&sp, 7)
	if s.bytes[0] != 7 {
		t.Fatalf("pushed byte not stored")
	}
	sp = 3
	s.pushByte(&sp, 9)
	if s.bytes[1] != stackFill || s.bytes[2] != stackFill {
		t.Fatalf("gap bytes not sentinel-filled: %v", s.bytes)
	}
}

func TestMemoryAllocateReturnsDistinctRegions(t *testing.T) {
	m, err := New(make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	a := m.addr.Allocate(8)
	b := m.addr.Allocate(8)
	if a == b {
		t.Fatalf("overlapping allocations: %#x == %#x", a, b)
	}
	if err := m.addr.Store(a, Long, 0x1122334455667788); err != nil {
		t.Fatal(err)
	}
	got, err := m.addr.Load(a, Long)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x1122334455667788 {
		t.Fatalf("heap round trip: got %#x", got)
	}
}
