package vm

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// widths enumerates the four operand widths in Byte/Short/Int/Long order,
// the same order every width-polymorphic opcode family is declared in.
var widths = [4]Width{Byte, Short, Int, Long}

// forWidths installs fn under base+0..base+3 for Byte/Short/Int/Long,
// letting each instruction family register its four variants in one call
// instead of four near-identical ones.
func forWidths(rules *[OpcodeCount]func(*Thread), base Opcode, fn func(w Width) func(*Thread)) {
	for i, w := range widths {
		rules[base+Opcode(i)] = fn(w)
	}
}

// buildRules constructs the per-opcode handler table described in spec
// §4.3: every arithmetic/move/compare/push/pop/memory family in all four
// widths, plus the single-width control and bookkeeping instructions.
func buildRules(m *Machine) {
	rules := &m.rules

	rules[Halt] = func(t *Thread) { t.running = false }
	rules[NoOperation] = func(t *Thread) {}
	rules[SysCall] = func(t *Thread) {
		id := SysCall(t.nextByte())
		if !id.Valid() {
			panic(errors.Wrapf(ErrInvalidSyscall, "id %d", id))
		}
		m.syscalls[id](t)
	}

	forWidths(rules, LoadRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte()
			val := t.next(w)
			// Full-register, zero-extending overwrite: unlike every other
			// width family here, Load does not preserve the upper bytes.
			t.Registers[reg] = val
		}
	})

	forWidths(rules, AddRegistersByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			a := t.Registers.loadWidth(lo, w)
			b := t.Registers.loadWidth(hi, w)
			t.Registers.storeWidth(lo, w, wrapAdd(a, b, w))
		}
	})
	forWidths(rules, SubtractRegistersByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			a := t.Registers.loadWidth(lo, w)
			b := t.Registers.loadWidth(hi, w)
			t.Registers.storeWidth(lo, w, wrapSub(a, b, w))
		}
	})

	forWidths(rules, AddRegisterImmediateByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			data := t.next(w)
			cur := t.Registers.loadWidth(reg, w)
			t.Registers.storeWidth(reg, w, wrapAdd(cur, data, w))
		}
	})
	forWidths(rules, SubtractRegisterImmediateByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			data := t.next(w)
			cur := t.Registers.loadWidth(reg, w)
			t.Registers.storeWidth(reg, w, wrapSub(cur, data, w))
		}
	})

	rules[DecrementRegister] = func(t *Thread) {
		reg := t.nextByte() & 0x0f
		t.Registers[reg]--
	}
	rules[IncrementRegister] = func(t *Thread) {
		reg := t.nextByte() & 0x0f
		t.Registers[reg]++
	}

	forWidths(rules, CompareRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			r1 := t.Registers.loadWidth(hi, w)
			r2 := t.Registers.loadWidth(lo, w)
			t.Flags = compareFlags(r1 == 0, r1 > r2, r1 < r2, r1 == r2)
		}
	})
	forWidths(rules, CompareRegisterLiteralByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			data := t.next(w)
			r := t.Registers.loadWidth(reg, w)
			t.Flags = compareFlags(r == 0, r > data, r < data, r == data)
		}
	})

	rules[JumpIfEqualTo] = jumpIf(FlagEqual)
	rules[JumpIfGreaterThan] = jumpIf(FlagGreater)
	rules[JumpIfLessThan] = jumpIf(FlagLesser)
	rules[JumpIfZero] = jumpIf(FlagZero)
	rules[JumpTo] = func(t *Thread) { t.setPC(t.nextAddress()) }

	forWidths(rules, MoveRegistersByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			t.Registers.storeWidth(lo, w, t.Registers.loadWidth(hi, w))
		}
	})

	forWidths(rules, PushRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			t.pushStack(t.Registers.loadWidth(reg, w), w)
		}
	})
	forWidths(rules, PopRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			t.Registers.storeWidth(reg, w, t.popStack(w))
		}
	})

	forWidths(rules, MoveMemoryRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			addr := t.nextAddress()
			reg := t.nextByte() & 0x0f
			val, err := t.machine.addr.Load(addr, w)
			if err != nil {
				panic(err)
			}
			t.Registers.storeWidth(reg, w, val)
		}
	})
	forWidths(rules, MoveRegisterMemoryByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			addr := t.nextAddress()
			if err := t.machine.addr.Store(addr, w, t.Registers.loadWidth(reg, w)); err != nil {
				panic(err)
			}
		}
	})

	forWidths(rules, PushMemoryByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			addr := t.nextAddress()
			raw, err := t.machine.addr.Load(addr, Long)
			if err != nil {
				panic(err)
			}
			t.pushStack(maskWidth(raw, w), w)
		}
	})
	forWidths(rules, PopMemoryByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			addr := t.nextAddress()
			val := t.popStack(w)
			if err := t.machine.addr.Store(addr, w, val); err != nil {
				panic(err)
			}
		}
	})

	forWidths(rules, BitwiseAndRegistersByte, bitwiseRegisters(func(a, b uint64) uint64 { return a & b }))
	forWidths(rules, BitwiseOrRegistersByte, bitwiseRegisters(func(a, b uint64) uint64 { return a | b }))
	forWidths(rules, BitwiseXOrRegistersByte, bitwiseRegisters(func(a, b uint64) uint64 { return a ^ b }))

	forWidths(rules, BitwiseNotRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			t.Registers.storeWidth(reg, w, maskWidth(^t.Registers.loadWidth(reg, w), w))
		}
	})

	forWidths(rules, BitwiseAndRegisterImmediateByte, bitwiseImmediate(func(a, b uint64) uint64 { return a & b }))
	forWidths(rules, BitwiseOrRegisterImmediateByte, bitwiseImmediate(func(a, b uint64) uint64 { return a | b }))
	forWidths(rules, BitwiseXOrRegisterImmediateByte, bitwiseImmediate(func(a, b uint64) uint64 { return a ^ b }))

	forWidths(rules, MoveAddressedRegisterRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			addr := t.Registers[hi]
			val, err := t.machine.addr.Load(addr, w)
			if err != nil {
				panic(err)
			}
			t.Registers.storeWidth(lo, w, val)
		}
	})
	forWidths(rules, MoveRegisterAddressedRegisterByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			addr := t.Registers[lo]
			val := t.Registers.loadWidth(hi, w)
			if err := t.machine.addr.Store(addr, w, val); err != nil {
				panic(err)
			}
		}
	})
	forWidths(rules, MoveAddressedRegistersByte, func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			srcAddr, dstAddr := t.Registers[hi], t.Registers[lo]
			val, err := t.machine.addr.Load(srcAddr, w)
			if err != nil {
				panic(err)
			}
			if err := t.machine.addr.Store(dstAddr, w, val); err != nil {
				panic(err)
			}
		}
	})
}

func jumpIf(flag Flags) func(*Thread) {
	return func(t *Thread) {
		addr := t.nextAddress()
		if t.Flags&flag != 0 {
			t.setPC(addr)
		}
	}
}

func bitwiseRegisters(op func(a, b uint64) uint64) func(Width) func(*Thread) {
	return func(w Width) func(*Thread) {
		return func(t *Thread) {
			hi, lo := splitNibbles(t.nextByte())
			a := t.Registers.loadWidth(lo, w)
			b := t.Registers.loadWidth(hi, w)
			t.Registers.storeWidth(lo, w, maskWidth(op(a, b), w))
		}
	}
}

func bitwiseImmediate(op func(a, b uint64) uint64) func(Width) func(*Thread) {
	return func(w Width) func(*Thread) {
		return func(t *Thread) {
			reg := t.nextByte() & 0x0f
			data := t.next(w)
			cur := t.Registers.loadWidth(reg, w)
			t.Registers.storeWidth(reg, w, maskWidth(op(cur, data), w))
		}
	}
}

// buildSyscalls constructs the ten-entry syscall handler table of spec
// §4.3. The file syscalls report OS-level failures in-band via register
// contents. A failed stdout write in the print syscalls, an unreadable
// string address, or a MemoryFree of a non-heap address panics and
// surfaces as a RuntimeError.
func buildSyscalls(m *Machine) {
	calls := &m.syscalls

	calls[PrintRegister] = func(t *Thread) {
		if _, err := fmt.Fprintf(m.stdout, "%d", t.Registers[t.Registers[0]]); err != nil {
			panic(err)
		}
	}
	calls[PrintRegisterSigned] = func(t *Thread) {
		if _, err := fmt.Fprintf(m.stdout, "%d", int64(t.Registers[t.Registers[0]])); err != nil {
			panic(err)
		}
	}
	calls[PrintCString] = func(t *Thread) {
		s, err := m.addr.CString(t.Registers[0])
		if err != nil {
			panic(err)
		}
		if _, err := fmt.Fprint(m.stdout, s); err != nil {
			panic(err)
		}
	}
	calls[MemoryAllocate] = func(t *Thread) {
		t.Registers[0] = m.addr.Allocate(t.Registers[0])
	}
	calls[MemoryFree] = func(t *Thread) {
		if err := m.addr.Free(t.Registers[0], t.Registers[1]); err != nil {
			panic(err)
		}
	}
	calls[FOpen] = func(t *Thread) {
		name, err := m.addr.CString(t.Registers[0])
		if err != nil {
			panic(err)
		}
		mode, err := m.addr.CString(t.Registers[1])
		if err != nil {
			panic(err)
		}
		addr, err := m.addr.OpenFile(name, mode)
		if err != nil {
			t.Registers[0] = 0
			return
		}
		t.Registers[0] = addr
	}
	calls[FClose] = func(t *Thread) {
		_ = m.addr.CloseFile(t.Registers[0])
	}
	calls[FGetC] = func(t *Thread) {
		f, err := m.addr.Handle(t.Registers[0])
		if err != nil {
			t.Registers[1] = ^uint64(0)
			return
		}
		var b [1]byte
		if _, err := f.Read(b[:]); err != nil {
			t.Registers[1] = ^uint64(0)
			return
		}
		t.Registers[1] = uint64(b[0])
	}
	calls[FTell] = func(t *Thread) {
		f, err := m.addr.Handle(t.Registers[0])
		if err != nil {
			t.Registers[1] = ^uint64(0)
			return
		}
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			t.Registers[1] = ^uint64(0)
			return
		}
		t.Registers[1] = uint64(pos)
	}
	calls[FSeek] = func(t *Thread) {
		f, err := m.addr.Handle(t.Registers[0])
		if err != nil {
			t.Registers[1] = ^uint64(0)
			return
		}
		pos, err := f.Seek(int64(t.Registers[1]), int(t.Registers[2]))
		if err != nil {
			t.Registers[1] = ^uint64(0)
			return
		}
		t.Registers[1] = uint64(pos)
	}
}
