package asm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/LuisNordlSlav/arsenalVM/vm"
)

// le8 returns the little-endian 8-byte encoding of v, for building expected
// byte images inline in test cases.
func le8(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func opBytes(op vm.Opcode) []byte {
	return []byte{byte(op), byte(op >> 8)}
}

// Scenario 1: label address.
func TestLabelAddress(t *testing.T) {
	src := "label here; LoadRegisterLong: 0, &here;\n"
	got, err := AssembleString(src)
	if err != nil {
		t.Fatal(err)
	}
	want := append(opBytes(vm.LoadRegisterLong), 0)
	want = append(want, le8(0)...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Scenario 2: size capture.
func TestSizeCapture(t *testing.T) {
	src := "(sz) blk = 0x01, 0x02, 0x03;\nLoadRegisterLong: 0, $sz;\n"
	got, err := AssembleString(src)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x02, 0x03}
	want = append(want, opBytes(vm.LoadRegisterLong)...)
	want = append(want, 0)
	want = append(want, le8(3)...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Scenario 3: fixed-width capture padding.
func TestFixedWidthCapturePadding(t *testing.T) {
	src := "(5) buf = 0x41, 0x42;\n"
	got, err := AssembleString(src)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x41, 0x42, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Scenario 4: numeric slice.
func TestNumericSlice(t *testing.T) {
	src := "LoadRegisterByte: 0, #256:1->1;\n"
	got, err := AssembleString(src)
	if err != nil {
		t.Fatal(err)
	}
	want := append(opBytes(vm.LoadRegisterByte), 0, 0x01)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Scenario 5: execution smoke test — counts r5 from 0 to 10.
func TestExecutionSmokeTest(t *testing.T) {
	src := `
label loop;
IncrementRegister: 5;
CompareRegisterLiteralByte: 5, 10;
JumpIfLessThan: &loop;
Halt;
`
	image, err := AssembleString("LoadRegisterByte: 5, 0;\n" + src)
	if err != nil {
		t.Fatal(err)
	}
	m, err := vm.New(image)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
}

// Scenario 6: string emission to stdout via PrintCString.
func TestStringEmission(t *testing.T) {
	// The string sits after Halt, since execution starts at offset 0, and
	// carries an explicit NUL because string literals emit no terminator.
	src := `
LoadRegisterLong: 0, &msg;
SysCall: PrintCString;
Halt;
() msg = "hi", 0;
`
	image, err := AssembleString(src)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	m, err := vm.New(image, vm.Stdout(&out))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hi" {
		t.Fatalf("stdout = %q, want %q", out.String(), "hi")
	}
}

// Boundary: literal >= 256 truncates mod 256. Also covers the bare
// mnemonic form — the ':' separator is optional, not required.
func TestLiteralTruncation(t *testing.T) {
	got, err := AssembleString("LoadRegisterByte 0, 300;\n")
	if err != nil {
		t.Fatal(err)
	}
	want := append(opBytes(vm.LoadRegisterByte), 0, byte(300))
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Boundary: &name without a slice emits the full 8-byte address.
func TestLabelReferenceFullWidth(t *testing.T) {
	got, err := AssembleString("LoadRegisterLong: 0, &here;\nlabel here;\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2+1+8 {
		t.Fatalf("image length = %d, want %d", len(got), 11)
	}
}

// Boundary: #N:0->0 emits only the least-significant byte of N.
func TestNumericSliceSingleByte(t *testing.T) {
	got, err := AssembleString("LoadRegisterByte: 0, #0x1234:0->0;\n")
	if err != nil {
		t.Fatal(err)
	}
	want := append(opBytes(vm.LoadRegisterByte), 0, 0x34)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Boundary: (0) name = with no arguments is a zero-length block whose label
// resolves to the current offset.
func TestZeroLengthCapture(t *testing.T) {
	got, err := AssembleString("(0) empty =;\nLoadRegisterLong: 0, &empty;\n")
	if err != nil {
		t.Fatal(err)
	}
	want := append(opBytes(vm.LoadRegisterLong), 0)
	want = append(want, le8(0)...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Fixed-width capture accepts a bare declaration with no '=' at all.
func TestFixedWidthCaptureBareForm(t *testing.T) {
	got, err := AssembleString("(3) pad;\n")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// Empty-head and size-head captures require '=' before their argument
// sequence; omitting it is a grammar error, preserving the documented
// asymmetry with fixed-width captures.
func TestEmptyHeadCaptureRequiresEquals(t *testing.T) {
	_, err := AssembleString("() name 0x01;\n")
	if err == nil {
		t.Fatal("expected error for capture missing '='")
	}
}

func TestFixedWidthCaptureOverflow(t *testing.T) {
	_, err := AssembleString("(1) tiny = 0x01, 0x02;\n")
	if err == nil {
		t.Fatal("expected ErrCaptureOverflow")
	}
}

func TestUndefinedLabel(t *testing.T) {
	_, err := AssembleString("LoadRegisterLong: 0, &nope;\n")
	if err == nil {
		t.Fatal("expected ErrUndefinedLabel")
	}
}

func TestUndefinedSize(t *testing.T) {
	_, err := AssembleString("LoadRegisterLong: 0, $nope;\n")
	if err == nil {
		t.Fatal("expected ErrUndefinedSize")
	}
}

func TestSliceOutOfRangeRejected(t *testing.T) {
	_, err := AssembleString("LoadRegisterByte: 0, #1:3->9;\n")
	if err == nil {
		t.Fatal("expected ErrSliceOutOfRange")
	}
}

func TestUnknownInstructionRejected(t *testing.T) {
	_, err := AssembleString("NotARealOpcode: 0;\n")
	if err == nil {
		t.Fatal("expected ErrUnknownInstr")
	}
}

func TestUnknownSyscallRejected(t *testing.T) {
	_, err := AssembleString("SysCall: NotARealSyscall;\n")
	if err == nil {
		t.Fatal("expected ErrUnknownSyscall")
	}
}

// label is a keyword: "labelfoo" must tokenize as a plain Identifier, not
// as the label keyword followed by "foo".
func TestLabelKeywordPrecedence(t *testing.T) {
	toks, err := Tokenize("labelfoo;")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 || toks[0].Kind != Identifier || toks[0].Lexeme != "labelfoo" {
		t.Fatalf("tokens = %v, want [Identifier(labelfoo) LineEnd]", toks)
	}
}

func TestCommentsStripped(t *testing.T) {
	toks, err := Tokenize("label here; // trailing comment\n/* block */ label there;\n")
	if err != nil {
		t.Fatal(err)
	}
	for _, tk := range toks {
		if tk.Kind == Comment {
			t.Fatalf("comment token leaked into stream: %v", tk)
		}
	}
}

func TestUnmatchedCharacterIsFatal(t *testing.T) {
	_, err := Tokenize("label here ~ bad;\n")
	if err == nil {
		t.Fatal("expected ErrUnexpectedChar for '~'")
	}
}

// .equ folds a named constant in before slice arithmetic runs.
func TestEquDirective(t *testing.T) {
	got, err := AssembleString(".equ WIDE 0x1234;\nLoadRegisterByte: 0, #WIDE:0->0;\n")
	if err != nil {
		t.Fatal(err)
	}
	want := append(opBytes(vm.LoadRegisterByte), 0, 0x34)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// .org advances the cursor, zero-filling the gap it leaves behind.
func TestOrgDirective(t *testing.T) {
	got, err := AssembleString("LoadRegisterByte: 0, 1;\n.org 8;\nLoadRegisterByte: 0, 2;\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 8+4 {
		t.Fatalf("image length = %d, want %d", len(got), 12)
	}
	for _, b := range got[4:8] {
		if b != 0 {
			t.Fatalf("gap not zero-filled: % x", got[4:8])
		}
	}
}

func TestInvalidUTF8Rejected(t *testing.T) {
	_, err := Assemble(bytes.NewReader([]byte{0xff, 0xfe, 0xfd}))
	if err != ErrInvalidEncoding {
		t.Fatalf("err = %v, want ErrInvalidEncoding", err)
	}
}

// The mnemonic/argument ':' separator is optional: with or without it, the
// same program assembles to the same image.
func TestMnemonicSeparatorOptional(t *testing.T) {
	withColon, err := AssembleString("LoadRegisterLong: 0, &here;\nlabel here;\n")
	if err != nil {
		t.Fatal(err)
	}
	withoutColon, err := AssembleString("LoadRegisterLong 0, &here;\nlabel here;\n")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(withColon, withoutColon) {
		t.Fatalf("got % x, want % x", withColon, withoutColon)
	}
}
