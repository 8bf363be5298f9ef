package ffi

import "testing"

func TestCallDispatchesByArity(t *testing.T) {
	add := func(a, b int64) int64 { return a + b }
	got, err := Call(add, ReturnInt64, []int64{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestCallReturnWidthTruncation(t *testing.T) {
	val := func() int64 { return 0x1FF }
	got, err := Call(val, ReturnInt8, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xFF {
		t.Fatalf("got %#x, want %#x", got, 0xFF)
	}
}

func TestCallArityMismatch(t *testing.T) {
	f := func(a int64) int64 { return a }
	if _, err := Call(f, ReturnInt64, []int64{1, 2}); err == nil {
		t.Fatal("expected arity mismatch error")
	}
}

func TestOpenUnsupportedPlatformOrLoad(t *testing.T) {
	_, err := Open("definitely-not-a-real-library")
	if err == nil {
		t.Fatal("expected an error opening a nonexistent library")
	}
}
