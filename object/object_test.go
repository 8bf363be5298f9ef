package object

import "testing"

func TestCompiledRoundTrip(t *testing.T) {
	want := NewCompiled([]byte{1, 2, 3, 4})
	data, err := Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	bs, err := got.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	if len(bs) != 4 || bs[0] != 1 || bs[3] != 4 {
		t.Fatalf("round trip mismatch: %v", bs)
	}
}

func TestLibraryHasNoInstructions(t *testing.T) {
	lib := NewLibrary()
	if _, err := lib.Instructions(); err != NotCompiledObject {
		t.Fatalf("err = %v, want NotCompiledObject", err)
	}
}

func TestLibraryRoundTrip(t *testing.T) {
	data, err := Marshal(NewLibrary())
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != Library {
		t.Fatalf("kind = %v, want Library", got.Kind)
	}
}
