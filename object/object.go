// Package object implements the tagged, gob-encoded container persisted to
// .arc files: a Compiled object carries a ready-to-run instruction image, a
// Library object is reserved for a future shared-code unit and currently
// carries nothing extractable.
//
// Serialisation is explicitly out of scope as a "real wire format" concern
// (spec §4.4): any stable encoder works provided both sides agree on it.
// This package uses encoding/gob, since both writer and reader are always
// this same module's own process.
package object

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/pkg/errors"
)

// NotCompiledObject is returned by Instructions when the object holds no
// instruction stream, i.e. it is a Library.
var NotCompiledObject = errors.New("object does not carry a compiled instruction stream")

// Kind tags which variant an Object wraps.
type Kind int

const (
	// Compiled objects carry a ready-to-run instruction image.
	Compiled Kind = iota
	// Library objects are reserved; they carry no instruction stream yet.
	Library
)

// Object is the tagged container written to and read from .arc files.
type Object struct {
	Kind  Kind
	Bytes []byte
}

// NewCompiled wraps an assembled byte image as a Compiled object.
func NewCompiled(image []byte) Object {
	return Object{Kind: Compiled, Bytes: image}
}

// NewLibrary returns an empty, reserved Library object.
func NewLibrary() Object {
	return Object{Kind: Library}
}

// Instructions returns the wrapped instruction image, or NotCompiledObject
// if o is not a Compiled object.
func (o Object) Instructions() ([]byte, error) {
	if o.Kind != Compiled {
		return nil, NotCompiledObject
	}
	return o.Bytes, nil
}

// Encode gob-encodes o to w.
func Encode(w io.Writer, o Object) error {
	return errors.Wrap(gob.NewEncoder(w).Encode(o), "encode object")
}

// Decode gob-decodes an Object from r.
func Decode(r io.Reader) (Object, error) {
	var o Object
	if err := gob.NewDecoder(r).Decode(&o); err != nil {
		return Object{}, errors.Wrap(err, "decode object")
	}
	return o, nil
}

// Marshal is a convenience wrapper returning the gob-encoded bytes of o.
func Marshal(o Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is a convenience wrapper decoding an Object from encoded bytes.
func Unmarshal(data []byte) (Object, error) {
	return Decode(bytes.NewReader(data))
}
