// Package ffi adapts the VM's optional dynamic-library collaborator (spec
// §6): open a shared object by name, resolve a symbol, and invoke it
// through a typed calling-convention wrapper driven by a small type-tagged
// buffer.
//
// Go's standard library has no portable dlopen equivalent; the only
// in-tree loader is "plugin", which resolves symbols exported by Go
// plugins built with `go build -buildmode=plugin`, and only on Linux. The
// original adapter this is descended from used libffi to call arbitrary C
// functions by raw address; Go cannot do that without cgo. This package
// instead resolves a symbol to a Go function value and invokes it through
// reflection, which covers calling into a Go-built plugin but not an
// arbitrary C shared library — a deliberate, documented narrowing (see
// DESIGN.md).
package ffi

import (
	"path/filepath"
	"plugin"
	"reflect"
	"runtime"

	"github.com/pkg/errors"
)

// ErrUnsupportedPlatform is returned by Open on platforms plugin does not
// support (anything but linux).
var ErrUnsupportedPlatform = errors.New("dynamic library loading is only supported on linux")

// ReturnKind tags the first byte of a call's type buffer: 0 for void,
// 1..5 for a signed integer result of 1, 2, 4, 8, or pointer-word bytes.
type ReturnKind byte

const (
	ReturnVoid ReturnKind = iota
	ReturnInt8
	ReturnInt16
	ReturnInt32
	ReturnInt64
	ReturnWord
)

// suffix returns the OS-appropriate shared library suffix, preserved for
// documentation even though plugin.Open only honours it on Linux.
func suffix() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}

// Library is a handle to a resolved dynamic library.
type Library struct {
	p *plugin.Plugin
}

// Open loads the library named name (without extension), applying the
// OS-appropriate suffix convention (lib<name>.so / <name>.dll / lib<name>.dylib).
func Open(name string) (*Library, error) {
	if runtime.GOOS != "linux" {
		return nil, ErrUnsupportedPlatform
	}
	fileName := name + suffix()
	if runtime.GOOS != "windows" {
		fileName = "lib" + fileName
	}
	p, err := plugin.Open(filepath.Clean(fileName))
	if err != nil {
		return nil, errors.Wrapf(err, "open library %q", name)
	}
	return &Library{p: p}, nil
}

// Close is a no-op: the plugin package never unloads a library once
// opened. Kept so callers can defer it the way they would a real dlclose.
func (l *Library) Close() error { return nil }

// Symbol resolves sym to a callable value.
func (l *Library) Symbol(sym string) (plugin.Symbol, error) {
	s, err := l.p.Lookup(sym)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve symbol %q", sym)
	}
	return s, nil
}

// Call invokes sym with the arguments packed in args (one int64 per
// argument, little-endian-agnostic since it's a Go value, not raw bytes)
// and reports the result truncated to ret's width. sym must be a Go
// function value of the matching arity; this is the documented narrowing
// from the original's raw-address libffi call.
func Call(sym plugin.Symbol, ret ReturnKind, args []int64) (uint64, error) {
	fn := reflect.ValueOf(sym)
	if fn.Kind() != reflect.Func {
		return 0, errors.New("resolved symbol is not callable")
	}
	if fn.Type().NumIn() != len(args) {
		return 0, errors.Errorf("symbol expects %d arguments, got %d", fn.Type().NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a).Convert(fn.Type().In(i))
	}
	out := fn.Call(in)
	if ret == ReturnVoid || len(out) == 0 {
		return 0, nil
	}
	v := out[0]
	switch ret {
	case ReturnInt8:
		return uint64(uint8(v.Int())), nil
	case ReturnInt16:
		return uint64(uint16(v.Int())), nil
	case ReturnInt32:
		return uint64(uint32(v.Int())), nil
	default:
		return uint64(v.Int()), nil
	}
}
