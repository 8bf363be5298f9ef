package vm

import (
	"io"
	"strconv"

	"github.com/LuisNordlSlav/arsenalVM/internal/iox"
)

func dumpSlice(w *iox.ErrWriter, prefix byte, a []uint64) error {
	w.Write([]byte{prefix})
	l := len(a) - 1
	for i := 0; i < l; i++ {
		io.WriteString(w, strconv.FormatUint(a[i], 10))
		w.Write([]byte{' '})
	}
	if l >= 0 {
		io.WriteString(w, strconv.FormatUint(a[l], 10))
	}
	return w.Err
}

// Dump writes the thread's register file and stack bytes to w, for crash
// diagnostics and the cmd/arsenal -debug path. The format mirrors the
// register-separator convention used by the older line-oriented dump tool
// this is descended from: a control byte ahead of each section.
func (t *Thread) Dump(w io.Writer) error {
	ew := iox.NewErrWriter(w)
	if err := dumpSlice(ew, '\x1C', t.Registers[:]); err != nil {
		return err
	}
	stackBytes := make([]uint64, len(t.stack.bytes))
	for i, b := range t.stack.bytes {
		stackBytes[i] = uint64(b)
	}
	return dumpSlice(ew, '\x1D', stackBytes)
}
