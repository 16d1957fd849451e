package instrument

import (
	"io"

	"cinstr/pkg/edit"
)

// Emit renders src with its insertions applied behind boilerplate and hands
// the whole text to w in a single Write.
func Emit(w io.Writer, boilerplate string, src *edit.Buffer) (int64, error) {
	body := src.Bytes()
	out := make([]byte, 0, len(boilerplate)+len(body))
	out = append(out, boilerplate...)
	out = append(out, body...)
	n, err := w.Write(out)
	return int64(n), err
}

// WriteTo emits the boilerplate and the rewritten primary file.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	return Emit(w, r.Boilerplate, r.Source)
}

// String returns what WriteTo would write.
func (r *Result) String() string {
	return r.Boilerplate + r.Source.String()
}
