// Package edit implements buffered position-based insertions over a byte
// slice. The original content is never modified; Bytes renders a copy.
package edit

import (
	"fmt"
	"sort"
)

// Insertion is one recorded splice.
type Insertion struct {
	Offset int
	Text   string
	Before bool // lands in front of ordinary insertions at the same offset
	Seq    int  // recording order
}

// A Buffer is a queue of insertions to apply to a fixed original text.
type Buffer struct {
	old []byte
	q   []Insertion
}

// NewBuffer returns a new buffer to accumulate insertions into data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{old: data}
}

func (b *Buffer) check(pos int) {
	if pos < 0 || pos > len(b.old) {
		panic(fmt.Sprintf("invalid edit position %d (text length %d)", pos, len(b.old)))
	}
}

// Insert records text at pos. Insertions at one offset appear in the order
// they were recorded.
func (b *Buffer) Insert(pos int, text string) {
	b.check(pos)
	b.q = append(b.q, Insertion{Offset: pos, Text: text, Seq: len(b.q)})
}

// InsertBefore records text at pos ahead of every Insert at the same
// offset, including ones recorded earlier. Successive InsertBefore calls at
// one offset nest: the latest lands outermost.
func (b *Buffer) InsertBefore(pos int, text string) {
	b.check(pos)
	b.q = append(b.q, Insertion{Offset: pos, Text: text, Before: true, Seq: len(b.q)})
}

// HasEdits reports whether anything was recorded.
func (b *Buffer) HasEdits() bool {
	return len(b.q) > 0
}

// Insertions returns the recorded insertions in application order.
func (b *Buffer) Insertions() []Insertion {
	q := make([]Insertion, len(b.q))
	copy(q, b.q)
	sort.SliceStable(q, func(i, j int) bool {
		a, c := q[i], q[j]
		if a.Offset != c.Offset {
			return a.Offset < c.Offset
		}
		if a.Before != c.Before {
			return a.Before
		}
		if a.Before {
			return a.Seq > c.Seq
		}
		return a.Seq < c.Seq
	})
	return q
}

// Bytes returns a new byte slice containing the original data
// with the queued insertions applied.
func (b *Buffer) Bytes() []byte {
	q := b.Insertions()
	size := len(b.old)
	for _, ins := range q {
		size += len(ins.Text)
	}
	out := make([]byte, 0, size)
	offset := 0
	for _, ins := range q {
		out = append(out, b.old[offset:ins.Offset]...)
		offset = ins.Offset
		out = append(out, ins.Text...)
	}
	out = append(out, b.old[offset:]...)
	return out
}

// String returns a string containing the original data
// with the queued insertions applied.
func (b *Buffer) String() string {
	return string(b.Bytes())
}
