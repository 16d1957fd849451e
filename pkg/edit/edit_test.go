package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		apply    func(b *Buffer)
		expected string
	}{
		{
			name:     "No Edits",
			input:    "int x;",
			apply:    func(b *Buffer) {},
			expected: "int x;",
		},
		{
			name:  "Out Of Order Offsets",
			input: "if (c) f();",
			apply: func(b *Buffer) {
				b.Insert(5, ") && 1")
				b.Insert(4, "wrap((")
			},
			expected: "if (wrap((c) && 1) f();",
		},
		{
			name:  "Same Offset Keeps Recording Order",
			input: "ab",
			apply: func(b *Buffer) {
				b.Insert(1, "1")
				b.Insert(1, "2")
				b.Insert(1, "3")
			},
			expected: "a123b",
		},
		{
			name:  "InsertBefore Lands Ahead Of Earlier Insert",
			input: "ab",
			apply: func(b *Buffer) {
				b.Insert(1, "x")
				b.InsertBefore(1, "y")
			},
			expected: "ayxb",
		},
		{
			name:  "InsertBefore Nests Outward",
			input: "g",
			apply: func(b *Buffer) {
				b.InsertBefore(0, "(")
				b.InsertBefore(0, "[")
				b.Insert(1, "]")
			},
			expected: "[(g]",
		},
		{
			name:  "Start And End Of Text",
			input: "body",
			apply: func(b *Buffer) {
				b.Insert(4, "\n// end")
				b.Insert(0, "// begin\n")
			},
			expected: "// begin\nbody\n// end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer([]byte(tt.input))
			tt.apply(b)
			assert.Equal(t, tt.expected, b.String())
			assert.Equal(t, tt.input != tt.expected, b.HasEdits())
		})
	}
}

func TestBufferDoesNotMutateOriginal(t *testing.T) {
	data := []byte("int g;")
	b := NewBuffer(data)
	b.Insert(0, "static ")
	require.Equal(t, "static int g;", b.String())
	assert.Equal(t, "int g;", string(data))
	// Rendering twice gives the same result.
	assert.Equal(t, b.String(), string(b.Bytes()))
}

func TestBufferInsertionsOrder(t *testing.T) {
	b := NewBuffer([]byte("abc"))
	b.Insert(2, "p")
	b.Insert(0, "q")
	b.InsertBefore(2, "r")

	got := b.Insertions()
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].Offset)
	assert.Equal(t, "r", got[1].Text)
	assert.Equal(t, "p", got[2].Text)
}

func TestBufferInvalidPosition(t *testing.T) {
	b := NewBuffer([]byte("abc"))
	assert.Panics(t, func() { b.Insert(4, "x") })
	assert.Panics(t, func() { b.InsertBefore(-1, "x") })
	assert.NotPanics(t, func() { b.Insert(3, "x") })
}
