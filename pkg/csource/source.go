package csource

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"cinstr/pkg/utils"
)

// File is one physical source file taking part in a translation unit.
type File struct {
	Name    string // as named on the command line or in the #include directive
	Path    string // canonical path; also the default presumed name
	Content []byte

	lines []int // byte offset of the start of each line
}

// NewFile wraps already-loaded content.
func NewFile(name string, content []byte) *File {
	f := &File{Name: name, Path: utils.CanonicalPath(name), Content: content}
	f.lines = append(f.lines, 0)
	for i, b := range content {
		if b == '\n' {
			f.lines = append(f.lines, i+1)
		}
	}
	return f
}

// ReadFile loads a file from disk.
func ReadFile(name string) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return NewFile(name, data), nil
}

// LineOf returns the 1-based line containing offset.
func (f *File) LineOf(offset int) int {
	return sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > offset })
}

// LineText returns the text of a 1-based line without its newline.
func (f *File) LineText(line int) string {
	if line < 1 || line > len(f.lines) {
		return ""
	}
	start := f.lines[line-1]
	end := len(f.Content)
	if line < len(f.lines) {
		end = f.lines[line] - 1
	}
	if end < start {
		return ""
	}
	return strings.TrimRight(string(f.Content[start:end]), "\r")
}

// Loc is a range of bytes in a physical file.
type Loc struct {
	File   *File
	Offset int
	End    int
	Line   int

	Presumed string // file name after #line directives
	Expanded bool   // covers a macro invocation rather than the construct itself
}

// IsValid reports whether the location points into a file.
func (l Loc) IsValid() bool {
	return l.File != nil
}

// Text returns the source bytes covered by the location.
func (l Loc) Text() string {
	if l.File == nil || l.Offset < 0 || l.End > len(l.File.Content) || l.End < l.Offset {
		return ""
	}
	return string(l.File.Content[l.Offset:l.End])
}

func (l Loc) String() string {
	if l.File == nil {
		return "<unknown>"
	}
	name := l.Presumed
	if name == "" {
		name = l.File.Name
	}
	return fmt.Sprintf("%s:%d", name, l.Line)
}

// Span joins two locations of the same file into one covering both.
func Span(from, to Loc) Loc {
	if from.File == nil {
		return to
	}
	if to.File != from.File || to.End < from.Offset {
		return from
	}
	from.End = to.End
	from.Expanded = from.Expanded || to.Expanded
	return from
}

// ParseError reports a lexing, preprocessing or parsing failure.
type ParseError struct {
	File    string
	Line    int
	Msg     string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("%s:%d: %s\n  |> %s", e.File, e.Line, e.Msg, e.Snippet)
	}
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return e.Msg
}

// errorAt builds a ParseError with the source line where tok appears.
func errorAt(tok Token, format string, args ...any) *ParseError {
	e := &ParseError{Line: tok.Line, Msg: fmt.Sprintf(format, args...)}
	if tok.File != nil {
		e.File = tok.File.Name
		e.Snippet = strings.TrimSpace(tok.File.LineText(tok.Line))
	}
	return e
}
