// Package writer accumulates generated source text with indentation.
package writer

import (
	"fmt"
	"strings"
)

// Writer builds generated code line by line
type Writer struct {
	sb           strings.Builder
	indentLevel  int
	indentString string
	linePrefix   string
	needsIndent  bool
}

// NewWriter returns a writer that indents with indentString per level
func NewWriter(indentString string) *Writer {
	return &Writer{
		indentString: indentString,
		needsIndent:  true,
	}
}

// Indent moves following lines one level deeper
func (w *Writer) Indent() {
	w.indentLevel++
	w.updatePrefix()
}

// Dedent moves following lines one level out. It stops at zero.
func (w *Writer) Dedent() {
	if w.indentLevel > 0 {
		w.indentLevel--
		w.updatePrefix()
	}
}

// Write appends s to the current line
func (w *Writer) Write(s string) {
	if w.needsIndent && s != "" {
		w.sb.WriteString(w.linePrefix)
		w.needsIndent = false
	}
	w.sb.WriteString(s)
}

func (w *Writer) Writef(format string, args ...any) {
	w.Write(fmt.Sprintf(format, args...))
}

// WriteLine appends s and ends the line
func (w *Writer) WriteLine(s string) {
	w.Write(s)
	w.Newline()
}

func (w *Writer) WriteLinef(format string, args ...any) {
	w.Writef(format, args...)
	w.Newline()
}

// Newline ends the current line
func (w *Writer) Newline() {
	w.sb.WriteString("\n")
	w.needsIndent = true
}

// BlankLine adds an empty line
func (w *Writer) BlankLine() {
	if w.sb.Len() > 0 && !strings.HasSuffix(w.sb.String(), "\n\n") {
		w.Newline()
	}
}

func (w *Writer) Bytes() []byte {
	return []byte(w.sb.String())
}

func (w *Writer) updatePrefix() {
	w.linePrefix = strings.Repeat(w.indentString, w.indentLevel)
}

// WriteBlock writes content between an opener and a closer line, one
// level deeper. WriteBlock("struct Point {", "};", fields)
func (w *Writer) WriteBlock(opener, closer string, content func()) {
	w.WriteLine(opener)
	w.Indent()
	content()
	w.Dedent()
	w.WriteLine(closer)
}

// WriteComment writes a single-line C comment
func (w *Writer) WriteComment(comment string) {
	w.WriteLinef("/* %s */", escapeComment(comment))
}

// WriteDocComment writes a documentation comment. One line stays on one
// line; longer text becomes a starred block.
func (w *Writer) WriteDocComment(doc string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	lines := strings.Split(doc, "\n")
	if len(lines) == 1 {
		w.WriteComment(lines[0])
		return
	}
	w.WriteLine("/*")
	for _, line := range lines {
		line = strings.TrimSpace(escapeComment(line))
		if line == "" {
			w.WriteLine(" *")
			continue
		}
		w.WriteLinef(" * %s", line)
	}
	w.WriteLine(" */")
}

// escapeComment keeps text from closing the comment it is written in
func escapeComment(s string) string {
	return strings.ReplaceAll(s, "*/", "* /")
}
