package model

import (
	"fmt"
	"strings"
)

// ErrorKind tags the three failure classes that cross the generator boundary
type ErrorKind string

const (
	KindExtraction ErrorKind = "ExtractionError"
	KindMapping    ErrorKind = "MappingError"
	KindCycle      ErrorKind = "CyclicDependencyError"
)

// Error is implemented by every error the pipeline reports
type Error interface {
	error
	ErrorKind() ErrorKind
	// Names returns the offending declaration names
	Names() []string
}

// ExtractionError reports a module root that cannot be resolved or parsed,
// or a malformed declaration set (duplicate or dangling names).
type ExtractionError struct {
	Root   string
	Decl   string
	Detail string
	Cause  error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString(string(KindExtraction))
	if e.Root != "" {
		fmt.Fprintf(&b, " in %s", e.Root)
	}
	if e.Decl != "" {
		fmt.Fprintf(&b, " at %s", e.Decl)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error        { return e.Cause }
func (e *ExtractionError) ErrorKind() ErrorKind { return KindExtraction }

func (e *ExtractionError) Names() []string {
	if e.Decl == "" {
		return nil
	}
	return []string{e.Decl}
}

// MappingError reports a construct with no C-compatible representation
type MappingError struct {
	Decl      string
	Path      []string
	Construct string
	Detail    string
}

func (e *MappingError) Error() string {
	var b strings.Builder
	b.WriteString(string(KindMapping))
	b.WriteString(" at ")
	b.WriteString(e.Decl)
	if len(e.Path) > 0 {
		b.WriteByte('.')
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Construct != "" {
		b.WriteString(": ")
		b.WriteString(e.Construct)
	}
	if e.Detail != "" {
		if e.Construct != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *MappingError) ErrorKind() ErrorKind { return KindMapping }
func (e *MappingError) Names() []string      { return []string{e.Decl} }

// CyclicDependencyError reports declarations that contain each other by value
type CyclicDependencyError struct {
	Members []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Members) == 0 {
		return string(KindCycle)
	}
	cycle := append(append([]string{}, e.Members...), e.Members[0])
	return fmt.Sprintf("%s: %s", KindCycle, strings.Join(cycle, " -> "))
}

func (e *CyclicDependencyError) ErrorKind() ErrorKind { return KindCycle }
func (e *CyclicDependencyError) Names() []string      { return e.Members }
