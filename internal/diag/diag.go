// Package diag defines the tagged-variant diagnostic type spec.md §7
// requires: every stage returns a *diag.Error carrying a Kind that
// callers switch on, never a bare error string to be pattern-matched.
package diag

import "fmt"

// Kind enumerates the error families spec.md §7 names.
type Kind int

const (
	ParseError Kind = iota
	SymbolError
	LayoutError
	ExpressionError
	StackError
	RelocationError
	StartAddressError
	MCSFormatError
	IOError
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse error"
	case SymbolError:
		return "symbol error"
	case LayoutError:
		return "layout error"
	case ExpressionError:
		return "expression error"
	case StackError:
		return "stack error"
	case RelocationError:
		return "relocation error"
	case StartAddressError:
		return "start address error"
	case MCSFormatError:
		return "mcs format error"
	case IOError:
		return "i/o error"
	default:
		return "error"
	}
}

// Error is the fatal-diagnostic type every core stage returns. File is
// the originating input filename (spec.md §7: "messages carry the
// originating filename"); Section and Offset are optional positional
// context rendered as "at <hex> (<section>)" when present.
type Error struct {
	Kind    Kind
	File    string
	Section string // empty if not meaningful
	Offset  int64
	HasPos  bool
	Msg     string
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.File, e.Msg)
	if e.HasPos {
		if e.Section != "" {
			s += fmt.Sprintf(" at 0x%x (%s)", e.Offset, e.Section)
		} else {
			s += fmt.Sprintf(" at 0x%x", e.Offset)
		}
	}
	return s
}

// New builds a positionless diagnostic.
func New(kind Kind, file, msg string, args ...any) *Error {
	return &Error{Kind: kind, File: file, Msg: fmt.Sprintf(msg, args...)}
}

// WithPos builds a diagnostic carrying a section/offset suffix.
func WithPos(kind Kind, file string, section string, offset int64, msg string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		File:    file,
		Section: section,
		Offset:  offset,
		HasPos:  true,
		Msg:     fmt.Sprintf(msg, args...),
	}
}

// Warning is a non-fatal diagnostic. Warnings never affect exit code
// (spec.md §7); the driver collects them and the CLI front end decides
// whether to print them (gated on -w).
type Warning struct {
	File    string
	Section string
	Offset  int64
	HasPos  bool
	Msg     string
}

func (w Warning) String() string {
	s := fmt.Sprintf("%s: warning: %s", w.File, w.Msg)
	if w.HasPos {
		if w.Section != "" {
			s += fmt.Sprintf(" at 0x%x (%s)", w.Offset, w.Section)
		} else {
			s += fmt.Sprintf(" at 0x%x", w.Offset)
		}
	}
	return s
}

func NewWarning(file, msg string, args ...any) Warning {
	return Warning{File: file, Msg: fmt.Sprintf(msg, args...)}
}
