// Package objfmt defines the in-memory representation of a Human68k-style
// object file: the SectionKind enum, the Command tagged variant produced
// by the parser, and the Object/SCD containers the rest of the linker
// consumes.
package objfmt

import "fmt"

// SectionKind is the closed enum of section identifiers used both as the
// "current section" state during parsing and as the operand-source tag
// on relocation-expression opcodes (the operand-selector byte that
// internal/exec's resolveOperand decodes).
type SectionKind uint8

const (
	Abs      SectionKind = 0x00
	Text     SectionKind = 0x01
	Data     SectionKind = 0x02
	Bss      SectionKind = 0x03
	Stack    SectionKind = 0x04
	RData    SectionKind = 0x05
	RBss     SectionKind = 0x06
	RStack   SectionKind = 0x07
	RlData   SectionKind = 0x08
	RlBss    SectionKind = 0x09
	Ctor     SectionKind = 0x0c
	Dtor     SectionKind = 0x0d
	RlStack  SectionKind = 0x0a
	Common   SectionKind = 0xfc
	RCommon  SectionKind = 0xfd
	RlCommon SectionKind = 0xfe
	Xref     SectionKind = 0xff
)

func (k SectionKind) String() string {
	switch k {
	case Abs:
		return "abs"
	case Text:
		return "text"
	case Data:
		return "data"
	case Bss:
		return "bss"
	case Stack:
		return "stack"
	case RData:
		return "rdata"
	case RBss:
		return "rbss"
	case RStack:
		return "rstack"
	case RlData:
		return "rldata"
	case RlBss:
		return "rlbss"
	case RlStack:
		return "rlstack"
	case Ctor:
		return "ctor"
	case Dtor:
		return "dtor"
	case Common:
		return "common"
	case RCommon:
		return "rcommon"
	case RlCommon:
		return "rlcommon"
	case Xref:
		return "xref"
	default:
		return fmt.Sprintf("section(0x%02x)", uint8(k))
	}
}

// IsRelocatable reports whether kind is one of the r*/rl* output-bearing
// section kinds whose base address is only known after layout — these
// are the kinds that cause a relocation entry to be emitted per
// spec.md §4.6 item 1.
func (k SectionKind) IsRelocatable() bool {
	switch k {
	case RData, RBss, RStack, RlData, RlBss, RlStack:
		return true
	default:
		return false
	}
}

// IsRFamily and IsRlFamily partition the relocatable kinds into the two
// families spec.md §9 open-question (a) forbids mixing across: r* vs
// rl*. Used by the executor's same-family check for "sub address".
func (k SectionKind) IsRFamily() bool {
	switch k {
	case RData, RBss, RStack:
		return true
	default:
		return false
	}
}

func (k SectionKind) IsRlFamily() bool {
	switch k {
	case RlData, RlBss, RlStack:
		return true
	default:
		return false
	}
}

// IsBSSClass reports whether kind only reserves space (never carries
// literal bytes): bss-like sections across all three families.
func (k SectionKind) IsBSSClass() bool {
	switch k {
	case Bss, RBss, RlBss:
		return true
	default:
		return false
	}
}

// StandardOrder is the fixed section ordering of the .map per-section
// size table (spec.md §4.7); internal/mapfile keeps the same list as its
// own sectionRows and does not read this variable.
var StandardOrder = []SectionKind{Text, Data, Bss, Common, Stack, RData, RBss, RCommon, RStack}
