// Package config defines the typed configuration record spec.md §9
// calls for: the single struct that replaces long positional parameter
// lists into the writer and driver. The CLI front end in cmd/h68kld is
// the only thing that constructs one from flags/env/config-file; the
// core never parses argv itself (spec.md §1: out of scope).
package config

// OutputFormat selects which writer the driver invokes.
type OutputFormat int

const (
	FormatX OutputFormat = iota
	FormatR
	FormatMCS
)

// RelocationCheck controls how strictly internal/writer validates a
// relocatable (.r/.mcs) output: strict rejects any non-zero exec
// address or non-empty relocation table; lenient (--rn) allows both.
type RelocationCheck int

const (
	Strict RelocationCheck = iota
	Lenient
)

// BSSPolicy controls whether .r output appends zero-filled bss/common/
// stack bytes (include, the default) or omits them (-an, "omit").
type BSSPolicy int

const (
	BSSInclude BSSPolicy = iota
	BSSOmit
)

// SymbolTablePolicy controls whether the symbol table is emitted
// (keep, default) or stripped (-x).
type SymbolTablePolicy int

const (
	SymbolsKeep SymbolTablePolicy = iota
	SymbolsStrip
)

// G2lkMode controls how ctor/dtor participation is detected: off
// disables ctor/dtor table generation entirely, flag honors only the
// e0 0c/e0 0d object-level flags, request additionally honors objects
// that used the value-bearing 4c 01/4d 01 opcodes.
type G2lkMode int

const (
	G2lkOff G2lkMode = iota
	G2lkFlag
	G2lkRequest
)

// MapSort selects the .map symbol table ordering (spec.md §4.7, §9
// open question (b)).
type MapSort int

const (
	BySectionName MapSort = iota
	ByAddress
)

// Config is the single record the Driver consumes. Every field here is
// either set directly from a CLI flag or derived from one by cmd/h68kld;
// the core never reads an environment variable or argv itself.
type Config struct {
	Inputs       []string // object file paths, in link order
	Archives     []string // archive/library file paths
	LibraryPaths []string // -L paths plus LIB env entries, in search order

	OutputPath string
	Format     OutputFormat

	BaseAddress uint32

	RelocationCheck   RelocationCheck
	BSSPolicy         BSSPolicy
	SymbolTablePolicy SymbolTablePolicy
	G2lkMode          G2lkMode

	// MapOutput, when non-empty, is the path to write a .map file to.
	MapOutput string
	MapSort   MapSort

	Warnings bool
	Verbose  bool
}
