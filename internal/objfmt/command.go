package objfmt

// SymKind distinguishes the two ways a SymbolDef command can bind a
// name: a strong external definition or a weak common definition.
// External references are a separate command (TagSymbolRef) that carries
// an xref number for later opcodes to address by index, not a SymKind.
type SymKind uint8

const (
	KindXdef SymKind = iota
	KindCommon
)

// CommandTag identifies which variant of Command is populated.
type CommandTag uint8

const (
	TagSectionChange CommandTag = iota
	TagRawData
	TagReserve
	TagSymbolDef
	TagSymbolRef
	TagFilename
	TagStartAddress
	TagRequest
	TagCtorDtor
	TagOpaque
	TagEnd
)

// Command is a tagged variant over every object-command shape spec.md §3
// names. Only the fields relevant to Tag are populated; this mirrors the
// teacher's flat WOFSymbol/WOFReloc structs (wut4/lang/yld/types.go) but
// generalized to a single sum type since the opcode family here is much
// larger and most opcodes share no common payload shape.
type Command struct {
	Tag CommandTag

	// TagSectionChange
	Section   SectionKind
	Name      string // section name, for SectionChange; symbol name for SymbolDef/SymbolRef/Request
	Alignment int

	// TagRawData
	Raw []byte

	// TagReserve
	ReserveLen int

	// TagSymbolDef
	SymKind SymKind
	Value   int32

	// TagSymbolRef
	XrefNumber int

	// TagStartAddress reuses Value/Section above.

	// TagCtorDtor: true = ctor, false = dtor. Flag-only variants (e0 0c /
	// e0 0d) set IsFlag; value-bearing variants (4c 01 / 4d 01) don't.
	IsCtor bool
	IsFlag bool

	// TagOpaque: a relocation/expression opcode preserved verbatim until
	// the executor decodes it. Code is the opcode byte (or byte pair,
	// packed high<<8|low), Payload the raw bytes following it exactly as
	// read, with no interpretation performed by the parser.
	Code    uint16
	Payload []byte

	// Offset is the byte offset of this command within the original
	// object byte stream, as recorded by internal/parser. No later stage
	// reads it.
	Offset int
}

// Object is an ordered list of commands plus a trailing SCD blob, per
// spec.md §3. Objects are immutable after parsing: every downstream
// stage only reads from Commands and SCD.
type Object struct {
	Path     string
	Commands []Command
	SCD      SCDBlob

	// SectionSizes is computed by the parser as a byte-product of
	// walking the command stream once: the final write cursor for each
	// section kind this object touches. Every downstream consumer that
	// only needs sizes (not content) can read this instead of
	// re-walking Commands.
	SectionSizes map[SectionKind]int
}

// SCDBlob is the source-code debug trailer: line table, sinfo, einfo,
// ninfo, and the name table, kept as opaque byte slices until the
// writer stage rebases the position-dependent fields (spec.md §6).
type SCDBlob struct {
	Present    bool
	LineTable  []byte
	SInfo      []byte
	EInfo      []byte
	NInfo      []byte
	Names      []byte
	SInfoCount int
}
