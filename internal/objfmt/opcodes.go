package objfmt

// Opcode byte values. The parser (internal/parser) uses these only to
// classify payload *shape* (spec.md §4.1: "strict — any opcode whose
// payload length is not knowable from its fixed layout causes a fatal
// parse error"); the executor (internal/exec) is the only place that
// interprets what an Opaque opcode *means*. Splitting the two concerns
// this way is the "opaque-command preservation" design spec.md §9 calls
// for, generalized from the teacher's flat WOFSymbol/WOFReloc decode.
//
// spec.md §4.1's opcode table is explicitly "non-exhaustive" and
// design-level; the exact byte assignments below are this
// implementation's concrete realization of that table, chosen to be
// internally consistent and to satisfy every semantic rule spec.md §4.6
// describes. The "50/51/52/53/55/56/57 alternate" direct-write family is
// not recognized: the parser rejects those bytes as unknown opcodes.
// Among the stack-to-memory writes, 91 and 99 behave exactly like 90
// (byte, no relocation) and 9a exactly like 92 (long, relocatable); 93
// is a long write that never carries a relocation, and 96 is the only
// word-width store (relocatable).
const (
	OpEnd = 0x0000 // two zero bytes

	OpRawData           = 0x10
	OpSectionChangeSh   = 0x20 // short form: just a section-kind byte
	OpSectionHeaderLong = 0xC0 // long form: kind, align shift, name
	OpReserve           = 0x30

	OpSymbolDefXdef   = 0xB0
	OpSymbolRefNumber = 0xB1
	OpSymbolDefCommon = 0xB2

	OpFilenameHi  = 0xD0
	OpFilenameLo  = 0x00
	OpStartAddrHi = 0xE0
	OpStartAddrLo = 0x00
	OpRequestHi   = 0xE0
	OpRequestLo   = 0x01
	OpCtorFlagHi  = 0xE0
	OpCtorFlagLo  = 0x0C
	OpDtorFlagHi  = 0xE0
	OpDtorFlagLo  = 0x0D
	OpCtorValueHi = 0x4C
	OpCtorValueLo = 0x01
	OpDtorValueHi = 0x4D
	OpDtorValueLo = 0x01

	// Direct writes (spec.md §4.6 item 1). Payload: operand-selector
	// byte, then a sign-extended immediate offset sized to the width.
	OpDirectByteA = 0x41
	OpDirectWordA = 0x42
	OpDirectLongA = 0x43
	OpDirectByteB = 0x45
	OpDirectWordB = 0x46
	OpDirectLongB = 0x47

	// Displacement writes (spec.md §4.6 item 2), relative to the
	// current write cursor. Same payload shape as direct writes.
	OpDispByte    = 0x65
	OpDispWord    = 0x69
	OpDispLong    = 0x6A
	OpDispLongAlt = 0x6B

	// Expression-stack push (spec.md §4.6 item 3). Payload: operand-
	// selector byte, then a 4-byte value (constant, or base offset for
	// an address-attributed operand).
	OpPush = 0x80

	// Expression-stack operator prefix (spec.md §4.6 item 4); the
	// second byte selects the operator, see OperatorOp below.
	OpOperatorPrefix = 0xA0

	// Stack-to-memory writes (spec.md §4.6 item 5). No payload beyond
	// the opcode byte itself; operates on the top of the calculator
	// stack and advances the cursor by the opcode's width.
	OpStoreByte        = 0x90
	OpStoreByteAlt     = 0x91
	OpStoreLongReloc   = 0x92
	OpStoreLongNoReloc = 0x93
	OpStoreWordReloc   = 0x96
	OpStoreByteAlt2    = 0x99
	OpStoreLongRelocB  = 0x9A
)

// OperatorOp enumerates the a0-xx sub-opcodes (spec.md §4.6 item 4).
type OperatorOp uint8

const (
	OpNeg OperatorOp = iota
	OpNot
	OpHigh
	OpLow
	OpHighW
	OpLowW
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe
)

func (o OperatorOp) IsUnary() bool {
	return o <= OpLowW
}

func (o OperatorOp) String() string {
	names := []string{
		"neg", "not", "high", "low", "highw", "loww",
		"add", "sub", "mul", "div", "mod", "and", "or", "xor", "shl", "shr",
		"cmpeq", "cmpne", "cmplt", "cmple", "cmpgt", "cmpge",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "op?"
}

// WriteWidth is byte/word/long for any opcode that writes into a
// section image.
type WriteWidth int

const (
	WidthByte WriteWidth = 1
	WidthWord WriteWidth = 2
	WidthLong WriteWidth = 4
)
