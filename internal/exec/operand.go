package exec

import (
	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

// resolveOperand decodes the (operand_selector, immediate) pair every
// direct-write, displacement-write, and push opcode carries (spec.md
// §4.6). Selector 0x00 is a pure constant; 0x01..0x0a is section-
// relative to that section kind within the *current* object (final
// value = that section's layout base for this object, plus immediate);
// 0xfc/0xfd/0xfe/0xff (common/rcommon/rlcommon/xref) resolve the
// referenced symbol via this object's xref table — the immediate in
// that case is the xref number a prior SymbolRef assigned, exactly as
// the teacher's WOFReloc.SymIndex resolves a relocation's symbol by
// index (wut4/lang/yld/linker.go's relocate()), generalized so the
// selector also records which operand family (and thus, for the common
// tags, which family the symbol is expected to belong to) the opcode
// used — useful for the cross-family diagnostic but not required for
// correctness since the symbol table already tracks each common's
// family from internal/resolver.
func (ex *Executor) resolveOperand(objIdx int, file string, selector byte, immediate int32) (stackVal, error) {
	switch {
	case selector == 0x00:
		return constVal(immediate), nil

	case selector >= 0x01 && selector <= 0x0a:
		kind := objfmt.SectionKind(selector)
		base := ex.lay.BaseOf(kind, objIdx)
		return addrVal(base+immediate, kind), nil

	case selector == byte(objfmt.Common) || selector == byte(objfmt.RCommon) ||
		selector == byte(objfmt.RlCommon) || selector == byte(objfmt.Xref):
		return ex.resolveXref(objIdx, file, objfmt.SectionKind(selector), int(immediate))

	default:
		return stackVal{}, diag.New(diag.ExpressionError, file, "unrecognized operand selector 0x%02x", selector)
	}
}

func (ex *Executor) resolveXref(objIdx int, file string, wantFamily objfmt.SectionKind, xrefNum int) (stackVal, error) {
	name, ok := ex.syms.Xrefs[objIdx][xrefNum]
	if !ok {
		return stackVal{}, diag.New(diag.SymbolError, file, "xref number %d has no matching SymbolRef", xrefNum)
	}
	sym, ok := ex.syms.Symbols[name]
	if !ok {
		return stackVal{}, diag.New(diag.SymbolError, file, "undefined symbol %q", name)
	}
	if sym.IsCommon && wantFamily != objfmt.Xref && sym.Section != 0 {
		// A plain reference family tag (common/rcommon/rlcommon) asserts
		// the expected family; a straight xref (0xff) doesn't care.
		// internal/layout has already folded the common into its final
		// bss-class section by the time the executor runs, so compare
		// against the pre-merge family recorded before layout ran would
		// require extra bookkeeping this implementation doesn't keep;
		// the mixed-family case is already caught earlier, by
		// internal/resolver's addCommon.
		_ = wantFamily
	}
	return addrVal(ex.symbolFinalValue(sym), sym.Section), nil
}

// symbolFinalValue computes a resolved symbol's address in the final
// linear section space: an xdef's Value is local to its owning object
// and needs that object's layout base added; a surviving common's Value
// was already written as a final offset by internal/layout.
func (ex *Executor) symbolFinalValue(sym *resolver.Symbol) int32 {
	if sym.IsCommon {
		return sym.Value
	}
	return ex.lay.BaseOf(sym.Section, sym.ObjIndex) + sym.Value
}
