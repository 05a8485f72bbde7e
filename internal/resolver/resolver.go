// Package resolver aggregates per-object symbol definitions (xdef),
// references (xref), commons, requested library names, and start-address
// requests across all loaded objects, per spec.md §4.2.
//
// Generalizes wut4/lang/yld/linker.go's resolveSymbols two-pass shape
// (collect defined globals, then verify undefined references) to the
// richer set of bindings Human68k objects carry: commons merge by size
// rather than being rejected outright, and a start-address request is
// tracked and checked for uniqueness across the whole link.
package resolver

import (
	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
)

// Symbol is a resolved, globally-visible binding. For an xdef, ObjIndex
// and Value are the owning object and its local (pre-layout) offset.
// For a surviving common, ObjIndex is the first object that declared it
// (used in diagnostics and as an ordering key by internal/layout and
// internal/writer) and Value is filled in later by internal/layout
// once the common pool has been placed.
type Symbol struct {
	Name       string
	Section    objfmt.SectionKind
	ObjIndex   int
	Value      int32
	IsCommon   bool
	CommonSize int32
}

// XrefTable maps the xref numbers a single object assigned (via
// SymbolRef commands) back to the symbol name, so the executor can
// resolve operand selector 0xff (xref) opcodes by number.
type XrefTable map[int]string

// Result is everything the Resolver phase produces.
type Result struct {
	// Symbols is keyed by name; every entry here is visible for xref
	// binding, though common entries are still subject to layout
	// filling in their final Value.
	Symbols map[string]*Symbol

	// Xrefs[i] is the xref table for objs[i], the i-th object passed to
	// Resolve.
	Xrefs []XrefTable

	StartAddress      *StartAddress
	RequestedLibs     []string
	CtorParticipants  []int // object indices that set the ctor flag or used 4c 01
	DtorParticipants  []int
	CtorValues        map[int]int32 // objIndex -> value, for 4c 01 variants
	DtorValues        map[int]int32
}

type StartAddress struct {
	ObjIndex int
	Section  objfmt.SectionKind
	Value    int32
}

// Resolve runs both resolver passes over the full object set.
func Resolve(objs []*objfmt.Object) (*Result, error) {
	res := &Result{
		Symbols:    make(map[string]*Symbol),
		Xrefs:      make([]XrefTable, len(objs)),
		CtorValues: make(map[int]int32),
		DtorValues: make(map[int]int32),
	}

	// Pass A: collect xdefs, commons, xref tables, start addresses,
	// requests, and ctor/dtor participation.
	for objIdx, obj := range objs {
		xt := make(XrefTable)
		for _, cmd := range obj.Commands {
			switch cmd.Tag {
			case objfmt.TagSymbolRef:
				xt[cmd.XrefNumber] = cmd.Name

			case objfmt.TagSymbolDef:
				if cmd.SymKind == objfmt.KindXdef {
					if err := res.addXdef(obj.Path, objIdx, cmd); err != nil {
						return nil, err
					}
				} else {
					if err := res.addCommon(obj.Path, objIdx, cmd); err != nil {
						return nil, err
					}
				}

			case objfmt.TagStartAddress:
				if res.StartAddress != nil {
					return nil, diag.New(diag.StartAddressError, obj.Path,
						"multiple exec addresses defined (already set by object %d)", res.StartAddress.ObjIndex)
				}
				res.StartAddress = &StartAddress{ObjIndex: objIdx, Section: cmd.Section, Value: cmd.Value}

			case objfmt.TagRequest:
				res.RequestedLibs = append(res.RequestedLibs, cmd.Name)

			case objfmt.TagCtorDtor:
				if cmd.IsCtor {
					res.CtorParticipants = append(res.CtorParticipants, objIdx)
					if !cmd.IsFlag {
						res.CtorValues[objIdx] = cmd.Value
					}
				} else {
					res.DtorParticipants = append(res.DtorParticipants, objIdx)
					if !cmd.IsFlag {
						res.DtorValues[objIdx] = cmd.Value
					}
				}
			}
		}
		res.Xrefs[objIdx] = xt
	}

	// Pass B: walk each object's xref table against the collected
	// definitions. A name with no definition is not an error at this
	// stage (see below), so this pass reports nothing. Whether an xref
	// number used by an opcode has a matching SymbolRef is checked by
	// internal/exec, which has the opcode stream in hand.
	for objIdx, obj := range objs {
		for _, name := range res.Xrefs[objIdx] {
			if _, ok := res.Symbols[name]; !ok {
				// Not fatal here: spec.md §4.2 says unresolved xrefs are
				// fatal only at write-time, since archive selection may
				// still resolve them. internal/driver rejects any name
				// still unresolved after archive selection (via
				// UnresolvedXrefNames), and internal/exec reports an
				// undefined symbol at the point of use.
				_ = obj
			}
		}
	}

	return res, nil
}

func (res *Result) addXdef(path string, objIdx int, cmd objfmt.Command) error {
	existing, ok := res.Symbols[cmd.Name]
	if ok && !existing.IsCommon {
		return diag.New(diag.SymbolError, path, "symbol %q defined in multiple object files (also defined by object %d)", cmd.Name, existing.ObjIndex)
	}
	res.Symbols[cmd.Name] = &Symbol{
		Name:     cmd.Name,
		Section:  cmd.Section,
		ObjIndex: objIdx,
		Value:    cmd.Value,
	}
	return nil
}

func (res *Result) addCommon(path string, objIdx int, cmd objfmt.Command) error {
	existing, ok := res.Symbols[cmd.Name]
	if !ok {
		res.Symbols[cmd.Name] = &Symbol{
			Name:       cmd.Name,
			Section:    cmd.Section, // common family tag: Common/RCommon/RlCommon
			ObjIndex:   objIdx,
			IsCommon:   true,
			CommonSize: cmd.Value,
		}
		return nil
	}
	if !existing.IsCommon {
		// A real xdef already exists: it shadows this common entirely,
		// per spec.md §4.4 ("a real xdef overrides all commons").
		return nil
	}
	if existing.Section != cmd.Section {
		return diag.New(diag.SymbolError, path,
			"common symbol %q declared in mixed section families (%s vs %s)", cmd.Name, existing.Section, cmd.Section)
	}
	if cmd.Value > existing.CommonSize {
		existing.CommonSize = cmd.Value
	}
	return nil
}

// UnresolvedXrefNames returns every name referenced via an xref table
// entry that has no matching definition yet. ArchiveSelector uses this
// to decide which library members to pull in next.
func (res *Result) UnresolvedXrefNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, xt := range res.Xrefs {
		for _, name := range xt {
			if _, ok := res.Symbols[name]; !ok && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
