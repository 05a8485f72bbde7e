// Package layout computes per-object placement offsets per section
// (spec.md §4.4): for each section kind, objects are concatenated in
// input order, each object's contribution aligned to the section's
// alignment, and common symbols are merged (by MAX size, shadowed by
// any real xdef) and appended into the matching bss-class section.
//
// Generalizes wut4/lang/yld/linker.go's layout() — a running offset per
// section, advanced by each object's declared size in input order — from
// two sections (code/data) to the full section-kind table, plus the
// common-merge step the teacher's WOF format never needed.
package layout

import (
	"sort"

	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

const defaultAlignment = 2

// orderedSections is every section kind the layout pass places,
// processed in this fixed order so diagnostics are deterministic.
var orderedSections = []objfmt.SectionKind{
	objfmt.Text, objfmt.Data, objfmt.Bss, objfmt.Stack,
	objfmt.RData, objfmt.RBss, objfmt.RStack,
	objfmt.RlData, objfmt.RlBss, objfmt.RlStack,
}

// commonFamily maps each external-operand common tag to the bss-class
// section its surviving members are ultimately placed into.
var commonFamily = map[objfmt.SectionKind]objfmt.SectionKind{
	objfmt.Common:   objfmt.Bss,
	objfmt.RCommon:  objfmt.RBss,
	objfmt.RlCommon: objfmt.RlBss,
}

// Layout is the Layout Map of spec.md §3: base offsets per (object,
// section), final section sizes, and the common-pool sizes reported
// separately by internal/mapfile.
type Layout struct {
	Bases       map[objfmt.SectionKind][]int32 // Bases[kind][objIdx]
	Sizes       map[objfmt.SectionKind]int32
	CommonSizes map[objfmt.SectionKind]int32 // keyed by Common/RCommon/RlCommon
}

func (l *Layout) BaseOf(kind objfmt.SectionKind, objIdx int) int32 {
	bases := l.Bases[kind]
	if objIdx < 0 || objIdx >= len(bases) {
		return 0
	}
	return bases[objIdx]
}

// Compute runs the Layout phase. syms is mutated in place: surviving
// common symbols have their Section/Value filled in once their final
// placement is known.
func Compute(objs []*objfmt.Object, syms *resolver.Result) (*Layout, error) {
	l := &Layout{
		Bases:       make(map[objfmt.SectionKind][]int32),
		Sizes:       make(map[objfmt.SectionKind]int32),
		CommonSizes: make(map[objfmt.SectionKind]int32),
	}

	for _, kind := range orderedSections {
		bases := make([]int32, len(objs))
		var offset int32
		for i, obj := range objs {
			align := int32(alignmentFor(obj, kind))
			if align <= 0 {
				align = defaultAlignment
			}
			if rem := offset % align; rem != 0 {
				offset += align - rem
			}
			bases[i] = offset
			offset += int32(obj.SectionSizes[kind])
		}
		l.Bases[kind] = bases
		l.Sizes[kind] = offset
	}

	if err := mergeCommons(l, syms); err != nil {
		return nil, err
	}

	return l, nil
}

// alignmentFor returns the largest alignment any SectionChange command
// in obj requested for kind, or 0 if none did (caller applies the
// default).
func alignmentFor(obj *objfmt.Object, kind objfmt.SectionKind) int {
	best := 0
	for _, cmd := range obj.Commands {
		if cmd.Tag == objfmt.TagSectionChange && cmd.Section == kind && cmd.Alignment > best {
			best = cmd.Alignment
		}
	}
	return best
}

func mergeCommons(l *Layout, syms *resolver.Result) error {
	type commonSym struct {
		name string
		sym  *resolver.Symbol
	}

	byFamily := make(map[objfmt.SectionKind][]commonSym)
	for name, sym := range syms.Symbols {
		if !sym.IsCommon {
			continue
		}
		byFamily[sym.Section] = append(byFamily[sym.Section], commonSym{name, sym})
	}

	for family, entries := range byFamily {
		bssKind, ok := commonFamily[family]
		if !ok {
			return diag.New(diag.SymbolError, "", "common symbol in unrecognized family %s", family)
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].sym.ObjIndex != entries[j].sym.ObjIndex {
				return entries[i].sym.ObjIndex < entries[j].sym.ObjIndex
			}
			return entries[i].name < entries[j].name
		})

		offset := l.Sizes[bssKind]
		for _, e := range entries {
			if rem := offset % defaultAlignment; rem != 0 {
				offset += defaultAlignment - rem
			}
			e.sym.Section = bssKind
			e.sym.Value = offset
			offset += e.sym.CommonSize
		}
		l.CommonSizes[family] = offset - l.Sizes[bssKind]
		l.Sizes[bssKind] = offset
	}

	return nil
}
