// Package writer implements the `.x`/`.r`/`.mcs` output stages spec.md
// §4.7/§6 describes: header framing, payload concatenation, the
// delta-encoded relocation table, the symbol table, and SCD pass-through
// with positional fix-ups.
//
// Grounded on wut4/lang/yld/output.go's writeExecutable — a header
// buffer built field-by-field then written with one os.Create/file.Write
// pair — generalized from that format's 16-byte little-endian header to
// the 64-byte big-endian one spec.md §6 names, and from a single
// code+data payload to the full text/data/reloc/symbol/SCD concatenation.
package writer

import (
	"encoding/binary"
	"sort"

	"github.com/gmofishsauce/h68kld/internal/config"
	"github.com/gmofishsauce/h68kld/internal/exec"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
	"github.com/gmofishsauce/h68kld/internal/reloc"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

// Payload is the assembled, order-dependent byte content shared by the
// `.x`, `.r` and `.mcs` writers; the `.x` and `.mcs` writers prepend
// their own header, and the `.r` and `.mcs` writers conditionally append
// bss-class zero-fill.
type Payload struct {
	Text []byte
	Data []byte

	BssSize uint32 // bss + rbss + rlbss + stack + rstack + rlstack, all zero-fill

	RelocTable  []byte
	SymbolTable []byte

	SCDLine []byte
	SCDInfo []byte
	SCDName []byte

	CtorTable []byte
	DtorTable []byte
}

// fold is this implementation's resolution of an ambiguity spec.md
// leaves open: the `.x`/`.r` header only names text/data/bss sizes, with
// no field for the r*/rl* kinds. Since rdata/rldata carry initialized
// bytes like data (and rbss/rlbss/rstack/rlstack are all reserve-only
// like bss), this implementation folds the relocatable families into
// their plain counterpart's output region: a second relocation epoch is
// a property of how an operand's final address was computed, not of
// where its bytes live in the emitted file. See DESIGN.md.
func foldedDataSize(lay *layout.Layout) uint32 {
	return uint32(lay.Sizes[objfmt.Data]) + uint32(lay.Sizes[objfmt.RData]) + uint32(lay.Sizes[objfmt.RlData])
}

func foldedBssSize(lay *layout.Layout) uint32 {
	return uint32(lay.Sizes[objfmt.Bss]) + uint32(lay.Sizes[objfmt.RBss]) + uint32(lay.Sizes[objfmt.RlBss]) +
		uint32(lay.Sizes[objfmt.Stack]) + uint32(lay.Sizes[objfmt.RStack]) + uint32(lay.Sizes[objfmt.RlStack])
}

// Assemble builds the shared payload used by every writer. objs/syms/lay
// describe the completed link; ex has already run (internal/exec.Run).
func Assemble(cfg *config.Config, objs []*objfmt.Object, syms *resolver.Result, lay *layout.Layout, ex *exec.Executor) (*Payload, error) {
	p := &Payload{
		Text:    cloneOrEmpty(ex.Images()[objfmt.Text]),
		BssSize: foldedBssSize(lay),
	}

	p.Data = append(append([]byte{}, cloneOrEmpty(ex.Images()[objfmt.Data])...),
		append(cloneOrEmpty(ex.Images()[objfmt.RData]), cloneOrEmpty(ex.Images()[objfmt.RlData])...)...)

	relocBytes, err := assembleRelocations(lay, ex)
	if err != nil {
		return nil, err
	}
	p.RelocTable = relocBytes

	if cfg.SymbolTablePolicy == config.SymbolsKeep {
		p.SymbolTable = assembleSymbolTable(cfg, syms, lay)
	}

	line, info, name, err := rebaseSCD(objs, lay, syms)
	if err != nil {
		return nil, err
	}
	p.SCDLine, p.SCDInfo, p.SCDName = line, info, name

	p.CtorTable = assembleCtorDtorTable(cfg.G2lkMode, syms.CtorParticipants, syms.CtorValues, lay)
	p.DtorTable = assembleCtorDtorTable(cfg.G2lkMode, syms.DtorParticipants, syms.DtorValues, lay)

	return p, nil
}

// assembleCtorDtorTable serializes a ctor or dtor address table: one
// 4-byte big-endian address per participating object, in object-input
// order, duplicates from an object flagging participation more than
// once collapsed to a single entry. Participation is filtered by
// g2lk mode (spec.md §9): off emits no table at all; flag includes
// only objects that set the e0 0c/0d object-level flag; request
// additionally honors objects that instead used the value-bearing
// 4c 01/4d 01 opcode, whose Value this implementation reads as an
// offset from that object's own text base (spec.md names no byte
// layout for this table; see DESIGN.md).
func assembleCtorDtorTable(mode config.G2lkMode, participants []int, values map[int]int32, lay *layout.Layout) []byte {
	if mode == config.G2lkOff {
		return nil
	}

	var buf []byte
	seen := make(map[int]bool, len(participants))
	for _, objIdx := range participants {
		if seen[objIdx] {
			continue
		}
		seen[objIdx] = true

		value, isRequestOnly := values[objIdx]
		if isRequestOnly && mode != config.G2lkRequest {
			continue
		}

		addr := uint32(lay.BaseOf(objfmt.Text, objIdx)) + uint32(value)
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], addr)
		buf = append(buf, v[:]...)
	}
	return buf
}

func cloneOrEmpty(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// assembleRelocations folds every writing section's relocation entries
// into the single linear address space the output file's text+data
// payload occupies: text first, then data (which itself folds
// rdata/rldata per foldedDataSize), per spec.md §8 property 3's
// ascending-offset requirement.
func assembleRelocations(lay *layout.Layout, ex *exec.Executor) ([]byte, error) {
	textSize := uint32(lay.Sizes[objfmt.Text])

	var all []reloc.Entry
	for _, e := range ex.Relocations(objfmt.Text) {
		all = append(all, e)
	}
	for _, e := range ex.Relocations(objfmt.Data) {
		all = append(all, reloc.Entry{Offset: e.Offset + textSize, Width: e.Width})
	}
	rdataBase := textSize + uint32(lay.Sizes[objfmt.Data])
	for _, e := range ex.Relocations(objfmt.RData) {
		all = append(all, reloc.Entry{Offset: e.Offset + rdataBase, Width: e.Width})
	}
	rldataBase := rdataBase + uint32(lay.Sizes[objfmt.RData])
	for _, e := range ex.Relocations(objfmt.RlData) {
		all = append(all, reloc.Entry{Offset: e.Offset + rldataBase, Width: e.Width})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Offset < all[j].Offset })
	return reloc.EncodeDelta(all)
}

// assembleSymbolTable serializes every resolved symbol, sorted by
// input-object order and then by name within an object; the order in
// which an object defines its symbols is not kept. A common is grouped
// with the first object that declared it and ordered by name among that
// object's xdefs.
//
// Entry format (this implementation's choice; spec.md §6 names only the
// symbol table's total byte size, not its layout): 1-byte name length,
// name bytes, 1-byte section kind, 4-byte big-endian value.
func assembleSymbolTable(cfg *config.Config, syms *resolver.Result, lay *layout.Layout) []byte {
	type entry struct {
		name    string
		section objfmt.SectionKind
		value   int32
		objIdx  int
	}
	var entries []entry
	for name, sym := range syms.Symbols {
		val := sym.Value
		sec := sym.Section
		if !sym.IsCommon {
			val += lay.BaseOf(sym.Section, sym.ObjIndex)
		}
		entries = append(entries, entry{name: name, section: sec, value: val, objIdx: sym.ObjIndex})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].objIdx != entries[j].objIdx {
			return entries[i].objIdx < entries[j].objIdx
		}
		return entries[i].name < entries[j].name
	})

	var buf []byte
	for _, e := range entries {
		name := e.name
		if len(name) > 255 {
			name = name[:255]
		}
		buf = append(buf, byte(len(name)))
		buf = append(buf, name...)
		buf = append(buf, byte(e.section))
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], uint32(e.value))
		buf = append(buf, v[:]...)
	}
	return buf
}
