// Package exec implements the ExpressionExecutor, the hardest part of
// the linker (spec.md §4.6): it walks each object's command stream via
// internal/walker, maintaining a per-object calculator stack, to (a)
// materialize final bytes into section images, (b) decide which writes
// produce relocation entries, and (c) classify and emit diagnostics.
//
// Generalizes wut4/lang/yld/linker.go's relocate() — resolve a symbol,
// compute its final address, patch it into a merged buffer, classify
// the patch by relocation type — into the opcode-family interpreter
// spec.md describes, adding the calculator stack the teacher's flat
// WOFReloc table never needed.
package exec

import (
	"encoding/binary"

	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
	"github.com/gmofishsauce/h68kld/internal/reloc"
	"github.com/gmofishsauce/h68kld/internal/resolver"
	"github.com/gmofishsauce/h68kld/internal/walker"
)

// Executor owns the final section image buffers and the relocation
// entries collected while materializing every object's command stream.
type Executor struct {
	objs   []*objfmt.Object
	syms   *resolver.Result
	lay    *layout.Layout
	images map[objfmt.SectionKind][]byte
	relocs map[objfmt.SectionKind][]reloc.Entry

	Warnings []diag.Warning
}

func New(objs []*objfmt.Object, syms *resolver.Result, lay *layout.Layout) *Executor {
	images := make(map[objfmt.SectionKind][]byte)
	for kind, size := range lay.Sizes {
		images[kind] = make([]byte, size)
	}
	return &Executor{
		objs:   objs,
		syms:   syms,
		lay:    lay,
		images: images,
		relocs: make(map[objfmt.SectionKind][]reloc.Entry),
	}
}

// Images returns the final, fully-materialized section buffers, keyed
// by section kind.
func (ex *Executor) Images() map[objfmt.SectionKind][]byte { return ex.images }

// Relocations returns the relocation entries collected for a section
// kind, already sorted into ascending-offset order (spec.md §5, §8
// property 3) by Run.
func (ex *Executor) Relocations(kind objfmt.SectionKind) []reloc.Entry { return ex.relocs[kind] }

// Run materializes every object's command stream in input order
// (spec.md §5: "objects are processed in input order").
func (ex *Executor) Run() error {
	for i, obj := range ex.objs {
		v := &objVisitor{ex: ex, objIdx: i, obj: obj}
		if err := walker.Walk(obj, v); err != nil {
			return err
		}
		if v.stack.depth() != 0 {
			return diag.New(diag.StackError, obj.Path, "calculator stack not empty at end of object (depth %d)", v.stack.depth())
		}
	}
	for kind := range ex.relocs {
		sortRelocs(ex.relocs[kind])
	}
	return nil
}

func sortRelocs(entries []reloc.Entry) {
	// Small insertion sort: relocation counts per section are modest and
	// this keeps the dependency surface to the language itself; ties
	// cannot occur since two writes cannot target the same offset.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Offset > entries[j].Offset; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// objVisitor is the walker.Visitor that does the actual interpretation
// for a single object; it owns that object's calculator stack.
type objVisitor struct {
	ex     *Executor
	objIdx int
	obj    *objfmt.Object
	stack  calcStack
}

func (v *objVisitor) OnSectionChange(cmd objfmt.Command) error { return nil }
func (v *objVisitor) OnReserve(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	return nil // zero-fill: the image buffer is already zeroed on allocation
}
func (v *objVisitor) OnOther(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error { return nil }
func (v *objVisitor) OnEnd(cur objfmt.SectionKind, cursors map[objfmt.SectionKind]int) error {
	return nil
}

func (v *objVisitor) OnRawData(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	base := int(v.ex.lay.BaseOf(cur, v.objIdx))
	buf := v.ex.images[cur]
	if buf == nil {
		return nil
	}
	copy(buf[base+cursor:], cmd.Raw)
	return nil
}

func (v *objVisitor) OnOpaque(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	switch cmd.Code {
	case objfmt.OpDirectByteA, objfmt.OpDirectByteB:
		return v.directWrite(cmd, cur, cursor, objfmt.WidthByte, false)
	case objfmt.OpDirectWordA, objfmt.OpDirectWordB:
		return v.directWrite(cmd, cur, cursor, objfmt.WidthWord, false)
	case objfmt.OpDirectLongA, objfmt.OpDirectLongB:
		return v.directWrite(cmd, cur, cursor, objfmt.WidthLong, false)

	case objfmt.OpDispByte:
		return v.directWrite(cmd, cur, cursor, objfmt.WidthByte, true)
	case objfmt.OpDispWord:
		return v.directWrite(cmd, cur, cursor, objfmt.WidthWord, true)
	case objfmt.OpDispLong, objfmt.OpDispLongAlt:
		return v.directWrite(cmd, cur, cursor, objfmt.WidthLong, true)

	case objfmt.OpPush:
		return v.pushConst(cmd)

	case objfmt.OpStoreByte, objfmt.OpStoreByteAlt, objfmt.OpStoreByteAlt2:
		return v.storeWrite(cur, cursor, objfmt.WidthByte, false)
	case objfmt.OpStoreWordReloc:
		return v.storeWrite(cur, cursor, objfmt.WidthWord, true)
	case objfmt.OpStoreLongReloc, objfmt.OpStoreLongRelocB:
		return v.storeWrite(cur, cursor, objfmt.WidthLong, true)
	case objfmt.OpStoreLongNoReloc:
		return v.storeWrite(cur, cursor, objfmt.WidthLong, false)

	default:
		if cmd.Code>>8 == objfmt.OpOperatorPrefix {
			return v.operator(objfmt.OperatorOp(cmd.Code & 0xff))
		}
		return diag.New(diag.ParseError, v.obj.Path, "unhandled opcode 0x%04x", cmd.Code)
	}
}

func (v *objVisitor) pushConst(cmd objfmt.Command) error {
	sel := cmd.Payload[0]
	imm := int32(binary.BigEndian.Uint32(cmd.Payload[1:5]))
	val, err := v.ex.resolveOperand(v.objIdx, v.obj.Path, sel, imm)
	if err != nil {
		return err
	}
	if err := v.stack.push(val); err != nil {
		return diag.New(diag.StackError, v.obj.Path, "%v", err)
	}
	return nil
}

func (v *objVisitor) operator(op objfmt.OperatorOp) error {
	if op.IsUnary() {
		a, err := v.stack.pop()
		if err != nil {
			return diag.New(diag.StackError, v.obj.Path, "%v", err)
		}
		res, _, msg := applyUnary(op, a)
		if msg != "" {
			return diag.New(diag.ExpressionError, v.obj.Path, "%s", msg)
		}
		if err := v.stack.push(res); err != nil {
			return diag.New(diag.StackError, v.obj.Path, "%v", err)
		}
		return nil
	}

	right, err := v.stack.pop()
	if err != nil {
		return diag.New(diag.StackError, v.obj.Path, "%v", err)
	}
	left, err := v.stack.pop()
	if err != nil {
		return diag.New(diag.StackError, v.obj.Path, "%v", err)
	}
	res, msg := applyBinary(op, left, right)
	if msg != "" {
		return diag.New(diag.ExpressionError, v.obj.Path, "%s", msg)
	}
	if err := v.stack.push(res); err != nil {
		return diag.New(diag.StackError, v.obj.Path, "%v", err)
	}
	return nil
}

// directWrite implements both the direct-write family (spec.md §4.6
// item 1) and the displacement-write family (item 2); the two differ
// only in how the final value is computed (absolute vs. cursor-
// relative) and in whether a relocation entry is ever legal at all.
func (v *objVisitor) directWrite(cmd objfmt.Command, cur objfmt.SectionKind, cursor int, width objfmt.WriteWidth, isDisp bool) error {
	sel := cmd.Payload[0]
	imm := decodeImmediate(cmd.Payload[1:], width)

	operand, err := v.ex.resolveOperand(v.objIdx, v.obj.Path, sel, imm)
	if err != nil {
		return err
	}

	base := int(v.ex.lay.BaseOf(cur, v.objIdx))
	absOffset := base + cursor

	var final int32
	if isDisp {
		final = operand.value - int32(absOffset)
	} else {
		final = operand.value
	}

	relocatable := operand.isAddress() && operand.section.IsRelocatable()

	if isDisp {
		if relocatable {
			if width == objfmt.WidthLong {
				return diag.WithPos(diag.ExpressionError, v.obj.Path, cur.String(), int64(absOffset),
					"32-bit displacement of address-attributed symbol")
			}
			return diag.WithPos(diag.ExpressionError, v.obj.Path, cur.String(), int64(absOffset),
				"displacement of address-attributed symbol cannot be narrowed to %d bytes", width)
		}
	} else if relocatable && !canCarryRelocation(width) {
		return diag.WithPos(diag.ExpressionError, v.obj.Path, cur.String(), int64(absOffset),
			"cannot narrow address-attributed value to a byte write")
	}

	if !fitsWidth(final, width) {
		return diag.WithPos(diag.ExpressionError, v.obj.Path, cur.String(), int64(absOffset),
			"value 0x%x does not fit in %d-byte write", uint32(final), width)
	}

	if width != objfmt.WidthByte {
		if absOffset%2 != 0 {
			return diag.WithPos(diag.RelocationError, v.obj.Path, cur.String(), int64(absOffset),
				"relocation target at odd address")
		}
	}

	if v.ex.images[cur] == nil {
		return diag.WithPos(diag.ParseError, v.obj.Path, cur.String(), int64(absOffset),
			"write opcode outside a materialized section")
	}

	if err := writeValue(v.ex.images[cur], base+cursor, final, width); err != nil {
		return diag.WithPos(diag.ParseError, v.obj.Path, cur.String(), int64(absOffset), "%v", err)
	}

	if !isDisp && relocatable {
		rw := reloc.Word
		if width == objfmt.WidthLong {
			rw = reloc.Long
		} else {
			v.ex.Warnings = append(v.ex.Warnings, diag.NewWarning(v.obj.Path,
				"address-attributed value narrowed to a 16-bit relocation at offset 0x%x (%s)", absOffset, cur))
		}
		v.ex.relocs[cur] = append(v.ex.relocs[cur], reloc.Entry{Offset: uint32(absOffset), Width: rw})
	}

	return nil
}

func (v *objVisitor) storeWrite(cur objfmt.SectionKind, cursor int, width objfmt.WriteWidth, relocCapable bool) error {
	val, err := v.stack.pop()
	if err != nil {
		return diag.New(diag.StackError, v.obj.Path, "%v", err)
	}

	base := int(v.ex.lay.BaseOf(cur, v.objIdx))
	absOffset := base + cursor
	relocatable := val.isAddress() && val.section.IsRelocatable()

	if relocatable && !relocCapable {
		return diag.WithPos(diag.ExpressionError, v.obj.Path, cur.String(), int64(absOffset),
			"outputting address-attribute symbol value")
	}

	if !fitsWidth(val.value, width) {
		return diag.WithPos(diag.ExpressionError, v.obj.Path, cur.String(), int64(absOffset),
			"value 0x%x does not fit in %d-byte write", uint32(val.value), width)
	}

	if width != objfmt.WidthByte && absOffset%2 != 0 {
		return diag.WithPos(diag.RelocationError, v.obj.Path, cur.String(), int64(absOffset),
			"relocation target at odd address")
	}

	if v.ex.images[cur] == nil {
		return diag.WithPos(diag.ParseError, v.obj.Path, cur.String(), int64(absOffset),
			"write opcode outside a materialized section")
	}

	if err := writeValue(v.ex.images[cur], base+cursor, val.value, width); err != nil {
		return diag.WithPos(diag.ParseError, v.obj.Path, cur.String(), int64(absOffset), "%v", err)
	}

	if relocatable && relocCapable {
		rw := reloc.Word
		if width == objfmt.WidthLong {
			rw = reloc.Long
		} else {
			v.ex.Warnings = append(v.ex.Warnings, diag.NewWarning(v.obj.Path,
				"address-attributed value narrowed to a 16-bit relocation at offset 0x%x (%s)", absOffset, cur))
		}
		v.ex.relocs[cur] = append(v.ex.relocs[cur], reloc.Entry{Offset: uint32(absOffset), Width: rw})
	}

	return nil
}

func decodeImmediate(b []byte, width objfmt.WriteWidth) int32 {
	switch width {
	case objfmt.WidthByte:
		return int32(int8(b[0]))
	case objfmt.WidthWord:
		return int32(int16(binary.BigEndian.Uint16(b)))
	case objfmt.WidthLong:
		return int32(binary.BigEndian.Uint32(b))
	default:
		return 0
	}
}

func writeValue(buf []byte, offset int, v int32, width objfmt.WriteWidth) error {
	if offset < 0 || offset+int(width) > len(buf) {
		return diag.New(diag.ParseError, "", "write at offset %d out of bounds (buffer length %d)", offset, len(buf))
	}
	switch width {
	case objfmt.WidthByte:
		buf[offset] = byte(v)
	case objfmt.WidthWord:
		binary.BigEndian.PutUint16(buf[offset:], uint16(v))
	case objfmt.WidthLong:
		binary.BigEndian.PutUint32(buf[offset:], uint32(v))
	}
	return nil
}
