// Package walker implements CommandWalker, the single shared traversal
// primitive spec.md §4.5/§9 calls for: one pass over an object's
// commands that maintains (current section, per-section write cursor)
// and dispatches to a small Visitor hook set. The calculator stack is
// not tracked here; a visitor that needs one keeps its own, as
// internal/exec's objVisitor does. internal/exec implements Visitor to
// materialize section images, collect relocations and validate
// expressions in one pass; internal/parser does its own write-size
// accounting while decoding, with writeWidthOf mirroring WriteAdvance.
//
// Has no direct teacher analogue (wut4's flat WOF format needs no
// cursor-tracking visitor over a command stream); modeled on the
// File/Section split in aclements/go-obj's obj.go, which separates
// "what section am I in" from "what does this section's content mean."
package walker

import "github.com/gmofishsauce/h68kld/internal/objfmt"

// Visitor receives one callback per command as CommandWalker advances
// through an object's command stream. cur is the section the command
// executes in (already updated for SectionChange itself); cursor is the
// write cursor's value within cur *before* this command's own write (if
// any) is applied. Any hook may return a fatal error to stop the walk
// immediately (spec.md §4.6: "executor errors are fatal at the object
// level").
type Visitor interface {
	OnSectionChange(cmd objfmt.Command) error
	OnRawData(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error
	OnReserve(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error
	OnOpaque(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error
	OnOther(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error
	OnEnd(cur objfmt.SectionKind, cursors map[objfmt.SectionKind]int) error
}

// Walk performs a single pass over obj.Commands, calling back into v.
// Unlike internal/parser (which only classifies shape to learn section
// sizes), Walk advances real per-section cursors it hands back to the
// visitor, so visitors that materialize bytes or compute relocation
// offsets always know exactly where they are. Walk stops and returns
// the first error a hook produces.
func Walk(obj *objfmt.Object, v Visitor) error {
	cursors := make(map[objfmt.SectionKind]int)
	cur := objfmt.Abs

	for _, cmd := range obj.Commands {
		switch cmd.Tag {
		case objfmt.TagSectionChange:
			cur = cmd.Section
			if err := v.OnSectionChange(cmd); err != nil {
				return err
			}

		case objfmt.TagRawData:
			if err := v.OnRawData(cmd, cur, cursors[cur]); err != nil {
				return err
			}
			cursors[cur] += len(cmd.Raw)

		case objfmt.TagReserve:
			if err := v.OnReserve(cmd, cur, cursors[cur]); err != nil {
				return err
			}
			cursors[cur] += cmd.ReserveLen

		case objfmt.TagOpaque:
			before := cursors[cur]
			if err := v.OnOpaque(cmd, cur, before); err != nil {
				return err
			}
			cursors[cur] += int(WriteAdvance(cmd.Code))

		case objfmt.TagEnd:
			if err := v.OnEnd(cur, cursors); err != nil {
				return err
			}

		default:
			if err := v.OnOther(cmd, cur, cursors[cur]); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteAdvance reports how far an opaque opcode advances the current
// section's write cursor, mirroring internal/parser's writeWidthOf so
// both stages agree on cursor semantics (spec.md invariant: "each
// object's section cursor begins at zero for that section and equals
// section_size(object, kind) at end of stream").
func WriteAdvance(code uint16) objfmt.WriteWidth {
	switch code {
	case objfmt.OpDirectByteA, objfmt.OpDirectByteB, objfmt.OpDispByte,
		objfmt.OpStoreByte, objfmt.OpStoreByteAlt, objfmt.OpStoreByteAlt2:
		return objfmt.WidthByte
	case objfmt.OpDirectWordA, objfmt.OpDirectWordB, objfmt.OpDispWord, objfmt.OpStoreWordReloc:
		return objfmt.WidthWord
	case objfmt.OpDirectLongA, objfmt.OpDirectLongB, objfmt.OpDispLong, objfmt.OpDispLongAlt,
		objfmt.OpStoreLongReloc, objfmt.OpStoreLongNoReloc, objfmt.OpStoreLongRelocB:
		return objfmt.WidthLong
	default:
		return 0 // push / operator opcodes don't touch the section cursor
	}
}
