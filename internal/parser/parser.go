// Package parser decodes a raw Human68k-style object byte stream into an
// ordered objfmt.Object, per spec.md §4.1. It is deliberately "dumb": it
// classifies each opcode's payload shape and either decodes it fully
// (section/symbol/control commands) or preserves it verbatim as an
// objfmt.Opaque command for internal/exec to interpret later. Unknown
// opcodes are fatal; known-shape-but-unknown-meaning opcodes are never
// produced — every opcode this package recognizes has a fixed shape
// classification in internal/objfmt/opcodes.go.
//
// Generalizes wut4/lang/yld/reader.go's single fixed-header decode into
// a multi-opcode classify-and-decode loop.
package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
)

type reader struct {
	path string
	buf  []byte
	pos  int
}

// Parse decodes the full byte stream of one object file.
func Parse(path string, data []byte) (*objfmt.Object, error) {
	r := &reader{path: path, buf: data}
	obj := &objfmt.Object{Path: path, SectionSizes: make(map[objfmt.SectionKind]int)}

	cur := objfmt.Abs
	for {
		startOff := r.pos
		if r.remaining() < 1 {
			return nil, parseErr(path, startOff, "unexpected end of stream (missing End command)")
		}
		b0, _ := r.peekByte()

		if b0 == 0x00 {
			b0b, ok := r.peek2ndByte()
			if ok && b0b == 0x00 {
				r.pos += 2
				obj.Commands = append(obj.Commands, objfmt.Command{Tag: objfmt.TagEnd, Offset: startOff})
				obj.SCD = parseSCD(r)
				return obj, nil
			}
		}

		cmd, err := r.decodeOne(cur)
		if err != nil {
			return nil, err
		}
		cmd.Offset = startOff

		switch cmd.Tag {
		case objfmt.TagSectionChange:
			cur = cmd.Section
		case objfmt.TagRawData:
			obj.SectionSizes[cur] += len(cmd.Raw)
		case objfmt.TagReserve:
			obj.SectionSizes[cur] += cmd.ReserveLen
		case objfmt.TagOpaque:
			if w, ok := writeWidthOf(cmd.Code); ok {
				obj.SectionSizes[cur] += int(w)
			}
		}

		obj.Commands = append(obj.Commands, cmd)
	}
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) peekByte() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	return r.buf[r.pos], true
}

func (r *reader) peek2ndByte() (byte, bool) {
	if r.pos+1 >= len(r.buf) {
		return 0, false
	}
	return r.buf[r.pos+1], true
}

func (r *reader) u8() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("truncated stream")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("truncated stream")
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) i32() (int32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("truncated stream")
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("truncated stream")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) name() (string, error) {
	n, err := r.u8()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeWidthOf reports the section-cursor advance for opaque opcodes
// that write into a section image, per spec.md §4.6.
func writeWidthOf(code uint16) (objfmt.WriteWidth, bool) {
	switch code {
	case objfmt.OpDirectByteA, objfmt.OpDirectByteB, objfmt.OpDispByte,
		objfmt.OpStoreByte, objfmt.OpStoreByteAlt, objfmt.OpStoreByteAlt2:
		return objfmt.WidthByte, true
	case objfmt.OpDirectWordA, objfmt.OpDirectWordB, objfmt.OpDispWord, objfmt.OpStoreWordReloc:
		return objfmt.WidthWord, true
	case objfmt.OpDirectLongA, objfmt.OpDirectLongB, objfmt.OpDispLong, objfmt.OpDispLongAlt,
		objfmt.OpStoreLongReloc, objfmt.OpStoreLongNoReloc, objfmt.OpStoreLongRelocB:
		return objfmt.WidthLong, true
	default:
		return 0, false
	}
}

func parseErr(path string, off int, msg string, args ...any) error {
	return diag.WithPos(diag.ParseError, path, "", int64(off), msg, args...)
}

func (r *reader) decodeOne(cur objfmt.SectionKind) (objfmt.Command, error) {
	b0, err := r.u8()
	if err != nil {
		return objfmt.Command{}, parseErr(r.path, r.pos, "truncated opcode")
	}

	switch b0 {
	case objfmt.OpRawData:
		n, err := r.u16()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated raw-data length")
		}
		data, err := r.bytes(int(n))
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated raw-data payload (want %d bytes)", n)
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		return objfmt.Command{Tag: objfmt.TagRawData, Raw: cp}, nil

	case objfmt.OpSectionChangeSh:
		kind, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated section-change opcode")
		}
		return objfmt.Command{Tag: objfmt.TagSectionChange, Section: objfmt.SectionKind(kind)}, nil

	case objfmt.OpSectionHeaderLong:
		kind, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated section header")
		}
		align, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated section alignment")
		}
		name, err := r.name()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated section name")
		}
		return objfmt.Command{Tag: objfmt.TagSectionChange, Section: objfmt.SectionKind(kind), Alignment: 1 << align, Name: name}, nil

	case objfmt.OpReserve:
		n, err := r.u16()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated reserve length")
		}
		return objfmt.Command{Tag: objfmt.TagReserve, ReserveLen: int(n)}, nil

	case objfmt.OpSymbolDefXdef:
		name, err := r.name()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated xdef name")
		}
		kind, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated xdef section")
		}
		val, err := r.i32()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated xdef value")
		}
		return objfmt.Command{Tag: objfmt.TagSymbolDef, Name: name, Section: objfmt.SectionKind(kind), Value: val, SymKind: objfmt.KindXdef}, nil

	case objfmt.OpSymbolDefCommon:
		name, err := r.name()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated common name")
		}
		family, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated common family")
		}
		size, err := r.i32()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated common size")
		}
		fam := objfmt.SectionKind(family)
		if fam != objfmt.Common && fam != objfmt.RCommon && fam != objfmt.RlCommon {
			return objfmt.Command{}, parseErr(r.path, r.pos, "invalid common family byte 0x%02x", family)
		}
		return objfmt.Command{Tag: objfmt.TagSymbolDef, Name: name, Value: size, SymKind: objfmt.KindCommon, Section: fam}, nil

	case objfmt.OpSymbolRefNumber:
		name, err := r.name()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated xref name")
		}
		num, err := r.u16()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated xref number")
		}
		return objfmt.Command{Tag: objfmt.TagSymbolRef, Name: name, XrefNumber: int(num)}, nil

	case objfmt.OpFilenameHi:
		sub, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated d0 sub-opcode")
		}
		if sub != objfmt.OpFilenameLo {
			return objfmt.Command{}, parseErr(r.path, r.pos, "unknown opcode d0 %02x", sub)
		}
		name, err := r.name()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated filename")
		}
		return objfmt.Command{Tag: objfmt.TagFilename, Name: name}, nil

	case objfmt.OpStartAddrHi: // e0: start address / request / ctor-flag / dtor-flag share this prefix
		sub, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated e0 sub-opcode")
		}
		switch sub {
		case objfmt.OpStartAddrLo:
			kind, err := r.u8()
			if err != nil {
				return objfmt.Command{}, parseErr(r.path, r.pos, "truncated start-address section")
			}
			val, err := r.i32()
			if err != nil {
				return objfmt.Command{}, parseErr(r.path, r.pos, "truncated start-address value")
			}
			return objfmt.Command{Tag: objfmt.TagStartAddress, Section: objfmt.SectionKind(kind), Value: val}, nil
		case objfmt.OpRequestLo:
			name, err := r.name()
			if err != nil {
				return objfmt.Command{}, parseErr(r.path, r.pos, "truncated request name")
			}
			return objfmt.Command{Tag: objfmt.TagRequest, Name: name}, nil
		case objfmt.OpCtorFlagLo:
			return objfmt.Command{Tag: objfmt.TagCtorDtor, IsCtor: true, IsFlag: true}, nil
		case objfmt.OpDtorFlagLo:
			return objfmt.Command{Tag: objfmt.TagCtorDtor, IsCtor: false, IsFlag: true}, nil
		default:
			return objfmt.Command{}, parseErr(r.path, r.pos, "unknown opcode e0 %02x", sub)
		}

	case objfmt.OpCtorValueHi:
		sub, err := r.u8()
		if err != nil || sub != objfmt.OpCtorValueLo {
			return objfmt.Command{}, parseErr(r.path, r.pos, "unknown opcode 4c %02x", sub)
		}
		val, err := r.i32()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated ctor value")
		}
		return objfmt.Command{Tag: objfmt.TagCtorDtor, IsCtor: true, Value: val}, nil

	case objfmt.OpDtorValueHi:
		sub, err := r.u8()
		if err != nil || sub != objfmt.OpDtorValueLo {
			return objfmt.Command{}, parseErr(r.path, r.pos, "unknown opcode 4d %02x", sub)
		}
		val, err := r.i32()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated dtor value")
		}
		return objfmt.Command{Tag: objfmt.TagCtorDtor, IsCtor: false, Value: val}, nil

	case objfmt.OpDirectByteA, objfmt.OpDirectByteB:
		return r.decodeDirectOrDisp(1)
	case objfmt.OpDirectWordA, objfmt.OpDirectWordB:
		return r.decodeDirectOrDisp(2)
	case objfmt.OpDirectLongA, objfmt.OpDirectLongB:
		return r.decodeDirectOrDisp(4)
	case objfmt.OpDispByte:
		return r.decodeDirectOrDisp(1)
	case objfmt.OpDispWord:
		return r.decodeDirectOrDisp(2)
	case objfmt.OpDispLong, objfmt.OpDispLongAlt:
		return r.decodeDirectOrDisp(4)

	case objfmt.OpPush:
		sel, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated push operand selector")
		}
		val, err := r.i32()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated push value")
		}
		payload := make([]byte, 5)
		payload[0] = sel
		binary.BigEndian.PutUint32(payload[1:], uint32(val))
		return objfmt.Command{Tag: objfmt.TagOpaque, Code: objfmt.OpPush, Payload: payload}, nil

	case objfmt.OpOperatorPrefix:
		sub, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated a0 sub-opcode")
		}
		return objfmt.Command{Tag: objfmt.TagOpaque, Code: uint16(objfmt.OpOperatorPrefix)<<8 | uint16(sub), Payload: nil}, nil

	case objfmt.OpStoreByte, objfmt.OpStoreByteAlt, objfmt.OpStoreByteAlt2,
		objfmt.OpStoreWordReloc, objfmt.OpStoreLongReloc, objfmt.OpStoreLongNoReloc, objfmt.OpStoreLongRelocB:
		return objfmt.Command{Tag: objfmt.TagOpaque, Code: uint16(b0), Payload: nil}, nil

	default:
		return objfmt.Command{}, parseErr(r.path, r.pos-1, "unknown opcode 0x%02x", b0)
	}
}

func (r *reader) decodeDirectOrDisp(width int) (objfmt.Command, error) {
	code := r.buf[r.pos-1]
	sel, err := r.u8()
	if err != nil {
		return objfmt.Command{}, parseErr(r.path, r.pos, "truncated operand selector for opcode 0x%02x", code)
	}
	var immBytes []byte
	switch width {
	case 1:
		b, err := r.u8()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated byte immediate for opcode 0x%02x", code)
		}
		immBytes = []byte{b}
	case 2:
		v, err := r.u16()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated word immediate for opcode 0x%02x", code)
		}
		immBytes = make([]byte, 2)
		binary.BigEndian.PutUint16(immBytes, v)
	case 4:
		v, err := r.i32()
		if err != nil {
			return objfmt.Command{}, parseErr(r.path, r.pos, "truncated long immediate for opcode 0x%02x", code)
		}
		immBytes = make([]byte, 4)
		binary.BigEndian.PutUint32(immBytes, uint32(v))
	}
	payload := append([]byte{sel}, immBytes...)
	return objfmt.Command{Tag: objfmt.TagOpaque, Code: uint16(code), Payload: payload}, nil
}
