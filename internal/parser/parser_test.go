package parser

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/h68kld/internal/objfmt"
)

// objBuilder assembles a raw object byte stream for use in tests, one
// opcode at a time. Generalized from wut4/lang/yld/linker_test.go's
// wofBuilder (populate fields, call build()) into an append-only opcode
// sequence matching this format's variable-shape command stream.
type objBuilder struct {
	buf []byte
}

func (b *objBuilder) sectionShort(kind objfmt.SectionKind) *objBuilder {
	b.buf = append(b.buf, objfmt.OpSectionChangeSh, byte(kind))
	return b
}

func (b *objBuilder) rawData(data []byte) *objBuilder {
	b.buf = append(b.buf, objfmt.OpRawData)
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(data)))
	b.buf = append(b.buf, n[:]...)
	b.buf = append(b.buf, data...)
	return b
}

func (b *objBuilder) reserve(n int) *objBuilder {
	b.buf = append(b.buf, objfmt.OpReserve)
	var ln [2]byte
	binary.BigEndian.PutUint16(ln[:], uint16(n))
	b.buf = append(b.buf, ln[:]...)
	return b
}

func (b *objBuilder) xdef(name string, section objfmt.SectionKind, value int32) *objBuilder {
	b.buf = append(b.buf, objfmt.OpSymbolDefXdef, byte(len(name)))
	b.buf = append(b.buf, name...)
	b.buf = append(b.buf, byte(section))
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], uint32(value))
	b.buf = append(b.buf, v[:]...)
	return b
}

func (b *objBuilder) xref(name string, num uint16) *objBuilder {
	b.buf = append(b.buf, objfmt.OpSymbolRefNumber, byte(len(name)))
	b.buf = append(b.buf, name...)
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], num)
	b.buf = append(b.buf, n[:]...)
	return b
}

func (b *objBuilder) end() []byte {
	b.buf = append(b.buf, 0x00, 0x00)
	return b.buf
}

func TestParse_Minimal(t *testing.T) {
	raw := (&objBuilder{}).end()
	obj, err := Parse("empty.o", raw)
	require.NoError(t, err)
	assert.Len(t, obj.Commands, 1)
	assert.Equal(t, objfmt.TagEnd, obj.Commands[0].Tag)
	assert.False(t, obj.SCD.Present)
}

func TestParse_SectionsAndSizes(t *testing.T) {
	raw := (&objBuilder{}).
		sectionShort(objfmt.Text).
		rawData([]byte{0x4e, 0x71, 0x4e, 0x75}).
		sectionShort(objfmt.Bss).
		reserve(8).
		end()

	obj, err := Parse("a.o", raw)
	require.NoError(t, err)
	assert.Equal(t, 4, obj.SectionSizes[objfmt.Text])
	assert.Equal(t, 8, obj.SectionSizes[objfmt.Bss])
}

func TestParse_SymbolDefAndRef(t *testing.T) {
	raw := (&objBuilder{}).
		sectionShort(objfmt.Text).
		xdef("_main", objfmt.Text, 0).
		xref("_printf", 1).
		end()

	obj, err := Parse("a.o", raw)
	require.NoError(t, err)

	var sawDef, sawRef bool
	for _, cmd := range obj.Commands {
		switch cmd.Tag {
		case objfmt.TagSymbolDef:
			sawDef = true
			assert.Equal(t, "_main", cmd.Name)
			assert.Equal(t, objfmt.KindXdef, cmd.SymKind)
		case objfmt.TagSymbolRef:
			sawRef = true
			assert.Equal(t, "_printf", cmd.Name)
			assert.Equal(t, 1, cmd.XrefNumber)
		}
	}
	assert.True(t, sawDef)
	assert.True(t, sawRef)
}

func TestParse_OpaqueDirectWrite(t *testing.T) {
	b := &objBuilder{}
	b.sectionShort(objfmt.Text)
	// Direct long write: opcode, selector (0x00 constant), 4-byte imm.
	b.buf = append(b.buf, objfmt.OpDirectLongA, 0x00)
	var imm [4]byte
	binary.BigEndian.PutUint32(imm[:], 0x1234)
	b.buf = append(b.buf, imm[:]...)
	raw := b.end()

	obj, err := Parse("a.o", raw)
	require.NoError(t, err)
	assert.Equal(t, 4, obj.SectionSizes[objfmt.Text])

	var found bool
	for _, cmd := range obj.Commands {
		if cmd.Tag == objfmt.TagOpaque && cmd.Code == objfmt.OpDirectLongA {
			found = true
			require.Len(t, cmd.Payload, 5)
			assert.Equal(t, byte(0x00), cmd.Payload[0])
		}
	}
	assert.True(t, found)
}

func TestParse_UnknownOpcodeFatal(t *testing.T) {
	raw := []byte{0xff, 0x00, 0x00}
	_, err := Parse("a.o", raw)
	require.Error(t, err)
}

func TestParse_TruncatedStreamFatal(t *testing.T) {
	raw := []byte{objfmt.OpRawData, 0x00, 0x10} // claims 16 bytes, has none
	_, err := Parse("a.o", raw)
	require.Error(t, err)
}

func TestParse_MissingEndFatal(t *testing.T) {
	raw := []byte{objfmt.OpSectionChangeSh, byte(objfmt.Text)}
	_, err := Parse("a.o", raw)
	require.Error(t, err)
}

func TestParse_SCDTrailer(t *testing.T) {
	raw := (&objBuilder{}).end()

	var scd []byte
	scd = append(scd, 0x01) // present
	appendBlock(&scd, []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x02}) // one line entry
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], 0) // zero sinfo entries
	scd = append(scd, count[:]...)
	appendBlock(&scd, nil) // einfo
	appendBlock(&scd, nil) // ninfo
	appendBlock(&scd, []byte("_main\x00"))

	obj, err := Parse("a.o", append(raw, scd...))
	require.NoError(t, err)
	require.True(t, obj.SCD.Present)
	assert.Equal(t, "_main\x00", string(obj.SCD.Names))
	assert.Equal(t, 0, obj.SCD.SInfoCount)
}

func appendBlock(buf *[]byte, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	*buf = append(*buf, n[:]...)
	*buf = append(*buf, data...)
}
