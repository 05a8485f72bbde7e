package exec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

func directCmd(code uint16, sel byte, imm int32, width objfmt.WriteWidth) objfmt.Command {
	var immBytes []byte
	switch width {
	case objfmt.WidthByte:
		immBytes = []byte{byte(imm)}
	case objfmt.WidthWord:
		immBytes = make([]byte, 2)
		binary.BigEndian.PutUint16(immBytes, uint16(imm))
	case objfmt.WidthLong:
		immBytes = make([]byte, 4)
		binary.BigEndian.PutUint32(immBytes, uint32(imm))
	}
	payload := append([]byte{sel}, immBytes...)
	return objfmt.Command{Tag: objfmt.TagOpaque, Code: code, Payload: payload}
}

func pushCmd(sel byte, imm int32) objfmt.Command {
	payload := make([]byte, 5)
	payload[0] = sel
	binary.BigEndian.PutUint32(payload[1:], uint32(imm))
	return objfmt.Command{Tag: objfmt.TagOpaque, Code: objfmt.OpPush, Payload: payload}
}

func opCmd(op objfmt.OperatorOp) objfmt.Command {
	return objfmt.Command{Tag: objfmt.TagOpaque, Code: uint16(objfmt.OpOperatorPrefix)<<8 | uint16(op)}
}

func storeCmd(code uint16) objfmt.Command {
	return objfmt.Command{Tag: objfmt.TagOpaque, Code: code}
}

func sectionCmd(kind objfmt.SectionKind) objfmt.Command {
	return objfmt.Command{Tag: objfmt.TagSectionChange, Section: kind}
}

func buildExecutor(t *testing.T, objs []*objfmt.Object) (*Executor, *layout.Layout) {
	t.Helper()
	syms, err := resolver.Resolve(objs)
	require.NoError(t, err)
	lay, err := layout.Compute(objs, syms)
	require.NoError(t, err)
	return New(objs, syms, lay), lay
}

func TestExecutor_DirectConstantWrite(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 4},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			directCmd(objfmt.OpDirectLongA, 0x00, 0x1234, objfmt.WidthLong),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	require.NoError(t, ex.Run())

	img := ex.Images()[objfmt.Text]
	assert.Equal(t, uint32(0x1234), binary.BigEndian.Uint32(img))
	assert.Empty(t, ex.Relocations(objfmt.Text))
}

func TestExecutor_RelocatableAddressProducesRelocation(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Data: 4, objfmt.RData: 8},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Data),
			directCmd(objfmt.OpDirectLongA, byte(objfmt.RData), 4, objfmt.WidthLong),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, lay := buildExecutor(t, []*objfmt.Object{obj})
	require.NoError(t, ex.Run())

	img := ex.Images()[objfmt.Data]
	want := uint32(lay.BaseOf(objfmt.RData, 0)) + 4
	assert.Equal(t, want, binary.BigEndian.Uint32(img))

	relocs := ex.Relocations(objfmt.Data)
	require.Len(t, relocs, 1)
	assert.Equal(t, uint32(0), relocs[0].Offset)
	assert.Equal(t, Long, relocs[0].Width)
}

func TestExecutor_WordWidthRelocationWarns(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Data: 2, objfmt.RData: 8},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Data),
			directCmd(objfmt.OpDirectWordA, byte(objfmt.RData), 4, objfmt.WidthWord),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	require.NoError(t, ex.Run())

	require.Len(t, ex.Warnings, 1)
	assert.Contains(t, ex.Warnings[0].Msg, "narrowed to a 16-bit relocation")
}

func TestExecutor_PushOperatorStore(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 2},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			pushCmd(0x00, 5),
			pushCmd(0x00, 3),
			opCmd(objfmt.OpAdd),
			storeCmd(objfmt.OpStoreWordReloc),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	require.NoError(t, ex.Run())

	img := ex.Images()[objfmt.Text]
	assert.EqualValues(t, 8, binary.BigEndian.Uint16(img))
}

func TestExecutor_SubtractAddressesInSameFamilyIsLegal(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 4},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			pushCmd(byte(objfmt.RData), 10),
			pushCmd(byte(objfmt.RBss), 4),
			opCmd(objfmt.OpSub),
			storeCmd(objfmt.OpStoreLongNoReloc),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	require.NoError(t, ex.Run())

	img := ex.Images()[objfmt.Text]
	assert.EqualValues(t, 6, int32(binary.BigEndian.Uint32(img)))
	assert.Empty(t, ex.Relocations(objfmt.Text))
}

func TestExecutor_SubtractAddressesAcrossFamiliesIsFatal(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 4},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			pushCmd(byte(objfmt.RData), 10),
			pushCmd(byte(objfmt.RlData), 4),
			opCmd(objfmt.OpSub),
			storeCmd(objfmt.OpStoreLongNoReloc),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	err := ex.Run()
	require.Error(t, err)
	de, ok := err.(*diag.Error)
	require.True(t, ok)
	assert.Equal(t, diag.ExpressionError, de.Kind)
}

func TestExecutor_DivisionByZeroIsFatal(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 1},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			pushCmd(0x00, 5),
			pushCmd(0x00, 0),
			opCmd(objfmt.OpDiv),
			storeCmd(objfmt.OpStoreByte),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	err := ex.Run()
	require.Error(t, err)
	de, ok := err.(*diag.Error)
	require.True(t, ok)
	assert.Equal(t, diag.ExpressionError, de.Kind)
}

func TestExecutor_StackUnderflowIsFatal(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 1},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			storeCmd(objfmt.OpStoreByte),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	err := ex.Run()
	require.Error(t, err)
	de, ok := err.(*diag.Error)
	require.True(t, ok)
	assert.Equal(t, diag.StackError, de.Kind)
}

func TestExecutor_NonEmptyStackAtEndIsFatal(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 0},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			pushCmd(0x00, 1),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	err := ex.Run()
	require.Error(t, err)
	de, ok := err.(*diag.Error)
	require.True(t, ok)
	assert.Equal(t, diag.StackError, de.Kind)
}

func TestExecutor_ByteWriteOfAddressIsFatal(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Data: 1, objfmt.RData: 4},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Data),
			directCmd(objfmt.OpDirectByteA, byte(objfmt.RData), 0, objfmt.WidthByte),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	err := ex.Run()
	require.Error(t, err)
	de, ok := err.(*diag.Error)
	require.True(t, ok)
	assert.Equal(t, diag.ExpressionError, de.Kind)
}

func TestExecutor_DisplacementOfAddressCannotBeLong(t *testing.T) {
	obj := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 4, objfmt.RData: 4},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			directCmd(objfmt.OpDispLong, byte(objfmt.RData), 0, objfmt.WidthLong),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, _ := buildExecutor(t, []*objfmt.Object{obj})
	err := ex.Run()
	require.Error(t, err)
	de, ok := err.(*diag.Error)
	require.True(t, ok)
	assert.Equal(t, diag.ExpressionError, de.Kind)
}

func TestExecutor_ProcessesObjectsInInputOrder(t *testing.T) {
	a := &objfmt.Object{
		Path:         "a.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 4},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			directCmd(objfmt.OpDirectLongA, 0x00, 1, objfmt.WidthLong),
			{Tag: objfmt.TagEnd},
		},
	}
	b := &objfmt.Object{
		Path:         "b.o",
		SectionSizes: map[objfmt.SectionKind]int{objfmt.Text: 4},
		Commands: []objfmt.Command{
			sectionCmd(objfmt.Text),
			directCmd(objfmt.OpDirectLongA, 0x00, 2, objfmt.WidthLong),
			{Tag: objfmt.TagEnd},
		},
	}

	ex, lay := buildExecutor(t, []*objfmt.Object{a, b})
	require.NoError(t, ex.Run())

	img := ex.Images()[objfmt.Text]
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(img[lay.BaseOf(objfmt.Text, 0):]))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(img[lay.BaseOf(objfmt.Text, 1):]))
}
