package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/h68kld/internal/objfmt"
)

type recordingVisitor struct {
	sections []objfmt.SectionKind
	cursors  []int
	endCur   objfmt.SectionKind
	endMap   map[objfmt.SectionKind]int
}

func (v *recordingVisitor) OnSectionChange(cmd objfmt.Command) error {
	v.sections = append(v.sections, cmd.Section)
	return nil
}
func (v *recordingVisitor) OnRawData(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	v.cursors = append(v.cursors, cursor)
	return nil
}
func (v *recordingVisitor) OnReserve(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	v.cursors = append(v.cursors, cursor)
	return nil
}
func (v *recordingVisitor) OnOpaque(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	v.cursors = append(v.cursors, cursor)
	return nil
}
func (v *recordingVisitor) OnOther(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	return nil
}
func (v *recordingVisitor) OnEnd(cur objfmt.SectionKind, cursors map[objfmt.SectionKind]int) error {
	v.endCur = cur
	v.endMap = cursors
	return nil
}

func TestWalk_TracksCursorPerSection(t *testing.T) {
	obj := &objfmt.Object{Commands: []objfmt.Command{
		{Tag: objfmt.TagSectionChange, Section: objfmt.Text},
		{Tag: objfmt.TagRawData, Raw: []byte{1, 2, 3, 4}},
		{Tag: objfmt.TagOpaque, Code: objfmt.OpDirectWordA},
		{Tag: objfmt.TagSectionChange, Section: objfmt.Bss},
		{Tag: objfmt.TagReserve, ReserveLen: 10},
		{Tag: objfmt.TagEnd},
	}}

	v := &recordingVisitor{}
	require.NoError(t, Walk(obj, v))

	assert.Equal(t, []objfmt.SectionKind{objfmt.Text, objfmt.Bss}, v.sections)
	assert.Equal(t, []int{0, 4, 0}, v.cursors) // rawdata@0, opaque@4, reserve@0 (new section)
	assert.Equal(t, objfmt.Bss, v.endCur)
	assert.Equal(t, 10, v.endMap[objfmt.Bss])
	assert.Equal(t, 6, v.endMap[objfmt.Text])
}

type errVisitor struct{ recordingVisitor }

func (v *errVisitor) OnRawData(cmd objfmt.Command, cur objfmt.SectionKind, cursor int) error {
	return assert.AnError
}

func TestWalk_StopsOnFirstError(t *testing.T) {
	obj := &objfmt.Object{Commands: []objfmt.Command{
		{Tag: objfmt.TagSectionChange, Section: objfmt.Text},
		{Tag: objfmt.TagRawData, Raw: []byte{1}},
		{Tag: objfmt.TagEnd},
	}}

	err := Walk(obj, &errVisitor{})
	require.Error(t, err)
}

func TestWriteAdvance_WidthsMatchParser(t *testing.T) {
	assert.Equal(t, objfmt.WidthByte, WriteAdvance(objfmt.OpDirectByteA))
	assert.Equal(t, objfmt.WidthWord, WriteAdvance(objfmt.OpDirectWordA))
	assert.Equal(t, objfmt.WidthLong, WriteAdvance(objfmt.OpDirectLongA))
	assert.EqualValues(t, 0, WriteAdvance(objfmt.OpPush))
}
