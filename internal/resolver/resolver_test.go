package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/h68kld/internal/objfmt"
)

func xdefCmd(name string, section objfmt.SectionKind, value int32) objfmt.Command {
	return objfmt.Command{Tag: objfmt.TagSymbolDef, Name: name, Section: section, Value: value, SymKind: objfmt.KindXdef}
}

func commonCmd(name string, family objfmt.SectionKind, size int32) objfmt.Command {
	return objfmt.Command{Tag: objfmt.TagSymbolDef, Name: name, Section: family, Value: size, SymKind: objfmt.KindCommon}
}

func TestResolve_XdefVisibleAcrossObjects(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{xdefCmd("_main", objfmt.Text, 0)}}
	b := &objfmt.Object{Path: "b.o", Commands: []objfmt.Command{
		{Tag: objfmt.TagSymbolRef, Name: "_main", XrefNumber: 1},
	}}

	res, err := Resolve([]*objfmt.Object{a, b})
	require.NoError(t, err)
	require.Contains(t, res.Symbols, "_main")
	assert.Equal(t, objfmt.Text, res.Symbols["_main"].Section)
	assert.Empty(t, res.UnresolvedXrefNames())
}

func TestResolve_DuplicateXdefIsFatal(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{xdefCmd("_main", objfmt.Text, 0)}}
	b := &objfmt.Object{Path: "b.o", Commands: []objfmt.Command{xdefCmd("_main", objfmt.Text, 4)}}

	_, err := Resolve([]*objfmt.Object{a, b})
	require.Error(t, err)
}

func TestResolve_CommonMergesByMaxSize(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{commonCmd("g_buf", objfmt.Common, 4)}}
	b := &objfmt.Object{Path: "b.o", Commands: []objfmt.Command{commonCmd("g_buf", objfmt.Common, 16)}}

	res, err := Resolve([]*objfmt.Object{a, b})
	require.NoError(t, err)
	require.Contains(t, res.Symbols, "g_buf")
	assert.True(t, res.Symbols["g_buf"].IsCommon)
	assert.EqualValues(t, 16, res.Symbols["g_buf"].CommonSize)
}

func TestResolve_RealXdefShadowsCommon(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{commonCmd("g_buf", objfmt.Common, 4)}}
	b := &objfmt.Object{Path: "b.o", Commands: []objfmt.Command{xdefCmd("g_buf", objfmt.Data, 0)}}

	res, err := Resolve([]*objfmt.Object{a, b})
	require.NoError(t, err)
	assert.False(t, res.Symbols["g_buf"].IsCommon)
	assert.Equal(t, objfmt.Data, res.Symbols["g_buf"].Section)
}

func TestResolve_CommonFamilyMismatchIsFatal(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{commonCmd("g_buf", objfmt.Common, 4)}}
	b := &objfmt.Object{Path: "b.o", Commands: []objfmt.Command{commonCmd("g_buf", objfmt.RCommon, 4)}}

	_, err := Resolve([]*objfmt.Object{a, b})
	require.Error(t, err)
}

func TestResolve_DuplicateStartAddressIsFatal(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{
		{Tag: objfmt.TagStartAddress, Section: objfmt.Text, Value: 0},
	}}
	b := &objfmt.Object{Path: "b.o", Commands: []objfmt.Command{
		{Tag: objfmt.TagStartAddress, Section: objfmt.Text, Value: 4},
	}}

	_, err := Resolve([]*objfmt.Object{a, b})
	require.Error(t, err)
}

func TestResolve_UnresolvedXrefNames(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{
		{Tag: objfmt.TagSymbolRef, Name: "_missing", XrefNumber: 3},
	}}

	res, err := Resolve([]*objfmt.Object{a})
	require.NoError(t, err)
	assert.Equal(t, []string{"_missing"}, res.UnresolvedXrefNames())
}

func TestResolve_CtorDtorParticipation(t *testing.T) {
	a := &objfmt.Object{Path: "a.o", Commands: []objfmt.Command{
		{Tag: objfmt.TagCtorDtor, IsCtor: true, IsFlag: true},
		{Tag: objfmt.TagCtorDtor, IsCtor: false, Value: 7},
	}}

	res, err := Resolve([]*objfmt.Object{a})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.CtorParticipants)
	assert.Equal(t, []int{0}, res.DtorParticipants)
	assert.NotContains(t, res.CtorValues, 0)
	assert.Equal(t, int32(7), res.DtorValues[0])
}
