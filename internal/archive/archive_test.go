package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gmofishsauce/h68kld/internal/objfmt"
)

func TestSelect_PullsInDefiningMember(t *testing.T) {
	defines := &objfmt.Object{Path: "lib(0)"}
	lib := &Library{Path: "lib.a", Members: []Member{
		{Object: defines, Defines: map[string]bool{"_printf": true}},
	}}

	unresolved := map[string]bool{"_printf": true}
	selected := Select([]*Library{lib}, unresolved,
		func(*objfmt.Object) []string { return nil },
		func(string) bool { return false },
	)

	assert.Equal(t, []*objfmt.Object{defines}, selected)
}

func TestSelect_TransitiveDependency(t *testing.T) {
	inner := &objfmt.Object{Path: "lib(0)"}
	outer := &objfmt.Object{Path: "lib(1)"}
	lib := &Library{Path: "lib.a", Members: []Member{
		{Object: outer, Defines: map[string]bool{"_outer": true}},
		{Object: inner, Defines: map[string]bool{"_inner": true}},
	}}

	resolved := map[string]bool{}
	selected := Select([]*Library{lib}, map[string]bool{"_outer": true},
		func(obj *objfmt.Object) []string {
			if obj == outer {
				return []string{"_inner"}
			}
			return nil
		},
		func(name string) bool { return resolved[name] },
	)

	assert.Len(t, selected, 2)
	assert.Contains(t, selected, outer)
	assert.Contains(t, selected, inner)
}

func TestSelect_TieBreaksByLibraryThenMemberOrder(t *testing.T) {
	first := &objfmt.Object{Path: "a.a(0)"}
	second := &objfmt.Object{Path: "b.a(0)"}
	libA := &Library{Path: "a.a", Members: []Member{{Object: first, Defines: map[string]bool{"_x": true}}}}
	libB := &Library{Path: "b.a", Members: []Member{{Object: second, Defines: map[string]bool{"_x": true}}}}

	selected := Select([]*Library{libA, libB}, map[string]bool{"_x": true},
		func(*objfmt.Object) []string { return nil },
		func(string) bool { return false },
	)

	// Only the earliest library's member satisfying "_x" is pulled in; once
	// selected, "_x" leaves the pending set so libB's member is never chosen.
	assert.Equal(t, []*objfmt.Object{first}, selected)
}

func TestSelect_NoMatchSelectsNothing(t *testing.T) {
	obj := &objfmt.Object{Path: "lib(0)"}
	lib := &Library{Path: "lib.a", Members: []Member{
		{Object: obj, Defines: map[string]bool{"_unused": true}},
	}}

	selected := Select([]*Library{lib}, map[string]bool{"_needed": true},
		func(*objfmt.Object) []string { return nil },
		func(string) bool { return false },
	)

	assert.Empty(t, selected)
}
