// Package archive implements ArchiveSelector: given one or more
// library/archive containers, each holding member object files, it
// selects the subset of members that satisfy currently-unresolved
// cross-object references, iterating to a fixed point (spec.md §4.3).
//
// No teacher analogue exists (wut4's WOF format has no archive
// container); the fixed-point-over-a-selection-mask shape is grounded
// on the iterative "pull in whatever currently-unresolved symbol a
// not-yet-loaded definition satisfies" loop used by Go's own dynamic
// loader example in the pack (other_examples: WangLeonard/goloader
// dymcode.go) and on aclements/go-obj's File abstraction for treating
// heterogeneous containers (here, archive members) uniformly.
package archive

import "github.com/gmofishsauce/h68kld/internal/objfmt"

// Member is one object file stored inside a Library, plus the set of
// names it defines (xdef names and common names) precomputed so
// selection doesn't need to re-walk its command stream every round.
type Member struct {
	Object  *objfmt.Object
	Defines map[string]bool
}

// Library is one archive/library file in command-line order, holding
// its members in archive member-index order.
type Library struct {
	Path    string
	Members []Member
}

// Select runs ArchiveSelector to a fixed point: starting from the
// names in unresolved, it repeatedly scans libraries in order (earliest
// library first, earliest member first — spec.md §4.3's tie-break) and
// pulls in the first not-yet-selected member that defines any
// currently-unresolved name. Newly pulled-in members may themselves
// reference further-unresolved names (reported through refsOf), so the
// whole process repeats until a pass selects nothing new.
//
// refsOf is called once per selected member to obtain the set of names
// it references (so the unresolved set can grow); isResolved reports
// whether a name is already defined by the main object set. Names
// defined by members already selected in this call are tracked by
// Select itself and never re-enter the unresolved set.
func Select(libs []*Library, unresolved map[string]bool, refsOf func(*objfmt.Object) []string, isResolved func(name string) bool) []*objfmt.Object {
	selectedMask := make([][]bool, len(libs))
	for i, lib := range libs {
		selectedMask[i] = make([]bool, len(lib.Members))
	}

	var selected []*objfmt.Object
	defined := make(map[string]bool)
	pending := make(map[string]bool, len(unresolved))
	for k, v := range unresolved {
		if v {
			pending[k] = true
		}
	}

	for {
		progress := false
		for li, lib := range libs {
			for mi, member := range lib.Members {
				if selectedMask[li][mi] {
					continue
				}
				if !definesAny(member.Defines, pending) {
					continue
				}
				selectedMask[li][mi] = true
				selected = append(selected, member.Object)
				progress = true

				for name := range member.Defines {
					delete(pending, name)
					defined[name] = true
				}
				for _, ref := range refsOf(member.Object) {
					if !isResolved(ref) && !defined[ref] {
						pending[ref] = true
					}
				}
			}
		}
		if !progress {
			break
		}
	}

	return selected
}

func definesAny(defines map[string]bool, pending map[string]bool) bool {
	for name := range pending {
		if defines[name] {
			return true
		}
	}
	return false
}
