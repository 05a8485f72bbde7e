// Package mapfile implements the `.map` writer (spec.md §4.7): a
// formatted text report of the start address, per-section size table,
// and the full symbol table for a completed link.
package mapfile

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/gmofishsauce/h68kld/internal/config"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

const separator = "----------------------------------------------------------------------"

// sectionRows is the fixed per-section ordering spec.md §4.7 names.
var sectionRows = []objfmt.SectionKind{
	objfmt.Text, objfmt.Data, objfmt.Bss, objfmt.Common,
	objfmt.Stack, objfmt.RData, objfmt.RBss, objfmt.RCommon, objfmt.RStack,
}

// Write renders the map report for outputPath to w.
func Write(w io.Writer, cfg *config.Config, outputPath string, syms *resolver.Result, lay *layout.Layout, execAddr uint32) error {
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, outputPath)
	fmt.Fprintf(w, "start address: 0x%08x\n", execAddr)
	fmt.Fprintln(w)

	for _, kind := range sectionRows {
		size := sectionSize(kind, lay)
		fmt.Fprintf(w, "%-8s 0x%08x\n", kind.String(), size)
	}
	fmt.Fprintln(w)

	names := maps.Keys(syms.Symbols)
	sort.Strings(names) // stable base ordering before the real sort key below

	type row struct {
		name    string
		section objfmt.SectionKind
		addr    int32
	}
	rows := make([]row, 0, len(names))
	for _, name := range names {
		sym := syms.Symbols[name]
		addr := sym.Value
		if !sym.IsCommon {
			addr += lay.BaseOf(sym.Section, sym.ObjIndex)
		}
		rows = append(rows, row{name: name, section: sym.Section, addr: addr})
	}

	switch cfg.MapSort {
	case config.ByAddress:
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].addr != rows[j].addr {
				return rows[i].addr < rows[j].addr
			}
			return rows[i].name < rows[j].name
		})
	default: // config.BySectionName
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].section != rows[j].section {
				return rows[i].section < rows[j].section
			}
			return rows[i].name < rows[j].name
		})
	}

	for _, r := range rows {
		fmt.Fprintf(w, "%-8s 0x%08x  %s\n", r.section.String(), uint32(r.addr), r.name)
	}

	return nil
}

func sectionSize(kind objfmt.SectionKind, lay *layout.Layout) int32 {
	switch kind {
	case objfmt.Common:
		return lay.CommonSizes[objfmt.Common]
	case objfmt.RCommon:
		return lay.CommonSizes[objfmt.RCommon]
	case objfmt.RlCommon:
		return lay.CommonSizes[objfmt.RlCommon]
	default:
		return lay.Sizes[kind]
	}
}

// DerivedName produces a `.map` filename from an executable path when
// `-p` is given without an explicit FILE argument (spec.md §6).
func DerivedName(execPath string) string {
	if i := strings.LastIndex(execPath, "."); i > strings.LastIndex(execPath, "/") {
		return execPath[:i] + ".map"
	}
	return execPath + ".map"
}
