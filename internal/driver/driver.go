// Package driver wires every stage — parse, resolve, archive selection,
// layout, execute, write — into the single pipeline spec.md §4.8
// describes, consuming a typed config.Config record.
//
// Generalizes wut4/lang/yld/main.go's linear load-objects → link → write
// sequence (spec.md's DOMAIN STACK section names this grounding
// explicitly) into a stage pipeline driven by config.Config instead of
// package-level globals, moving all flag parsing out to cmd/h68kld.
package driver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gmofishsauce/h68kld/internal/archive"
	"github.com/gmofishsauce/h68kld/internal/config"
	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/exec"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/mapfile"
	"github.com/gmofishsauce/h68kld/internal/objfmt"
	"github.com/gmofishsauce/h68kld/internal/parser"
	"github.com/gmofishsauce/h68kld/internal/resolver"
	"github.com/gmofishsauce/h68kld/internal/writer"
)

// Result summarizes a completed link for the CLI front end to report.
type Result struct {
	OutputPath string
	MapPath    string
	Warnings   []diag.Warning
}

// Run executes the whole pipeline for cfg. All diagnostics returned are
// *diag.Error (spec.md §7); the caller (cmd/h68kld) maps them to exit
// code 1 at the process boundary.
func Run(cfg *config.Config, log *slog.Logger) (*Result, error) {
	log.Debug("loading input objects", "count", len(cfg.Inputs))
	objs, err := loadObjects(cfg.Inputs)
	if err != nil {
		return nil, err
	}

	syms, err := resolver.Resolve(objs)
	if err != nil {
		return nil, err
	}

	archivePaths, warnings := resolveRequestedLibraries(cfg, syms.RequestedLibs)
	if len(archivePaths) > 0 {
		log.Debug("resolving archive members", "libraries", len(archivePaths), "requested", len(syms.RequestedLibs))
		objs, syms, err = resolveArchives(archivePaths, objs, syms)
		if err != nil {
			return nil, err
		}
	}

	if unresolved := syms.UnresolvedXrefNames(); len(unresolved) > 0 {
		return nil, diag.New(diag.SymbolError, cfg.OutputPath,
			"unresolved symbol(s) at write time: %s", strings.Join(unresolved, ", "))
	}

	log.Debug("computing layout", "objects", len(objs))
	lay, err := layout.Compute(objs, syms)
	if err != nil {
		return nil, err
	}

	ex := exec.New(objs, syms, lay)
	log.Debug("executing object command streams")
	if err := ex.Run(); err != nil {
		return nil, err
	}

	p, err := writer.Assemble(cfg, objs, syms, lay, ex)
	if err != nil {
		return nil, err
	}

	log.Debug("writing output", "path", cfg.OutputPath, "format", cfg.Format)
	if err := writeOutput(cfg, p, syms, lay); err != nil {
		if _, ok := err.(*diag.Error); !ok {
			err = diag.New(diag.IOError, cfg.OutputPath, "%v", err)
		}
		return nil, err
	}

	res := &Result{OutputPath: cfg.OutputPath, Warnings: append(warnings, ex.Warnings...)}

	if cfg.MapOutput != "" {
		if err := writeMap(cfg, syms, lay); err != nil {
			return nil, err
		}
		res.MapPath = cfg.MapOutput
	}

	return res, nil
}

func loadObjects(paths []string) ([]*objfmt.Object, error) {
	objs := make([]*objfmt.Object, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, diag.New(diag.IOError, path, "%v", err)
		}
		obj, err := parser.Parse(path, data)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// resolveRequestedLibraries combines the CLI's explicitly configured
// archive paths with the objects' own Request(libname) commands
// (spec.md §3, the `e0 01` opcode): each requested name is searched for
// across cfg.LibraryPaths, the same -L/LIB directories ArchiveSelector
// already draws from, and found files are appended to the archive set.
// A requested name that matches no file in any search path produces a
// non-fatal warning rather than an error, since an object may request a
// library the final link doesn't actually need.
func resolveRequestedLibraries(cfg *config.Config, requested []string) ([]string, []diag.Warning) {
	paths := append([]string{}, cfg.Archives...)
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}

	var warnings []diag.Warning
	for _, name := range requested {
		path, ok := findLibraryFile(cfg.LibraryPaths, name)
		if !ok {
			warnings = append(warnings, diag.NewWarning(cfg.OutputPath,
				"requested library %q not found in any library search path", name))
			continue
		}
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}
	return paths, warnings
}

func findLibraryFile(dirs []string, name string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// resolveArchives runs the ArchiveSelector fixed-point loop (spec.md
// §4.3) against every archive path (explicit -L files plus any
// requested-and-found libraries), appending selected members to objs
// and re-resolving symbols over the combined set.
func resolveArchives(archivePaths []string, objs []*objfmt.Object, syms *resolver.Result) ([]*objfmt.Object, *resolver.Result, error) {
	libs := make([]*archive.Library, 0, len(archivePaths))
	for _, path := range archivePaths {
		lib, err := loadLibrary(path)
		if err != nil {
			return nil, nil, err
		}
		libs = append(libs, lib)
	}

	unresolved := make(map[string]bool)
	for _, name := range syms.UnresolvedXrefNames() {
		unresolved[name] = true
	}

	selected := archive.Select(libs, unresolved,
		func(obj *objfmt.Object) []string {
			var refs []string
			for _, cmd := range obj.Commands {
				if cmd.Tag == objfmt.TagSymbolRef {
					refs = append(refs, cmd.Name)
				}
			}
			return refs
		},
		func(name string) bool {
			_, ok := syms.Symbols[name]
			return ok
		},
	)

	if len(selected) == 0 {
		return objs, syms, nil
	}

	combined := append(append([]*objfmt.Object{}, objs...), selected...)
	newSyms, err := resolver.Resolve(combined)
	if err != nil {
		return nil, nil, err
	}
	return combined, newSyms, nil
}

func loadLibrary(path string) (*archive.Library, error) {
	// A library file in this implementation is a flat concatenation of
	// member objects, each framed by a 4-byte big-endian length prefix —
	// the simplest archive container compatible with spec.md §4.3's
	// member-index ordering, since no archive-format original source
	// survived retrieval (see DESIGN.md).
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.New(diag.IOError, path, "%v", err)
	}

	var members []archive.Member
	pos := 0
	idx := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, diag.New(diag.ParseError, path, "truncated archive member length prefix")
		}
		size := int(data[pos])<<24 | int(data[pos+1])<<16 | int(data[pos+2])<<8 | int(data[pos+3])
		pos += 4
		if pos+size > len(data) {
			return nil, diag.New(diag.ParseError, path, "truncated archive member body")
		}
		memberPath := fmt.Sprintf("%s(%d)", path, idx)
		obj, err := parser.Parse(memberPath, data[pos:pos+size])
		if err != nil {
			return nil, err
		}
		members = append(members, archive.Member{Object: obj, Defines: definesOf(obj)})
		pos += size
		idx++
	}

	return &archive.Library{Path: path, Members: members}, nil
}

// definesOf collects every xdef and common name a member object
// declares, for ArchiveSelector's per-member definition set.
func definesOf(obj *objfmt.Object) map[string]bool {
	defines := make(map[string]bool)
	for _, cmd := range obj.Commands {
		if cmd.Tag == objfmt.TagSymbolDef {
			defines[cmd.Name] = true
		}
	}
	return defines
}

func writeOutput(cfg *config.Config, p *writer.Payload, syms *resolver.Result, lay *layout.Layout) error {
	switch cfg.Format {
	case config.FormatR:
		return writer.WriteR(cfg.OutputPath, cfg, p, syms, lay)
	case config.FormatMCS:
		return writer.WriteMCS(cfg.OutputPath, cfg, p, syms, lay)
	default:
		return writer.WriteX(cfg.OutputPath, cfg, p, syms, lay)
	}
}

func writeMap(cfg *config.Config, syms *resolver.Result, lay *layout.Layout) error {
	f, err := os.Create(cfg.MapOutput)
	if err != nil {
		return diag.New(diag.IOError, cfg.MapOutput, "%v", err)
	}
	defer f.Close()

	abs, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		abs = cfg.OutputPath
	}

	execAddr := cfg.BaseAddress
	if syms.StartAddress != nil {
		execAddr += uint32(lay.BaseOf(syms.StartAddress.Section, syms.StartAddress.ObjIndex)) + uint32(syms.StartAddress.Value)
	}

	return mapfile.Write(f, cfg, abs, syms, lay, execAddr)
}
