package writer

import (
	"os"

	"github.com/gmofishsauce/h68kld/internal/config"
	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

// WriteR emits the `.r` relocatable format: the same payload
// concatenation as `.x` minus its executable header (spec.md §4.7/§6).
// Under the strict relocation-check policy (the default), a non-zero
// exec address or a non-empty relocation table is fatal; `--rn`
// (config.Lenient) allows both, matching a partial-link workflow that
// produces a further-relinkable `.r`.
func WriteR(path string, cfg *config.Config, p *Payload, syms *resolver.Result, lay *layout.Layout) error {
	if cfg.RelocationCheck == config.Strict {
		if execAddress(cfg, syms, lay) != 0 {
			return diag.New(diag.StartAddressError, path, "exec not at file head for plain .r output (use --rn to allow)")
		}
		if len(p.RelocTable) != 0 {
			return diag.New(diag.RelocationError, path, "relocation entries present in strict .r output (use --rn to allow)")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, chunk := range [][]byte{p.Text, p.Data, p.RelocTable, p.SymbolTable, p.SCDLine, p.SCDInfo, p.SCDName, p.CtorTable, p.DtorTable} {
		if len(chunk) == 0 {
			continue
		}
		if _, err := f.Write(chunk); err != nil {
			return err
		}
	}

	if cfg.BSSPolicy == config.BSSInclude && p.BssSize > 0 {
		if _, err := f.Write(make([]byte, p.BssSize)); err != nil {
			return err
		}
	}

	return nil
}
