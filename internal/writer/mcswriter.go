package writer

import (
	"encoding/binary"
	"os"

	"github.com/gmofishsauce/h68kld/internal/config"
	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

const mcsHeaderSize = 14
const mcsSizeOffset = 10

var mcsSignature = [8]byte{'M', 'A', 'C', 'S', 'D', 'A', 'T', 'A'}

// WriteMCS emits the `.mcs` format: an 8-byte `MACS`/`DATA` signature,
// 2 reserved bytes, a 4-byte file size at offset 10 (spec.md §6), and a
// `.r`-style body. Subject to the same relocation-check validation as
// `.r` output (spec.md §4.7: "reltbl empty checks governed by the
// relocation-check policy").
func WriteMCS(path string, cfg *config.Config, p *Payload, syms *resolver.Result, lay *layout.Layout) error {
	if cfg.RelocationCheck == config.Strict {
		if execAddress(cfg, syms, lay) != 0 {
			return diag.New(diag.StartAddressError, path, "exec not at file head for .mcs output (use --rn to allow)")
		}
		if len(p.RelocTable) != 0 {
			return diag.New(diag.RelocationError, path, "relocation entries present in strict .mcs output (use --rn to allow)")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, mcsHeaderSize)
	copy(header[0:8], mcsSignature[:])

	bodySize := len(p.Text) + len(p.Data) + len(p.RelocTable) + len(p.SymbolTable) +
		len(p.SCDLine) + len(p.SCDInfo) + len(p.SCDName) + len(p.CtorTable) + len(p.DtorTable)
	if cfg.BSSPolicy == config.BSSInclude {
		bodySize += int(p.BssSize)
	}
	binary.BigEndian.PutUint32(header[mcsSizeOffset:mcsSizeOffset+4], uint32(mcsHeaderSize+bodySize))

	if _, err := f.Write(header); err != nil {
		return err
	}
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

// ValidateMCSSignature checks a byte buffer begins with the `MACS`/`DATA`
// signature this writer produces; used by tests and by any future
// `.mcs` reader path.
func ValidateMCSSignature(data []byte) error {
	if len(data) < 8 || string(data[0:8]) != "MACSDATA" {
		return diag.New(diag.MCSFormatError, "", "bad .mcs signature")
	}
	return nil
}
