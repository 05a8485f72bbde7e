package writer

import (
	"encoding/binary"
	"os"

	"github.com/gmofishsauce/h68kld/internal/config"
	"github.com/gmofishsauce/h68kld/internal/layout"
	"github.com/gmofishsauce/h68kld/internal/resolver"
)

const xHeaderSize = 64

var xMagic = [2]byte{'H', 'U'}

// WriteX emits the `.x` executable format: the 64-byte header spec.md
// §6 defines, followed by text, data, the delta-encoded relocation
// table, the symbol table, and the SCD trailer.
func WriteX(path string, cfg *config.Config, p *Payload, syms *resolver.Result, lay *layout.Layout) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	execAddr := execAddress(cfg, syms, lay)

	header := make([]byte, xHeaderSize)
	header[0], header[1] = xMagic[0], xMagic[1]
	header[2] = 0 // load mode: this implementation emits only the plain-load variant

	putU32(header[3:7], cfg.BaseAddress)
	putU32(header[7:11], execAddr)
	putU32(header[11:15], uint32(len(p.Text)))
	putU32(header[15:19], foldedDataSize(lay))
	putU32(header[19:23], p.BssSize)
	putU32(header[23:27], uint32(len(p.RelocTable)))
	putU32(header[27:31], uint32(len(p.SymbolTable)))
	putU32(header[31:35], uint32(len(p.SCDLine)))
	putU32(header[35:39], uint32(len(p.SCDInfo)))
	putU32(header[39:43], uint32(len(p.SCDName)))
	// bind offset: the file offset at which the relocation table begins,
	// i.e. right after the header, text and data.
	bindOffset := uint32(xHeaderSize) + uint32(len(p.Text)) + foldedDataSize(lay)
	putU32(header[43:47], bindOffset)
	putU32(header[47:51], uint32(len(p.CtorTable)))
	putU32(header[51:55], uint32(len(p.DtorTable)))
	// header[55:64] reserved, left zero.

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
	return nil
}

func execAddress(cfg *config.Config, syms *resolver.Result, lay *layout.Layout) uint32 {
	if syms.StartAddress == nil {
		return cfg.BaseAddress
	}
	sa := syms.StartAddress
	return cfg.BaseAddress + uint32(lay.BaseOf(sa.Section, sa.ObjIndex)) + uint32(sa.Value)
}

func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
