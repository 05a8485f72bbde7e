package exec

import "github.com/gmofishsauce/h68kld/internal/objfmt"

// fitsWidth implements the Range-check policy table in spec.md §4.6:
// byte/word writes accept a value that fits either the signed or the
// unsigned range for that width; long writes never narrow.
func fitsWidth(v int32, width objfmt.WriteWidth) bool {
	switch width {
	case objfmt.WidthByte:
		return (v >= -0x80 && v <= 0x7f) || (v >= 0 && v <= 0xff)
	case objfmt.WidthWord:
		return (v >= -0x8000 && v <= 0x7fff) || (v >= 0 && v <= 0xffff)
	case objfmt.WidthLong:
		return true
	default:
		return false
	}
}

// canCarryRelocation reports whether width is wide enough to carry a
// relocation entry at all (spec.md §3's Relocation Entry is
// word/long only; byte writes can never encode one, so a narrowing
// byte write of an address-attributed relocatable value is always an
// error even when the numeric value happens to fit in a byte).
func canCarryRelocation(width objfmt.WriteWidth) bool {
	return width == objfmt.WidthWord || width == objfmt.WidthLong
}
