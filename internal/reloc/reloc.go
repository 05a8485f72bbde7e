// Package reloc implements the Relocation Entry type and the
// delta-encoded relocation table format spec.md §3/§4.7/§6 describes:
// successive relocation offsets are stored as differences from the
// previous entry, with an escape sequence for deltas that don't fit in
// 16 bits. Generalizes the teacher's flat 8-byte WOFReloc table
// (wut4/lang/yld/types.go) — which never compresses offsets — into the
// compact scheme the `.x` format actually uses.
package reloc

import (
	"encoding/binary"
	"fmt"
)

// Width distinguishes word (2-byte) and long (4-byte) relocation
// targets; spec.md §3 excludes byte-width relocations entirely (a
// byte write can never carry a relocatable address).
type Width uint8

const (
	Word Width = 0
	Long Width = 1
)

// Entry is one relocation in the final output's linear relocatable
// address space (the concatenation of every emitted section in output
// order — see internal/writer for how that space is laid out).
type Entry struct {
	Offset uint32
	Width  Width
}

const escapeDelta = 0xFFFF

// EncodeDelta serializes entries, which MUST already be sorted by
// ascending Offset (spec.md §5: "relocation entries are emitted in
// ascending target-offset order per section"; §8 property 3). The
// first entry's offset is written raw (4 bytes); each subsequent entry
// is written as the delta from the previous offset, as a 16-bit value
// when it fits, or as the escape marker 0xFFFF followed by a 4-byte
// delta otherwise. Every entry is followed by a 1-byte width tag.
func EncodeDelta(entries []Entry) ([]byte, error) {
	buf := make([]byte, 0, len(entries)*4)
	var prev uint32
	for i, e := range entries {
		if i > 0 && e.Offset < prev {
			return nil, fmt.Errorf("relocation offsets not monotonically increasing (0x%x after 0x%x)", e.Offset, prev)
		}
		if i == 0 {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], e.Offset)
			buf = append(buf, b[:]...)
		} else {
			delta := e.Offset - prev
			if delta <= escapeDelta-1 {
				var b [2]byte
				binary.BigEndian.PutUint16(b[:], uint16(delta))
				buf = append(buf, b[:]...)
			} else {
				var b [6]byte
				binary.BigEndian.PutUint16(b[0:2], escapeDelta)
				binary.BigEndian.PutUint32(b[2:6], delta)
				buf = append(buf, b[:]...)
			}
		}
		buf = append(buf, byte(e.Width))
		prev = e.Offset
	}
	return buf, nil
}

// DecodeDelta is the inverse of EncodeDelta; spec.md §8 property 4
// requires this round-trips exactly.
func DecodeDelta(data []byte) ([]Entry, error) {
	var entries []Entry
	pos := 0
	var prev uint32
	first := true
	for pos < len(data) {
		if first {
			if pos+4 > len(data) {
				return nil, fmt.Errorf("truncated relocation table: missing first offset")
			}
			prev = binary.BigEndian.Uint32(data[pos:])
			pos += 4
			first = false
		} else {
			if pos+2 > len(data) {
				return nil, fmt.Errorf("truncated relocation table: missing delta")
			}
			d16 := binary.BigEndian.Uint16(data[pos:])
			pos += 2
			var delta uint32
			if d16 == escapeDelta {
				if pos+4 > len(data) {
					return nil, fmt.Errorf("truncated relocation table: missing escaped delta")
				}
				delta = binary.BigEndian.Uint32(data[pos:])
				pos += 4
			} else {
				delta = uint32(d16)
			}
			prev += delta
		}
		if pos >= len(data) {
			return nil, fmt.Errorf("truncated relocation table: missing width tag")
		}
		width := Width(data[pos])
		pos++
		entries = append(entries, Entry{Offset: prev, Width: width})
	}
	return entries, nil
}
