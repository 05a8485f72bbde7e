package parser

import (
	"encoding/binary"

	"github.com/gmofishsauce/h68kld/internal/objfmt"
)

// parseSCD decodes the optional source-code debug trailer that follows
// an object's End command, per spec.md §3/§6. The trailer is wholly
// optional: an object with no debug info simply ends at the End command
// and parseSCD sees zero remaining bytes.
//
// On-disk shape (big-endian), all-or-nothing:
//
//	u8  present
//	if present:
//	  u32 lineTableLen, lineTableLen bytes
//	  u32 sinfoCount, sinfoCount*18 bytes  (fixed 18-byte sinfo entries)
//	  u32 einfoLen, einfoLen bytes
//	  u32 ninfoLen, ninfoLen bytes
//	  u32 namesLen, namesLen bytes
func parseSCD(r *reader) objfmt.SCDBlob {
	if r.remaining() < 1 {
		return objfmt.SCDBlob{}
	}
	present, _ := r.u8()
	if present == 0 {
		return objfmt.SCDBlob{}
	}

	blob := objfmt.SCDBlob{Present: true}
	blob.LineTable = readBlock(r)

	count, ok := r.u32()
	if !ok {
		return blob
	}
	blob.SInfoCount = int(count)
	sinfoLen := int(count) * 18
	if r.remaining() < sinfoLen {
		sinfoLen = r.remaining()
	}
	b, _ := r.bytes(sinfoLen)
	blob.SInfo = append([]byte(nil), b...)

	blob.EInfo = readBlock(r)
	blob.NInfo = readBlock(r)
	blob.Names = readBlock(r)
	return blob
}

func readBlock(r *reader) []byte {
	n, ok := r.u32()
	if !ok {
		return nil
	}
	ln := int(n)
	if r.remaining() < ln {
		ln = r.remaining()
	}
	b, _ := r.bytes(ln)
	return append([]byte(nil), b...)
}

func (r *reader) u32() (uint32, bool) {
	if r.remaining() < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, true
}
