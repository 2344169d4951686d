// Package woff2 encodes and decodes the WOFF2 font container. Tables are
// carried untransformed (the null transform): the Brotli-compressed stream
// holds the raw sfnt tables. Files using the optional glyf/loca and hmtx
// preprocessing transforms are rejected as unsupported.
package woff2

import (
	"errors"
	"fmt"
)

// Signature is the WOFF2 magic number, 'wOF2'.
const Signature = 0x774F4632

const headerLen = 48

// ErrTransformed is returned when a file uses a table preprocessing
// transform this package does not implement.
var ErrTransformed = errors.New("woff2: preprocessing transforms are not supported")

// knownTags is the WOFF2 table directory tag registry. A directory entry
// whose flags index is below 63 refers to this list; index 63 means an
// explicit 4-byte tag follows.
var knownTags = [63]string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

// knownTagIndex returns the registry index for tag, or 63 if unregistered.
func knownTagIndex(tag string) byte {
	for i, t := range knownTags {
		if t == tag {
			return byte(i)
		}
	}
	return 63
}

// readBase128 decodes a UIntBase128 value: up to five bytes, seven value
// bits each, most significant first. Leading zero bytes are invalid.
func readBase128(data []byte, pos int) (value uint32, next int, err error) {
	for i := range 5 {
		if pos >= len(data) {
			return 0, 0, fmt.Errorf("woff2: truncated UIntBase128")
		}
		b := data[pos]
		pos++

		if i == 0 && b == 0x80 {
			return 0, 0, fmt.Errorf("woff2: UIntBase128 has leading zero")
		}
		if value&0xFE000000 != 0 {
			return 0, 0, fmt.Errorf("woff2: UIntBase128 exceeds 32 bits")
		}
		value = value<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return value, pos, nil
		}
	}
	return 0, 0, fmt.Errorf("woff2: UIntBase128 longer than 5 bytes")
}

// appendBase128 appends the minimal UIntBase128 encoding of v.
func appendBase128(dst []byte, v uint32) []byte {
	var tmp [5]byte
	n := len(tmp)
	for {
		n--
		tmp[n] = byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			break
		}
	}
	for i := n; i < len(tmp)-1; i++ {
		tmp[i] |= 0x80
	}
	return append(dst, tmp[n:]...)
}
