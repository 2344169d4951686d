// Package glyf prunes TrueType outline data down to the glyphs reachable
// from a set of codepoints. Glyph indices are left stable: unreferenced
// glyphs keep their directory slot but lose their outline, so cmap and
// metrics tables need no rewriting. Only glyf-flavored fonts are supported;
// CFF outlines are rejected as unsupported.
package glyf

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/image/font/sfnt"

	"github.com/glyphlab/woffle/internal/sfnttable"
)

// ErrUnsupported is returned for fonts without TrueType glyf outlines.
var ErrUnsupported = errors.New("glyf: font has no TrueType outlines")

// Composite glyph component flags.
const (
	flagArg1And2AreWords = 0x0001
	flagWeHaveAScale     = 0x0008
	flagMoreComponents   = 0x0020
	flagXAndYScale       = 0x0040
	flagTwoByTwo         = 0x0080
)

// Offsets into head and maxp for the fields we need.
const (
	headIndexToLocOffset = 50
	maxpNumGlyphsOffset  = 4
)

// Subset rewrites font so that only the glyphs reachable from codePoints
// retain their outlines. Glyph 0 (.notdef) and every component of a kept
// composite glyph are always retained. The result is a valid font whose
// size is at most the input's. The input is never mutated.
func Subset(font []byte, codePoints []rune) ([]byte, error) {
	parsed, err := sfnt.Parse(font)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	flavor, tables, err := sfnttable.Parse(font)
	if err != nil {
		return nil, err
	}

	var head, maxp, loca, glyfData []byte
	for _, t := range tables {
		switch t.Tag {
		case "head":
			head = t.Data
		case "maxp":
			maxp = t.Data
		case "loca":
			loca = t.Data
		case "glyf":
			glyfData = t.Data
		}
	}
	if glyfData == nil || loca == nil {
		return nil, ErrUnsupported
	}
	if len(head) < headIndexToLocOffset+2 || len(maxp) < maxpNumGlyphsOffset+2 {
		return nil, fmt.Errorf("malformed head/maxp table")
	}

	numGlyphs := int(binary.BigEndian.Uint16(maxp[maxpNumGlyphsOffset:]))
	longLoca := binary.BigEndian.Uint16(head[headIndexToLocOffset:]) == 1

	offsets, err := parseLoca(loca, numGlyphs, longLoca)
	if err != nil {
		return nil, err
	}

	keep, err := reachable(parsed, glyfData, offsets, numGlyphs, codePoints)
	if err != nil {
		return nil, err
	}

	newGlyf, newLoca, err := rebuild(glyfData, offsets, keep, longLoca)
	if err != nil {
		return nil, err
	}

	out := make([]sfnttable.Table, 0, len(tables))
	for _, t := range tables {
		switch t.Tag {
		case "glyf":
			out = append(out, sfnttable.Table{Tag: "glyf", Data: newGlyf})
		case "loca":
			out = append(out, sfnttable.Table{Tag: "loca", Data: newLoca})
		default:
			out = append(out, t)
		}
	}
	return sfnttable.Assemble(flavor, out)
}

// reachable marks glyph 0, the glyphs mapped from codePoints, and the
// transitive components of every kept composite glyph.
func reachable(parsed *sfnt.Font, glyfData []byte, offsets []uint32, numGlyphs int, codePoints []rune) ([]bool, error) {
	keep := make([]bool, numGlyphs)
	keep[0] = true // .notdef

	var buf sfnt.Buffer
	work := make([]int, 0, len(codePoints)+1)
	work = append(work, 0)

	for _, cp := range codePoints {
		gi, err := parsed.GlyphIndex(&buf, cp)
		if err != nil {
			continue // unmapped codepoint, nothing to retain
		}
		g := int(gi)
		if g > 0 && g < numGlyphs && !keep[g] {
			keep[g] = true
			work = append(work, g)
		}
	}

	for len(work) > 0 {
		g := work[len(work)-1]
		work = work[:len(work)-1]

		components, err := componentsOf(glyfData, offsets, g)
		if err != nil {
			return nil, err
		}
		for _, c := range components {
			if c < numGlyphs && !keep[c] {
				keep[c] = true
				work = append(work, c)
			}
		}
	}
	return keep, nil
}

// componentsOf returns the direct component glyph indices of glyph g, or
// nil if g is simple or empty.
func componentsOf(glyfData []byte, offsets []uint32, g int) ([]int, error) {
	start, end := offsets[g], offsets[g+1]
	if start == end {
		return nil, nil
	}
	if end < start || uint64(end) > uint64(len(glyfData)) || end-start < 10 {
		return nil, fmt.Errorf("glyph %d has malformed outline bounds", g)
	}

	data := glyfData[start:end]
	if int16(binary.BigEndian.Uint16(data)) >= 0 {
		return nil, nil // simple glyph
	}

	var components []int
	pos := 10
	for {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("glyph %d has truncated composite entry", g)
		}
		flags := binary.BigEndian.Uint16(data[pos:])
		components = append(components, int(binary.BigEndian.Uint16(data[pos+2:])))
		pos += 4

		if flags&flagArg1And2AreWords != 0 {
			pos += 4
		} else {
			pos += 2
		}
		switch {
		case flags&flagWeHaveAScale != 0:
			pos += 2
		case flags&flagXAndYScale != 0:
			pos += 4
		case flags&flagTwoByTwo != 0:
			pos += 8
		}

		if flags&flagMoreComponents == 0 {
			return components, nil
		}
	}
}

// rebuild writes a new glyf table containing only kept outlines and the
// matching loca table in the same offset format as the input.
func rebuild(glyfData []byte, offsets []uint32, keep []bool, longLoca bool) (newGlyf, newLoca []byte, err error) {
	numGlyphs := len(keep)
	newOffsets := make([]uint32, numGlyphs+1)

	var size int
	for g := range numGlyphs {
		newOffsets[g] = uint32(size)
		if !keep[g] {
			continue
		}
		start, end := offsets[g], offsets[g+1]
		if end < start || uint64(end) > uint64(len(glyfData)) {
			return nil, nil, fmt.Errorf("glyph %d has malformed outline bounds", g)
		}
		// Glyph records stay 2-byte aligned so short loca offsets remain exact.
		size += align2(int(end - start))
	}
	newOffsets[numGlyphs] = uint32(size)

	newGlyf = make([]byte, size)
	for g := range numGlyphs {
		if keep[g] {
			copy(newGlyf[newOffsets[g]:], glyfData[offsets[g]:offsets[g+1]])
		}
	}

	if longLoca {
		newLoca = make([]byte, 4*(numGlyphs+1))
		for i, off := range newOffsets {
			binary.BigEndian.PutUint32(newLoca[4*i:], off)
		}
	} else {
		newLoca = make([]byte, 2*(numGlyphs+1))
		for i, off := range newOffsets {
			binary.BigEndian.PutUint16(newLoca[2*i:], uint16(off/2))
		}
	}
	return newGlyf, newLoca, nil
}

// parseLoca decodes the loca table into numGlyphs+1 byte offsets into glyf.
func parseLoca(loca []byte, numGlyphs int, longLoca bool) ([]uint32, error) {
	entrySize := 2
	if longLoca {
		entrySize = 4
	}
	if len(loca) < entrySize*(numGlyphs+1) {
		return nil, fmt.Errorf("loca table too short for %d glyphs", numGlyphs)
	}

	offsets := make([]uint32, numGlyphs+1)
	for i := range offsets {
		if longLoca {
			offsets[i] = binary.BigEndian.Uint32(loca[4*i:])
		} else {
			offsets[i] = 2 * uint32(binary.BigEndian.Uint16(loca[2*i:]))
		}
	}
	return offsets, nil
}

func align2(n int) int {
	return (n + 1) &^ 1
}
