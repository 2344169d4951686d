package glyf_test

import (
	"encoding/binary"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/glyphlab/woffle/internal/glyf"
	"github.com/glyphlab/woffle/internal/sfnttable"
)

// outlineLen returns the number of segments in gid's outline, or -1 on error.
func outlineLen(t *testing.T, font []byte, r rune) int {
	t.Helper()
	f, err := sfnt.Parse(font)
	if err != nil {
		t.Fatalf("sfnt.Parse: %v", err)
	}
	var buf sfnt.Buffer
	gi, err := f.GlyphIndex(&buf, r)
	if err != nil {
		t.Fatalf("GlyphIndex(%q): %v", r, err)
	}
	if gi == 0 {
		t.Fatalf("rune %q is not mapped", r)
	}
	segs, err := f.LoadGlyph(&buf, gi, fixed.I(16), nil)
	if err != nil {
		t.Fatalf("LoadGlyph(%q): %v", r, err)
	}
	return len(segs)
}

func TestSubsetKeepsRequestedGlyphs(t *testing.T) {
	out, err := glyf.Subset(goregular.TTF, []rune{'A', 'B', 'C'})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}

	for _, r := range []rune{'A', 'B', 'C'} {
		if n := outlineLen(t, out, r); n == 0 {
			t.Errorf("glyph %q lost its outline", r)
		}
	}
}

func TestSubsetEmptiesUnrequestedGlyphs(t *testing.T) {
	out, err := glyf.Subset(goregular.TTF, []rune{'A'})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}

	for _, r := range []rune{'Z', 'q', '7'} {
		if n := outlineLen(t, out, r); n != 0 {
			t.Errorf("glyph %q kept %d segments, want empty outline", r, n)
		}
	}
}

func TestSubsetPreservesGlyphIndices(t *testing.T) {
	out, err := glyf.Subset(goregular.TTF, []rune{'A'})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}

	orig, err := sfnt.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("sfnt.Parse(original): %v", err)
	}
	sub, err := sfnt.Parse(out)
	if err != nil {
		t.Fatalf("sfnt.Parse(subset): %v", err)
	}
	if orig.NumGlyphs() != sub.NumGlyphs() {
		t.Errorf("NumGlyphs = %d, want %d", sub.NumGlyphs(), orig.NumGlyphs())
	}

	var buf sfnt.Buffer
	for _, r := range []rune{'A', 'Z', ' '} {
		gi1, err1 := orig.GlyphIndex(&buf, r)
		gi2, err2 := sub.GlyphIndex(&buf, r)
		if err1 != nil || err2 != nil {
			t.Fatalf("GlyphIndex(%q): %v / %v", r, err1, err2)
		}
		if gi1 != gi2 {
			t.Errorf("glyph index for %q changed: %d -> %d", r, gi1, gi2)
		}
	}
}

// compositeFixture rewrites goregular so that base's glyph record becomes a
// composite glyph referencing ref's glyph at offset (0,0). goregular itself
// contains only simple glyphs, so the composite has to be built by hand.
func compositeFixture(t *testing.T, base, ref rune) []byte {
	t.Helper()

	f, err := sfnt.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("sfnt.Parse: %v", err)
	}
	var buf sfnt.Buffer
	baseGID, err := f.GlyphIndex(&buf, base)
	if err != nil || baseGID == 0 {
		t.Fatalf("GlyphIndex(%q): gi=%d err=%v", base, baseGID, err)
	}
	refGID, err := f.GlyphIndex(&buf, ref)
	if err != nil || refGID == 0 {
		t.Fatalf("GlyphIndex(%q): gi=%d err=%v", ref, refGID, err)
	}

	flavor, tables, err := sfnttable.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var head, maxp, loca, glyfData []byte
	for _, tbl := range tables {
		switch tbl.Tag {
		case "head":
			head = tbl.Data
		case "maxp":
			maxp = tbl.Data
		case "loca":
			loca = tbl.Data
		case "glyf":
			glyfData = tbl.Data
		}
	}

	numGlyphs := int(binary.BigEndian.Uint16(maxp[4:]))
	longLoca := binary.BigEndian.Uint16(head[50:]) == 1
	offsets := make([]uint32, numGlyphs+1)
	for i := range offsets {
		if longLoca {
			offsets[i] = binary.BigEndian.Uint32(loca[4*i:])
		} else {
			offsets[i] = 2 * uint32(binary.BigEndian.Uint16(loca[2*i:]))
		}
	}

	// Composite record: numberOfContours -1, bbox copied from the
	// referenced glyph, one component with word args (dx=0, dy=0).
	comp := make([]byte, 18)
	binary.BigEndian.PutUint16(comp[0:], 0xFFFF)
	copy(comp[2:10], glyfData[offsets[refGID]+2:offsets[refGID]+10])
	binary.BigEndian.PutUint16(comp[10:], 0x0003) // ARG_1_AND_2_ARE_WORDS | ARGS_ARE_XY_VALUES
	binary.BigEndian.PutUint16(comp[12:], uint16(refGID))

	var newGlyf []byte
	newOffsets := make([]uint32, numGlyphs+1)
	for g := range numGlyphs {
		newOffsets[g] = uint32(len(newGlyf))
		rec := glyfData[offsets[g]:offsets[g+1]]
		if g == int(baseGID) {
			rec = comp
		}
		newGlyf = append(newGlyf, rec...)
		if len(newGlyf)%2 == 1 {
			newGlyf = append(newGlyf, 0)
		}
	}
	newOffsets[numGlyphs] = uint32(len(newGlyf))

	var newLoca []byte
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

	out := make([]sfnttable.Table, 0, len(tables))
	for _, tbl := range tables {
		switch tbl.Tag {
		case "glyf":
			out = append(out, sfnttable.Table{Tag: "glyf", Data: newGlyf})
		case "loca":
			out = append(out, sfnttable.Table{Tag: "loca", Data: newLoca})
		default:
			out = append(out, tbl)
		}
	}
	font, err := sfnttable.Assemble(flavor, out)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return font
}

func TestSubsetKeepsCompositeComponents(t *testing.T) {
	// Q's record is replaced by a composite referencing A's glyph, so
	// keeping Q must also keep A even though A was never requested.
	font := compositeFixture(t, 'Q', 'A')
	if n := outlineLen(t, font, 'Q'); n == 0 {
		t.Fatal("fixture composite has no outline")
	}

	out, err := glyf.Subset(font, []rune{'Q'})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}

	if n := outlineLen(t, out, 'Q'); n == 0 {
		t.Fatal("composite glyph lost its outline")
	}
	if n := outlineLen(t, out, 'A'); n == 0 {
		t.Error("component glyph lost its outline")
	}
	// Glyphs outside the closure are still emptied.
	if n := outlineLen(t, out, 'Z'); n != 0 {
		t.Errorf("glyph Z kept %d segments, want empty outline", n)
	}
}

func TestSubsetNeverGrows(t *testing.T) {
	out, err := glyf.Subset(goregular.TTF, []rune{'a', 'b', 'c'})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}
	if len(out) > len(goregular.TTF) {
		t.Errorf("subset is %d bytes, input was %d", len(out), len(goregular.TTF))
	}
}

func TestSubsetUnmappedCodepoints(t *testing.T) {
	// Codepoints the font does not cover are skipped, not an error.
	out, err := glyf.Subset(goregular.TTF, []rune{'A', '\U0001F600'})
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}
	if n := outlineLen(t, out, 'A'); n == 0 {
		t.Error("mapped glyph lost its outline")
	}
}

func TestSubsetRejectsGarbage(t *testing.T) {
	if _, err := glyf.Subset([]byte("not a font"), []rune{'A'}); err == nil {
		t.Fatal("Subset succeeded on garbage input")
	}
}
