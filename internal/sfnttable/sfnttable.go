// Package sfnttable parses and reassembles the table directory of an
// SFNT-framed font (TrueType or CFF flavored). It deals only with the
// container layout; table contents are opaque byte slices.
package sfnttable

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// SFNT flavor values.
const (
	FlavorTrueType = 0x00010000
	FlavorAppleTT  = 0x74727565 // 'true'
	FlavorCFF      = 0x4F54544F // 'OTTO'
)

const (
	headerLen = 12
	entryLen  = 16

	// checkSumAdjustmentOffset is the byte offset of checkSumAdjustment
	// within the head table.
	checkSumAdjustmentOffset = 8

	// checkSumMagic is the constant the whole-font checksum must sum to,
	// per the OpenType spec.
	checkSumMagic = 0xB1B0AFBA
)

// Table is one entry of the font's table directory together with its data.
type Table struct {
	Tag  string
	Data []byte
}

// Parse splits an SFNT font into its flavor and tables. Tables are returned
// in file (offset) order. The input is not retained; table data aliases it.
func Parse(data []byte) (flavor uint32, tables []Table, err error) {
	if len(data) < headerLen {
		return 0, nil, fmt.Errorf("sfnt too short: %d bytes", len(data))
	}

	flavor = binary.BigEndian.Uint32(data[0:])
	switch flavor {
	case FlavorTrueType, FlavorAppleTT, FlavorCFF:
	default:
		return 0, nil, fmt.Errorf("unrecognized sfnt version 0x%08X", flavor)
	}

	numTables := int(binary.BigEndian.Uint16(data[4:]))
	dirEnd := headerLen + numTables*entryLen
	if numTables == 0 || dirEnd > len(data) {
		return 0, nil, fmt.Errorf("invalid table count %d", numTables)
	}

	type rawEntry struct {
		tag            string
		offset, length uint32
	}
	entries := make([]rawEntry, 0, numTables)
	for i := range numTables {
		entry := data[headerLen+i*entryLen:]
		e := rawEntry{
			tag:    string(entry[0:4]),
			offset: binary.BigEndian.Uint32(entry[8:]),
			length: binary.BigEndian.Uint32(entry[12:]),
		}
		if uint64(e.offset)+uint64(e.length) > uint64(len(data)) {
			return 0, nil, fmt.Errorf("table %q extends past end of font", e.tag)
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	tables = make([]Table, 0, numTables)
	for _, e := range entries {
		tables = append(tables, Table{Tag: e.tag, Data: data[e.offset : e.offset+e.length]})
	}
	return flavor, tables, nil
}

// Assemble builds a complete SFNT font from the given tables. The directory
// is sorted by tag as OpenType requires, table data is 4-byte aligned, table
// checksums are recomputed, and head.checkSumAdjustment is refreshed when a
// head table is present.
func Assemble(flavor uint32, tables []Table) ([]byte, error) {
	n := len(tables)
	if n == 0 {
		return nil, fmt.Errorf("no tables to assemble")
	}

	sorted := make([]Table, n)
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	total := headerLen + n*entryLen
	for _, t := range sorted {
		total += pad4(len(t.Data))
	}

	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[0:], flavor)
	binary.BigEndian.PutUint16(out[4:], uint16(n))

	// searchRange, entrySelector, rangeShift per the sfnt header spec.
	entrySelector := 0
	for 1<<(entrySelector+1) <= n {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * entryLen
	binary.BigEndian.PutUint16(out[6:], uint16(searchRange))
	binary.BigEndian.PutUint16(out[8:], uint16(entrySelector))
	binary.BigEndian.PutUint16(out[10:], uint16(n*entryLen-searchRange))

	offset := headerLen + n*entryLen
	var headOffset int
	for i, t := range sorted {
		copy(out[offset:], t.Data)
		if t.Tag == "head" && len(t.Data) >= checkSumAdjustmentOffset+4 {
			// Zero the adjustment before computing the table checksum;
			// the real value is patched in after the full font is laid out.
			headOffset = offset
			binary.BigEndian.PutUint32(out[offset+checkSumAdjustmentOffset:], 0)
		}

		entry := out[headerLen+i*entryLen:]
		copy(entry[0:4], t.Tag)
		binary.BigEndian.PutUint32(entry[4:], Checksum(out[offset:offset+pad4(len(t.Data))]))
		binary.BigEndian.PutUint32(entry[8:], uint32(offset))
		binary.BigEndian.PutUint32(entry[12:], uint32(len(t.Data)))

		offset += pad4(len(t.Data))
	}

	if headOffset != 0 {
		adjustment := checkSumMagic - Checksum(out)
		binary.BigEndian.PutUint32(out[headOffset+checkSumAdjustmentOffset:], adjustment)
	}
	return out, nil
}

// Checksum computes the OpenType table checksum: the sum of big-endian
// uint32 words, with the tail zero-padded to a word boundary.
func Checksum(data []byte) uint32 {
	var sum uint32
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		sum += binary.BigEndian.Uint32(data[i:])
	}
	if rem := len(data) - n; rem > 0 {
		var tail [4]byte
		copy(tail[:], data[n:])
		sum += binary.BigEndian.Uint32(tail[:])
	}
	return sum
}

func pad4(n int) int {
	return (n + 3) &^ 3
}
