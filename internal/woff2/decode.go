package woff2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/glyphlab/woffle/internal/sfnttable"
)

// maxDecompressedSize bounds the reconstructed sfnt to guard against
// decompression bombs.
const maxDecompressedSize = 256 << 20

// Decode reconstructs the original sfnt font from a WOFF2 file.
func Decode(data []byte) ([]byte, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("woff2: file too short: %d bytes", len(data))
	}
	if binary.BigEndian.Uint32(data[0:]) != Signature {
		return nil, fmt.Errorf("woff2: bad signature 0x%08X", binary.BigEndian.Uint32(data[0:]))
	}

	flavor := binary.BigEndian.Uint32(data[4:])
	numTables := int(binary.BigEndian.Uint16(data[12:]))
	totalCompressed := binary.BigEndian.Uint32(data[20:])
	if numTables == 0 {
		return nil, fmt.Errorf("woff2: no tables")
	}

	type entry struct {
		tag        string
		origLength uint32
	}
	entries := make([]entry, 0, numTables)

	pos := headerLen
	var totalOrig uint64
	for range numTables {
		if pos >= len(data) {
			return nil, fmt.Errorf("woff2: truncated table directory")
		}
		flags := data[pos]
		pos++

		var tag string
		if idx := flags & 0x3F; idx < 63 {
			tag = knownTags[idx]
		} else {
			if pos+4 > len(data) {
				return nil, fmt.Errorf("woff2: truncated table tag")
			}
			tag = string(data[pos : pos+4])
			pos += 4
		}

		origLength, next, err := readBase128(data, pos)
		if err != nil {
			return nil, err
		}
		pos = next

		// Transform version 0 means transformed for glyf and loca, null for
		// everything else; any transformed table is out of scope here.
		version := flags >> 6
		transformed := version != 0
		if tag == "glyf" || tag == "loca" {
			transformed = version != 3
		}
		if transformed {
			return nil, fmt.Errorf("%w: table %q", ErrTransformed, tag)
		}

		entries = append(entries, entry{tag: tag, origLength: origLength})
		totalOrig += uint64(origLength)
	}

	if totalOrig > maxDecompressedSize {
		return nil, fmt.Errorf("woff2: declared size %d exceeds limit", totalOrig)
	}
	if uint64(pos)+uint64(totalCompressed) > uint64(len(data)) {
		return nil, fmt.Errorf("woff2: compressed stream extends past end of file")
	}

	br := brotli.NewReader(bytes.NewReader(data[pos : pos+int(totalCompressed)]))
	stream := make([]byte, totalOrig)
	if _, err := io.ReadFull(br, stream); err != nil {
		return nil, fmt.Errorf("woff2: decompress table stream: %w", err)
	}

	tables := make([]sfnttable.Table, 0, numTables)
	var off uint32
	for _, e := range entries {
		tables = append(tables, sfnttable.Table{Tag: e.tag, Data: stream[off : off+e.origLength]})
		off += e.origLength
	}

	out, err := sfnttable.Assemble(flavor, tables)
	if err != nil {
		return nil, fmt.Errorf("woff2: %w", err)
	}
	return out, nil
}
