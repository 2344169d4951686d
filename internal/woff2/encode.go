package woff2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/andybalholm/brotli"

	"github.com/glyphlab/woffle/internal/sfnttable"
)

// Encode wraps an sfnt font in a WOFF2 container. All tables are written
// with the null transform, so the output round-trips byte-exactly through
// Decode up to directory ordering and padding.
func Encode(font []byte) ([]byte, error) {
	flavor, tables, err := sfnttable.Parse(font)
	if err != nil {
		return nil, fmt.Errorf("woff2: %w", err)
	}

	// Table directory and the uncompressed stream, in file order.
	var dir []byte
	var stream bytes.Buffer
	totalSfntSize := 12 + 16*len(tables)
	for _, t := range tables {
		flags := knownTagIndex(t.Tag)
		if t.Tag == "glyf" || t.Tag == "loca" {
			flags |= 3 << 6 // null transform
		}
		dir = append(dir, flags)
		if flags&0x3F == 63 {
			dir = append(dir, t.Tag...)
		}
		dir = appendBase128(dir, uint32(len(t.Data)))

		stream.Write(t.Data)
		totalSfntSize += pad4(len(t.Data))
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.DefaultCompression)
	if _, err := bw.Write(stream.Bytes()); err != nil {
		return nil, fmt.Errorf("woff2: compress table stream: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("woff2: compress table stream: %w", err)
	}

	totalLength := headerLen + len(dir) + compressed.Len()

	out := make([]byte, headerLen, totalLength)
	binary.BigEndian.PutUint32(out[0:], Signature)
	binary.BigEndian.PutUint32(out[4:], flavor)
	binary.BigEndian.PutUint32(out[8:], uint32(totalLength))
	binary.BigEndian.PutUint16(out[12:], uint16(len(tables)))
	// reserved (14) stays zero.
	binary.BigEndian.PutUint32(out[16:], uint32(totalSfntSize))
	binary.BigEndian.PutUint32(out[20:], uint32(compressed.Len()))
	// majorVersion/minorVersion (24, 26) and the metadata and private
	// block fields (28..47) stay zero: no extension blocks are written.

	out = append(out, dir...)
	out = append(out, compressed.Bytes()...)
	return out, nil
}

func pad4(n int) int {
	return (n + 3) &^ 3
}
