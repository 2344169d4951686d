package pipeline

import (
	"context"

	"github.com/glyphlab/woffle/internal/glyf"
	"github.com/glyphlab/woffle/internal/woff2"
)

// woff2Codec is the production codec: WOFF2 container around TrueType
// glyf subsetting.
type woff2Codec struct{}

// DefaultCodec returns the codec used when none is injected.
func DefaultCodec() Codec { return woff2Codec{} }

func (woff2Codec) Decompress(_ context.Context, data []byte) ([]byte, error) {
	return woff2.Decode(data)
}

func (woff2Codec) Subset(_ context.Context, font []byte, codePoints []rune) ([]byte, error) {
	return glyf.Subset(font, codePoints)
}

func (woff2Codec) Compress(_ context.Context, font []byte) ([]byte, error) {
	return woff2.Encode(font)
}
