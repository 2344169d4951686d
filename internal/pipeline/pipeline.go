// Package pipeline runs the font transform at the heart of subsetting:
// decompress, restrict the glyph set to a codepoint set, recompress.
// The three steps are supplied by a Codec so the transform itself stays
// pure and free of any concurrency or container-format concerns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Codec is the capability the pipeline is built on. Implementations must be
// safe for concurrent use and must not retain or mutate their inputs.
type Codec interface {
	// Decompress unwraps a compressed font container into a raw sfnt font.
	Decompress(ctx context.Context, data []byte) ([]byte, error)

	// Subset restricts a raw sfnt font to the glyphs reachable from
	// codePoints, always retaining .notdef and composite dependencies.
	Subset(ctx context.Context, font []byte, codePoints []rune) ([]byte, error)

	// Compress wraps a raw sfnt font back into the compressed container.
	Compress(ctx context.Context, font []byte) ([]byte, error)
}

// Error marks a transform failure caused by the font data itself
// (malformed input or an unsupported format), as opposed to an
// infrastructure failure. Callers degrade rather than propagate it.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsPipelineError reports whether err originated in the transform itself.
func IsPipelineError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// Transform runs the full decompress, subset, compress sequence.
// It is stateless and safe to run on any goroutine; the input slice is
// never mutated or retained.
func Transform(ctx context.Context, codec Codec, data []byte, codePoints []rune) ([]byte, error) {
	font, err := codec.Decompress(ctx, data)
	if err != nil {
		return nil, &Error{Stage: "decompress", Err: err}
	}

	subsetted, err := codec.Subset(ctx, font, codePoints)
	if err != nil {
		return nil, &Error{Stage: "subset", Err: err}
	}

	out, err := codec.Compress(ctx, subsetted)
	if err != nil {
		return nil, &Error{Stage: "compress", Err: err}
	}
	return out, nil
}
