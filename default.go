package woffle

import (
	"context"
	"sync"
)

// defaultSubsetter memoizes the process-wide instance: the first caller
// constructs it, everyone after shares it.
var defaultSubsetter = sync.OnceValue(func() *Subsetter {
	return New()
})

// Default returns the process-wide Subsetter.
func Default() *Subsetter {
	return defaultSubsetter()
}

// Subset subsets data to codePoints using the process-wide Subsetter.
// It never fails; see Subsetter.Subset.
func Subset(ctx context.Context, data []byte, codePoints []rune) string {
	return Default().Subset(ctx, data, codePoints)
}
