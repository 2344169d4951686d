package woffle

import "encoding/base64"

// DataURLPrefix is the scheme and media type prepended to every result.
const DataURLPrefix = "data:font/woff2;base64,"

// ToDataURL encodes a font binary as a font/woff2 data-url. Encoding always
// happens on the initiating side so only binary, never the much larger
// base64 text, crosses the worker boundary.
func ToDataURL(data []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(data)
}
