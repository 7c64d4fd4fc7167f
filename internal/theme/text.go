package theme

import (
	"bytes"
	"unicode/utf8"
)

// sniffLen matches the amount of content net/http looks at when detecting a content type.
const sniffLen = 512

// IsText reports whether content looks like utf-8 text without NUL bytes.
func IsText(content []byte) bool {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	return utf8.Valid(content)
}

// KeysOf returns the keys of the checksums in their original order.
func KeysOf(checksums []Checksum) []string {
	keys := make([]string, 0, len(checksums))
	for _, c := range checksums {
		keys = append(keys, c.Key)
	}
	return keys
}

// IndexChecksums maps checksums by key. Later entries win on duplicate keys.
func IndexChecksums(checksums []Checksum) map[string]Checksum {
	idx := make(map[string]Checksum, len(checksums))
	for _, c := range checksums {
		idx[c.Key] = c
	}
	return idx
}
