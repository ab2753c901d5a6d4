package utils

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatDataSize formats bytes into human-readable binary units, e.g. "1.5 MiB"
func FormatDataSize(bytes int64) string {
	if bytes < 0 {
		return "invalid"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCount formats a count with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatSpread shows a single value when all replicas agree and "min..max"
// when they don't.
func FormatSpread(min, max int64, format func(int64) string) string {
	if min == max {
		return format(min)
	}
	return fmt.Sprintf("%s..%s", format(min), format(max))
}
