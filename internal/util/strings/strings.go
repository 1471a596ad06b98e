// Package strings provides string and display formatting helpers.
package strings

import (
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode"
)

// Placeholder is shown for unknown sizes and dates.
const Placeholder = "—"

// DisplayDateLayout matches "Mar 4, 2026, 09:15 AM".
const DisplayDateLayout = "Jan 2, 2006, 03:04 PM"

var (
	statsUnits   = []string{"B", "KB", "MB", "GB", "TB", "PB"}
	catalogUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}
)

// Pluralize returns singular or plural form based on count.
// Example: Pluralize("file", 1) returns "file", Pluralize("file", 2) returns "files"
func Pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

// scale divides bytes into the largest unit of the table that keeps the
// value, rounded to decimals places, below 1024.
func scale(bytes int64, units []string, decimals int) (float64, int) {
	i := 0
	for v := bytes; v >= 1024 && i < len(units)-1; v /= 1024 {
		i++
	}
	p := math.Pow(10, float64(decimals))
	v := math.Round(float64(bytes)/math.Pow(1024, float64(i))*p) / p
	if v >= 1024 && i < len(units)-1 {
		i++
		v = math.Round(float64(bytes)/math.Pow(1024, float64(i))*p) / p
	}
	return v, i
}

// FormatSize renders an aggregate size with one decimal: 0 → "0 B",
// 1024 → "1.0 KB". Byte counts below 1 KB have no decimals.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	v, i := scale(bytes, statsUnits, 1)
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", v, statsUnits[i])
}

// FormatFileSize renders a catalog size with up to two decimals, trailing
// zeros trimmed: 1536 → "1.5 KB", 1024 → "1 KB". Zero renders as Placeholder.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return Placeholder
	}
	return formatTrimmed(bytes)
}

// FormatUploadSize is FormatFileSize for upload rows, where zero is "0 Bytes".
func FormatUploadSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	return formatTrimmed(bytes)
}

func formatTrimmed(bytes int64) string {
	v, i := scale(bytes, catalogUnits, 2)
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + catalogUnits[i]
}

// FormatDate renders a timestamp in local time, or Placeholder when unset.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Local().Format(DisplayDateLayout)
}

// Truncate shortens s to n characters, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Initials returns the upper-cased first character of name, or "U".
func Initials(name string) string {
	for _, r := range name {
		return string(unicode.ToUpper(r))
	}
	return "U"
}
