package strings

import (
	"testing"
	"time"
)

func TestPluralize(t *testing.T) {
	if got := Pluralize("file", 1); got != "file" {
		t.Errorf("Pluralize(file, 1) = %q", got)
	}
	if got := Pluralize("file", 0); got != "files" {
		t.Errorf("Pluralize(file, 0) = %q", got)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3.0 TB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatSizeUnitsIncreaseAtEachBoundary(t *testing.T) {
	_, prev := scale(1023, statsUnits, 1)
	for b := int64(1024); b < 1<<50; b *= 1024 {
		_, i := scale(b, statsUnits, 1)
		if i != prev+1 {
			t.Fatalf("unit index at %d = %d, want %d", b, i, prev+1)
		}
		prev = i
	}
}

func TestFormatSizeRoundsIntoNextUnit(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{1024*1024 - 1, "1.0 MB"},
		{1024*1024*1024 - 1, "1.0 GB"},
		{1024*1024 - 60, "1023.9 KB"},
		{1000 * 1024, "1000.0 KB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}

	if got := FormatFileSize(1024*1024 - 1); got != "1 MB" {
		t.Errorf("FormatFileSize(1048575) = %q, want %q", got, "1 MB")
	}
	if got := FormatUploadSize(1024*1024*1024 - 1); got != "1 GB" {
		t.Errorf("FormatUploadSize(1073741823) = %q, want %q", got, "1 GB")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, Placeholder},
		{100, "100 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1500000, "1.43 MB"},
		{2 * 1024 * 1024 * 1024, "2 GB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.bytes); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}

	if got := FormatUploadSize(0); got != "0 Bytes" {
		t.Errorf("FormatUploadSize(0) = %q", got)
	}
	if got := FormatUploadSize(2048); got != "2 KB" {
		t.Errorf("FormatUploadSize(2048) = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Time{}); got != Placeholder {
		t.Errorf("FormatDate(zero) = %q", got)
	}
	ts := time.Date(2026, 3, 4, 9, 15, 0, 0, time.Local)
	if got := FormatDate(ts); got != "Mar 4, 2026, 09:15 AM" {
		t.Errorf("FormatDate = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("3HLx9vQ2aZ0mW7pKc", 12); got != "3HLx9vQ2aZ0m..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("current", 12); got != "current" {
		t.Errorf("Truncate short = %q", got)
	}
}

func TestInitials(t *testing.T) {
	if got := Initials("ada@example.com"); got != "A" {
		t.Errorf("Initials = %q", got)
	}
	if got := Initials(""); got != "U" {
		t.Errorf("Initials(empty) = %q", got)
	}
}
