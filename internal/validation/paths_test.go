package validation

import (
	"path/filepath"
	"testing"
)

// TestValidateFilename tests validation for storage-provided names
func TestValidateFilename(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		expectValid bool
	}{
		{"simple", "file.txt", true},
		{"with_spaces", "Quarterly Report.pdf", true},
		{"double_dots_inside", "data..v2.csv", true},
		{"hidden", ".env", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"unix_separator", "../etc/passwd", false},
		{"windows_separator", `..\boot.ini`, false},
		{"nested", "a/b.txt", false},
		{"null_byte", "a\x00b", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilename(tc.filename)
			if tc.expectValid && err != nil {
				t.Errorf("ValidateFilename(%q) unexpected error: %v", tc.filename, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("ValidateFilename(%q) expected error", tc.filename)
			}
		})
	}
}

func TestResolveDownloadPath(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		out     string
		isDir   bool
		want    string
		wantErr bool
	}{
		{name: "default", file: "a.txt", want: "a.txt"},
		{name: "directory", file: "a.txt", out: "downloads", isDir: true, want: filepath.Join("downloads", "a.txt")},
		{name: "explicit file", file: "a.txt", out: "renamed.txt", want: "renamed.txt"},
		{name: "explicit file ignores unsafe name", file: "../a.txt", out: "safe.txt", want: "safe.txt"},
		{name: "unsafe default", file: "../a.txt", wantErr: true},
		{name: "unsafe into directory", file: "..", out: "downloads", isDir: true, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveDownloadPath(tc.file, tc.out, tc.isDir)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	testCases := []struct {
		name        string
		path        string
		expectValid bool
	}{
		{"relative", "sub/file.txt", true},
		{"absolute_inside", filepath.Join(base, "x.txt"), true},
		{"escape", "../../etc/passwd", false},
		{"absolute_outside", "/etc/passwd", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tc.path, base)
			if tc.expectValid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("expected error for %q", tc.path)
			}
		})
	}
}
