package models

import (
	"path"
	"strings"
	"time"
)

// FileType is the display category derived from a file extension.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeDocument FileType = "document"
	FileTypeVideo    FileType = "video"
	FileTypeCode     FileType = "code"
	FileTypeOther    FileType = "other"
)

// AllFileTypes lists the categories in display order.
var AllFileTypes = []FileType{FileTypeImage, FileTypeDocument, FileTypeVideo, FileTypeCode, FileTypeOther}

var extensionTypes = map[string]FileType{
	"jpg": FileTypeImage, "jpeg": FileTypeImage, "png": FileTypeImage, "gif": FileTypeImage,
	"svg": FileTypeImage, "webp": FileTypeImage, "bmp": FileTypeImage,

	"pdf": FileTypeDocument, "doc": FileTypeDocument, "docx": FileTypeDocument, "txt": FileTypeDocument,
	"md": FileTypeDocument, "rtf": FileTypeDocument, "xls": FileTypeDocument, "xlsx": FileTypeDocument,
	"ppt": FileTypeDocument, "pptx": FileTypeDocument,

	"mp4": FileTypeVideo, "avi": FileTypeVideo, "mov": FileTypeVideo, "mkv": FileTypeVideo, "webm": FileTypeVideo,

	"js": FileTypeCode, "jsx": FileTypeCode, "ts": FileTypeCode, "tsx": FileTypeCode, "py": FileTypeCode,
	"java": FileTypeCode, "cpp": FileTypeCode, "html": FileTypeCode, "css": FileTypeCode, "json": FileTypeCode,
}

// Extension returns the lower-cased text after the last dot of name,
// or "" when there is no dot.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ClassifyFile maps a file name to its category. Pure function of the extension.
func ClassifyFile(name string) FileType {
	if t, ok := extensionTypes[Extension(name)]; ok {
		return t
	}
	return FileTypeOther
}

// ParseFileType validates a user-supplied category name.
func ParseFileType(s string) (FileType, bool) {
	t := FileType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFileTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// FileEntry is one object in the catalog snapshot.
// Key is unique and doubles as the display name.
type FileEntry struct {
	Key          string    `json:"key" yaml:"key"`
	Size         int64     `json:"size" yaml:"size"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
	Type         FileType  `json:"type" yaml:"type"`
}

// Name returns the display name of the entry.
func (f FileEntry) Name() string {
	return f.Key
}

// BaseName returns the last path segment of the key.
func (f FileEntry) BaseName() string {
	return path.Base(f.Key)
}

// NewFileEntry builds a catalog entry with its derived type.
func NewFileEntry(key string, size int64, lastModified time.Time) FileEntry {
	return FileEntry{
		Key:          key,
		Size:         size,
		LastModified: lastModified,
		Type:         ClassifyFile(key),
	}
}

// FileSummary is reported once per completed upload.
type FileSummary struct {
	Key  string `json:"key" yaml:"key"`
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
}

// VersionEntry is one stored version of an object, newest first in a history.
type VersionEntry struct {
	VersionID    string    `json:"versionId" yaml:"versionId"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
	Size         int64     `json:"size" yaml:"size"`
	IsLatest     bool      `json:"isLatest" yaml:"isLatest"`
}

// VersionHistory is the result of a version lookup for one key.
// Fallback is set when the history was synthesized from known metadata.
type VersionHistory struct {
	Key      string         `json:"key" yaml:"key"`
	Versions []VersionEntry `json:"versions" yaml:"versions"`
	Fallback bool           `json:"fallback" yaml:"fallback"`
}

// Stats are derived from a catalog snapshot.
type Stats struct {
	TotalFiles     int    `json:"totalFiles" yaml:"totalFiles"`
	TotalSize      string `json:"totalSize" yaml:"totalSize"`
	TotalSizeBytes int64  `json:"totalSizeBytes" yaml:"totalSizeBytes"`
	UploadsToday   int    `json:"uploadsToday" yaml:"uploadsToday"`
	Versions       int    `json:"versions" yaml:"versions"`
}
