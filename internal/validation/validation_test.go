package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	baseDir := "/tmp/library"

	tests := []struct {
		name      string
		baseDir   string
		userPath  string
		want      string
		wantError error
	}{
		{
			name:     "simple valid path",
			baseDir:  baseDir,
			userPath: "notes.md",
			want:     "notes.md",
		},
		{
			name:     "nested valid path",
			baseDir:  baseDir,
			userPath: "essays/draft.md",
			want:     filepath.Join("essays", "draft.md"),
		},
		{
			name:     "redundant separators cleaned",
			baseDir:  baseDir,
			userPath: "essays//draft.md",
			want:     filepath.Join("essays", "draft.md"),
		},
		{
			name:     "leading dot component cleaned",
			baseDir:  baseDir,
			userPath: "./notes.md",
			want:     "notes.md",
		},
		{
			name:      "dotdot at start",
			baseDir:   baseDir,
			userPath:  "../etc/passwd",
			wantError: ErrPathTraversal,
		},
		{
			name:      "dotdot in middle",
			baseDir:   baseDir,
			userPath:  "essays/../../etc/passwd",
			wantError: ErrPathTraversal,
		},
		{
			name:      "absolute path",
			baseDir:   baseDir,
			userPath:  "/etc/passwd",
			wantError: ErrPathTraversal,
		},
		{
			name:      "empty path",
			baseDir:   baseDir,
			userPath:  "",
			wantError: ErrEmptyPath,
		},
		{
			name:      "overlong path",
			baseDir:   baseDir,
			userPath:  strings.Repeat("a/", 2048) + "notes.md",
			wantError: ErrPathTooLong,
		},
		{
			name:      "escape after resolution",
			baseDir:   "/tmp/library/shelf",
			userPath:  "a/b/../../../etc/passwd",
			wantError: ErrPathTraversal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePath(tt.baseDir, tt.userPath)

			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Errorf("SanitizePath() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizePath() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SanitizePath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		wantError error
	}{
		{name: "simple filename", filename: "notes.md"},
		{name: "filename with spaces", filename: "my notes.md"},
		{name: "filename with punctuation", filename: "export_2026-08.tar.gz"},
		{name: "empty filename", filename: "", wantError: ErrInvalidFilename},
		{name: "dot", filename: ".", wantError: ErrInvalidFilename},
		{name: "dotdot", filename: "..", wantError: ErrInvalidFilename},
		{name: "slash", filename: "dir/notes.md", wantError: ErrInvalidFilename},
		{name: "backslash", filename: "dir\\notes.md", wantError: ErrInvalidFilename},
		{name: "null byte", filename: "notes\x00.md", wantError: ErrInvalidFilename},
		{name: "control character", filename: "notes\n.md", wantError: ErrInvalidFilename},
		{name: "leading hyphen", filename: "-notes.md", wantError: ErrInvalidFilename},
		{name: "overlong filename", filename: strings.Repeat("a", 256), wantError: ErrFilenameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.filename)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Errorf("ValidateFilename() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateFilename() unexpected error: %v", err)
			}
		})
	}
}

func TestTypeFromExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     FileType
	}{
		{"export.tar.xz", FileTypeTarXZ},
		{"export.tar.gz", FileTypeTarGZ},
		{"export.tgz", FileTypeTarGZ},
		{"EXPORT.TAR.XZ", FileTypeTarXZ},
		{"notes.md", FileTypeMarkdown},
		{"essay.markdown", FileTypeMarkdown},
		{"view.html", FileTypeHTML},
		{"view.htm", FileTypeHTML},
		{"view.xhtml", FileTypeHTML},
		{"doc.json", FileTypeJSON},
		{"plain.txt", FileTypeText},
		{"file.bin", FileTypeUnknown},
		{"file", FileTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := TypeFromExtension(tt.filename); got != tt.want {
				t.Errorf("TypeFromExtension(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestValidateFileType(t *testing.T) {
	xz := []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x04}
	gz := []byte{0x1f, 0x8b, 0x08, 0x00}

	tests := []struct {
		name      string
		filename  string
		content   []byte
		want      FileType
		wantError bool
	}{
		{name: "tar.xz with xz magic", filename: "export.tar.xz", content: xz, want: FileTypeTarXZ},
		{name: "tar.gz with gzip magic", filename: "export.tar.gz", content: gz, want: FileTypeTarGZ},
		{name: "tgz with gzip magic", filename: "export.tgz", content: gz, want: FileTypeTarGZ},
		{name: "markdown source", filename: "notes.md", content: []byte("# Heading\n\nBody text.\n"), want: FileTypeMarkdown},
		{name: "rendered view", filename: "view.html", content: []byte("<!DOCTYPE html>\n<html><body></body></html>"), want: FileTypeHTML},
		{name: "json document", filename: "doc.json", content: []byte(`{"key": "value"}`), want: FileTypeJSON},
		{name: "empty markdown file", filename: "empty.md", content: nil, want: FileTypeMarkdown},
		{name: "small file", filename: "small.txt", content: []byte("hi"), want: FileTypeText},
		{name: "archive claiming markdown", filename: "fake.md", content: gz, wantError: true},
		{name: "binary claiming markdown", filename: "fake.md", content: []byte{'a', 0x00, 0x01, 0x02}, wantError: true},
		{name: "markdown claiming archive", filename: "fake.tar.xz", content: []byte("# not an archive"), wantError: true},
		{name: "gzip data in tar.xz clothing", filename: "fake.tar.xz", content: gz, wantError: true},
		{name: "unsupported extension", filename: "file.bin", content: []byte("anything"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFileType(strings.NewReader(string(tt.content)), tt.filename)
			if tt.wantError {
				if !errors.Is(err, ErrWrongFileType) {
					t.Errorf("ValidateFileType() error = %v, want ErrWrongFileType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateFileType() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateFileType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateFilePath(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(good, []byte("# Notes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got, err := ValidateFilePath(good); err != nil || got != FileTypeMarkdown {
		t.Errorf("ValidateFilePath(good) = %v, %v", got, err)
	}

	bad := filepath.Join(dir, "fake.md")
	if err := os.WriteFile(bad, []byte{0x1f, 0x8b, 0x08, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateFilePath(bad); !errors.Is(err, ErrWrongFileType) {
		t.Errorf("ValidateFilePath(bad) error = %v, want ErrWrongFileType", err)
	}

	if _, err := ValidateFilePath(filepath.Join(dir, "missing.md")); err == nil {
		t.Error("ValidateFilePath(missing) expected error, got nil")
	}
}

type errorReader struct{}

func (errorReader) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("read error")
}

func TestValidateFileTypeReadError(t *testing.T) {
	if _, err := ValidateFileType(errorReader{}, "notes.md"); err == nil {
		t.Error("ValidateFileType() expected error from reader, got nil")
	}
}

func TestLooksLikeText(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{name: "plain ascii", content: []byte("plain ASCII text"), want: true},
		{name: "whitespace mix", content: []byte("Line 1\n\tLine 2\r\n"), want: true},
		{name: "utf-8 text", content: []byte("Hello 世界"), want: true},
		{name: "empty", content: nil, want: true},
		{name: "null bytes", content: []byte{0x00, 0x01, 0x02}, want: false},
		{name: "control heavy", content: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, want: false},
		{name: "just above threshold", content: append([]byte(strings.Repeat("a", 96)), 0x01, 0x02, 0x03, 0x04), want: true},
		{name: "just below threshold", content: append([]byte(strings.Repeat("a", 94)), 0x01, 0x02, 0x03, 0x04, 0x05, 0x06), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeText(tt.content); got != tt.want {
				t.Errorf("looksLikeText() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkSanitizePath(b *testing.B) {
	for i := 0; i < b.N; i++ {
		SanitizePath("/tmp/library", "essays/draft.md")
	}
}
