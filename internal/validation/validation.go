// Package validation guards the seams where user-supplied names and files
// enter the library: URL paths joined onto the library root, highlight ids
// used as path components, and files handed to the CLI.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// MaxFilenameLength bounds a single path component.
	MaxFilenameLength = 255
	// MaxPathLength bounds a full library path.
	MaxPathLength = 4096

	// headerSize is how much of a file is read for content sniffing.
	headerSize = 512
)

var (
	ErrPathTraversal   = errors.New("path traversal detected")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrPathTooLong     = errors.New("path too long")
	ErrFilenameTooLong = errors.New("filename too long")
	ErrEmptyPath       = errors.New("path cannot be empty")
	ErrWrongFileType   = errors.New("file content does not match its extension")
)

// SanitizePath checks a user-supplied library path against the library root.
// The path must be relative, contain no "..", and resolve inside baseDir.
// Returns the cleaned path on success.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}

	clean := filepath.Clean(userPath)
	if strings.Contains(clean, "..") {
		return "", ErrPathTraversal
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}

	// Resolve both sides and re-check containment; similar sibling directory
	// names defeat a plain prefix comparison.
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolving library root: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, clean))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrPathTraversal
	}

	return clean, nil
}

// ValidateFilename checks one path component: no separators, no control
// characters, no reserved names, and nothing an argv parser would mistake
// for a flag.
func ValidateFilename(name string) error {
	if name == "" {
		return ErrInvalidFilename
	}
	if len(name) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidFilename)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: leading hyphen not allowed", ErrInvalidFilename)
	}
	return nil
}

// FileType classifies the inputs the CLI accepts: markdown sources for
// marking, rendered views for anchoring, and archives for import.
type FileType string

const (
	FileTypeTarXZ    FileType = "tar.xz"
	FileTypeTarGZ    FileType = "tar.gz"
	FileTypeMarkdown FileType = "markdown"
	FileTypeHTML     FileType = "html"
	FileTypeJSON     FileType = "json"
	FileTypeText     FileType = "text"
	FileTypeUnknown  FileType = "unknown"
)

var (
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	gzipMagic = []byte{0x1f, 0x8b}
)

// TypeFromExtension maps a filename to the file type its extension claims.
func TypeFromExtension(filename string) FileType {
	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".tar.xz") {
		return FileTypeTarXZ
	}
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return FileTypeTarGZ
	}
	switch filepath.Ext(lower) {
	case ".md", ".markdown":
		return FileTypeMarkdown
	case ".html", ".htm", ".xhtml":
		return FileTypeHTML
	case ".json":
		return FileTypeJSON
	case ".txt":
		return FileTypeText
	default:
		return FileTypeUnknown
	}
}

// ValidateFileType reads the file header and checks it against the type the
// filename extension claims. Archives must carry the matching compression
// magic; the text types must not look like binary data.
func ValidateFileType(r io.Reader, filename string) (FileType, error) {
	expected := TypeFromExtension(filename)
	if expected == FileTypeUnknown {
		return FileTypeUnknown, fmt.Errorf("%w: unsupported extension on %s", ErrWrongFileType, filepath.Base(filename))
	}

	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("reading file header: %w", err)
	}
	buf = buf[:n]

	switch expected {
	case FileTypeTarXZ:
		if !bytes.HasPrefix(buf, xzMagic) {
			return FileTypeUnknown, fmt.Errorf("%w: %s is not xz data", ErrWrongFileType, filepath.Base(filename))
		}
	case FileTypeTarGZ:
		if !bytes.HasPrefix(buf, gzipMagic) {
			return FileTypeUnknown, fmt.Errorf("%w: %s is not gzip data", ErrWrongFileType, filepath.Base(filename))
		}
	default:
		if !looksLikeText(buf) {
			return FileTypeUnknown, fmt.Errorf("%w: %s contains binary data", ErrWrongFileType, filepath.Base(filename))
		}
	}
	return expected, nil
}

// ValidateFilePath opens the named file and validates its content type.
func ValidateFilePath(path string) (FileType, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileTypeUnknown, err
	}
	defer f.Close()
	return ValidateFileType(f, path)
}

// looksLikeText reports whether the header bytes plausibly hold UTF-8 text.
// Empty files pass; null bytes or a heavy share of control characters fail.
func looksLikeText(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b == '\t' || b == '\n' || b == '\r':
			printable++
		case b < 0x20:
			control++
		default:
			printable++
		}
	}
	return float64(printable)/float64(printable+control) > 0.95
}
