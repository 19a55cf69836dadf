package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// Writer streams entries into a compressed tar archive. The compression is
// chosen from the destination extension: .tar.xz or .tar.gz.
type Writer struct {
	tw      *tar.Writer
	closers []io.Closer
	modTime time.Time
}

// NewWriter creates the destination file and the matching compression stack.
func NewWriter(dstPath string) (*Writer, error) {
	outFile, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}

	var compressed io.Writer
	closers := []io.Closer{outFile}

	switch DetectFormat(dstPath) {
	case "tar.xz":
		xzw, err := xz.NewWriter(outFile)
		if err != nil {
			outFile.Close()
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		compressed = xzw
		closers = append([]io.Closer{xzw}, closers...)
	case "tar.gz":
		gzw := gzip.NewWriter(outFile)
		compressed = gzw
		closers = append([]io.Closer{gzw}, closers...)
	default:
		outFile.Close()
		return nil, fmt.Errorf("unsupported archive format: %s", dstPath)
	}

	tw := tar.NewWriter(compressed)
	return &Writer{
		tw:      tw,
		closers: append([]io.Closer{tw}, closers...),
		modTime: time.Now(),
	}, nil
}

// AddFile writes one regular file entry.
func (w *Writer) AddFile(name string, data []byte) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: w.modTime,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes the tar writer, the compressor, and the file, in
// that order.
func (w *Writer) Close() error {
	var firstErr error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CreateFromDir archives a source directory. The baseDir parameter is the
// directory name entries carry inside the archive. Timestamps are normalized
// so repeated exports of identical trees compare equal.
func CreateFromDir(srcDir, dstPath, baseDir string) error {
	w, err := NewWriter(dstPath)
	if err != nil {
		return err
	}

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = baseDir + "/" + filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}
		header.ModTime = w.modTime

		if err := w.tw.WriteHeader(header); err != nil {
			return err
		}

		if !info.IsDir() {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := io.Copy(w.tw, file); err != nil {
				return err
			}
		}

		return nil
	})

	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}
