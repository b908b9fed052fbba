// Package archive bundles transcription outputs into a single zip file.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Result describes a written archive
type Result struct {
	Path  string
	Files []string // Entry names in the archive, in walk order
}

// Count returns the number of archived files
func (r Result) Count() int {
	return len(r.Files)
}

// Compress writes every .txt file under dir into zipPath. Entries are stored
// under their base name. An existing archive is replaced only after the new
// one is complete.
func Compress(dir, zipPath string) (Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return Result{}, fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("output directory: %s is not a directory", dir)
	}

	absZip, err := filepath.Abs(zipPath)
	if err != nil {
		return Result{}, fmt.Errorf("resolve archive path: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(absZip), ".archive-*.tmp")
	if err != nil {
		return Result{}, fmt.Errorf("create archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	zw := zip.NewWriter(tmp)
	result := Result{Path: zipPath}
	seen := make(map[string]string)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && (abs == absZip || abs == tmpName) {
			return nil
		}

		name := d.Name()
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("duplicate entry %s from %s and %s", name, prev, path)
		}
		seen[name] = path

		if err := addFile(zw, path, name); err != nil {
			return err
		}
		result.Files = append(result.Files, name)
		return nil
	})

	closeErr := zw.Close()
	if err := errors.Join(walkErr, closeErr, tmp.Close()); err != nil {
		return Result{}, fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmpName, absZip); err != nil {
		return Result{}, fmt.Errorf("replace archive: %w", err)
	}
	return result, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Extract writes every entry of zipPath into dir and returns the written
// paths. Entries that would escape dir are rejected.
func Extract(zipPath, dir string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	var written []string
	for _, f := range zr.File {
		if !filepath.IsLocal(f.Name) {
			return written, fmt.Errorf("unsafe entry name %q", f.Name)
		}
		dst := filepath.Join(dir, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return written, err
			}
			continue
		}
		if err := extractFile(f, dst); err != nil {
			return written, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		written = append(written, dst)
	}
	return written, nil
}

func extractFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
