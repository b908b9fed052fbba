package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCompress_RoundTrip(t *testing.T) {
	out := t.TempDir()
	files := map[string]string{
		"transcription_part001.txt": "[0.00s - 1.00s] (Interviewer): hello",
		"transcription_part002.txt": "[0.00s - 2.00s] (Interviewee): hi\n\n[2.00s - 3.00s] (Unknown): ok",
		"nested/extra.txt":          "nested notes",
	}
	for name, content := range files {
		writeFile(t, filepath.Join(out, name), content)
	}
	writeFile(t, filepath.Join(out, "ignored.json"), "{}")

	zipPath := filepath.Join(out, "transcriptions.zip")
	res, err := Compress(out, zipPath)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Count() != 3 {
		t.Fatalf("Expected 3 files, got %d: %v", res.Count(), res.Files)
	}

	dst := t.TempDir()
	written, err := Extract(zipPath, dst)
	if err != nil {
		t.Fatalf("Unexpected extract error: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("Expected 3 extracted files, got %d", len(written))
	}

	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(dst, filepath.Base(name)))
		if err != nil {
			t.Errorf("Missing %s: %v", name, err)
			continue
		}
		if !bytes.Equal(got, []byte(content)) {
			t.Errorf("%s: content differs after round trip", name)
		}
	}
}

func TestCompress_FlattensAndDeflates(t *testing.T) {
	out := t.TempDir()
	writeFile(t, filepath.Join(out, "a", "b", "deep.txt"), "x")
	zipPath := filepath.Join(t.TempDir(), "out.zip")

	if _, err := Compress(out, zipPath); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "deep.txt" {
		t.Fatalf("Expected flattened entry deep.txt, got %v", zr.File)
	}
	if zr.File[0].Method != zip.Deflate {
		t.Errorf("Expected deflate, got method %d", zr.File[0].Method)
	}
}

func TestCompress_OverwritesExistingArchive(t *testing.T) {
	out := t.TempDir()
	zipPath := filepath.Join(out, "transcriptions.zip")
	writeFile(t, filepath.Join(out, "one.txt"), "1")

	if _, err := Compress(out, zipPath); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(out, "two.txt"), "2")
	res, err := Compress(out, zipPath)
	if err != nil {
		t.Fatal(err)
	}

	names := append([]string(nil), res.Files...)
	sort.Strings(names)
	if len(names) != 2 || names[0] != "one.txt" || names[1] != "two.txt" {
		t.Errorf("Expected both files in the new archive, got %v", names)
	}

	leftovers, _ := filepath.Glob(filepath.Join(out, ".archive-*"))
	if len(leftovers) != 0 {
		t.Errorf("Temporary files left behind: %v", leftovers)
	}
}

func TestCompress_EmptyDirectory(t *testing.T) {
	out := t.TempDir()
	res, err := Compress(out, filepath.Join(out, "empty.zip"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Count() != 0 {
		t.Errorf("Expected empty archive, got %v", res.Files)
	}
}

func TestCompress_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "output")
	if _, err := Compress(missing, filepath.Join(t.TempDir(), "x.zip")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestCompress_DuplicateBaseNames(t *testing.T) {
	out := t.TempDir()
	writeFile(t, filepath.Join(out, "a", "same.txt"), "a")
	writeFile(t, filepath.Join(out, "b", "same.txt"), "b")
	zipPath := filepath.Join(t.TempDir(), "dup.zip")

	if _, err := Compress(out, zipPath); err == nil {
		t.Error("Expected error for colliding entry names")
	}
	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Error("Expected no archive to be written on failure")
	}
}

func TestExtract_RejectsUnsafeNames(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("../escape.txt")
	w.Write([]byte("x"))
	zw.Close()
	f.Close()

	if _, err := Extract(zipPath, t.TempDir()); err == nil {
		t.Error("Expected error for path traversal entry")
	}
}
