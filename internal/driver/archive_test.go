// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"archive/tar"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type tarEntry struct {
	name    string
	content string
	dir     bool
	symlink string
	mode    int64
}

func writeSourceArchive(t *testing.T, path string, entries []tarEntry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
		}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		case e.symlink != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.symlink
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.content))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.content)); err != nil {
				t.Fatal(err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractArchive_UnpacksTree(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "src.tar.gz")
	writeSourceArchive(t, archive, []tarEntry{
		{name: "v4l2loopback-0.12.7/", dir: true},
		{name: "v4l2loopback-0.12.7/Makefile", content: "all:\n\tcc\n"},
		{name: "v4l2loopback-0.12.7/v4l2loopback.c", content: "/* module */\n"},
	})

	dest := filepath.Join(dir, "out")
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "v4l2loopback-0.12.7", "Makefile"))
	if err != nil {
		t.Fatalf("expected the Makefile to be extracted: %v", err)
	}
	if string(got) != "all:\n\tcc\n" {
		t.Errorf("unexpected Makefile content %q", got)
	}

	root, err := sourceRoot(dest)
	if err != nil {
		t.Fatalf("sourceRoot failed: %v", err)
	}
	if root != filepath.Join(dest, "v4l2loopback-0.12.7") {
		t.Errorf("expected the wrapped top directory as the source root, got %q", root)
	}
}

func TestExtractArchive_FlatArchiveRootIsDest(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "src.tar.gz")
	writeSourceArchive(t, archive, []tarEntry{
		{name: "Makefile", content: "all:\n"},
		{name: "module.c", content: "\n"},
	})

	dest := filepath.Join(dir, "out")
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}
	root, err := sourceRoot(dest)
	if err != nil {
		t.Fatalf("sourceRoot failed: %v", err)
	}
	if root != dest {
		t.Errorf("expected a flat archive to build in the extraction dir, got %q", root)
	}
}

func TestExtractArchive_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeSourceArchive(t, archive, []tarEntry{
		{name: "../evil.sh", content: "#!/bin/sh\n"},
	})

	dest := filepath.Join(dir, "out")
	err := extractArchive(archive, dest)
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Fatalf("expected a traversal rejection, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "evil.sh")); !os.IsNotExist(statErr) {
		t.Error("the traversal entry must not be written outside the extraction dir")
	}
}

func TestExtractArchive_RejectsAbsoluteNames(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeSourceArchive(t, archive, []tarEntry{
		{name: "/tmp/evil.sh", content: "#!/bin/sh\n"},
	})

	if err := extractArchive(archive, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected an absolute entry name to be rejected")
	}
}

func TestExtractArchive_ClearsPreviousExtraction(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "src.tar.gz")
	writeSourceArchive(t, archive, []tarEntry{
		{name: "Makefile", content: "all:\n"},
	})

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dest, "stale.o")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expected a leftover from the previous extraction to be cleared")
	}
}

func TestExtractArchive_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "src.tar.gz")
	writeSourceArchive(t, archive, []tarEntry{
		{name: "Makefile", content: "all:\n"},
		{name: "passwd", symlink: "/etc/passwd"},
	})

	dest := filepath.Join(dir, "out")
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dest, "passwd")); !os.IsNotExist(err) {
		t.Error("expected the symlink entry to be skipped")
	}
}

func TestExtractArchive_PreservesExecutableBit(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "src.tar.gz")
	writeSourceArchive(t, archive, []tarEntry{
		{name: "configure", content: "#!/bin/sh\n", mode: 0o755},
	})

	dest := filepath.Join(dir, "out")
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}
	info, err := os.Stat(filepath.Join(dest, "configure"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o100 == 0 {
		t.Errorf("expected the owner executable bit to survive, got %v", info.Mode())
	}
}
