// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// maxSourceFileBytes caps a single extracted file (64 MB). Module sources
// are small; anything bigger is a damaged or hostile archive.
const maxSourceFileBytes = 64 << 20

// extractArchive unpacks a .tar.gz into dest, which is recreated from
// scratch. Entry names must stay inside dest; an archive with traversal
// names is rejected outright.
func extractArchive(archivePath, dest string) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		// Read-only handle; close errors are exotic.
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read gzip header: %w", err)
	}
	defer func() { _ = gz.Close() }()

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clear extraction directory: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return fmt.Errorf("read archive entry: %w", nextErr)
		}
		if !filepath.IsLocal(hdr.Name) {
			return fmt.Errorf("archive entry %q escapes the extraction directory", hdr.Name)
		}

		target := filepath.Join(dest, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFileFromTar(target, tr, hdr); err != nil {
				return err
			}
		default:
			// Module source trees carry regular files and directories;
			// anything else has no business being built.
			slog.Debug("skipping archive entry", "name", hdr.Name, "type", hdr.Typeflag)
		}
	}
	return nil
}

func writeFileFromTar(target string, tr *tar.Reader, hdr *tar.Header) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if _, err = io.Copy(f, io.LimitReader(tr, maxSourceFileBytes)); err != nil {
		return fmt.Errorf("extract %s: %w", target, err)
	}
	return nil
}

// sourceRoot returns the build root inside a materialized source tree.
// Release tarballs wrap everything in a single versioned directory; build
// there.
func sourceRoot(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", fmt.Errorf("inspect module sources: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}
