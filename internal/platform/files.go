package platform

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SanitizeFilename keeps alphanumerics, spaces and '._-', dropping
// everything else, so video titles are safe to use in Content-Disposition
// filenames.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// PrepareDirs creates the artifact and working directories.
func PrepareDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// MoveFile renames source onto dest, falling back to a copy when the two
// paths live on different filesystems. The cross-device path copies into a
// hidden temp name next to dest and renames it into place, so a concurrent
// reader never observes a partially written file.
func MoveFile(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}
	return moveCrossDevice(source, dest)
}

func moveCrossDevice(sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	tempDest := filepath.Join(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp")

	dst, err := os.Create(tempDest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tempDest)
		return err
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(tempDest)
		return err
	}
	dst.Close()

	if err := os.Rename(tempDest, destPath); err != nil {
		os.Remove(tempDest)
		return err
	}

	src.Close()
	return os.Remove(sourcePath)
}
