package bundle

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ArchiveBundle packs a bundle directory into a sibling .tar.zst file and
// returns its path. The directory itself is left untouched.
func ArchiveBundle(dir string) (string, error) {
	archivePath := dir + ".tar.zst"
	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return "", fmt.Errorf("failed to create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	base := filepath.Base(dir)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(base, rel))

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		zw.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to archive %s: %w", dir, err)
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	return archivePath, out.Close()
}

// ExtractArchive unpacks a .tar.zst bundle archive under destDir and returns
// the path of the extracted bundle directory.
func ExtractArchive(archivePath, destDir string) (string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("failed to read archive: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	var root string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read archive: %w", err)
		}

		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) || containsDotDot(name) {
			return "", fmt.Errorf("archive entry %q escapes destination", hdr.Name)
		}
		target := filepath.Join(destDir, name)
		if root == "" {
			root = filepath.Join(destDir, firstSegment(name))
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return "", err
			}
			if err := f.Close(); err != nil {
				return "", err
			}
		}
	}
	if root == "" {
		return "", fmt.Errorf("archive %s is empty", archivePath)
	}
	return root, nil
}

func containsDotDot(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func firstSegment(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	for i := 0; i < len(clean); i++ {
		if clean[i] == '/' {
			return clean[:i]
		}
	}
	return clean
}
