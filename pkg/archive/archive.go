// Package archive unpacks downloaded release tarballs with size and path
// guards.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kinecosystem/localnet/pkg/errors"
)

// ExtractTarGz unpacks the gzip-compressed tarball at src into dest and
// returns the total number of bytes written.
func ExtractTarGz(src, dest string, limits Limits) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrap(err, "open archive")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat archive")
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "gzip header")
	}
	defer zr.Close()

	g := &guard{limits: limits}
	tr := tar.NewReader(zr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return g.total, errors.Wrap(err, "tar read")
		}

		if err := g.checkPath(header.Name); err != nil {
			return g.total, err
		}
		target := filepath.Join(dest, header.Name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return g.total, errors.Wrap(err, "create directory")
			}

		case tar.TypeReg:
			if err := g.add(header.Size); err != nil {
				return g.total, err
			}
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return g.total, err
			}

		case tar.TypeSymlink:
			if err := g.checkLink(header.Name, header.Linkname); err != nil {
				return g.total, err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return g.total, errors.Wrap(err, "create parent directory")
			}
			if err := os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
				return g.total, errors.Wrap(err, "create symlink")
			}

		default:
			slog.Warn("archive_entry_skipped", "path", header.Name, "type", fmt.Sprintf("%c", header.Typeflag))
		}
	}

	if err := g.checkRatio(info.Size()); err != nil {
		return g.total, err
	}

	slog.Info("archive_extracted", "src", src, "dest", dest, "bytes", g.total)
	return g.total, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create parent directory")
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrap(err, "create file")
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return errors.Wrap(err, "write file")
	}
	return out.Close()
}
