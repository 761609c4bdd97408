package services

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Archiver writes a compressed snapshot of srcDir to w.
type Archiver interface {
	Archive(ctx context.Context, srcDir string, w io.Writer) error
}

// TarGzArchiver produces gzip-compressed tar streams whose entries are rooted
// at the base name of the source directory.
type TarGzArchiver struct {
	Level int
}

// NewTarGzArchiver creates a TarGzArchiver using the default compression level.
func NewTarGzArchiver() *TarGzArchiver {
	return &TarGzArchiver{Level: gzip.DefaultCompression}
}

// Archive walks srcDir and streams it to w. Symlinks are stored as links and
// never followed. ctx bounds the whole walk including file contents.
func (a *TarGzArchiver) Archive(ctx context.Context, srcDir string, w io.Writer) error {
	gz, err := gzip.NewWriterLevel(w, a.Level)
	if err != nil {
		return fmt.Errorf("could not create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	root := filepath.Base(filepath.Clean(srcDir))
	err = filepath.Walk(srcDir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, file)
		if err != nil {
			return err
		}
		name := root
		if relPath != "." {
			name = path.Join(root, filepath.ToSlash(relPath))
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(file); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = name
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, &ctxReader{ctx: ctx, r: f})
		return err
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
