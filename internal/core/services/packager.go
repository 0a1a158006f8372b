package services

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dkaya/expbench/internal/core/domain"
	"github.com/dkaya/expbench/internal/core/ports"
)

// Packager archives an experiment's results directory into a ZIP stream.
// The archive is built fresh per call from the live directory contents and
// streamed through a pipe, so there are never temp files to clean up: an
// abandoned download simply closes the pipe.
type Packager struct {
	registry ports.Registry
}

func NewPackager(registry ports.Registry) *Packager {
	return &Packager{registry: registry}
}

// Pack streams a ZIP of the experiment's artifacts directory. The caller
// must close the returned stream; closing it mid-archive aborts the writer.
func (p *Packager) Pack(name string) (io.ReadCloser, error) {
	exp, err := p.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(p.registry.Dir(name), exp.ArtifactsPath)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no artifacts at %s: %w", dir, domain.ErrArtifactsNotFound)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeZip(pw, dir))
	}()
	return pr, nil
}

func writeZip(w io.Writer, dir string) error {
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
