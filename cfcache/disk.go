package cfcache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jonwraymond/cfgrid/cfstore"
)

// Disk is the persistence surface of a Cache. Names are relative to the
// cache directory.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: ReadIndex returns an empty table when no index exists.
//     Stat wraps fs.ErrNotExist for missing files.
//   - Writes must be atomic: readers never observe a partial file.
type Disk interface {
	ReadIndex(ctx context.Context) (*Table, error)
	WriteIndex(ctx context.Context, t *Table) error
	ReadKernel(ctx context.Context, name string) (*cfstore.Store, error)
	WriteKernel(ctx context.Context, name string, s *cfstore.Store) error
	ReadImage(ctx context.Context, name string) (*AvgPB, error)
	WriteImage(ctx context.Context, name string, pb *AvgPB) error
	Stat(ctx context.Context, name string) error
}

// DirDisk stores a cache in a directory.
type DirDisk struct {
	dir string
}

// NewDirDisk returns a Disk rooted at dir. Nothing is touched until the
// first read or write; writes create the directory.
func NewDirDisk(dir string) *DirDisk {
	return &DirDisk{dir: dir}
}

// Dir returns the cache directory.
func (d *DirDisk) Dir() string { return d.dir }

func (d *DirDisk) path(name string) string {
	return filepath.Join(d.dir, name)
}

// ReadIndex reads aux.dat. A directory without an index yields an empty
// table; an unparseable index is ErrCorruptCacheEntry.
func (d *DirDisk) ReadIndex(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := d.path(IndexFile)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cfcache: read index %s: %w", p, err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCacheEntry, p, err)
	}
	return t, nil
}

// WriteIndex atomically replaces aux.dat.
func (d *DirDisk) WriteIndex(ctx context.Context, t *Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := t.Marshal()
	if err != nil {
		return fmt.Errorf("cfcache: encode index: %w", err)
	}
	return d.writeAtomic(IndexFile, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadKernel decodes a kernel file. Undecodable content is
// ErrCorruptCacheEntry naming the file.
func (d *DirDisk) ReadKernel(ctx context.Context, name string) (*cfstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := d.path(name)
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("cfcache: read kernel %s: %w", p, err)
	}
	defer f.Close()

	s, err := cfstore.Decode(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, cfstore.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCacheEntry, p, err)
		}
		return nil, fmt.Errorf("cfcache: read kernel %s: %w", p, err)
	}
	return s, nil
}

// WriteKernel atomically writes a kernel file.
func (d *DirDisk) WriteKernel(ctx context.Context, name string, s *cfstore.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.writeAtomic(name, func(w io.Writer) error {
		return cfstore.Encode(w, s)
	})
}

// ReadImage reads a FITS average primary beam. A missing file is ErrNotFound.
func (d *DirDisk) ReadImage(ctx context.Context, name string) (*AvgPB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := d.path(name)
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("cfcache: read image %s: %w", p, err)
	}
	defer f.Close()

	pb, err := DecodeAvgPB(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCacheEntry, p, err)
	}
	return pb, nil
}

// WriteImage atomically writes a FITS average primary beam.
func (d *DirDisk) WriteImage(ctx context.Context, name string, pb *AvgPB) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.writeAtomic(name, func(w io.Writer) error {
		return EncodeAvgPB(w, pb)
	})
}

// Stat reports whether name exists.
func (d *DirDisk) Stat(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(d.path(name))
	return err
}

// writeAtomic writes name through a temporary file in the same directory
// and renames it into place.
func (d *DirDisk) writeAtomic(name string, write func(io.Writer) error) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("cfcache: create %s: %w", d.dir, err)
	}
	tmp, err := os.CreateTemp(d.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("cfcache: write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cfcache: write %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cfcache: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cfcache: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cfcache: close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, d.path(name)); err != nil {
		return fmt.Errorf("cfcache: rename %s: %w", name, err)
	}
	committed = true
	return nil
}

var _ Disk = (*DirDisk)(nil)
