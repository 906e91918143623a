package extract

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"tbd/internal/machox"
)

// Image is an input file opened for extraction.
type Image struct {
	Path string
	Size int64
	f    *os.File
}

// Open opens path for reading. The file must be a regular file.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat file")
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, errors.Errorf("%s is not a regular file", path)
	}
	return &Image{Path: path, Size: fi.Size(), f: f}, nil
}

func (im *Image) ReadAt(p []byte, off int64) (int, error) { return im.f.ReadAt(p, off) }

func (im *Image) Close() error {
	if im.f == nil {
		return nil
	}
	err := im.f.Close()
	im.f = nil
	return err
}

// IsMachO reports whether the file at path starts with a thin or fat Mach-O
// magic. Files too small to hold a magic are not Mach-O. A fat magic also
// needs a valid architecture table, since Java class files share it.
func IsMachO(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var magic [machox.MagicSize]byte
	n, err := f.Read(magic[:])
	if n < len(magic) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	class, order := machox.ClassifyMagic(magic)
	if !class.IsFat() {
		return class != machox.MagicUnknown, nil
	}

	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	_, err = readFatArchs(f, fi.Size(), class, order)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrEmptyFat), errors.Is(err, ErrTooManyFatArchs), errors.Is(err, ErrInvalidFatArch):
		return false, nil
	default:
		return false, err
	}
}

// Walk calls fn for every Mach-O file below root, in lexical order. Without
// recurse only the files directly inside root are visited. Entries that
// cannot be read are passed to fn with their error; a non-nil return from fn
// stops the walk.
func Walk(root string, recurse bool, fn func(path string, err error) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrap(err, "stat path")
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fn(path, err)
		}
		if d.IsDir() {
			if !recurse && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ok, err := IsMachO(path)
		if err != nil {
			return fn(path, err)
		}
		if !ok {
			return nil
		}
		return fn(path, nil)
	})
}
