package extract

import (
	"encoding/binary"
	"io"

	"github.com/blacktop/go-macho/types"
	"github.com/pkg/errors"

	"tbd/internal/machox"
)

const (
	fatHeaderSize  = 8
	fatArchSize    = 20 // struct fat_arch
	fatArch64Size  = 32 // struct fat_arch_64
	maxFatArchs    = 128
	maxFatAlignLog = 15
)

var (
	ErrEmptyFat        = errors.New("extract: fat container has no architectures")
	ErrTooManyFatArchs = errors.New("extract: fat container has too many architectures")
	ErrInvalidFatArch  = errors.New("extract: invalid fat architecture entry")
)

// fatArch is one fat_arch or fat_arch_64 entry.
type fatArch struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Offset uint64
	Size   uint64
	Align  uint32
}

// readFatArchs reads the architecture table of a fat container of the given
// total size. Every entry must describe a non-empty range inside the file
// that does not overlap the table itself.
func readFatArchs(r io.ReaderAt, size int64, class machox.MagicClass, order binary.ByteOrder) ([]fatArch, error) {
	var hdr [fatHeaderSize]byte
	if err := readFull(r, hdr[:], 0); err != nil {
		return nil, err
	}
	n := order.Uint32(hdr[4:])
	switch {
	case n == 0:
		return nil, ErrEmptyFat
	case n > maxFatArchs:
		return nil, errors.Wrapf(ErrTooManyFatArchs, "%d entries", n)
	}

	stride := fatArchSize
	if class == machox.MagicFat64 {
		stride = fatArch64Size
	}
	tableEnd := uint64(fatHeaderSize) + uint64(n)*uint64(stride)
	if tableEnd > uint64(size) {
		return nil, errors.Wrapf(ErrInvalidFatArch, "%d entries run past the %d byte file", n, size)
	}

	table := make([]byte, tableEnd-fatHeaderSize)
	if err := readFull(r, table, fatHeaderSize); err != nil {
		return nil, err
	}

	archs := make([]fatArch, 0, n)
	for i := range int(n) {
		e := table[i*stride:]
		a := fatArch{
			CPU:    types.CPU(order.Uint32(e[0:])),
			SubCPU: types.CPUSubtype(order.Uint32(e[4:])),
		}
		if stride == fatArch64Size {
			a.Offset = order.Uint64(e[8:])
			a.Size = order.Uint64(e[16:])
			a.Align = order.Uint32(e[24:])
		} else {
			a.Offset = uint64(order.Uint32(e[8:]))
			a.Size = uint64(order.Uint32(e[12:]))
			a.Align = order.Uint32(e[16:])
		}

		switch {
		case a.Size == 0:
			return nil, errors.Wrapf(ErrInvalidFatArch, "entry %d is empty", i)
		case a.Offset < tableEnd:
			return nil, errors.Wrapf(ErrInvalidFatArch, "entry %d at %#x overlaps the architecture table", i, a.Offset)
		case a.Offset > uint64(size) || a.Size > uint64(size)-a.Offset:
			return nil, errors.Wrapf(ErrInvalidFatArch, "entry %d (%#x+%#x) runs past the %d byte file", i, a.Offset, a.Size, size)
		case a.Align > maxFatAlignLog:
			return nil, errors.Wrapf(ErrInvalidFatArch, "entry %d has alignment 2^%d", i, a.Align)
		}
		archs = append(archs, a)
	}
	return archs, nil
}
