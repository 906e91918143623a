// Package symtab reads one architecture slice's symbol table in a single pass
// and feeds the exported symbols into an export set.
package symtab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"tbd/internal/exports"
	"tbd/internal/machox"
)

var (
	// ErrTooManyRecords is returned when the symbol table's byte size does
	// not fit in 32 bits.
	ErrTooManyRecords = errors.New("symtab: too many symbol records")
	// ErrInvalidSymbolTable is returned when the tables do not fit inside
	// the slice.
	ErrInvalidSymbolTable = errors.New("symtab: invalid symbol table")
)

// Slice locates one thin image inside a stream. A zero Size means the slice
// size is unknown and the table bounds are only checked by the reads.
type Slice struct {
	Start     uint64
	Size      uint64
	ByteOrder binary.ByteOrder
	Is64      bool
}

// Parse reads the symbol and string tables described by tab, each with one
// read, and merges every exported symbol into set under arch.
//
// Individual records are read leniently: undefined symbols, records whose
// string index lies outside the string table and blank names are skipped.
// Errors from set are returned unchanged.
func Parse(r io.ReaderAt, slice Slice, tab machox.SymtabCommand, arch uint64, opts exports.Options, set *exports.Set) error {
	if tab.Nsyms == 0 {
		return nil
	}

	stride := uint64(machox.NlistStride(slice.Is64))
	symsize := stride * uint64(tab.Nsyms)
	if symsize > math.MaxUint32 {
		return fmt.Errorf("%w: %d records of %d bytes", ErrTooManyRecords, tab.Nsyms, stride)
	}

	stroff, strsize := uint64(tab.Stroff), uint64(tab.Strsize)
	if slice.Size != 0 {
		if end := stroff + strsize; end > slice.Size {
			return fmt.Errorf("%w: string table ends at %#x in a %#x byte slice", ErrInvalidSymbolTable, end, slice.Size)
		}
		if end := uint64(tab.Symoff) + symsize; end > slice.Size {
			return fmt.Errorf("%w: symbol table ends at %#x in a %#x byte slice", ErrInvalidSymbolTable, end, slice.Size)
		}
	}

	symbols := make([]byte, symsize)
	if err := readFull(r, symbols, slice.Start, uint64(tab.Symoff)); err != nil {
		return err
	}
	strtab := make([]byte, strsize)
	if err := readFull(r, strtab, slice.Start, stroff); err != nil {
		return err
	}

	table := machox.NewTable(symbols, slice.ByteOrder, slice.Is64)
	for i := range table.Len() {
		n := table.At(i)
		if !n.IsExportCandidate() {
			continue
		}
		name, ok := machox.StringAt(strtab, n.Strx)
		if !ok {
			continue
		}
		if err := add(set, n, name, arch, opts); err != nil {
			return err
		}
	}
	return nil
}

// ParseContainer merges the exported symbols of c into set. It applies the
// same filters as Parse but goes through the container's cached tables, so a
// record with an out-of-range string index fails the whole call.
func ParseContainer(c *machox.Container, arch uint64, opts exports.Options, set *exports.Set) error {
	var mergeErr error
	err := c.Symbols(func(n machox.Nlist, name []byte) bool {
		if !n.IsExportCandidate() {
			return true
		}
		mergeErr = add(set, n, name, arch, opts)
		return mergeErr == nil
	})
	if err != nil {
		return err
	}
	return mergeErr
}

func add(set *exports.Set, n machox.Nlist, name []byte, arch uint64, opts exports.Options) error {
	if exports.IsBlank(name) {
		return nil
	}
	kind, visible, ok := exports.Classify(name, n.Desc, n.Type, opts)
	if !ok {
		return nil
	}
	return set.Merge(visible, kind, arch)
}

func readFull(r io.ReaderAt, buf []byte, start, off uint64) error {
	if len(buf) == 0 {
		return nil
	}
	pos := start + off
	if pos < start || pos > math.MaxInt64 {
		return fmt.Errorf("%w: offset %#x+%#x", machox.ErrStreamSeek, start, off)
	}
	n, err := r.ReadAt(buf, int64(pos))
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %d of %d bytes at %#x: %w", machox.ErrStreamRead, n, len(buf), pos, err)
}
