package machox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/blacktop/go-macho/types"
)

// mhDylibStub is MH_DYLIB_STUB, a shared library stub for static linking.
const mhDylibStub types.HeaderFileType = 0x9

// Container is one thin Mach-O image inside a seekable stream. It reads its
// header eagerly and its load commands, symbol table and string table lazily,
// keeping one cached copy of each for its lifetime.
//
// A Container is not safe for concurrent use while a cache is being filled.
// Once filled, the query methods only read the caches.
type Container struct {
	r    io.ReadSeeker
	base int64
	size int64

	header types.FileHeader
	order  binary.ByteOrder
	is64   bool
	closed bool

	loadCommands []LoadCommand
	lcBlock      []byte
	strtab       []byte
	symbols      *Table
}

// Open validates the image at base in r. A size of zero means the image runs
// to the end of the stream. Fat containers are rejected with ErrFatContainer;
// the caller is expected to open each architecture slice on its own.
func Open(r io.ReadSeeker, base, size int64) (*Container, error) {
	end, err := streamSize(r)
	if err != nil {
		return nil, err
	}
	if base < 0 || base > end {
		return nil, fmt.Errorf("%w: base %#x is beyond the stream (%#x bytes)", ErrInvalidRange, base, end)
	}
	remaining := end - base
	switch {
	case size == 0:
		size = remaining
	case size < 0 || size > remaining:
		return nil, fmt.Errorf("%w: size %#x exceeds the %#x bytes after base %#x", ErrInvalidRange, size, remaining, base)
	}

	c := &Container{r: r, base: base, size: size}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenLibrary is Open for callers that expect a shared library: the image must
// be a dylib (or dylib stub) and carry an LC_ID_DYLIB command.
func OpenLibrary(r io.ReadSeeker, base, size int64) (*Container, error) {
	c, err := Open(r, base, size)
	if err != nil {
		return nil, err
	}
	if !IsLibraryType(c.header.Type) {
		return nil, fmt.Errorf("%w: file type %#x", ErrNotALibrary, uint32(c.header.Type))
	}

	id, err := c.FindFirstLoadCommand(types.LC_ID_DYLIB)
	switch {
	case errors.Is(err, ErrLoadCommandTooSmall), errors.Is(err, ErrLoadCommandTooLarge):
		return nil, fmt.Errorf("%w: %w", ErrInvalidMachO, err)
	case err != nil:
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("%w: no LC_ID_DYLIB load command", ErrNotALibrary)
	}
	if id.Size < DylibCommandSize {
		return nil, fmt.Errorf("%w: LC_ID_DYLIB is %d bytes", ErrNotALibrary, id.Size)
	}
	return c, nil
}

// IsLibraryType reports whether t is one of the shared-library file types.
func IsLibraryType(t types.HeaderFileType) bool {
	return t == types.MH_DYLIB || t == mhDylibStub
}

func (c *Container) validate() error {
	var magic [MagicSize]byte
	if err := c.readAt(magic[:], c.base); err != nil {
		return err
	}

	class, order := ClassifyMagic(magic)
	switch {
	case class.IsFat():
		return ErrFatContainer
	case !class.IsThin():
		return fmt.Errorf("%w: magic %x", ErrNotAMachO, magic)
	}

	c.order = order
	c.is64 = class == MagicThin64

	buf := make([]byte, HeaderSize(c.is64))
	if err := c.readAt(buf, c.base); err != nil {
		return err
	}
	c.header = DecodeHeader(buf, order)
	return nil
}

func (c *Container) Header() types.FileHeader { return c.header }

func (c *Container) ByteOrder() binary.ByteOrder { return c.order }

func (c *Container) Is64() bool { return c.is64 }

func (c *Container) IsBigEndian() bool { return c.order == binary.BigEndian }

// Base is the absolute stream offset of the image.
func (c *Container) Base() int64 { return c.base }

// Size is the number of stream bytes that belong to the image.
func (c *Container) Size() int64 { return c.size }

// LoadCommandsOffset is the absolute stream offset of the first load command.
func (c *Container) LoadCommandsOffset() int64 {
	return c.base + int64(HeaderSize(c.is64))
}

// Close drops every cache. The stream is not closed; it belongs to the caller.
// A closed container answers every query with ErrClosed.
func (c *Container) Close() error {
	c.closed = true
	c.loadCommands = nil
	c.lcBlock = nil
	c.strtab = nil
	c.symbols = nil
	return nil
}

// readAt fills buf from the absolute offset off, which must lie inside the
// image, and puts the stream position back where it found it.
func (c *Container) readAt(buf []byte, off int64) error {
	if off < c.base || off-c.base > c.size || int64(len(buf)) > c.size-(off-c.base) {
		return fmt.Errorf("%w: %d bytes at %#x: %w", ErrStreamRead, len(buf), off, io.ErrUnexpectedEOF)
	}

	pos, err := c.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamSeek, err)
	}
	if _, err := c.r.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamSeek, err)
	}
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return fmt.Errorf("%w: %d bytes at %#x: %w", ErrStreamRead, len(buf), off, err)
	}
	if _, err := c.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamSeek, err)
	}
	return nil
}

func streamSize(r io.Seeker) (int64, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStreamSeek, err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStreamSeek, err)
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStreamSeek, err)
	}
	return end, nil
}
