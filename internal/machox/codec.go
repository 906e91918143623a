// Package machox opens Mach-O images that live inside a larger byte stream,
// validates their headers and load commands, and reads their symbol tables.
//
// All multi-byte fields are decoded into host values at the read boundary, so
// nothing past this package has to care whether an image was big- or
// little-endian, or whether it was built for a 32- or 64-bit word size.
package machox

import (
	"encoding/binary"
	"math/bits"

	"github.com/blacktop/go-macho/types"
)

// MagicSize is the size of the magic number at the start of every image.
const MagicSize = 4

const (
	magicFat64 types.Magic = 0xcafebabf

	// LoadCommandHeaderSize is the size of the cmd/cmdsize pair that starts
	// every load command.
	LoadCommandHeaderSize = 8
	// SymtabCommandSize is the exact size of an LC_SYMTAB command.
	SymtabCommandSize = 24
	// DylibCommandSize is the minimum size of a dylib_command.
	DylibCommandSize = 24
)

// MagicClass is what the first four bytes of a stream say it is.
type MagicClass int

const (
	MagicUnknown MagicClass = iota
	MagicThin32
	MagicThin64
	MagicFat
	MagicFat64
)

func (m MagicClass) String() string {
	switch m {
	case MagicThin32:
		return "mach-o (32-bit)"
	case MagicThin64:
		return "mach-o (64-bit)"
	case MagicFat:
		return "fat mach-o"
	case MagicFat64:
		return "fat mach-o (64-bit offsets)"
	default:
		return "unknown"
	}
}

// IsThin reports whether the magic belongs to a single-architecture image.
func (m MagicClass) IsThin() bool { return m == MagicThin32 || m == MagicThin64 }

// IsFat reports whether the magic belongs to a multi-architecture container.
func (m MagicClass) IsFat() bool { return m == MagicFat || m == MagicFat64 }

// ClassifyMagic inspects raw magic bytes and returns their class along with
// the byte order the rest of the image is encoded in. The byte order is nil
// for MagicUnknown.
func ClassifyMagic(magic [MagicSize]byte) (MagicClass, binary.ByteOrder) {
	raw := binary.BigEndian.Uint32(magic[:])
	if class := classify(types.Magic(raw)); class != MagicUnknown {
		return class, binary.BigEndian
	}
	if class := classify(types.Magic(Swap32(raw))); class != MagicUnknown {
		return class, binary.LittleEndian
	}
	return MagicUnknown, nil
}

func classify(m types.Magic) MagicClass {
	switch m {
	case types.Magic32:
		return MagicThin32
	case types.Magic64:
		return MagicThin64
	case types.MagicFat:
		return MagicFat
	case magicFat64:
		return MagicFat64
	}
	return MagicUnknown
}

// HeaderSize returns the size of the mach_header for the given word size.
func HeaderSize(is64 bool) int {
	if is64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

func Swap16(v uint16) uint16 { return bits.ReverseBytes16(v) }
func Swap32(v uint32) uint32 { return bits.ReverseBytes32(v) }
func Swap64(v uint64) uint64 { return bits.ReverseBytes64(v) }

// DecodeHeader decodes the first 28 bytes of b as a mach_header. The magic is
// normalized to host order, so a big-endian image reports types.Magic32 or
// types.Magic64 just like a little-endian one.
func DecodeHeader(b []byte, order binary.ByteOrder) types.FileHeader {
	_ = b[types.FileHeaderSize32-1]
	return types.FileHeader{
		Magic:        types.Magic(order.Uint32(b[0:])),
		CPU:          types.CPU(order.Uint32(b[4:])),
		SubCPU:       types.CPUSubtype(order.Uint32(b[8:])),
		Type:         types.HeaderFileType(order.Uint32(b[12:])),
		NCommands:    order.Uint32(b[16:]),
		SizeCommands: order.Uint32(b[20:]),
		Flags:        types.HeaderFlag(order.Uint32(b[24:])),
	}
}

// DecodeLoadCommandHeader decodes the cmd and cmdsize fields at the start of b.
func DecodeLoadCommandHeader(b []byte, order binary.ByteOrder) (types.LoadCmd, uint32) {
	_ = b[LoadCommandHeaderSize-1]
	return types.LoadCmd(order.Uint32(b[0:])), order.Uint32(b[4:])
}

// SymtabCommand is the payload of an LC_SYMTAB load command.
type SymtabCommand struct {
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

// DecodeSymtab decodes a whole LC_SYMTAB command, header included.
func DecodeSymtab(b []byte, order binary.ByteOrder) SymtabCommand {
	_ = b[SymtabCommandSize-1]
	return SymtabCommand{
		Symoff:  order.Uint32(b[8:]),
		Nsyms:   order.Uint32(b[12:]),
		Stroff:  order.Uint32(b[16:]),
		Strsize: order.Uint32(b[20:]),
	}
}
