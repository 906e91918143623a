// Package machotest builds small synthetic Mach-O images for tests.
package machotest

import (
	"encoding/binary"

	"github.com/blacktop/go-macho/types"
)

// Symbol is one symbol table record to emit. Strx, when non-nil, replaces the
// string index that would otherwise point at Name.
type Symbol struct {
	Name  string
	Type  types.NType
	Sect  uint8
	Desc  uint16
	Value uint64
	Strx  *uint32
}

// Image describes a thin Mach-O image. Load commands are emitted in the order
// LC_ID_DYLIB, LC_UUID, Commands..., LC_SYMTAB.
type Image struct {
	Order    binary.ByteOrder
	Is64     bool
	CPU      types.CPU
	SubCPU   types.CPUSubtype
	FileType types.HeaderFileType

	InstallName    string
	CurrentVersion uint32
	CompatVersion  uint32
	UUID           []byte
	Commands       [][]byte

	Symbols  []Symbol
	NoSymtab bool
}

// Index returns a pointer to strx, for Symbol.Strx.
func Index(strx uint32) *uint32 { return &strx }

func (im Image) order() binary.ByteOrder {
	if im.Order == nil {
		return binary.LittleEndian
	}
	return im.Order
}

func (im Image) headerSize() int {
	if im.Is64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

// Bytes encodes the image.
func (im Image) Bytes() []byte {
	o := im.order()

	var cmds [][]byte
	if im.InstallName != "" {
		cmds = append(cmds, Dylib(o, types.LC_ID_DYLIB, im.InstallName, im.CurrentVersion, im.CompatVersion))
	}
	if len(im.UUID) == 16 {
		cmds = append(cmds, Command(o, types.LC_UUID, im.UUID))
	}
	cmds = append(cmds, im.Commands...)

	strtab := []byte{' ', 0}
	stride := 12
	if im.Is64 {
		stride = 16
	}
	symtab := make([]byte, 0, len(im.Symbols)*stride)
	for _, s := range im.Symbols {
		strx := uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
		if s.Strx != nil {
			strx = *s.Strx
		}
		rec := make([]byte, stride)
		o.PutUint32(rec[0:], strx)
		rec[4] = byte(s.Type)
		rec[5] = s.Sect
		o.PutUint16(rec[6:], s.Desc)
		if im.Is64 {
			o.PutUint64(rec[8:], s.Value)
		} else {
			o.PutUint32(rec[8:], uint32(s.Value))
		}
		symtab = append(symtab, rec...)
	}

	sizeofcmds := 0
	for _, c := range cmds {
		sizeofcmds += len(c)
	}
	if !im.NoSymtab {
		sizeofcmds += 24
	}

	dataStart := im.headerSize() + sizeofcmds
	symoff := uint32(dataStart)
	stroff := symoff + uint32(len(symtab))
	if !im.NoSymtab {
		payload := make([]byte, 16)
		o.PutUint32(payload[0:], symoff)
		o.PutUint32(payload[4:], uint32(len(im.Symbols)))
		o.PutUint32(payload[8:], stroff)
		o.PutUint32(payload[12:], uint32(len(strtab)))
		cmds = append(cmds, Command(o, types.LC_SYMTAB, payload))
	}

	out := Header(o, im.Is64, im.cpu(), im.SubCPU, im.fileType(), uint32(len(cmds)), uint32(sizeofcmds))
	for _, c := range cmds {
		out = append(out, c...)
	}
	if !im.NoSymtab {
		out = append(out, symtab...)
		out = append(out, strtab...)
	}
	return out
}

func (im Image) cpu() types.CPU {
	if im.CPU == 0 {
		if im.Is64 {
			return types.CPUArm64
		}
		return types.CPUArm
	}
	return im.CPU
}

func (im Image) fileType() types.HeaderFileType {
	if im.FileType == 0 {
		return types.MH_DYLIB
	}
	return im.FileType
}

// Header encodes a mach_header (or mach_header_64) with the given fields.
func Header(o binary.ByteOrder, is64 bool, cpu types.CPU, sub types.CPUSubtype, ft types.HeaderFileType, ncmds, sizeofcmds uint32) []byte {
	size := types.FileHeaderSize32
	magic := uint32(types.Magic32)
	if is64 {
		size = types.FileHeaderSize64
		magic = uint32(types.Magic64)
	}
	b := make([]byte, size)
	o.PutUint32(b[0:], magic)
	o.PutUint32(b[4:], uint32(cpu))
	o.PutUint32(b[8:], uint32(sub))
	o.PutUint32(b[12:], uint32(ft))
	o.PutUint32(b[16:], ncmds)
	o.PutUint32(b[20:], sizeofcmds)
	return b
}

// Command encodes a load command whose cmdsize covers the header and payload.
func Command(o binary.ByteOrder, cmd types.LoadCmd, payload []byte) []byte {
	b := make([]byte, 8, 8+len(payload))
	o.PutUint32(b[0:], uint32(cmd))
	o.PutUint32(b[4:], uint32(8+len(payload)))
	return append(b, payload...)
}

// RawCommand encodes a load command header with an arbitrary cmdsize followed
// by payload, for building malformed images.
func RawCommand(o binary.ByteOrder, cmd types.LoadCmd, cmdsize uint32, payload []byte) []byte {
	b := make([]byte, 8, 8+len(payload))
	o.PutUint32(b[0:], uint32(cmd))
	o.PutUint32(b[4:], cmdsize)
	return append(b, payload...)
}

// Dylib encodes a dylib_command padded to eight bytes.
func Dylib(o binary.ByteOrder, cmd types.LoadCmd, name string, current, compat uint32) []byte {
	payload := make([]byte, 16, 16+len(name)+8)
	o.PutUint32(payload[0:], 24)
	o.PutUint32(payload[8:], current)
	o.PutUint32(payload[12:], compat)
	payload = append(payload, name...)
	payload = append(payload, 0)
	for (8+len(payload))%8 != 0 {
		payload = append(payload, 0)
	}
	return Command(o, cmd, payload)
}

// FatSlice is one member of a fat container.
type FatSlice struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Data   []byte
}

// Fat wraps slices in a big-endian fat container with page-aligned members.
func Fat(slices ...FatSlice) []byte {
	const align = 12
	header := 8 + 20*len(slices)
	offset := alignUp(header, 1<<align)

	out := make([]byte, header)
	binary.BigEndian.PutUint32(out[0:], uint32(types.MagicFat))
	binary.BigEndian.PutUint32(out[4:], uint32(len(slices)))
	for i, s := range slices {
		e := out[8+20*i:]
		binary.BigEndian.PutUint32(e[0:], uint32(s.CPU))
		binary.BigEndian.PutUint32(e[4:], uint32(s.SubCPU))
		binary.BigEndian.PutUint32(e[8:], uint32(offset))
		binary.BigEndian.PutUint32(e[12:], uint32(len(s.Data)))
		binary.BigEndian.PutUint32(e[16:], align)
		offset = alignUp(offset+len(s.Data), 1<<align)
	}
	for _, s := range slices {
		out = append(out, make([]byte, alignUp(len(out), 1<<align)-len(out))...)
		out = append(out, s.Data...)
	}
	return out
}

func alignUp(n, a int) int { return (n + a - 1) &^ (a - 1) }
