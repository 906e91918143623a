package machox

import (
	"encoding/binary"

	"github.com/blacktop/go-macho/types"
)

const (
	NlistSize   = 12 // struct nlist
	Nlist64Size = 16 // struct nlist_64

	// WeakDefinition is the N_WEAK_DEF bit of n_desc.
	WeakDefinition uint16 = 0x0080
)

// Nlist is a symbol table record widened to the nlist_64 shape. Records read
// from 32-bit images carry their 32-bit value zero-extended.
type Nlist struct {
	Strx  uint32
	Type  types.NType
	Sect  uint8
	Desc  uint16
	Value uint64
}

// IsExportCandidate reports whether the record is defined in a section or is
// an indirect symbol. Undefined, absolute and prebound records never describe
// something the image exports.
func (n Nlist) IsExportCandidate() bool {
	t := n.Type & types.N_TYPE
	return t == types.N_SECT || t == types.N_INDR
}

func (n Nlist) IsExternal() bool { return n.Type&types.N_EXT != 0 }

func (n Nlist) IsWeakDefinition() bool { return n.Desc&WeakDefinition != 0 }

// NlistStride returns the on-disk size of one symbol record.
func NlistStride(is64 bool) int {
	if is64 {
		return Nlist64Size
	}
	return NlistSize
}

// DecodeNlist decodes one nlist (is64 == false) or nlist_64 record from b.
func DecodeNlist(b []byte, order binary.ByteOrder, is64 bool) Nlist {
	n := Nlist{
		Strx: order.Uint32(b[0:]),
		Type: types.NType(b[4]),
		Sect: b[5],
		Desc: order.Uint16(b[6:]),
	}
	if is64 {
		n.Value = order.Uint64(b[8:16])
	} else {
		n.Value = uint64(order.Uint32(b[8:12]))
	}
	return n
}

// Table is a raw symbol table paired with the encoding needed to decode it.
// It is shared by the cached container path and the one-shot reader.
type Table struct {
	data  []byte
	order binary.ByteOrder
	is64  bool
}

// NewTable wraps data, which holds whole records only; a trailing partial
// record is ignored.
func NewTable(data []byte, order binary.ByteOrder, is64 bool) Table {
	return Table{data: data, order: order, is64: is64}
}

func (t Table) Len() int { return len(t.data) / NlistStride(t.is64) }

func (t Table) At(i int) Nlist {
	stride := NlistStride(t.is64)
	return DecodeNlist(t.data[i*stride:(i+1)*stride], t.order, t.is64)
}

// StringAt returns the NUL-terminated string starting at strx, bounded by the
// end of the string table. ok is false when strx is outside the table.
func StringAt(strtab []byte, strx uint32) (name []byte, ok bool) {
	if uint64(strx) >= uint64(len(strtab)) {
		return nil, false
	}
	name = strtab[strx:]
	for i, c := range name {
		if c == 0 {
			return name[:i:i], true
		}
	}
	return name[:len(name):len(name)], true
}
