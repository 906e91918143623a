package symtab

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/blacktop/go-macho/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbd/internal/exports"
	"tbd/internal/machox"
	"tbd/internal/machox/machotest"
)

const ext = types.N_SECT | types.N_EXT

// open builds im and returns it with its slice description and LC_SYMTAB.
func open(t *testing.T, im machotest.Image) ([]byte, Slice, machox.SymtabCommand) {
	t.Helper()
	data := im.Bytes()
	c, err := machox.Open(bytes.NewReader(data), 0, 0)
	require.NoError(t, err)
	tab, err := c.SymbolTable()
	require.NoError(t, err)
	return data, Slice{Size: uint64(len(data)), ByteOrder: c.ByteOrder(), Is64: c.Is64()}, tab
}

func TestParseBigEndian32Duplicates(t *testing.T) {
	data, slice, tab := open(t, machotest.Image{
		Order: binary.BigEndian,
		Symbols: []machotest.Symbol{
			{Name: "_foo", Type: ext, Sect: 1},
			{Name: "_foo", Type: ext, Sect: 1},
		},
	})

	set := exports.NewSet()
	require.NoError(t, Parse(bytes.NewReader(data), slice, tab, 1<<4, 0, set))
	assert.Equal(t, []exports.Info{{Name: "_foo", Kind: exports.Normal, Archs: 1 << 4}}, set.Infos())
}

func TestParseSkipsLeniently(t *testing.T) {
	data, slice, tab := open(t, machotest.Image{
		Is64: true,
		Symbols: []machotest.Symbol{
			{Name: "_kept", Type: ext, Sect: 1},
			{Name: "_undefined", Type: types.N_UNDF | types.N_EXT},
			{Name: "_absolute", Type: types.N_ABS | types.N_EXT},
			{Name: "_bad_index", Type: ext, Sect: 1, Strx: machotest.Index(0xffffff)},
			{Name: "_blank", Type: ext, Sect: 1, Strx: machotest.Index(0)},
			{Name: "_empty", Type: ext, Sect: 1, Strx: machotest.Index(1)},
			{Name: "_private", Type: types.N_SECT, Sect: 1},
			{Name: "_indirect", Type: types.N_INDR | types.N_EXT},
			{Name: "_OBJC_CLASS_$_Foo", Type: ext, Sect: 2},
			{Name: "_OBJC_IVAR_$_Foo._x", Type: ext, Sect: 2},
			{Name: "_weak", Type: ext, Sect: 1, Desc: machox.WeakDefinition},
		},
	})

	set := exports.NewSet()
	require.NoError(t, Parse(bytes.NewReader(data), slice, tab, 1, 0, set))
	assert.Equal(t, []exports.Info{
		{Name: "_indirect", Kind: exports.Normal, Archs: 1},
		{Name: "_kept", Kind: exports.Normal, Archs: 1},
		{Name: "_weak", Kind: exports.WeakDef, Archs: 1},
		{Name: "_Foo", Kind: exports.ObjCClass, Archs: 1},
		{Name: "_Foo._x", Kind: exports.ObjCIvar, Archs: 1},
	}, set.Infos())

	// The cached path refuses the same table outright.
	c, err := machox.Open(bytes.NewReader(data), 0, 0)
	require.NoError(t, err)
	err = ParseContainer(c, 1, 0, exports.NewSet())
	assert.ErrorIs(t, err, machox.ErrInvalidSymbolTableEntry)
}

func TestParsePrivateOptions(t *testing.T) {
	data, slice, tab := open(t, machotest.Image{
		Is64: true,
		Symbols: []machotest.Symbol{
			{Name: "_hidden", Type: types.N_SECT, Sect: 1},
			{Name: "_OBJC_CLASS_$_Hidden", Type: types.N_SECT, Sect: 2},
		},
	})

	tests := []struct {
		opts exports.Options
		want int
	}{
		{0, 0},
		{exports.AllowPrivateNormalSymbols, 1},
		{exports.AllowPrivateObjCSymbols, 1},
		{exports.AllowAllPrivateSymbols, 2},
	}
	for _, tt := range tests {
		set := exports.NewSet()
		require.NoError(t, Parse(bytes.NewReader(data), slice, tab, 1, tt.opts, set))
		assert.Equal(t, tt.want, set.Len(), "options %b", tt.opts)
	}
}

type failingReaderAt struct{ t *testing.T }

func (f failingReaderAt) ReadAt([]byte, int64) (int, error) {
	f.t.Fatal("ReadAt must not be called")
	return 0, nil
}

func TestParseRejectsBeforeReading(t *testing.T) {
	tests := []struct {
		name  string
		slice Slice
		tab   machox.SymtabCommand
		want  error
	}{
		{
			name:  "string table past the slice",
			slice: Slice{Size: 0x1000, ByteOrder: binary.LittleEndian, Is64: true},
			tab:   machox.SymtabCommand{Symoff: 0x100, Nsyms: 1, Stroff: 0xf00, Strsize: 0x101},
			want:  ErrInvalidSymbolTable,
		},
		{
			name:  "string table wraps",
			slice: Slice{Size: 0x1000, ByteOrder: binary.LittleEndian, Is64: true},
			tab:   machox.SymtabCommand{Symoff: 0x100, Nsyms: 1, Stroff: 0xffffffff, Strsize: 0xffffffff},
			want:  ErrInvalidSymbolTable,
		},
		{
			name:  "symbol table past the slice",
			slice: Slice{Size: 0x1000, ByteOrder: binary.LittleEndian, Is64: true},
			tab:   machox.SymtabCommand{Symoff: 0xff0, Nsyms: 2, Stroff: 0x100, Strsize: 0x10},
			want:  ErrInvalidSymbolTable,
		},
		{
			name:  "too many 64-bit records",
			slice: Slice{ByteOrder: binary.LittleEndian, Is64: true},
			tab:   machox.SymtabCommand{Symoff: 0x100, Nsyms: 0x10000000, Stroff: 0x100, Strsize: 0x10},
			want:  ErrTooManyRecords,
		},
		{
			name:  "too many 32-bit records",
			slice: Slice{ByteOrder: binary.BigEndian},
			tab:   machox.SymtabCommand{Symoff: 0x100, Nsyms: 0x20000000, Stroff: 0x100, Strsize: 0x10},
			want:  ErrTooManyRecords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse(failingReaderAt{t}, tt.slice, tt.tab, 1, 0, exports.NewSet())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseNoSymbols(t *testing.T) {
	err := Parse(failingReaderAt{t}, Slice{}, machox.SymtabCommand{Stroff: 0x100, Strsize: 4}, 1, 0, exports.NewSet())
	assert.NoError(t, err)
}

type countingReaderAt struct {
	r     io.ReaderAt
	calls int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.calls++
	return c.r.ReadAt(p, off)
}

func TestParseReadsEachTableOnce(t *testing.T) {
	data, slice, tab := open(t, machotest.Image{
		Is64: true,
		Symbols: []machotest.Symbol{
			{Name: "_a", Type: ext, Sect: 1},
			{Name: "_b", Type: ext, Sect: 1},
			{Name: "_c", Type: ext, Sect: 1},
		},
	})

	r := &countingReaderAt{r: bytes.NewReader(data)}
	set := exports.NewSet()
	require.NoError(t, Parse(r, slice, tab, 1, 0, set))
	assert.Equal(t, 2, r.calls)
	assert.Equal(t, 3, set.Len())
}

func TestParseShortRead(t *testing.T) {
	data, slice, tab := open(t, machotest.Image{
		Is64:    true,
		Symbols: []machotest.Symbol{{Name: "_a", Type: ext, Sect: 1}},
	})
	slice.Size = 0

	truncated := data[:len(data)-1]
	err := Parse(bytes.NewReader(truncated), slice, tab, 1, 0, exports.NewSet())
	assert.ErrorIs(t, err, machox.ErrStreamRead)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParseSliceOffset(t *testing.T) {
	image, slice, tab := open(t, machotest.Image{
		Is64:    true,
		Symbols: []machotest.Symbol{{Name: "_inner", Type: ext, Sect: 1}},
	})
	data := append(bytes.Repeat([]byte{0xff}, 0x300), image...)
	slice.Start = 0x300

	set := exports.NewSet()
	require.NoError(t, Parse(bytes.NewReader(data), slice, tab, 2, 0, set))
	assert.Equal(t, []exports.Info{{Name: "_inner", Kind: exports.Normal, Archs: 2}}, set.Infos())
}

func TestParseMergeFailureAborts(t *testing.T) {
	data, slice, tab := open(t, machotest.Image{
		Is64: true,
		Symbols: []machotest.Symbol{
			{Name: "_a", Type: ext, Sect: 1},
			{Name: "_b", Type: ext, Sect: 1},
			{Name: "_c", Type: ext, Sect: 1},
		},
	})

	set := exports.NewSet(exports.WithLimit(2))
	err := Parse(bytes.NewReader(data), slice, tab, 1, 0, set)
	assert.ErrorIs(t, err, exports.ErrSetFull)
	assert.Equal(t, 2, set.Len())

	c, err := machox.Open(bytes.NewReader(data), 0, 0)
	require.NoError(t, err)
	set = exports.NewSet(exports.WithLimit(1))
	assert.ErrorIs(t, ParseContainer(c, 1, 0, set), exports.ErrSetFull)
}

func TestParseContainerMatchesParse(t *testing.T) {
	im := machotest.Image{
		Order: binary.BigEndian,
		Is64:  true,
		Symbols: []machotest.Symbol{
			{Name: "_z", Type: ext, Sect: 1},
			{Name: "_OBJC_METACLASS_$_Z", Type: ext, Sect: 2},
			{Name: "_a", Type: ext, Sect: 1, Desc: machox.WeakDefinition},
			{Name: "_u", Type: types.N_UNDF | types.N_EXT},
		},
	}
	data, slice, tab := open(t, im)

	uncached := exports.NewSet()
	require.NoError(t, Parse(bytes.NewReader(data), slice, tab, 1, 0, uncached))

	c, err := machox.Open(bytes.NewReader(data), 0, 0)
	require.NoError(t, err)
	cached := exports.NewSet()
	require.NoError(t, ParseContainer(c, 1, 0, cached))

	assert.Equal(t, uncached.Infos(), cached.Infos())
	assert.Equal(t, 3, cached.Len())
}
