package extract

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/go-macho/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbd/internal/archs"
	"tbd/internal/exports"
	"tbd/internal/machox"
	"tbd/internal/machox/machotest"
)

const ext = types.N_SECT | types.N_EXT

func arm64Dylib(symbols ...string) machotest.Image {
	im := machotest.Image{
		Is64:           true,
		InstallName:    "/usr/lib/libdemo.dylib",
		CurrentVersion: 0x00020100,
		CompatVersion:  0x00010000,
		UUID:           bytes.Repeat([]byte{0xab}, 16),
	}
	for _, s := range symbols {
		im.Symbols = append(im.Symbols, machotest.Symbol{Name: s, Type: ext, Sect: 1})
	}
	return im
}

func x86Dylib(symbols ...string) machotest.Image {
	im := arm64Dylib(symbols...)
	im.CPU = types.CPUAmd64
	im.SubCPU = 3
	im.UUID = bytes.Repeat([]byte{0xcd}, 16)
	return im
}

func extract(t *testing.T, data []byte, opts Options) (*Result, error) {
	t.Helper()
	return Reader(context.Background(), bytes.NewReader(data), int64(len(data)), opts)
}

func TestReaderThin(t *testing.T) {
	res, err := extract(t, arm64Dylib("_b", "_a", "_OBJC_CLASS_$_Demo").Bytes(), Options{})
	require.NoError(t, err)

	assert.False(t, res.Fat)
	require.Len(t, res.Slices, 1)

	s := res.Slices[0]
	assert.Equal(t, "arm64", s.Arch.Name)
	assert.True(t, s.IsLibrary())
	assert.True(t, s.Is64)
	assert.Equal(t, "/usr/lib/libdemo.dylib", s.InstallName)
	assert.Equal(t, "2.1", s.CurrentVersion.String())
	assert.Equal(t, "1", s.CompatVersion.String())
	assert.Equal(t, "ABABABAB-ABAB-ABAB-ABAB-ABABABABABAB", s.UUID)
	assert.Equal(t, 3, s.LoadCommands)
	assert.Equal(t, 3, s.Exports)

	bit := s.Arch.Bit()
	assert.Equal(t, bit, res.Archs())
	assert.Equal(t, []exports.Info{
		{Name: "_a", Kind: exports.Normal, Archs: bit},
		{Name: "_b", Kind: exports.Normal, Archs: bit},
		{Name: "_Demo", Kind: exports.ObjCClass, Archs: bit},
	}, res.Exports.Infos())
}

func TestReaderFatMergesArchs(t *testing.T) {
	data := machotest.Fat(
		machotest.FatSlice{CPU: types.CPUAmd64, SubCPU: 3, Data: x86Dylib("_shared", "_x86").Bytes()},
		machotest.FatSlice{CPU: types.CPUArm64, Data: arm64Dylib("_shared", "_arm").Bytes()},
	)

	for _, jobs := range []int{0, 1} {
		res, err := extract(t, data, Options{Jobs: jobs})
		require.NoError(t, err)

		assert.True(t, res.Fat)
		require.Len(t, res.Slices, 2)
		assert.Equal(t, "x86_64", res.Slices[0].Arch.Name)
		assert.Equal(t, "arm64", res.Slices[1].Arch.Name)
		assert.Equal(t, int64(4096), res.Slices[0].Offset)

		arm, _ := archs.ByName("arm64")
		x86, _ := archs.ByName("x86_64")
		assert.Equal(t, []exports.Info{
			{Name: "_arm", Kind: exports.Normal, Archs: arm.Bit()},
			{Name: "_shared", Kind: exports.Normal, Archs: arm.Bit() | x86.Bit()},
			{Name: "_x86", Kind: exports.Normal, Archs: x86.Bit()},
		}, res.Exports.Infos())
	}
}

func TestReaderErrors(t *testing.T) {
	arm := arm64Dylib("_a").Bytes()

	tooMany := machotest.Fat(machotest.FatSlice{CPU: types.CPUArm64, Data: arm})
	binary.BigEndian.PutUint32(tooMany[4:], 129)

	empty := machotest.Fat(machotest.FatSlice{CPU: types.CPUArm64, Data: arm})
	binary.BigEndian.PutUint32(empty[4:], 0)

	pastEnd := machotest.Fat(machotest.FatSlice{CPU: types.CPUArm64, Data: arm})
	binary.BigEndian.PutUint32(pastEnd[8+12:], uint32(len(pastEnd)))

	exe := arm64Dylib("_a")
	exe.FileType = types.MH_EXECUTE

	unknown := arm64Dylib("_a")
	unknown.CPU = types.CPU(0x42)

	tests := []struct {
		name string
		data []byte
		opts Options
		want error
	}{
		{"not mach-o", []byte("#!/bin/sh\necho hello\n"), Options{}, machox.ErrNotAMachO},
		{"tiny file", []byte{0xcf, 0xfa}, Options{}, machox.ErrNotAMachO},
		{"empty fat", empty, Options{}, ErrEmptyFat},
		{"too many fat archs", tooMany, Options{}, ErrTooManyFatArchs},
		{"fat slice past end", pastEnd, Options{}, ErrInvalidFatArch},
		{
			"duplicate arch",
			machotest.Fat(
				machotest.FatSlice{CPU: types.CPUArm64, Data: arm},
				machotest.FatSlice{CPU: types.CPUArm64, Data: arm},
			),
			Options{}, ErrDuplicateArch,
		},
		{
			"fat header disagrees",
			machotest.Fat(machotest.FatSlice{CPU: types.CPUAmd64, SubCPU: 3, Data: arm}),
			Options{}, ErrInvalidFatArch,
		},
		{"unknown arch", unknown.Bytes(), Options{}, ErrUnknownArch},
		{"library required", exe.Bytes(), Options{RequireLibrary: true}, machox.ErrNotALibrary},
		{"no symbol table", machotest.Image{Is64: true, NoSymtab: true}.Bytes(), Options{}, machox.ErrNoSymbolTableLoadCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, tt.data, tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReaderExecutableWithoutRequireLibrary(t *testing.T) {
	exe := arm64Dylib("_main")
	exe.FileType = types.MH_EXECUTE
	res, err := extract(t, exe.Bytes(), Options{})
	require.NoError(t, err)
	assert.False(t, res.Slices[0].IsLibrary())
	assert.Equal(t, 1, res.Exports.Len())
}

func TestReaderStrictness(t *testing.T) {
	im := arm64Dylib("_good")
	im.Symbols = append(im.Symbols, machotest.Symbol{Name: "_bad", Type: ext, Sect: 1, Strx: machotest.Index(0xfffff)})
	data := im.Bytes()

	res, err := extract(t, data, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Exports.Len())

	_, err = extract(t, data, Options{Strict: true})
	assert.ErrorIs(t, err, machox.ErrInvalidSymbolTableEntry)
}

func TestReaderStrictNoSymbols(t *testing.T) {
	res, err := extract(t, arm64Dylib().Bytes(), Options{Strict: true})
	require.NoError(t, err)
	assert.Zero(t, res.Exports.Len())
}

func TestReaderPrivateSymbols(t *testing.T) {
	im := arm64Dylib("_public")
	im.Symbols = append(im.Symbols, machotest.Symbol{Name: "_private", Type: types.N_SECT, Sect: 1})
	data := im.Bytes()

	res, err := extract(t, data, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Exports.Len())

	res, err = extract(t, data, Options{Parse: exports.AllowPrivateNormalSymbols})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exports.Len())
}

func TestReaderTargetsAndReExports(t *testing.T) {
	o := binary.LittleEndian

	build := make([]byte, 16)
	o.PutUint32(build[0:], uint32(PlatformIOSSimulator))
	o.PutUint32(build[4:], 0x000e0000)
	o.PutUint32(build[8:], 0x00110200)

	minMac := make([]byte, 8)
	o.PutUint32(minMac[0:], 0x000a0f00)
	o.PutUint32(minMac[4:], 0x000b0000)

	tests := []struct {
		name     string
		cmd      []byte
		platform types.Platform
		minOS    string
		sdk      string
	}{
		{"build version", machotest.Command(o, types.LC_BUILD_VERSION, build), PlatformIOSSimulator, "14", "17.2"},
		{"version min", machotest.Command(o, types.LC_VERSION_MIN_MACOSX, minMac), PlatformMacOS, "10.15", "11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := arm64Dylib("_a")
			im.Commands = [][]byte{
				tt.cmd,
				machotest.Dylib(o, types.LC_REEXPORT_DYLIB, "/usr/lib/libinner.dylib", 0, 0),
			}
			res, err := extract(t, im.Bytes(), Options{})
			require.NoError(t, err)

			s := res.Slices[0]
			assert.Equal(t, tt.platform, s.Target.Platform)
			assert.Equal(t, tt.minOS, s.Target.MinOS.String())
			assert.Equal(t, tt.sdk, s.Target.SDK.String())
			assert.Equal(t, []string{"/usr/lib/libinner.dylib"}, s.ReExports)
		})
	}
}

func TestPlatformName(t *testing.T) {
	tests := map[types.Platform]string{
		PlatformMacOS:        "macosx",
		PlatformIOSSimulator: "ios",
		PlatformMacCatalyst:  "iosmac",
		PlatformUnknown:      "",
		types.Platform(99):   "platform99",
	}
	for p, want := range tests {
		if got := PlatformName(p); got != want {
			t.Errorf("PlatformName(%d) = %q, want %q", uint32(p), got, want)
		}
	}
}

func TestFileAndWalk(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))

	top := filepath.Join(dir, "libtop.dylib")
	deep := filepath.Join(nested, "libdeep.dylib")
	require.NoError(t, os.WriteFile(top, arm64Dylib("_top").Bytes(), 0o644))
	require.NoError(t, os.WriteFile(deep, x86Dylib("_deep").Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny"), []byte{1}, 0o644))

	res, err := File(context.Background(), top, Options{})
	require.NoError(t, err)
	assert.Equal(t, top, res.Path)
	assert.Equal(t, 1, res.Exports.Len())

	_, err = File(context.Background(), filepath.Join(dir, "README"), Options{})
	assert.ErrorIs(t, err, machox.ErrNotAMachO)

	_, err = File(context.Background(), dir, Options{})
	assert.Error(t, err)

	walk := func(recurse bool) []string {
		var got []string
		require.NoError(t, Walk(dir, recurse, func(path string, err error) error {
			require.NoError(t, err)
			got = append(got, path)
			return nil
		}))
		return got
	}
	assert.Equal(t, []string{top}, walk(false))
	assert.Equal(t, []string{top, deep}, walk(true))

	assert.Error(t, Walk(top, true, func(string, error) error { return nil }))
}

func TestWalkSkipsJavaClassFiles(t *testing.T) {
	dir := t.TempDir()

	// cafebabe, minor 0, major 52 (Java 8), then a constant pool.
	class := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x34}
	class = append(class, bytes.Repeat([]byte{0x01}, 2048)...)
	short := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x34, 0x00, 0x10}

	lib := filepath.Join(dir, "libfat.dylib")
	require.NoError(t, os.WriteFile(lib, machotest.Fat(
		machotest.FatSlice{CPU: types.CPUArm64, Data: arm64Dylib("_a").Bytes()},
	), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.class"), class, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Tiny.class"), short, 0o644))

	for _, name := range []string{"Main.class", "Tiny.class"} {
		ok, err := IsMachO(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
	ok, err := IsMachO(lib)
	require.NoError(t, err)
	assert.True(t, ok)

	var got []string
	require.NoError(t, Walk(dir, false, func(path string, err error) error {
		require.NoError(t, err)
		got = append(got, path)
		return nil
	}))
	assert.Equal(t, []string{lib}, got)
}
