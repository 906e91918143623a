// Package extract drives export extraction for whole files: it recognizes
// thin and fat Mach-O files, parses every architecture slice and merges the
// per-slice exports into one set.
package extract

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/blacktop/go-macho/types"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"tbd/internal/archs"
	"tbd/internal/exports"
	"tbd/internal/machox"
	"tbd/internal/symtab"
)

var (
	ErrUnknownArch   = errors.New("extract: unknown architecture")
	ErrDuplicateArch = errors.New("extract: duplicate architecture")
)

// Options controls how files are parsed.
type Options struct {
	// Parse selects which private symbols are exported.
	Parse exports.Options
	// Strict reads symbols through the cached container, failing a slice on
	// the first malformed record instead of skipping it.
	Strict bool
	// RequireLibrary rejects images that are not dynamic libraries.
	RequireLibrary bool
	// Jobs bounds the number of slices parsed at once. Zero means one per
	// CPU.
	Jobs int
	// Logger receives per-slice diagnostics. Nil discards them.
	Logger *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard)
	}
	return o.Logger
}

func (o Options) jobs() int {
	if o.Jobs <= 0 {
		return runtime.NumCPU()
	}
	return o.Jobs
}

// Slice describes one architecture of a file.
type Slice struct {
	Arch      archs.Arch
	Offset    int64
	Size      int64
	Header    types.FileHeader
	Is64      bool
	BigEndian bool

	InstallName    string
	CurrentVersion machox.Version
	CompatVersion  machox.Version
	UUID           string
	Target         Target
	ReExports      []string

	LoadCommands int
	// Exports is the number of distinct exports found in this slice.
	Exports int
}

// IsLibrary reports whether the slice is a dylib or dylib stub.
func (s Slice) IsLibrary() bool { return machox.IsLibraryType(s.Header.Type) }

// Result is everything extracted from one file.
type Result struct {
	Path    string
	Size    int64
	Fat     bool
	Slices  []Slice
	Exports *exports.Set
}

// Archs returns the mask of every slice's architecture.
func (r *Result) Archs() uint64 {
	var mask uint64
	for _, s := range r.Slices {
		mask |= s.Arch.Bit()
	}
	return mask
}

// File extracts the exports of the Mach-O file at path.
func File(ctx context.Context, path string, opts Options) (*Result, error) {
	im, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer im.Close()

	res, err := Reader(ctx, im, im.Size, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "extract %s", path)
	}
	res.Path = path
	return res, nil
}

// Reader extracts the exports of the size byte Mach-O file in r. Slices of a
// fat file are parsed concurrently, each into its own set, and merged in
// file order once all of them succeeded.
func Reader(ctx context.Context, r io.ReaderAt, size int64, opts Options) (*Result, error) {
	if size < machox.MagicSize {
		return nil, errors.Wrapf(machox.ErrNotAMachO, "%d byte file", size)
	}
	var magic [machox.MagicSize]byte
	if err := readFull(r, magic[:], 0); err != nil {
		return nil, err
	}

	res := &Result{Size: size}
	var ranges []fatArch
	class, order := machox.ClassifyMagic(magic)
	switch {
	case class.IsThin():
		ranges = []fatArch{{Size: uint64(size)}}
	case class.IsFat():
		var err error
		if ranges, err = readFatArchs(r, size, class, order); err != nil {
			return nil, err
		}
		res.Fat = true
	default:
		return nil, errors.Wrapf(machox.ErrNotAMachO, "magic %x", magic)
	}

	lg := opts.logger()
	slices := make([]Slice, len(ranges))
	sets := make([]*exports.Set, len(ranges))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs())
	for i, fa := range ranges {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sr := io.NewSectionReader(r, int64(fa.Offset), int64(fa.Size))
			s, set, err := parseSlice(sr, opts)
			if err != nil {
				return errors.Wrapf(err, "slice %d at %#x", i, fa.Offset)
			}
			if res.Fat && (s.Header.CPU != fa.CPU) {
				return errors.Wrapf(ErrInvalidFatArch, "slice %d is %s but the fat header says %s",
					i, archs.Describe(s.Header.CPU, s.Header.SubCPU), archs.Describe(fa.CPU, fa.SubCPU))
			}
			s.Offset = int64(fa.Offset)
			slices[i], sets[i] = s, set
			lg.Debug("parsed slice", "arch", s.Arch, "offset", s.Offset, "exports", s.Exports)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var seen uint64
	for _, s := range slices {
		if seen&s.Arch.Bit() != 0 {
			return nil, errors.Wrapf(ErrDuplicateArch, "%s", s.Arch)
		}
		seen |= s.Arch.Bit()
	}

	res.Slices = slices
	res.Exports = exports.NewSet()
	for i, set := range sets {
		if err := res.Exports.MergeSet(set); err != nil {
			return nil, errors.Wrapf(err, "merge %s exports", slices[i].Arch)
		}
	}
	return res, nil
}

func parseSlice(sr *io.SectionReader, opts Options) (Slice, *exports.Set, error) {
	open := machox.Open
	if opts.RequireLibrary {
		open = machox.OpenLibrary
	}
	c, err := open(sr, 0, 0)
	if err != nil {
		return Slice{}, nil, err
	}
	defer c.Close()

	hdr := c.Header()
	arch, ok := archs.Lookup(hdr.CPU, hdr.SubCPU)
	if !ok {
		return Slice{}, nil, errors.Wrapf(ErrUnknownArch, "%s", archs.Describe(hdr.CPU, hdr.SubCPU))
	}

	s := Slice{
		Arch:      arch,
		Size:      sr.Size(),
		Header:    hdr,
		Is64:      c.Is64(),
		BigEndian: c.IsBigEndian(),
	}
	if err := s.readLoadCommands(c); err != nil {
		return Slice{}, nil, err
	}

	set := exports.NewSet()
	if err := parseSymbols(sr, c, arch.Bit(), opts, set); err != nil {
		return Slice{}, nil, err
	}
	s.Exports = set.Len()
	return s, set, nil
}

func (s *Slice) readLoadCommands(c *machox.Container) error {
	order := c.ByteOrder()

	var err error
	walkErr := c.LoadCommands(func(lc machox.LoadCommand) bool {
		s.LoadCommands++
		switch lc.Cmd {
		case types.LC_ID_DYLIB:
			var d machox.Dylib
			if d, err = machox.DecodeDylib(lc, order); err == nil && s.InstallName == "" {
				s.InstallName = d.Name
				s.CurrentVersion = d.CurrentVersion
				s.CompatVersion = d.CompatVersion
			}
		case types.LC_REEXPORT_DYLIB:
			var d machox.Dylib
			if d, err = machox.DecodeDylib(lc, order); err == nil {
				s.ReExports = append(s.ReExports, d.Name)
			}
		case types.LC_UUID:
			s.UUID, err = machox.DecodeUUID(lc)
		default:
			var t Target
			var ok bool
			if t, ok, err = decodeTarget(lc, order); ok && err == nil && s.Target.Platform == PlatformUnknown {
				s.Target = t
			}
		}
		return err == nil
	})
	if walkErr != nil {
		return walkErr
	}
	return err
}

func parseSymbols(sr *io.SectionReader, c *machox.Container, arch uint64, opts Options, set *exports.Set) error {
	if opts.Strict {
		err := symtab.ParseContainer(c, arch, opts.Parse, set)
		if errors.Is(err, machox.ErrNoSymbols) {
			return nil
		}
		return err
	}

	tab, err := c.SymbolTable()
	if err != nil {
		return err
	}
	slice := symtab.Slice{
		Size:      uint64(sr.Size()),
		ByteOrder: c.ByteOrder(),
		Is64:      c.Is64(),
	}
	return symtab.Parse(sr, slice, tab, arch, opts.Parse, set)
}

func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %d bytes at %#x: %w", machox.ErrStreamRead, len(buf), off, err)
}
