// Package stub writes extraction results as text-based dylib stubs in the
// tapi-tbd-v2 YAML format.
package stub

import (
	"bytes"
	"io"
	"path/filepath"
	"slices"

	"github.com/blacktop/go-macho/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tbd/internal/archs"
	"tbd/internal/exports"
	"tbd/internal/extract"
)

const (
	header  = "--- !tapi-tbd-v2\n"
	trailer = "...\n"

	mhTwoLevel         types.HeaderFlag = 0x80
	mhAppExtensionSafe types.HeaderFlag = 0x02000000
)

// ErrNoSlices is returned for a result without any architecture slices.
var ErrNoSlices = errors.New("stub: nothing to write")

// Write encodes res as one tapi-tbd-v2 document.
func Write(w io.Writer, res *extract.Result) error {
	doc, err := document(res)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode stub")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encode stub")
	}
	buf.WriteString(trailer)

	_, err = w.Write(buf.Bytes())
	return errors.Wrap(err, "write stub")
}

// Marshal is Write into a byte slice.
func Marshal(res *extract.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func document(res *extract.Result) (*yaml.Node, error) {
	if res == nil || len(res.Slices) == 0 {
		return nil, ErrNoSlices
	}
	first := res.Slices[0]

	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		doc.Content = append(doc.Content, scalar(key), value)
	}

	add("archs", flow(archs.Names(res.Archs())))

	var uuids []string
	for _, s := range sortedSlices(res.Slices) {
		if s.UUID != "" {
			uuids = append(uuids, s.Arch.Name+": "+s.UUID)
		}
	}
	if len(uuids) > 0 {
		add("uuids", flow(uuids))
	}

	if p := extract.PlatformName(first.Target.Platform); p != "" {
		add("platform", scalar(p))
	}
	if f := flags(first); len(f) > 0 {
		add("flags", flow(f))
	}

	installName := first.InstallName
	if installName == "" {
		installName = filepath.Base(res.Path)
	}
	add("install-name", scalar(installName))
	if first.CurrentVersion != 0 {
		add("current-version", scalar(first.CurrentVersion.String()))
	}
	if first.CompatVersion != 0 {
		add("compatibility-version", scalar(first.CompatVersion.String()))
	}

	if groups := exportGroups(res); len(groups.Content) > 0 {
		add("exports", groups)
	}
	return doc, nil
}

// flags lists the tbd flags implied by the header flags of a library.
func flags(s extract.Slice) []string {
	if !s.IsLibrary() {
		return nil
	}
	var out []string
	if s.Header.Flags&mhTwoLevel == 0 {
		out = append(out, "flat_namespace")
	}
	if s.Header.Flags&mhAppExtensionSafe == 0 {
		out = append(out, "not_app_extension_safe")
	}
	return out
}

// group is the exports shared by exactly one set of architectures.
type group struct {
	archs     uint64
	reExports []string
	byKind    [len(exports.Kinds)][]string
}

var kindKeys = [len(exports.Kinds)]string{
	exports.Normal:    "symbols",
	exports.WeakDef:   "weak-def-symbols",
	exports.ObjCClass: "objc-classes",
	exports.ObjCIvar:  "objc-ivars",
}

// exportGroups splits the exports by architecture mask. Groups are ordered by
// mask; names keep the set's order within each kind.
func exportGroups(res *extract.Result) *yaml.Node {
	groups := map[uint64]*group{}
	get := func(mask uint64) *group {
		g, ok := groups[mask]
		if !ok {
			g = &group{archs: mask}
			groups[mask] = g
		}
		return g
	}

	reexports := map[string]uint64{}
	var names []string
	for _, s := range res.Slices {
		for _, name := range s.ReExports {
			if _, ok := reexports[name]; !ok {
				names = append(names, name)
			}
			reexports[name] |= s.Arch.Bit()
		}
	}
	for _, name := range names {
		g := get(reexports[name])
		g.reExports = append(g.reExports, name)
	}

	if res.Exports != nil {
		for info := range res.Exports.All() {
			g := get(info.Archs)
			g.byKind[info.Kind] = append(g.byKind[info.Kind], info.Name)
		}
	}

	masks := make([]uint64, 0, len(groups))
	for mask := range groups {
		masks = append(masks, mask)
	}
	slices.Sort(masks)

	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, mask := range masks {
		g := groups[mask]
		m := &yaml.Node{Kind: yaml.MappingNode}
		m.Content = append(m.Content, scalar("archs"), flow(archs.Names(mask)))
		if len(g.reExports) > 0 {
			m.Content = append(m.Content, scalar("re-exports"), flow(g.reExports))
		}
		for _, kind := range []exports.Kind{exports.Normal, exports.ObjCClass, exports.ObjCIvar, exports.WeakDef} {
			if names := g.byKind[kind]; len(names) > 0 {
				m.Content = append(m.Content, scalar(kindKeys[kind]), flow(names))
			}
		}
		seq.Content = append(seq.Content, m)
	}
	return seq
}

func sortedSlices(in []extract.Slice) []extract.Slice {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b extract.Slice) int { return a.Arch.Index - b.Arch.Index })
	return out
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func flow(values []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		n.Content = append(n.Content, scalar(v))
	}
	return n
}
