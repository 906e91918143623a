// Package archs names Mach-O architectures and assigns each one a bit, so an
// export can record the set of slices it was found in as a single mask.
package archs

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/blacktop/go-macho/types"
)

const (
	// subtypeMask clears the capability bits (CPU_SUBTYPE_MASK) of a subtype.
	subtypeMask types.CPUSubtype = 0x00ffffff

	CPUArm6432 = types.CPUArm | 0x02000000
	CPUPpc64   = types.CPUPpc | 0x01000000
)

// Arch is one known architecture. Index is its bit position in a mask.
type Arch struct {
	Name   string
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Index  int
}

// Bit returns the architecture's mask bit.
func (a Arch) Bit() uint64 { return 1 << a.Index }

func (a Arch) String() string { return a.Name }

// table lists every known architecture in mask order. Entries with subtype
// zero double as the fallback for their CPU.
var table = func() []Arch {
	list := []Arch{
		{Name: "i386", CPU: types.CPUI386, SubCPU: 3},
		{Name: "x86_64", CPU: types.CPUAmd64, SubCPU: 3},
		{Name: "x86_64h", CPU: types.CPUAmd64, SubCPU: 8},
		{Name: "arm", CPU: types.CPUArm, SubCPU: 0},
		{Name: "armv4t", CPU: types.CPUArm, SubCPU: 5},
		{Name: "armv6", CPU: types.CPUArm, SubCPU: 6},
		{Name: "armv5", CPU: types.CPUArm, SubCPU: 7},
		{Name: "xscale", CPU: types.CPUArm, SubCPU: 8},
		{Name: "armv7", CPU: types.CPUArm, SubCPU: 9},
		{Name: "armv7f", CPU: types.CPUArm, SubCPU: 10},
		{Name: "armv7s", CPU: types.CPUArm, SubCPU: 11},
		{Name: "armv7k", CPU: types.CPUArm, SubCPU: 12},
		{Name: "armv8", CPU: types.CPUArm, SubCPU: 13},
		{Name: "armv6m", CPU: types.CPUArm, SubCPU: 14},
		{Name: "armv7m", CPU: types.CPUArm, SubCPU: 15},
		{Name: "armv7em", CPU: types.CPUArm, SubCPU: 16},
		{Name: "arm64", CPU: types.CPUArm64, SubCPU: 0},
		{Name: "arm64e", CPU: types.CPUArm64, SubCPU: 2},
		{Name: "arm64_32", CPU: CPUArm6432, SubCPU: 0},
		{Name: "arm64_32v8", CPU: CPUArm6432, SubCPU: 1},
		{Name: "ppc", CPU: types.CPUPpc, SubCPU: 0},
		{Name: "ppc64", CPU: CPUPpc64, SubCPU: 0},
	}
	for i := range list {
		list[i].Index = i
	}
	return list
}()

// All returns every known architecture in mask order.
func All() []Arch {
	out := make([]Arch, len(table))
	copy(out, table)
	return out
}

// Lookup returns the architecture for a cpu type and subtype. The subtype's
// capability bits are ignored, arm64 v8 is treated as plain arm64, and an
// unknown subtype of a known cpu falls back to that cpu's generic entry.
func Lookup(cpu types.CPU, sub types.CPUSubtype) (Arch, bool) {
	sub &= subtypeMask
	if cpu == types.CPUArm64 && sub == 1 {
		sub = 0
	}

	var fallback *Arch
	for i := range table {
		a := &table[i]
		if a.CPU != cpu {
			continue
		}
		if a.SubCPU == sub {
			return *a, true
		}
		if fallback == nil {
			fallback = a
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Arch{}, false
}

// ByName returns the architecture called name.
func ByName(name string) (Arch, bool) {
	for _, a := range table {
		if a.Name == name {
			return a, true
		}
	}
	return Arch{}, false
}

// Names returns the names of the architectures in mask, in mask order.
func Names(mask uint64) []string {
	names := make([]string, 0, bits.OnesCount64(mask))
	for mask != 0 {
		i := bits.TrailingZeros64(mask)
		mask &^= 1 << i
		if i < len(table) {
			names = append(names, table[i].Name)
		} else {
			names = append(names, fmt.Sprintf("arch%d", i))
		}
	}
	return names
}

// Describe renders a cpu type and subtype for messages, using the
// architecture name when one is known.
func Describe(cpu types.CPU, sub types.CPUSubtype) string {
	if a, ok := Lookup(cpu, sub); ok {
		return a.Name
	}
	if s := strings.TrimSpace(sub.String(cpu)); s != "" {
		return fmt.Sprintf("%s (%s)", cpu, s)
	}
	return fmt.Sprintf("cpu %#x subtype %#x", uint32(cpu), uint32(sub))
}
