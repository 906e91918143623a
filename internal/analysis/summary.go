package analysis

import (
	"math/bits"

	"tbd/internal/archs"
	"tbd/internal/exports"
)

// ArchCount is the number of exports one architecture carries.
type ArchCount struct {
	Arch  string
	Count int
}

// Summary counts the exports of a set.
type Summary struct {
	Total  int
	ByKind [len(exports.Kinds)]int
	// ByArch is ordered like the architecture table.
	ByArch []ArchCount
	// Shared counts exports present in every architecture of the mask.
	Shared int
	// Longest is the longest exported name.
	Longest string
}

// Summarize counts the exports of set for the architectures in mask.
func Summarize(set *exports.Set, mask uint64) Summary {
	var s Summary
	perArch := make(map[int]int)
	for info := range set.All() {
		s.Total++
		s.ByKind[info.Kind]++
		if mask != 0 && info.Archs&mask == mask {
			s.Shared++
		}
		if len(info.Name) > len(s.Longest) {
			s.Longest = info.Name
		}
		for m := info.Archs; m != 0; m &= m - 1 {
			perArch[bits.TrailingZeros64(m)]++
		}
	}
	for m := mask; m != 0; m &= m - 1 {
		i := bits.TrailingZeros64(m)
		s.ByArch = append(s.ByArch, ArchCount{Arch: archs.Names(1 << i)[0], Count: perArch[i]})
	}
	return s
}
