package exports

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
)

var (
	// ErrSetFull is returned when a merge needs a new entry and the set has
	// reached its limit.
	ErrSetFull = errors.New("exports: set is full")
	// ErrInvalidName is returned for empty or all-whitespace names.
	ErrInvalidName = errors.New("exports: invalid symbol name")
)

// Info is one exported symbol. Archs has one bit per architecture slice the
// symbol was found in; bit assignment belongs to the caller.
type Info struct {
	Name  string
	Kind  Kind
	Archs uint64
}

// Set is a sorted, deduplicated collection of exports. Entries are ordered by
// kind, then by name; Archs takes no part in the ordering.
//
// A Set is not safe for concurrent merges. Build one Set per slice and
// combine them with MergeSet.
type Set struct {
	infos []Info
	// hint is the index just past where the last merge landed. A scan over
	// a sorted symbol table tends to probe the gap right there.
	hint  int
	limit int
}

// SetOption configures a Set.
type SetOption func(*Set)

// WithLimit caps the number of distinct entries. A merge that would add an
// entry past the cap fails with ErrSetFull.
func WithLimit(n int) SetOption {
	return func(s *Set) { s.limit = n }
}

func NewSet(opts ...SetOption) *Set {
	s := &Set{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Merge adds arch to the entry for (kind, name), creating the entry if the
// set has none. name is copied on insertion; the caller may reuse it. On
// error the set is unchanged.
func (s *Set) Merge(name []byte, kind Kind, arch uint64) error {
	return merge(s, name, kind, arch)
}

// MergeString is Merge for a name that is already a string.
func (s *Set) MergeString(name string, kind Kind, arch uint64) error {
	return merge(s, name, kind, arch)
}

// MergeSet merges every entry of other into s, keeping other's arch bits.
func (s *Set) MergeSet(other *Set) error {
	if other == nil {
		return nil
	}
	for _, info := range other.infos {
		if err := merge(s, info.Name, info.Kind, info.Archs); err != nil {
			return fmt.Errorf("merge %s %q: %w", info.Kind, info.Name, err)
		}
	}
	return nil
}

func merge[S ~string | ~[]byte](s *Set, name S, kind Kind, arch uint64) error {
	if IsBlank(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, string(name))
	}

	i, found := search(s, kind, name)
	if found {
		s.infos[i].Archs |= arch
		s.hint = i + 1
		return nil
	}
	if s.limit > 0 && len(s.infos) >= s.limit {
		return fmt.Errorf("%w: %d entries", ErrSetFull, s.limit)
	}

	s.infos = slices.Insert(s.infos, i, Info{Name: strings.Clone(string(name)), Kind: kind, Archs: arch})
	s.hint = i + 1
	return nil
}

// search returns the position of (kind, name) and whether it is present. When
// it is absent the position is where it would be inserted. The entries around
// the hint are tried before falling back to a binary search.
func search[S ~string | ~[]byte](s *Set, kind Kind, name S) (int, bool) {
	n := len(s.infos)
	if h := s.hint; h > 0 && h <= n {
		prev := compare(s.infos[h-1], kind, name)
		switch {
		case prev == 0:
			return h - 1, true
		case prev < 0:
			if h == n {
				return h, false
			}
			next := compare(s.infos[h], kind, name)
			if next == 0 {
				return h, true
			}
			if next > 0 {
				return h, false
			}
		}
	}
	return slices.BinarySearchFunc(s.infos, kind, func(info Info, k Kind) int {
		return compare(info, k, name)
	})
}

func compare[S ~string | ~[]byte](info Info, kind Kind, name S) int {
	if info.Kind != kind {
		return cmp.Compare(info.Kind, kind)
	}
	return compareName(info.Name, name)
}

// compareName is strings.Compare without converting b.
func compareName[S ~string | ~[]byte](a string, b S) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return cmp.Compare(a[i], b[i])
		}
	}
	return cmp.Compare(len(a), len(b))
}

func (s *Set) Len() int { return len(s.infos) }

func (s *Set) At(i int) Info { return s.infos[i] }

// All yields the entries in order.
func (s *Set) All() iter.Seq[Info] {
	return func(yield func(Info) bool) {
		for _, info := range s.infos {
			if !yield(info) {
				return
			}
		}
	}
}

// Infos returns a copy of the entries in order.
func (s *Set) Infos() []Info { return slices.Clone(s.infos) }

// Archs returns the union of every entry's arch bits.
func (s *Set) Archs() uint64 {
	var mask uint64
	for _, info := range s.infos {
		mask |= info.Archs
	}
	return mask
}

// Find returns the entry for (kind, name).
func (s *Set) Find(kind Kind, name string) (Info, bool) {
	i, found := search(s, kind, name)
	if !found {
		return Info{}, false
	}
	return s.infos[i], true
}
