package exports

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(s *Set) []string {
	var out []string
	for info := range s.All() {
		out = append(out, info.Kind.String()+":"+info.Name)
	}
	return out
}

func TestMergeOrsArchs(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Merge([]byte("_foo"), Normal, 1<<0))
	require.NoError(t, s.Merge([]byte("_foo"), Normal, 1<<3))

	require.Equal(t, 1, s.Len())
	assert.Equal(t, Info{Name: "_foo", Kind: Normal, Archs: 1<<0 | 1<<3}, s.At(0))
}

func TestMergeSeparatesKinds(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Merge([]byte("Foo"), ObjCClass, 1))
	require.NoError(t, s.Merge([]byte("Foo"), Normal, 2))
	require.NoError(t, s.Merge([]byte("Foo"), ObjCIvar, 4))
	require.NoError(t, s.Merge([]byte("Foo"), WeakDef, 8))

	assert.Equal(t, []string{"symbol:Foo", "weak-def-symbol:Foo", "objc-class:Foo", "objc-ivar:Foo"}, names(s))
	assert.Equal(t, uint64(15), s.Archs())

	info, ok := s.Find(ObjCIvar, "Foo")
	require.True(t, ok)
	assert.Equal(t, uint64(4), info.Archs)

	_, ok = s.Find(ObjCIvar, "Bar")
	assert.False(t, ok)
}

func TestMergeCopiesName(t *testing.T) {
	buf := []byte("_first")
	s := NewSet()
	require.NoError(t, s.Merge(buf, Normal, 1))
	copy(buf, "_xxxxx")
	assert.Equal(t, "_first", s.At(0).Name)
}

func TestMergeStaysSorted(t *testing.T) {
	// Sorted, reversed and shuffled input exercise the hint hit, the hint
	// miss and the plain binary search.
	var input []string
	for i := range 200 {
		input = append(input, fmt.Sprintf("_sym%03d", i))
	}
	want := slices.Clone(input)

	reversed := slices.Clone(input)
	slices.Reverse(reversed)

	shuffled := slices.Clone(input)
	r := rand.New(rand.NewPCG(1, 2))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	tests := map[string][]string{
		"sorted":   input,
		"reversed": reversed,
		"shuffled": shuffled,
	}

	for name, order := range tests {
		t.Run(name, func(t *testing.T) {
			s := NewSet()
			for _, n := range order {
				require.NoError(t, s.MergeString(n, Normal, 1))
				require.NoError(t, s.MergeString(n, Normal, 2))
			}
			got := make([]string, 0, s.Len())
			for info := range s.All() {
				assert.Equal(t, uint64(3), info.Archs)
				got = append(got, info.Name)
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestMergeErrorsLeaveSetIntact(t *testing.T) {
	s := NewSet(WithLimit(2))
	require.NoError(t, s.MergeString("_a", Normal, 1))
	require.NoError(t, s.MergeString("_c", Normal, 1))

	assert.ErrorIs(t, s.MergeString("_b", Normal, 1), ErrSetFull)
	assert.ErrorIs(t, s.Merge([]byte(" \t"), Normal, 1), ErrInvalidName)
	assert.ErrorIs(t, s.Merge(nil, Normal, 1), ErrInvalidName)

	// Existing entries still merge once the set is full.
	require.NoError(t, s.MergeString("_c", Normal, 2))

	assert.Equal(t, []Info{
		{Name: "_a", Kind: Normal, Archs: 1},
		{Name: "_c", Kind: Normal, Archs: 3},
	}, s.Infos())
}

func TestMergeSet(t *testing.T) {
	arm64 := NewSet()
	require.NoError(t, arm64.MergeString("_shared", Normal, 1))
	require.NoError(t, arm64.MergeString("Foo", ObjCClass, 1))

	x86 := NewSet()
	require.NoError(t, x86.MergeString("_shared", Normal, 2))
	require.NoError(t, x86.MergeString("_x86_only", Normal, 2))

	all := NewSet()
	require.NoError(t, all.MergeSet(arm64))
	require.NoError(t, all.MergeSet(x86))
	require.NoError(t, all.MergeSet(nil))

	assert.Equal(t, []Info{
		{Name: "_shared", Kind: Normal, Archs: 3},
		{Name: "_x86_only", Kind: Normal, Archs: 2},
		{Name: "Foo", Kind: ObjCClass, Archs: 1},
	}, all.Infos())
}

func TestMergeSetFull(t *testing.T) {
	src := NewSet()
	require.NoError(t, src.MergeString("_a", Normal, 1))
	require.NoError(t, src.MergeString("_b", Normal, 1))

	dst := NewSet(WithLimit(1))
	assert.ErrorIs(t, dst.MergeSet(src), ErrSetFull)
	assert.Equal(t, 1, dst.Len())
}

func TestAllStopsEarly(t *testing.T) {
	s := NewSet()
	for _, n := range []string{"_a", "_b", "_c"} {
		require.NoError(t, s.MergeString(n, Normal, 1))
	}
	seen := 0
	for range s.All() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}
