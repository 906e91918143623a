package analysis

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ianlancetaylor/demangle"
)

// symbolCache provides thread-safe caching for demangled names.
type symbolCache struct {
	mu                sync.RWMutex
	demangleCache     map[string]string
	demangledHitCount map[string]int
}

var cache = &symbolCache{
	demangleCache:     make(map[string]string),
	demangledHitCount: make(map[string]int),
}

// ResetDemangleCache drops every cached name and its hit count.
func ResetDemangleCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	clear(cache.demangleCache)
	clear(cache.demangledHitCount)
}

// Demangle returns the demangled form of a Mach-O symbol name. Mach-O adds a
// leading underscore to C-level names, so "__ZN3foo3barEv" demangles like
// "_ZN3foo3barEv". Names that are not mangled come back unchanged.
func Demangle(name string) string {
	if strings.HasPrefix(name, "__Z") {
		if out := CachedDemangle(name[1:]); out != name[1:] {
			return out
		}
	}
	return name
}

// CachedDemangle performs demangling with caching support.
func CachedDemangle(mangled string) string {
	cache.mu.RLock()
	if cached, exists := cache.demangleCache[mangled]; exists {
		cache.mu.RUnlock()
		cache.mu.Lock()
		cache.demangledHitCount[mangled]++
		cache.mu.Unlock()
		return cached
	}
	cache.mu.RUnlock()

	demangled := demangle.Filter(mangled, demangle.NoClones)

	cache.mu.Lock()
	cache.demangleCache[mangled] = demangled
	cache.demangledHitCount[mangled] = 1
	cache.mu.Unlock()
	return demangled
}

// GetDemangleCacheStats returns statistics about the demangle cache.
func GetDemangleCacheStats() (totalSymbols int, cacheHits int, topSymbols []string) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	type symbolHit struct {
		symbol string
		count  int
	}
	totalHits := 0
	symbols := make([]symbolHit, 0, len(cache.demangledHitCount))
	for sym, count := range cache.demangledHitCount {
		totalHits += count
		symbols = append(symbols, symbolHit{sym, count})
	}
	slices.SortFunc(symbols, func(a, b symbolHit) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return strings.Compare(a.symbol, b.symbol)
	})

	var top []string
	for i := 0; i < 5 && i < len(symbols); i++ {
		top = append(top, fmt.Sprintf("%s (%d hits)", symbols[i].symbol, symbols[i].count))
	}
	return len(cache.demangleCache), totalHits - len(cache.demangleCache), top
}
