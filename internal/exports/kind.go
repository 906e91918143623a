// Package exports decides which symbols an image exports and collects them
// into a deduplicated, architecture-tagged set.
package exports

import "fmt"

// Kind is the category an exported symbol is listed under. The order of the
// constants is the order of the sorted set.
type Kind uint8

const (
	Normal Kind = iota
	WeakDef
	ObjCClass
	ObjCIvar
)

// Kinds lists every kind in sort order.
var Kinds = [...]Kind{Normal, WeakDef, ObjCClass, ObjCIvar}

func (k Kind) String() string {
	switch k {
	case Normal:
		return "symbol"
	case WeakDef:
		return "weak-def-symbol"
	case ObjCClass:
		return "objc-class"
	case ObjCIvar:
		return "objc-ivar"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown export kind %q", s)
}
