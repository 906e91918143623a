package exports

import (
	"bytes"

	"github.com/blacktop/go-macho/types"

	"tbd/internal/machox"
)

// Options loosens the visibility rules of Classify. The zero value exports
// external symbols only.
type Options uint32

const (
	AllowPrivateNormalSymbols Options = 1 << iota
	AllowPrivateObjCClassSymbols
	AllowPrivateObjCIvarSymbols

	AllowPrivateObjCSymbols = AllowPrivateObjCClassSymbols | AllowPrivateObjCIvarSymbols
	AllowAllPrivateSymbols  = AllowPrivateNormalSymbols | AllowPrivateObjCSymbols
)

// Has reports whether every bit of flag is set in o.
func (o Options) Has(flag Options) bool { return o&flag == flag }

var (
	objcClassPrefixes = [][]byte{
		[]byte("_OBJC_CLASS_$"),
		[]byte("_OBJC_METACLASS_$"),
		[]byte(".objc_class_name"),
	}
	objcIvarPrefix = []byte("_OBJC_IVAR_$")
)

// Classify maps one symbol to the kind it is exported as and the name it is
// listed under. ok is false when the symbol is not exported: it is private
// and opts does not allow that kind of private symbol, or its name is blank
// once the Objective-C decoration is removed.
//
// The returned name aliases the input.
func Classify(name []byte, desc uint16, typ types.NType, opts Options) (kind Kind, visible []byte, ok bool) {
	external := typ&types.N_EXT != 0
	className, isClass := trimObjCClassPrefix(name)

	switch {
	case desc&machox.WeakDefinition != 0:
		kind, visible = WeakDef, name
		ok = external || opts.Has(AllowPrivateNormalSymbols)
	case isClass:
		kind, visible = ObjCClass, className
		ok = external || opts.Has(AllowPrivateObjCClassSymbols)
	case bytes.HasPrefix(name, objcIvarPrefix):
		kind, visible = ObjCIvar, name[len(objcIvarPrefix):]
		ok = external || opts.Has(AllowPrivateObjCIvarSymbols)
	default:
		kind, visible = Normal, name
		ok = external || opts.Has(AllowPrivateNormalSymbols)
	}

	if !ok || IsBlank(visible) {
		return 0, nil, false
	}
	return kind, visible, true
}

func trimObjCClassPrefix(name []byte) ([]byte, bool) {
	for _, p := range objcClassPrefixes {
		if rest, ok := bytes.CutPrefix(name, p); ok {
			return rest, true
		}
	}
	return name, false
}

// IsBlank reports whether name is empty or made only of the characters C's
// isspace accepts.
func IsBlank[S ~string | ~[]byte](name S) bool {
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case ' ', '\t', '\n', '\v', '\f', '\r':
		default:
			return false
		}
	}
	return true
}
