package machox

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Version is a packed xxxx.yy.zz version number as stored in dylib commands.
type Version uint32

func (v Version) String() string {
	major, minor, patch := uint32(v)>>16, (uint32(v)>>8)&0xff, uint32(v)&0xff
	switch {
	case patch != 0:
		return fmt.Sprintf("%d.%d.%d", major, minor, patch)
	case minor != 0:
		return fmt.Sprintf("%d.%d", major, minor)
	default:
		return fmt.Sprintf("%d", major)
	}
}

// Dylib is the decoded payload of LC_ID_DYLIB, LC_LOAD_DYLIB and friends.
type Dylib struct {
	Name           string
	Timestamp      uint32
	CurrentVersion Version
	CompatVersion  Version
}

// DecodeDylib decodes a dylib_command. The install name must start inside
// the command after the fixed fields.
func DecodeDylib(lc LoadCommand, order binary.ByteOrder) (Dylib, error) {
	if len(lc.Raw) < DylibCommandSize {
		return Dylib{}, fmt.Errorf("%w: dylib command is %d bytes", ErrLoadCommandTooSmall, len(lc.Raw))
	}
	nameOff := order.Uint32(lc.Raw[8:])
	if nameOff < DylibCommandSize || uint64(nameOff) >= uint64(len(lc.Raw)) {
		return Dylib{}, fmt.Errorf("%w: dylib name offset %d in a %d byte command", ErrInvalidMachO, nameOff, len(lc.Raw))
	}
	name, _ := StringAt(lc.Raw, nameOff)
	return Dylib{
		Name:           string(name),
		Timestamp:      order.Uint32(lc.Raw[12:]),
		CurrentVersion: Version(order.Uint32(lc.Raw[16:])),
		CompatVersion:  Version(order.Uint32(lc.Raw[20:])),
	}, nil
}

// DecodeUUID formats the payload of an LC_UUID command the way dyld prints
// it: upper-case hex in 8-4-4-4-12 groups.
func DecodeUUID(lc LoadCommand) (string, error) {
	if len(lc.Raw) < LoadCommandHeaderSize+16 {
		return "", fmt.Errorf("%w: uuid command is %d bytes", ErrLoadCommandTooSmall, len(lc.Raw))
	}
	u := lc.Raw[LoadCommandHeaderSize : LoadCommandHeaderSize+16]
	return strings.ToUpper(fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])), nil
}
