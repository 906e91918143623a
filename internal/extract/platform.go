package extract

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho/types"

	"tbd/internal/machox"
)

// Platform values of LC_BUILD_VERSION.
const (
	PlatformUnknown           types.Platform = 0
	PlatformMacOS             types.Platform = 1
	PlatformIOS               types.Platform = 2
	PlatformTvOS              types.Platform = 3
	PlatformWatchOS           types.Platform = 4
	PlatformBridgeOS          types.Platform = 5
	PlatformMacCatalyst       types.Platform = 6
	PlatformIOSSimulator      types.Platform = 7
	PlatformTvOSSimulator     types.Platform = 8
	PlatformWatchOSSimulator  types.Platform = 9
	PlatformDriverKit         types.Platform = 10
	PlatformVisionOS          types.Platform = 11
	PlatformVisionOSSimulator types.Platform = 12
)

// PlatformName returns the name a text stub uses for p. Simulator platforms
// share the name of the device platform.
func PlatformName(p types.Platform) string {
	switch p {
	case PlatformMacOS:
		return "macosx"
	case PlatformIOS, PlatformIOSSimulator:
		return "ios"
	case PlatformTvOS, PlatformTvOSSimulator:
		return "tvos"
	case PlatformWatchOS, PlatformWatchOSSimulator:
		return "watchos"
	case PlatformBridgeOS:
		return "bridgeos"
	case PlatformMacCatalyst:
		return "iosmac"
	case PlatformDriverKit:
		return "driverkit"
	case PlatformVisionOS, PlatformVisionOSSimulator:
		return "xros"
	case PlatformUnknown:
		return ""
	default:
		return fmt.Sprintf("platform%d", uint32(p))
	}
}

// Target is the platform and deployment versions an image was built for.
type Target struct {
	Platform types.Platform
	MinOS    machox.Version
	SDK      machox.Version
}

// decodeTarget decodes LC_BUILD_VERSION and the four LC_VERSION_MIN_*
// commands. ok is false for any other command.
func decodeTarget(lc machox.LoadCommand, order binary.ByteOrder) (t Target, ok bool, err error) {
	switch lc.Cmd {
	case types.LC_BUILD_VERSION:
		if len(lc.Raw) < 24 {
			return Target{}, true, fmt.Errorf("%w: LC_BUILD_VERSION is %d bytes", machox.ErrLoadCommandTooSmall, len(lc.Raw))
		}
		return Target{
			Platform: types.Platform(order.Uint32(lc.Raw[8:])),
			MinOS:    machox.Version(order.Uint32(lc.Raw[12:])),
			SDK:      machox.Version(order.Uint32(lc.Raw[16:])),
		}, true, nil
	case types.LC_VERSION_MIN_MACOSX:
		t.Platform = PlatformMacOS
	case types.LC_VERSION_MIN_IPHONEOS:
		t.Platform = PlatformIOS
	case types.LC_VERSION_MIN_TVOS:
		t.Platform = PlatformTvOS
	case types.LC_VERSION_MIN_WATCHOS:
		t.Platform = PlatformWatchOS
	default:
		return Target{}, false, nil
	}

	if len(lc.Raw) < 16 {
		return Target{}, true, fmt.Errorf("%w: %s is %d bytes", machox.ErrLoadCommandTooSmall, lc.Cmd, len(lc.Raw))
	}
	t.MinOS = machox.Version(order.Uint32(lc.Raw[8:]))
	t.SDK = machox.Version(order.Uint32(lc.Raw[12:]))
	return t, true, nil
}
