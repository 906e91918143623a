package machox

import "errors"

// Errors returned while opening and validating a container. I/O failures wrap
// ErrStreamSeek or ErrStreamRead together with the underlying error.
var (
	// ErrNotAMachO is returned when the magic is not a Mach-O magic.
	ErrNotAMachO = errors.New("machox: not a mach-o file")
	// ErrFatContainer is returned for fat magics, which hold several images.
	ErrFatContainer = errors.New("machox: fat mach-o container")
	// ErrNotALibrary is returned by OpenLibrary for images without a dylib
	// file type or a usable LC_ID_DYLIB.
	ErrNotALibrary = errors.New("machox: not a dynamic library")
	// ErrInvalidRange is returned when base or size do not fit the stream.
	ErrInvalidRange = errors.New("machox: invalid range")
	// ErrInvalidMachO wraps load command failures found by OpenLibrary.
	ErrInvalidMachO = errors.New("machox: invalid mach-o")
	ErrStreamSeek   = errors.New("machox: stream seek failed")
	ErrStreamRead   = errors.New("machox: stream read failed")
	// ErrClosed is returned by every query on a closed container.
	ErrClosed = errors.New("machox: container is closed")
)

// Load command block errors.
var (
	// ErrLoadCommandTooSmall is returned for a command under 8 bytes or a
	// block whose commands end before sizeofcmds.
	ErrLoadCommandTooSmall = errors.New("machox: load command is too small")
	// ErrLoadCommandTooLarge is returned when commands run past sizeofcmds
	// or the block runs past the container.
	ErrLoadCommandTooLarge = errors.New("machox: load command is too large")
)

// Symbol table errors.
var (
	ErrNoSymbolTableLoadCommand = errors.New("machox: no LC_SYMTAB load command")
	// ErrInvalidSymbolTableLoadCommand is returned when LC_SYMTAB has the
	// wrong size or its tables do not fit inside the container.
	ErrInvalidSymbolTableLoadCommand = errors.New("machox: invalid LC_SYMTAB load command")
	// ErrNoSymbols is returned when LC_SYMTAB declares zero symbols.
	ErrNoSymbols = errors.New("machox: symbol table is empty")
	// ErrInvalidSymbolTableEntry is returned when a symbol's string index
	// lies outside the string table.
	ErrInvalidSymbolTableEntry = errors.New("machox: invalid symbol table entry")
)
