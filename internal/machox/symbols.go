package machox

import (
	"fmt"

	"github.com/blacktop/go-macho/types"
)

// SymbolTable returns the image's LC_SYMTAB command.
func (c *Container) SymbolTable() (SymtabCommand, error) {
	lc, err := c.FindFirstLoadCommand(types.LC_SYMTAB)
	if err != nil {
		return SymtabCommand{}, err
	}
	if lc == nil {
		return SymtabCommand{}, ErrNoSymbolTableLoadCommand
	}
	if lc.Size != SymtabCommandSize {
		return SymtabCommand{}, fmt.Errorf("%w: cmdsize is %d", ErrInvalidSymbolTableLoadCommand, lc.Size)
	}
	return DecodeSymtab(lc.Raw, c.order), nil
}

// Symbols calls fn with every symbol table record and its name until fn
// returns false. Records from 32-bit images are widened to the 64-bit shape.
//
// Unlike the one-shot reader in package symtab, a record whose string index
// falls outside the string table fails the whole iteration with
// ErrInvalidSymbolTableEntry.
func (c *Container) Symbols(fn func(n Nlist, name []byte) bool) error {
	tab, err := c.SymbolTable()
	if err != nil {
		return err
	}
	strtab, err := c.cachedStringTable(tab)
	if err != nil {
		return err
	}
	symbols, err := c.cachedSymbols(tab)
	if err != nil {
		return err
	}

	maxIndex := tab.Strsize - 1
	for i := 0; i < symbols.Len(); i++ {
		n := symbols.At(i)
		if n.Strx > maxIndex {
			return fmt.Errorf("%w: symbol %d names string %#x of a %#x byte table", ErrInvalidSymbolTableEntry, i, n.Strx, tab.Strsize)
		}
		name, _ := StringAt(strtab, n.Strx)
		if !fn(n, name) {
			break
		}
	}
	return nil
}

func (c *Container) cachedStringTable(tab SymtabCommand) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.strtab != nil {
		return c.strtab, nil
	}

	size := uint64(c.size)
	off, n := uint64(tab.Stroff), uint64(tab.Strsize)
	switch {
	case off == 0 || n == 0:
		return nil, fmt.Errorf("%w: string table at %#x with %#x bytes", ErrInvalidSymbolTableLoadCommand, off, n)
	case off > size || n > size || off+n > size:
		return nil, fmt.Errorf("%w: string table %#x-%#x is outside the %#x byte image", ErrInvalidSymbolTableLoadCommand, off, off+n, size)
	}

	buf := make([]byte, n)
	if err := c.readAt(buf, c.base+int64(off)); err != nil {
		return nil, err
	}
	c.strtab = buf
	return buf, nil
}

func (c *Container) cachedSymbols(tab SymtabCommand) (*Table, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.symbols != nil {
		return c.symbols, nil
	}
	if tab.Nsyms == 0 {
		return nil, ErrNoSymbols
	}

	size := uint64(c.size)
	off := uint64(tab.Symoff)
	n := uint64(NlistStride(c.is64)) * uint64(tab.Nsyms)
	switch {
	case off == 0:
		return nil, fmt.Errorf("%w: symbol table at offset 0", ErrInvalidSymbolTableLoadCommand)
	case off > size || n > size || off+n > size:
		return nil, fmt.Errorf("%w: %d symbols at %#x run past the %#x byte image", ErrInvalidSymbolTableLoadCommand, tab.Nsyms, off, size)
	}

	buf := make([]byte, n)
	if err := c.readAt(buf, c.base+int64(off)); err != nil {
		return nil, err
	}
	table := NewTable(buf, c.order, c.is64)
	c.symbols = &table
	return c.symbols, nil
}
