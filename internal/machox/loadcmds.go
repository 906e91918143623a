package machox

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho/types"
)

// LoadCommand is one entry of the load-command block. Cmd and Size are decoded
// to host order; Raw holds the command's bytes exactly as they appear in the
// file, header included.
type LoadCommand struct {
	Cmd    types.LoadCmd
	Size   uint32
	Offset int64 // absolute stream offset
	Raw    []byte
}

// FindFirstLoadCommand returns the first load command of type cmd. It returns
// nil and no error when the image has no such command, including when it has
// no load commands at all.
func (c *Container) FindFirstLoadCommand(cmd types.LoadCmd) (*LoadCommand, error) {
	cmds, err := c.cachedLoadCommands()
	if err != nil {
		return nil, err
	}
	for i := range cmds {
		if cmds[i].Cmd == cmd {
			lc := cmds[i]
			return &lc, nil
		}
	}
	return nil, nil
}

// LoadCommands calls fn for every load command in file order until fn returns
// false.
func (c *Container) LoadCommands(fn func(LoadCommand) bool) error {
	cmds, err := c.cachedLoadCommands()
	if err != nil {
		return err
	}
	for _, lc := range cmds {
		if !fn(lc) {
			break
		}
	}
	return nil
}

// cachedLoadCommands reads and validates the load-command block on first use.
// A block that fails validation is not kept, so every later call reports the
// same failure instead of trusting a half-checked cache.
func (c *Container) cachedLoadCommands() ([]LoadCommand, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.loadCommands != nil {
		return c.loadCommands, nil
	}

	ncmds, sizeofcmds := c.header.NCommands, c.header.SizeCommands
	if ncmds == 0 || sizeofcmds == 0 {
		return nil, nil
	}

	start := c.LoadCommandsOffset()
	if avail := c.size - (start - c.base); avail < 0 || uint64(sizeofcmds) > uint64(avail) {
		return nil, fmt.Errorf("%w: %d bytes of load commands in a %d byte image", ErrLoadCommandTooLarge, sizeofcmds, c.size)
	}

	block := make([]byte, sizeofcmds)
	if err := c.readAt(block, start); err != nil {
		return nil, err
	}
	cmds, err := indexLoadCommands(block, ncmds, c.order, start)
	if err != nil {
		return nil, err
	}

	c.lcBlock = block
	c.loadCommands = cmds
	return cmds, nil
}

// indexLoadCommands walks ncmds commands through block. The commands must tile
// the block exactly: each at least a header long, none crossing the end, and
// the last one ending precisely where the block does.
func indexLoadCommands(block []byte, ncmds uint32, order binary.ByteOrder, start int64) ([]LoadCommand, error) {
	total := uint64(len(block))
	cmds := make([]LoadCommand, 0, min(uint64(ncmds), total/LoadCommandHeaderSize))

	var used uint64
	for i := uint32(0); i < ncmds; i++ {
		if total-used < LoadCommandHeaderSize {
			return nil, fmt.Errorf("%w: command %d starts %d bytes before the end of the load commands", ErrLoadCommandTooLarge, i, total-used)
		}

		cmd, size := DecodeLoadCommandHeader(block[used:], order)
		if size < LoadCommandHeaderSize {
			return nil, fmt.Errorf("%w: command %d (%#x) is %d bytes", ErrLoadCommandTooSmall, i, uint32(cmd), size)
		}

		end := used + uint64(size)
		if end > total {
			return nil, fmt.Errorf("%w: command %d (%#x) ends at %d, past %d", ErrLoadCommandTooLarge, i, uint32(cmd), end, total)
		}
		if end == total && i != ncmds-1 {
			return nil, fmt.Errorf("%w: command %d (%#x) fills the load commands with %d commands left", ErrLoadCommandTooLarge, i, uint32(cmd), ncmds-1-i)
		}

		cmds = append(cmds, LoadCommand{
			Cmd:    cmd,
			Size:   size,
			Offset: start + int64(used),
			Raw:    block[used:end:end],
		})
		used = end
	}

	if used != total {
		return nil, fmt.Errorf("%w: commands cover %d of %d bytes", ErrLoadCommandTooSmall, used, total)
	}
	return cmds, nil
}
