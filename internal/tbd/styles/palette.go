package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"

	"tbd/internal/exports"
)

// Palette styles symbol listings.
type Palette struct {
	Arch    lipgloss.Style
	Kind    [len(exports.Kinds)]lipgloss.Style
	Name    lipgloss.Style
	Dim     lipgloss.Style
	Menu    lipgloss.Style
	Title   lipgloss.Style
	Pointer lipgloss.Style
}

// NewPalette returns the colored palette, or one that renders text unchanged
// when plain is set.
func NewPalette(plain bool) Palette {
	if plain {
		s := lipgloss.NewStyle()
		return Palette{
			Arch: s, Name: s, Dim: s, Menu: s, Title: s, Pointer: s,
			Kind: [len(exports.Kinds)]lipgloss.Style{s, s, s, s},
		}
	}
	color := func(k charmtone.Key) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(k.Hex()))
	}
	return Palette{
		Arch: color(charmtone.Squid),
		Kind: [len(exports.Kinds)]lipgloss.Style{
			exports.Normal:    color(charmtone.Malibu),
			exports.WeakDef:   color(charmtone.Cheeky),
			exports.ObjCClass: color(charmtone.Guac),
			exports.ObjCIvar:  color(charmtone.Zest),
		},
		Name:    color(charmtone.Smoke),
		Dim:     color(charmtone.Charcoal),
		Pointer: color(charmtone.Charple).Bold(true),
		Title:   color(charmtone.Zest).Background(lipgloss.Color(charmtone.Charple.Hex())).Bold(true).Padding(0, 1),
		Menu: lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}
}
