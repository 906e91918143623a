package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tbd/internal/analysis"
	"tbd/internal/exports"
	"tbd/internal/extract"
	"tbd/internal/tbd/styles"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Summarize a Mach-O file",
		Long: heredoc.Doc(`
			Info prints a report of a Mach-O file: its architecture slices,
			library identity, platform and export counts.`),
		Example: heredoc.Doc(`
			tbd info /usr/lib/libSystem.B.dylib

			# Markdown source instead of the rendered report
			tbd info --raw libdemo.dylib > report.md`),
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			lg := newLogger(cmd, cfg)
			defer lg.Close()

			res, err := extract.File(cmd.Context(), args[0], cfg.ExtractOptions(lg.Logger))
			if err != nil {
				return err
			}

			markdown := infoMarkdown(res)
			if raw, _ := cmd.Flags().GetBool("raw"); raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), markdown)
				return err
			}

			r, err := styles.GetMarkdownRenderer(100, !useColor(cfg.Color, cmd.OutOrStdout()))
			if err != nil {
				return errors.Wrap(err, "create renderer")
			}
			rendered, err := r.Render(markdown)
			if err != nil {
				return errors.Wrap(err, "render report")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	addExtractFlags(cmd)
	cmd.Flags().Bool("raw", false, "Print the markdown source")
	cmd.Flags().String("color", "auto", "Color output: auto, always or never")
	return cmd
}

// infoMarkdown renders the report of res as markdown.
func infoMarkdown(res *extract.Result) string {
	var b strings.Builder

	format := "thin"
	if res.Fat {
		format = fmt.Sprintf("fat, %d slices", len(res.Slices))
	}
	fmt.Fprintf(&b, "# %s\n\n", filepath.Base(res.Path))
	fmt.Fprintf(&b, "- **Path** `%s`\n", res.Path)
	fmt.Fprintf(&b, "- **Size** %s\n", humanize.IBytes(uint64(res.Size)))
	fmt.Fprintf(&b, "- **Format** %s\n\n", format)

	b.WriteString("## Slices\n\n")
	b.WriteString("| arch | type | offset | size | word | order | load commands | exports |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, s := range res.Slices {
		word, order := "32-bit", "little"
		if s.Is64 {
			word = "64-bit"
		}
		if s.BigEndian {
			order = "big"
		}
		fmt.Fprintf(&b, "| %s | %s | %#x | %s | %s | %s | %d | %s |\n",
			s.Arch, fileType(s), s.Offset, humanize.IBytes(uint64(s.Size)),
			word, order, s.LoadCommands, humanize.Comma(int64(s.Exports)))
	}

	first := res.Slices[0]
	b.WriteString("\n## Identity\n\n")
	if first.InstallName != "" {
		fmt.Fprintf(&b, "- **Install name** `%s`\n", first.InstallName)
		fmt.Fprintf(&b, "- **Current version** %s\n", first.CurrentVersion)
		fmt.Fprintf(&b, "- **Compatibility version** %s\n", first.CompatVersion)
	}
	if p := extract.PlatformName(first.Target.Platform); p != "" {
		fmt.Fprintf(&b, "- **Platform** %s (min %s, sdk %s)\n", p, first.Target.MinOS, first.Target.SDK)
	}
	for _, s := range res.Slices {
		if s.UUID != "" {
			fmt.Fprintf(&b, "- **UUID** %s `%s`\n", s.Arch, s.UUID)
		}
	}
	for _, s := range res.Slices {
		for _, r := range s.ReExports {
			fmt.Fprintf(&b, "- **Re-exports** (%s) `%s`\n", s.Arch, r)
		}
	}

	sum := analysis.Summarize(res.Exports, res.Archs())
	b.WriteString("\n## Exports\n\n")
	b.WriteString("| kind | count |\n|---|---|\n")
	for _, k := range exports.Kinds {
		fmt.Fprintf(&b, "| %s | %s |\n", k, humanize.Comma(int64(sum.ByKind[k])))
	}
	fmt.Fprintf(&b, "| **total** | %s |\n\n", humanize.Comma(int64(sum.Total)))

	if len(sum.ByArch) > 1 {
		b.WriteString("| arch | count |\n|---|---|\n")
		for _, a := range sum.ByArch {
			fmt.Fprintf(&b, "| %s | %s |\n", a.Arch, humanize.Comma(int64(a.Count)))
		}
		fmt.Fprintf(&b, "\n%s exported by every architecture.\n", humanize.Comma(int64(sum.Shared)))
	}
	if sum.Longest != "" {
		fmt.Fprintf(&b, "\nLongest name: `%s` (%d bytes)\n", analysis.EscapeUnprintable([]byte(sum.Longest)), len(sum.Longest))
	}
	return b.String()
}

func fileType(s extract.Slice) string {
	if s.IsLibrary() {
		return "library"
	}
	return strings.ToLower(strings.TrimPrefix(s.Header.Type.String(), "MH_"))
}
