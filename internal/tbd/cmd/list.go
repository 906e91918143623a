package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tbd/internal/analysis"
	"tbd/internal/archs"
	"tbd/internal/exports"
	"tbd/internal/extract"
	"tbd/internal/tbd/styles"
)

// listOptions filters and formats the list command's output.
type listOptions struct {
	demangle bool
	kinds    []exports.Kind
	arch     uint64
	plain    bool
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <file>",
		Short: "List the exports of a Mach-O file",
		Long: heredoc.Doc(`
			List prints one line per export: its kind, the architectures that
			export it and its name.`),
		Example: heredoc.Doc(`
			# Every export, C++ names demangled
			tbd list --demangle libc++.1.dylib

			# Only Objective-C classes of the arm64 slice
			tbd list --kind objc-class --arch arm64 Foundation`),
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			lg := newLogger(cmd, cfg)
			defer lg.Close()

			opts := listOptions{plain: !useColor(cfg.Color, cmd.OutOrStdout())}
			opts.demangle, _ = cmd.Flags().GetBool("demangle")

			kinds, _ := cmd.Flags().GetStringSlice("kind")
			for _, k := range kinds {
				kind, err := exports.ParseKind(k)
				if err != nil {
					return err
				}
				opts.kinds = append(opts.kinds, kind)
			}
			names, _ := cmd.Flags().GetStringSlice("arch")
			for _, n := range names {
				a, ok := archs.ByName(n)
				if !ok {
					return errors.Errorf("unknown architecture %q", n)
				}
				opts.arch |= a.Bit()
			}

			res, err := extract.File(cmd.Context(), args[0], cfg.ExtractOptions(lg.Logger))
			if err != nil {
				return err
			}
			if opts.demangle {
				analysis.ResetDemangleCache()
				defer logDemangleStats(lg.Logger)
			}
			return writeList(cmd.OutOrStdout(), res.Exports, opts)
		},
	}

	addExtractFlags(cmd)
	cmd.Flags().Bool("demangle", false, "Demangle C++ names")
	cmd.Flags().StringSlice("kind", nil, "Only list these kinds (symbol, weak-def-symbol, objc-class, objc-ivar)")
	cmd.Flags().StringSlice("arch", nil, "Only list exports of these architectures")
	cmd.Flags().String("color", "auto", "Color output: auto, always or never")
	return cmd
}

func logDemangleStats(lg *log.Logger) {
	total, hits, top := analysis.GetDemangleCacheStats()
	lg.Debug("demangle cache", "names", total, "hits", hits, "top", strings.Join(top, ", "))
}

// writeList prints the exports of set that pass opts.
func writeList(w io.Writer, set *exports.Set, opts listOptions) error {
	p := styles.NewPalette(opts.plain)

	width := 0
	for _, k := range exports.Kinds {
		width = max(width, len(k.String()))
	}

	for info := range set.All() {
		if len(opts.kinds) > 0 && !slices.Contains(opts.kinds, info.Kind) {
			continue
		}
		if opts.arch != 0 && info.Archs&opts.arch == 0 {
			continue
		}

		kind := info.Kind.String()
		line := fmt.Sprintf("%s%s  %s  %s\n",
			p.Kind[info.Kind].Render(kind),
			strings.Repeat(" ", width-len(kind)),
			p.Arch.Render(strings.Join(archs.Names(info.Archs), ",")),
			p.Name.Render(analysis.DisplayName(info.Name, opts.demangle)),
		)
		if _, err := io.WriteString(w, line); err != nil {
			return errors.Wrap(err, "write list")
		}
	}
	return nil
}
