package cmd

import (
	"context"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"tbd/internal/logging"
	tbdlog "tbd/internal/tbd/log"
)

// NewRootCmd builds the tbd command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tbd [path...]",
		Short: "Write text-based stubs for Mach-O libraries",
		Long: heredoc.Doc(`
			tbd reads Mach-O files, thin or fat, and writes their exported
			symbols as text-based dylib stubs (tapi-tbd-v2).

			Directories are scanned for Mach-O files; pass --recurse to
			descend into subdirectories.`),
		Example: heredoc.Doc(`
			# Print the stub of one library
			tbd /usr/lib/libobjc.A.dylib

			# Write stubs for a whole SDK directory, keeping its layout
			tbd -r --preserve-subdirs --replace-extension -o stubs/ MacOSX.sdk/usr/lib

			# Include private symbols and keep going on broken files
			tbd -p --ignore-errors -o out/ ./build`),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			lg := newLogger(cmd, cfg)
			defer lg.Close()

			e := &extractor{
				cfg:   cfg,
				out:   cmd.OutOrStdout(),
				log:   lg.Logger,
				color: useColor(cfg.Color, cmd.OutOrStdout()),
			}
			return e.run(cmd.Context(), args)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")

	addExtractFlags(rootCmd)
	rootCmd.Flags().BoolP("recurse", "r", false, "Descend into subdirectories")
	rootCmd.Flags().StringP("output", "o", "", "Output file, or directory for many inputs")
	rootCmd.Flags().Bool("ignore-errors", false, "Warn about failing inputs and continue")
	rootCmd.Flags().Bool("no-overwrite", false, "Keep existing output files")
	rootCmd.Flags().Bool("replace-extension", false, "Replace the input extension with .tbd")
	rootCmd.Flags().Bool("preserve-subdirs", false, "Mirror the input directory layout in the output directory")
	rootCmd.Flags().String("color", "auto", "Highlight stubs on a terminal: auto, always or never")

	rootCmd.AddCommand(newListCmd(), newInfoCmd(), newBrowseCmd(), newSchemaCmd())
	return rootCmd
}

// newLogger returns the command's logger. It writes to the command's stderr
// unless TBD_LOG_TO_FILE asks for a log file.
func newLogger(cmd *cobra.Command, cfg *Config) *logging.LoggerCloser {
	var lg *logging.LoggerCloser
	if os.Getenv(logging.EnvToFile) == "1" {
		lg = logging.NewLogger()
	} else {
		lg = logging.NewLoggerWithWriter(cmd.ErrOrStderr())
	}
	if cfg.Debug {
		lg.SetLevel(log.DebugLevel)
	}
	tbdlog.Setup(lg.Path, cfg.Debug || logging.IsDebug())
	return lg
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return isTerminal(w)
	}
}

func Execute() {
	rootCmd := NewRootCmd()

	// Piped output skips fang so the stub reaches the pipe untouched.
	if !isTerminal(os.Stdout) {
		if err := rootCmd.Execute(); err != nil {
			log.Error(err)
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
