package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/playtest/internal/config"
	"github.com/roach88/playtest/internal/content"
	"github.com/roach88/playtest/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a YAML or CUE config file
	LogFile string // optional rotating log file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the playtest CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "playtest",
		Short: "Automated playtesting for narrative game content",
		Long: `Drive simulated players through a matrix of scenarios, measure coverage,
flag soft locks, budget overruns and safety violations, and compare each
nightly batch against stored baselines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "playtest.yaml", "config file (.yaml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "also write logs to this rotating file")

	// Add subcommands
	cmd.AddCommand(NewMatrixCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewBaselineCommand(opts))
	cmd.AddCommand(NewBatchesCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the config file named by --config.
func loadConfig(opts *RootOptions, f *OutputFormatter) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		code := config.ErrorCode(err)
		if code == "" {
			code = ErrCodeGeneric
		}
		return config.Config{}, f.fail(ExitCommandError, code, "failed to load config", err)
	}
	f.VerboseLog("Loaded config %s", opts.Config)
	return cfg, nil
}

// newLogger builds the command logger on stderr. The file from --log-file
// takes precedence over the config's log.file.
func newLogger(opts *RootOptions, cfg config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	lopts := logging.DefaultOptions()
	lopts.Level = cfg.Log.Level
	lopts.Format = cfg.Log.Format
	lopts.FilePath = cfg.Log.File
	if opts.LogFile != "" {
		lopts.FilePath = opts.LogFile
	}
	lopts.Verbose = opts.Verbose
	lopts.Console = stderr
	return logging.New(lopts)
}

// newEngine builds the synthetic content engine from the engine section.
func newEngine(cfg config.Config) *content.Synthetic {
	return content.NewSynthetic(
		content.WithGraphSize(cfg.Engine.GraphSize),
		content.WithLatency(cfg.Engine.MinLatencyMS, cfg.Engine.MaxLatencyMS))
}
