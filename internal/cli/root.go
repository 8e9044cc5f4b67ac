package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	LogFile string

	cfg      *Config
	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the doccore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "doccore",
		Short: "doccore - reactive documents",
		Long: `Compile, build and drive reactive documents.

Documents are authored in YAML, JSON or CUE. Every component exposes props
computed from its attributes, its children and the components it copies;
actions change essential state and the dependent props follow.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./"+DefaultConfigFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "also write JSON logs to this file")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewActCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads the config file, applies flag overrides and installs the
// default logger. Flags set on the command line win over the file.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	path, explicit := o.Config, o.Config != ""
	if !explicit {
		path = DefaultConfigFile
	}
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err == nil || explicit {
		loaded, err := LoadConfig(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("format") || cfg.Format == "" {
		cfg.Format = o.Format
	}
	if flags.Changed("log-file") {
		cfg.Log.File = o.LogFile
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if !isValidFormat(cfg.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	o.Format = cfg.Format
	o.cfg = &cfg

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	closeLog, err := setupLogging(cmd.ErrOrStderr(), level, cfg.Log.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	o.closeLog = closeLog
	return nil
}

// config returns the effective configuration. Commands built without the
// root command (tests) get the defaults.
func (o *RootOptions) config() Config {
	if o.cfg != nil {
		return *o.cfg
	}
	cfg := DefaultConfig()
	if o.Format != "" {
		cfg.Format = o.Format
	}
	return cfg
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// fail reports err through the formatter and returns it as an ExitError.
func fail(f *OutputFormatter, exitCode int, code, message string, err error) error {
	details := any(nil)
	if err != nil {
		details = err.Error()
	}
	if outErr := f.Error(code, message, details); outErr != nil {
		return errors.Join(outErr, err)
	}
	return WrapExitError(exitCode, fmt.Sprintf("%s: %s", code, message), err)
}
