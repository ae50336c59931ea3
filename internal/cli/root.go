// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatbot-tui/internal/config"
	"github.com/jeranaias/chatbot-tui/internal/logging"
	"github.com/jeranaias/chatbot-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationQuietLog marks commands that keep log output off stderr.
// "always" is for commands that own the terminal; "default" is lifted
// when --log-level is given.
const (
	annotationQuietLog = "quiet-log"
	quietAlways        = "always"
	quietByDefault     = "default"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	model      string
	locale     string
	logLevel   string
}

// app carries state from PersistentPreRunE into the command bodies.
type app struct {
	flags     globalFlags
	cfg       *config.Config
	logCloser io.Closer
}

// ExitError asks Execute to exit with Code without printing anything more.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Terminal chat client for a conversational language-model backend",
		Long: `chatbot keeps a turn-based conversation with a remote chat backend.

Run without a subcommand to open the full-screen chat. Attach images with
/attach, regenerate any assistant turn with Ctrl+R or /regen, and save
transcripts with /save.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{annotationQuietLog: quietAlways},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.chatbot/config.toml)")
	pf.StringVarP(&a.flags.model, "model", "m", "", "model to use for this run")
	pf.StringVar(&a.flags.locale, "locale", "", "locale for fixed strings (es, en)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newChatCommand(a),
		newAskCommand(a),
		newModelsCommand(a),
		newTranscriptsCommand(a),
		newConfigCommand(a),
	)
	return cmd
}

// Execute runs the command tree against os.Args and returns the exit code.
func Execute() int {
	err := NewRootCommand().Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
	return 1
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads configuration, applies flags and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.flags.configPath != "" {
		cfg, err = config.LoadFromPath(a.flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.flags.model != "" {
		cfg.DefaultModel = a.flags.model
	}
	if a.flags.locale != "" {
		cfg.UI.Locale = a.flags.locale
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid flags")
	}
	a.cfg = cfg

	var quiet bool
	switch cmd.Annotations[annotationQuietLog] {
	case quietAlways:
		quiet = true
	case quietByDefault:
		quiet = a.flags.logLevel == ""
	}
	closer, err := logging.Init(cfg.Log, logging.Options{Quiet: quiet})
	if err != nil {
		return err
	}
	a.logCloser = closer

	log.Debug().
		Str("command", cmd.CommandPath()).
		Str("model", cfg.DefaultModel).
		Str("locale", cfg.UI.Locale).
		Msg("configuration loaded")
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

// configPath returns the file config commands read and write.
func (a *app) configPath() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	return config.ConfigPath()
}
