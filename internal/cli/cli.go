// Package cli implements the rect-transform command-line interface.
//
// Commands:
//   - apply: stream JSON-lines packets through a rect transform node
//   - roi: detect the main subject of an image and cut out its transformed ROI
//   - validate: check a configuration file without processing anything
//
// All commands take --config (default ~/.config/rect-transformer/config.yaml)
// and --verbose (-v) for debug logging.
package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/menta2k/rect-transformer/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information shown by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// NewRootCommand builds the command tree. Logs go to logOut.
func NewRootCommand(logOut io.Writer) *cobra.Command {
	var verbose bool
	var configPath string

	root := &cobra.Command{
		Use:          "rect-transform",
		Short:        "Shift, rotate, square and scale rotated rectangles",
		Long:         `rect-transform applies a fixed geometric transform to rotated rectangles in pixel or image-normalized coordinates, as a streaming node or around detected subjects.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(logOut, level)))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("rect-transform %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.GetConfigPath(), "configuration file")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration %s: %w", configPath, err)
		}
		return cfg, nil
	}

	root.AddCommand(
		newApplyCommand(loadConfig),
		newROICommand(loadConfig),
		newValidateCommand(loadConfig),
	)

	return root
}

type configLoader func() (*config.Config, error)
