package cli

import (
	"github.com/spf13/cobra"

	"github.com/menta2k/rect-transformer/pkg/node"
)

func newValidateCommand(loadConfig configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			contract, err := cfg.Contract()
			if err != nil {
				return err
			}
			logger := loggerFromContext(cmd.Context())
			if _, err := node.New(contract, cfg.Transform, node.WithLogger(logger)); err != nil {
				return err
			}

			logger.Info("configuration is valid", "input", contract.Kind())
			return nil
		},
	}
}
