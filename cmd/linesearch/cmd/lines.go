package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
)

func newLinesCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lines <doc_id> <keyword>...",
		Short: "Show the lines of one document containing any keyword",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(global.configPath)
			if err != nil {
				return err
			}
			if global.documentDir != "" {
				cfg.Storage.DocumentDir = global.documentDir
			}
			r := provenance.New(cfg.Storage.DocumentDir, 1)
			lines, err := r.ResolveLines(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			renderLines(cmd.OutOrStdout(), args[0], lines)
			return nil
		},
	}
}
