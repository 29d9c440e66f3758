package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/watcher"
)

func newIndexCmd(global *globalOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index from the document directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			builder := indexer.NewBuilder(a.store, a.cfg.Indexer)
			stats, err := builder.Build(cmd.Context(), a.cfg.Storage.DocumentDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s generation %d: %d documents, %d lines in %s\n",
				okLabel("indexed"), stats.Generation, stats.Documents, stats.Units, stats.Duration.Round(1e6))
			if !watch {
				return nil
			}
			fmt.Fprintf(out, "watching %s\n", a.cfg.Storage.DocumentDir)
			return watcher.New(a.cfg.Storage.DocumentDir, a.cfg.Indexer.WatchDebounce, builder).Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep rebuilding when documents change")
	return cmd
}
