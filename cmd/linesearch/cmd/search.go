package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
)

type searchOptions struct {
	limit   int
	literal bool
	format  string
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <keyword>...",
		Short: "Search the index and show matching lines",
		Long: `Search the index. Keywords are OR'd; each matching document is listed
once with the lines that contain any keyword.

Examples:
  linesearch search fox
  linesearch search quick fox --limit 5
  linesearch search running --literal --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.cfg.Search
			if cmd.Flags().Changed("limit") {
				cfg.MaxResults = opts.limit
			}
			if opts.literal {
				cfg.NormalizeQuery = false
			}
			svc := searcher.NewService(
				executor.New(a.store, cfg),
				provenance.New(a.cfg.Storage.DocumentDir, cfg.ProvenanceWorkers),
				cfg,
			)
			resp, err := svc.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			renderResults(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of documents (0 for all)")
	cmd.Flags().BoolVar(&opts.literal, "literal", false, "Match keywords verbatim instead of by stem")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}
