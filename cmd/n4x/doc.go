package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/jsonptr"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

func (a *app) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <pointer>",
		Short: "Print the value at a JSON pointer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot()
			if err != nil {
				return err
			}
			v, err := jsonptr.Resolve(snap.Doc, args[0], true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	opts := jsonptr.QueryOptions{AcceptRootSlash: true}
	cmd := &cobra.Command{
		Use:   "query <pattern>",
		Short: "List every node matching a glob pointer",
		Long: `Patterns use "*" for one key or index, "**" for any depth, and shell globs
within a segment, e.g. /ships/*/fuel_tons or /**/name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot()
			if err != nil {
				return err
			}
			matches, st, err := jsonptr.Query(snap.Doc, args[0], opts)
			if err != nil && matches == nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON() {
				return printJSON(out, struct {
					Matches []jsonptr.Match    `json:"matches"`
					Stats   jsonptr.QueryStats `json:"stats"`
				}{matches, st})
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%s\t%s\n", m.Path, watch.FormatValue(m.Value))
			}
			fmt.Fprintf(out, "%d matches, %d nodes visited", st.Matches, st.NodesVisited)
			if st.Limited() {
				fmt.Fprint(out, " (limit reached)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.MaxMatches, "max-matches", 1000, "stop after this many matches (0 = no cap)")
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", 200000, "stop after visiting this many nodes (0 = no cap)")
	return cmd
}

func (a *app) completeCmd() *cobra.Command {
	opts := jsonptr.DefaultSuggestOptions()
	cmd := &cobra.Command{
		Use:   "complete <partial-pointer>",
		Short: "Suggest completions for a partly typed pointer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sugg := jsonptr.Suggest(snap.Doc, args[0], opts)
			if a.asJSON() {
				if sugg == nil {
					sugg = []string{}
				}
				return printJSON(out, sugg)
			}
			for _, s := range sugg {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.MaxSuggestions, "max", opts.MaxSuggestions, "maximum suggestions")
	cmd.Flags().BoolVar(&opts.CaseSensitive, "case-sensitive", false, "match the partial key case-sensitively")
	return cmd
}
