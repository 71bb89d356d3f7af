package cli

import (
	"github.com/spf13/cobra"

	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// newGraphCmd groups the read-only graph queries.
func newGraphCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Query the property graph",
	}
	cmd.AddCommand(
		newGraphStatsCmd(opts),
		newGraphSearchCmd(opts),
		newGraphPathCmd(opts),
		newGraphRecommendCmd(opts),
		newGraphExportCmd(opts),
	)
	return cmd
}

func newGraphStatsCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show node and edge counts by label and type",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Graph.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return app.print(cmd, stats)
		},
	}
}

func newGraphSearchCmd(opts *RootOptions) *cobra.Command {
	var kindName string
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Substring search over node names and descriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kinds []kg.EntityKind
			if kindName != "" {
				kind, err := kindFromString(kindName)
				if err != nil {
					return err
				}
				kinds = append(kinds, kind)
			}
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			nodes, err := app.Graph.Search(cmd.Context(), args[0], kinds, limit)
			if err != nil {
				return err
			}
			return app.print(cmd, nodes)
		},
	}

	cmd.Flags().StringVarP(&kindName, "kind", "k", "", "restrict to one entity kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "maximum results")
	return cmd
}

func newGraphPathCmd(opts *RootOptions) *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "path FROM TO",
		Short: "Bounded shortest path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			path, err := app.Graph.ShortestPath(cmd.Context(), args[0], args[1], maxDepth)
			if err != nil {
				return err
			}
			return app.print(cmd, path)
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 6, "maximum path length")
	return cmd
}

func newGraphRecommendCmd(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recommend SUBSTANCE_ID",
		Short: "Degree-ranked related substances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			nodes, err := app.Graph.Recommendations(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return app.print(cmd, nodes)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum recommendations")
	return cmd
}

func newGraphExportCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Dump every node and edge as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			export, err := app.Graph.Export(cmd.Context())
			if err != nil {
				return err
			}
			return app.print(cmd, export)
		},
	}
}
