package cli

import (
	"github.com/spf13/cobra"

	"github.com/hazardsafe/hazardsafe-kg/internal/pipeline"
)

// newIngestCmd runs the tabular CSV pipeline for one entity kind.
func newIngestCmd(opts *RootOptions) *cobra.Command {
	var kindName string

	cmd := &cobra.Command{
		Use:   "ingest FILE.csv",
		Short: "Validate and store a tabular CSV batch",
		Long: "Reads the CSV, validates every row against the kind's rule table, drops\n" +
			"rows with errors, quality-gates the batch, and bulk-creates nodes for\n" +
			"the survivors.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFromString(kindName)
			if err != nil {
				return err
			}
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			result := pipeline.NewTabularPipeline(app.Deps).Run(cmd.Context(), args[0], kind)
			if err := app.print(cmd, result); err != nil {
				return err
			}
			return exitCode(result.OverallSuccess)
		},
	}

	cmd.Flags().StringVarP(&kindName, "kind", "k", "substance",
		"entity kind (substance, container, test, assessment, location)")
	return cmd
}
