package cli

import (
	"github.com/spf13/cobra"

	"github.com/hazardsafe/hazardsafe-kg/internal/pipeline"
)

// newOntologyCmd runs the ontology-directory pipeline.
func newOntologyCmd(opts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ontology",
		Short: "Load an ontology directory into the property graph",
		Long: "Loads every RDF file under the directory, shape-validates the typed\n" +
			"subjects, quality-gates the batch, and stores the survivors as nodes\n" +
			"and edges. A gate refusal exits 0 with quality_gate=failed in the output.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			if dir == "" {
				dir = app.Config.Ontology.Directory
			}
			result := pipeline.NewOntologyPipeline(app.Deps).Run(cmd.Context(), dir)
			if err := app.print(cmd, result); err != nil {
				return err
			}
			return exitCode(result.OverallSuccess)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "ontology directory (default: configured ontology.directory)")
	return cmd
}
