package cli

import (
	"github.com/spf13/cobra"

	"github.com/hazardsafe/hazardsafe-kg/internal/pipeline"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// newDocumentCmd runs the document pipeline over one or more files.
func newDocumentCmd(opts *RootOptions) *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "document FILE...",
		Short: "Extract, validate, and store documents",
		Long: "Runs each file through extraction, classification, entity and relation\n" +
			"extraction, validation, chunk embedding, and the graph merge. Multiple\n" +
			"files are processed with the configured ingest concurrency.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			p := pipeline.NewDocumentPipeline(app.Deps)
			results := p.RunBatch(cmd.Context(), args, docType)
			if err := app.print(cmd, results); err != nil {
				return err
			}
			for _, r := range results {
				if r == nil || !r.OverallSuccess {
					return apperrors.New(apperrors.ErrCodeInternal, "one or more document runs failed")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", pipeline.TypeAuto,
		"document category (safety, engineering, regulatory, research, general, or auto)")
	return cmd
}
