// hazkg is the HazardSafe-KG command line: ontology, document, and CSV
// ingestion pipelines plus read-only graph queries.
package main

import (
	"os"

	"github.com/hazardsafe/hazardsafe-kg/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
