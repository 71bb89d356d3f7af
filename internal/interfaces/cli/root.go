// Package cli implements the hazkg command tree: ontology, document, and
// ingest pipeline runs plus read-only graph queries, wired from configuration.
package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/database/neo4j"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/vector"
	"github.com/hazardsafe/hazardsafe-kg/internal/ingestion"
	"github.com/hazardsafe/hazardsafe-kg/internal/nlp"
	"github.com/hazardsafe/hazardsafe-kg/internal/pipeline"
	"github.com/hazardsafe/hazardsafe-kg/internal/quality"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath  string
	LogLevel    string
	Output      string
	Verbose     bool
	MetricsAddr string
}

// App carries the initialized dependencies for one command invocation.
type App struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
	Driver  *neo4j.Driver
	Graph   *neo4j.GraphStore
	Vector  vector.Store
	Deps    *pipeline.Deps

	output  string
	cleanup []func()
}

// NewRootCommand builds the hazkg root with all global flags and subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hazkg",
		Short: "HazardSafe-KG — hazardous-substance knowledge graph toolkit",
		Long: "hazkg ingests hazardous-substance data into a Neo4j property graph and a\n" +
			"vector index: RDF ontology directories, free-text safety documents, and\n" +
			"tabular CSV batches, each validated and quality-gated before storage.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: env + built-in defaults)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.Output, "output", "o", "text", "output format (text, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address for the run")

	cmd.AddCommand(
		newOntologyCmd(opts),
		newDocumentCmd(opts),
		newIngestCmd(opts),
		newGraphCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
		return err
	}
	return nil
}

// buildApp loads configuration and connects the stores. Callers must invoke
// Close when done.
func buildApp(opts *RootOptions) (*App, error) {
	var cfg *config.Config
	var err error
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)

	app := &App{Config: cfg, Logger: logger, output: opts.Output}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "hazkg"}, logger)
	if err != nil {
		return nil, err
	}
	app.Metrics = prometheus.NewAppMetrics(collector)
	if opts.MetricsAddr != "" {
		app.serveMetrics(opts.MetricsAddr, collector)
	}

	driver, err := neo4j.NewDriver(cfg.Neo4j, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Driver = driver
	app.cleanup = append(app.cleanup, func() { driver.Close() })
	app.Graph = neo4j.NewGraphStore(driver, logger, app.Metrics)

	store, err := vector.New(cfg.Vector, logger, app.Metrics)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Vector = store
	app.cleanup = append(app.cleanup, func() { store.Close() })

	app.Deps = &pipeline.Deps{
		Config:    cfg,
		Logger:    logger,
		Metrics:   app.Metrics,
		Graph:     app.Graph,
		Vector:    store,
		Embedder:  vector.NewHashingEmbedder(cfg.Vector.EmbeddingDim),
		Quality:   quality.NewEngine(cfg.Quality, logger, app.Metrics),
		Extractor: ingestion.NewExtractor(logger),
		Entities:  nlp.NewEntityExtractor(),
		Relations: nlp.NewRelationExtractor(),
	}
	return app, nil
}

// serveMetrics exposes the collector for the lifetime of the command.
func (a *App) serveMetrics(addr string, collector prometheus.MetricsCollector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Warn("metrics listener stopped", logging.Err(err))
		}
	}()
	a.cleanup = append(a.cleanup, func() { server.Close() })
}

// Close releases connections in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// print renders data per the --output flag.
func (a *App) print(cmd *cobra.Command, data interface{}) error {
	if strings.EqualFold(a.output, "json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

// kindFromString maps a CLI kind name onto the entity vocabulary.
func kindFromString(name string) (kg.EntityKind, error) {
	switch strings.ToLower(name) {
	case "substance", "substances":
		return kg.KindSubstance, nil
	case "container", "containers":
		return kg.KindContainer, nil
	case "test", "tests":
		return kg.KindSafetyTest, nil
	case "assessment", "assessments":
		return kg.KindAssessment, nil
	case "location", "locations":
		return kg.KindLocation, nil
	default:
		return "", apperrors.Newf(apperrors.ErrCodeBadRequest, "unknown entity kind %q", name)
	}
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padRight(h, widths[i]))
	}
	b.WriteString("\n")
	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for _, row := range rows {
		for i := range headers {
			if i > 0 {
				b.WriteString("  ")
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			b.WriteString(padRight(val, widths[i]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// exitCode maps a run outcome onto the process exit convention: success is 0
// even when a quality gate refused storage, which callers detect from output.
func exitCode(success bool) error {
	if success {
		return nil
	}
	return apperrors.New(apperrors.ErrCodeInternal, "pipeline run failed")
}
