package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gotrack/adapters/excel"
	"gotrack/adapters/stats/enrichment"
	"gotrack/adapters/stats/similarity"
	"gotrack/app"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/internal"
	"gotrack/internal/config"
	"gotrack/internal/dataset"
	"gotrack/internal/testkit"
	"gotrack/ports"
)

func main() {
	// a missing .env is fine; the environment still applies
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "gotrack-cli",
		Short:         "Temporal enrichment analysis over historical annotation editions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newEnrichCmd(),
		newSingleCmd(),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// analysisFlags are the command line overrides of the environment
// configuration
type analysisFlags struct {
	correction  string
	threshold   float64
	min         int
	max         int
	topN        int
	metric      string
	mode        string
	reference   int
	parallelism int
	logLevel    string
	metricsFile string
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.correction, "correction", "bh", "Multiple test correction: bonferroni|bh")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0.05, "Significance threshold (FDR level under bh)")
	cmd.Flags().IntVar(&f.min, "min", 5, "Minimum background count of a tested label")
	cmd.Flags().IntVar(&f.max, "max", 200, "Maximum background count of a tested label (0 for no limit)")
	cmd.Flags().IntVar(&f.topN, "top-n", 5, "Top N labels compared between editions")
	cmd.Flags().StringVar(&f.metric, "metric", "jaccard", "Similarity metric: jaccard|tversky")
	cmd.Flags().StringVar(&f.mode, "mode", "fixed", "Comparison mode: fixed|proximal")
	cmd.Flags().IntVar(&f.reference, "reference", 0, "Reference edition in fixed mode (default newest)")
	cmd.Flags().IntVar(&f.parallelism, "parallelism", 1, "Editions analyzed concurrently")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file when done")
}

// writeMetrics dumps the registered metrics for a textfile collector
func (f *analysisFlags) writeMetrics() error {
	if f.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(f.metricsFile, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// resolve loads the environment configuration and applies the flags the
// user actually set
func (f *analysisFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("correction") {
		cfg.Analysis.Correction = f.correction
	}
	if flags.Changed("threshold") {
		cfg.Analysis.Threshold = f.threshold
	}
	if flags.Changed("min") {
		cfg.Analysis.PopulationMin = f.min
	}
	if flags.Changed("max") {
		cfg.Analysis.PopulationMax = f.max
	}
	if flags.Changed("top-n") {
		cfg.Compare.TopN = f.topN
	}
	if flags.Changed("metric") {
		cfg.Compare.Metric = f.metric
	}
	if flags.Changed("mode") {
		cfg.Compare.Mode = f.mode
	}
	if flags.Changed("parallelism") {
		cfg.Analysis.Parallelism = f.parallelism
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logStatus reports analysis progress through the logger
type logStatus struct {
	log *logrus.Logger
}

func (s logStatus) Status(message string, percent int) {
	s.log.WithField("percent", percent).Info(message)
}

func (s logStatus) Complete() {}

var _ ports.StatusReporter = logStatus{}

func newEnrichCmd() *cobra.Command {
	var (
		flags           analysisFlags
		xlsxPath        string
		annotationsPath string
		jsonOutput      bool
		significantOnly bool
	)

	cmd := &cobra.Command{
		Use:   "enrich [dataset.yaml]",
		Short: "Run enrichment, similarity and stability analyses over every edition",
		Long: `Run the combined analysis on a dataset file.

The dataset (YAML, or JSON with a .json extension) lists editions with their
background counts and the sample's labels. --annotations replaces the sample
with a long-format table (edition, entity, label) read from CSV or xlsx.

Settings default to the GOTRACK_* environment variables (a .env file is
loaded first); flags override them.

Example: gotrack-cli enrich dataset.yaml --correction bonferroni --top-n 10 --xlsx report.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if err := runEnrich(cmd.Context(), cfg, args[0], flags.reference, annotationsPath, xlsxPath, jsonOutput, significantOnly); err != nil {
				return err
			}
			return flags.writeMetrics()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the report to this xlsx workbook")
	cmd.Flags().StringVar(&annotationsPath, "annotations", "", "Read sample annotations from a CSV or xlsx table")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the similarity report as JSON")
	cmd.Flags().BoolVar(&significantOnly, "significant-only", false, "Only export significant labels to the workbook")

	return cmd
}

func runEnrich(ctx context.Context, cfg *config.Config, path string, reference int, annotationsPath, xlsxPath string, jsonOutput, significantOnly bool) error {
	log := internal.NewLogger(cfg.Log.Level)

	data, err := dataset.Load(path)
	if err != nil {
		return err
	}
	in := data.Input()
	if annotationsPath != "" {
		annotations, err := excel.NewDataReader(annotationsPath, log).ReadAnnotations("")
		if err != nil {
			return fmt.Errorf("failed to read annotations: %w", err)
		}
		in.Annotations = annotations
		in.SampleSizes = nil
	}

	analysisOpts, err := cfg.TemporalOptions()
	if err != nil {
		return err
	}
	compareOpts, err := cfg.CompareOptions()
	if err != nil {
		return err
	}
	compareOpts.Reference = snapshot.EditionID(reference)

	var propagator ports.AncestorPropagator
	if onto := data.Ontology(); onto != nil {
		propagator = onto
	}

	svc := app.NewEnrichmentService(data.Background(), propagator, nil, log)
	result, err := svc.Combined(ctx, app.CombinedRequest{
		Input:    in,
		Analysis: analysisOpts,
		Compare:  compareOpts,
		Status:   logStatus{log: log},
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(out))
	} else {
		printCombined(result)
	}

	if xlsxPath != "" {
		exportCfg := excel.DefaultExportConfig(xlsxPath)
		exportCfg.SignificantOnly = significantOnly
		report := excel.Report{
			RunID:      result.RunID.String(),
			Analysis:   result.Enrichment,
			Similarity: result.Similarity,
			Stability:  result.Stability,
			Summary:    &result.Summary,
		}
		if err := excel.NewExporter(exportCfg, log).Write(report); err != nil {
			return err
		}
		fmt.Printf("\nReport written to %s\n", xlsxPath)
	}
	return nil
}

func printCombined(result *app.CombinedAnalysis) {
	a := result.Enrichment
	fmt.Printf("Run %s (sample %s)\n", result.RunID, result.SampleHash.Short())
	fmt.Printf("Correction: %s at %g, reference: %s\n\n",
		a.Options().Correction, a.Options().Threshold, referenceName(result.Compare))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EDITION\tTESTED\tSIGNIFICANT\tUNMAPPED\tCOMPLETE\tTOP\tENTITIES\tANCESTORS\tTOP LABELS")
	for _, ed := range a.Editions() {
		s := result.Similarity[ed]
		top := core.Sorted(s.TopLabelSet)
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%v\n",
			ed, len(a.Results(ed)), a.Significant(ed).Len(), a.Unmapped(ed).Len(),
			score(s.CompleteLabels), score(s.TopLabels), score(s.TopEntities), score(s.TopAncestors), top)
	}
	w.Flush()

	sum := result.Summary
	fmt.Printf("\nMean similarity: complete %.3f, top %.3f, entities %.3f\n",
		sum.CompleteLabels.Mean, sum.TopLabels.Mean, sum.TopEntities.Mean)
	st := a.Stats()
	fmt.Printf("Labels significant in any edition: %d\n", a.SignificantInAny().Len())
	fmt.Printf("%d editions, %d entities, %d labels, %d probabilities computed in %s\n",
		st.Editions, st.Entities, st.Labels, st.Evaluations, result.Duration.Round(time.Millisecond))
}

func referenceName(opts similarity.CompareOptions) string {
	if opts.Mode == similarity.Proximal {
		return "previous edition"
	}
	return "edition " + strconv.Itoa(int(opts.Reference))
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func newSingleCmd() *cobra.Command {
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "single [dataset.yaml] [edition|date]",
		Short: "Run enrichment for one edition",
		Long: `Run enrichment for a single edition of a dataset and print the ranked labels.

The edition is given by ID, or as a YYYY-MM-DD date in which case the edition
dated closest to it is used.

Example: gotrack-cli single dataset.yaml 2016-06-01 --correction bonferroni --threshold 0.01`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if err := runSingle(cmd.Context(), cfg, args[0], args[1]); err != nil {
				return err
			}
			return flags.writeMetrics()
		},
	}

	flags.register(cmd)
	return cmd
}

func runSingle(ctx context.Context, cfg *config.Config, path, editionArg string) error {
	log := internal.NewLogger(cfg.Log.Level)

	data, err := dataset.Load(path)
	if err != nil {
		return err
	}
	in := data.Input()
	edition, err := resolveEdition(in.Editions, editionArg)
	if err != nil {
		return err
	}
	sample, ok := in.Annotations[edition]
	if !ok {
		return fmt.Errorf("edition %d has no sample annotations", edition)
	}

	correction, err := enrichment.ParseCorrection(cfg.Analysis.Correction)
	if err != nil {
		return err
	}
	opts := enrichment.Options{
		Correction:    correction,
		Threshold:     cfg.Analysis.Threshold,
		PopulationMin: cfg.Analysis.PopulationMin,
		PopulationMax: cfg.Analysis.PopulationMax,
	}

	svc := app.NewEnrichmentService(data.Background(), nil, nil, log)
	out, err := svc.SingleEnrichment(ctx, edition, sample, in.SampleSizes[edition], data.Species, opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tLABEL\tr\tm\tk\tt\tEXPECTED\tP\tADJUSTED\tQ\tSIGNIFICANT")
	for _, r := range out.Ordered() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%.2f\t%.3g\t%.3g\t%.3g\t%t\n",
			r.Rank, r.Label, r.SampleCount, r.PopulationCount, r.SampleSize, r.PopulationSize,
			r.Expected(), r.RawPValue, r.PValue, r.QValue, r.Significant)
	}
	w.Flush()
	fmt.Printf("\n%d tested, %d significant, %d rejected (%d unmapped)\n",
		out.Tested, out.Significant.Len(), out.Rejected.Len(), out.Unmapped.Len())
	return nil
}

// resolveEdition accepts an edition ID or a date
func resolveEdition(editions []snapshot.Edition, arg string) (snapshot.EditionID, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		return snapshot.EditionID(id), nil
	}
	at, err := time.Parse(time.DateOnly, arg)
	if err != nil {
		return 0, fmt.Errorf("invalid edition %q: expected an ID or YYYY-MM-DD", arg)
	}
	ed, ok := snapshot.Closest(editions, at)
	if !ok {
		return 0, fmt.Errorf("dataset has no editions")
	}
	fmt.Printf("Using edition %d dated %s\n\n", ed.ID, ed.Date.Format(time.DateOnly))
	return ed.ID, nil
}

func newGenerateCmd() *cobra.Command {
	var (
		seed     int64
		entities int
		editions int
		sample   int
	)

	cmd := &cobra.Command{
		Use:   "generate [output.yaml]",
		Short: "Write a synthetic dataset",
		Long: `Generate a deterministic synthetic dataset whose sample over-represents a
few leaf labels, for trying out the other commands.

Example: gotrack-cli generate synthetic.yaml --seed 7 --editions 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultAnnotationConfig()
			cfg.Seed = seed
			cfg.EntityCount = entities
			cfg.EditionCount = editions
			cfg.SampleSize = sample

			gen := testkit.NewAnnotationGenerator(cfg)
			if err := gen.Generate().Save(args[0]); err != nil {
				return err
			}
			fmt.Printf("Wrote %d editions to %s; enriched labels: %v\n", editions, args[0], gen.EnrichedLabels())
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	cmd.Flags().IntVar(&entities, "entities", 2000, "Background entities")
	cmd.Flags().IntVar(&editions, "editions", 6, "Number of editions")
	cmd.Flags().IntVar(&sample, "sample", 50, "Sample size")

	return cmd
}
