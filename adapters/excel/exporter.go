package excel

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"gotrack/domain/core"
	"gotrack/domain/snapshot"
)

var (
	enrichmentHeaders = []interface{}{
		"Edition", "Label", "Sample Count", "Sample Size", "Population Count", "Population Size",
		"Expected", "Fold Enrichment", "Raw P-Value", "P-Value", "Q-Value",
		"Rank", "Fractional Rank", "Significant", "In Current View",
	}
	similarityHeaders = []interface{}{
		"Edition", "Reference", "Complete Labels", "Top Labels", "Top Entities", "Top Ancestors",
		"Top Label Count", "Top Entity Count",
	}
	stabilityHeaders = []interface{}{
		"Label", "Edition", "Sample Sigma", "Population Sigma", "Min P-Value", "Max P-Value",
		"Score", "Average Score",
	}
	summaryHeaders = []interface{}{"Series", "N", "Mean", "Median", "Min"}
)

// Exporter writes analysis reports as xlsx workbooks
type Exporter struct {
	config ExportConfig
	log    *logrus.Logger
}

// NewExporter creates an exporter
func NewExporter(config ExportConfig, log *logrus.Logger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exporter{config: config, log: log}
}

// Write saves report to the configured path. The enrichment sheet is always
// written; the other sheets only when the report carries their data.
func (e *Exporter) Write(report Report) error {
	if report.Analysis == nil {
		return fmt.Errorf("report has no enrichment analysis")
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetEnrichment); err != nil {
		return fmt.Errorf("failed to name enrichment sheet: %w", err)
	}
	rows := e.enrichmentRows(report)
	if err := e.writeSheet(f, SheetEnrichment, enrichmentHeaders, rows); err != nil {
		return err
	}
	written := len(rows)

	if report.Similarity != nil {
		rows := similarityRows(report)
		if err := e.addSheet(f, SheetSimilarity, similarityHeaders, rows); err != nil {
			return err
		}
		written += len(rows)
	}
	if report.Stability != nil {
		rows := stabilityRows(report)
		if err := e.addSheet(f, SheetStability, stabilityHeaders, rows); err != nil {
			return err
		}
		written += len(rows)
	}
	if report.Summary != nil {
		rows := summaryRows(report)
		if err := e.addSheet(f, SheetSummary, summaryHeaders, rows); err != nil {
			return err
		}
		written += len(rows)
	}

	if err := f.SaveAs(e.config.FilePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"path":        e.config.FilePath,
		"run_id":      report.RunID,
		"rows":        written,
		"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
	}).Info("Workbook written")
	return nil
}

func (e *Exporter) addSheet(f *excelize.File, name string, headers []interface{}, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return e.writeSheet(f, name, headers, rows)
}

func (e *Exporter) writeSheet(f *excelize.File, name string, headers []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s headers: %w", name, err)
	}
	if e.config.BoldHeaders {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		if err := f.SetRowStyle(name, 1, 1, style); err != nil {
			return fmt.Errorf("failed to style %s headers: %w", name, err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i+2, err)
		}
	}
	return nil
}

func (e *Exporter) enrichmentRows(report Report) [][]interface{} {
	a := report.Analysis
	var rows [][]interface{}
	for _, ed := range a.Editions() {
		current := a.Significant(ed)
		for _, r := range a.Ordered(ed) {
			inView := current.Has(r.Label)
			if e.config.SignificantOnly && !inView {
				continue
			}
			rows = append(rows, []interface{}{
				int(ed), string(r.Label),
				r.SampleCount, r.SampleSize, r.PopulationCount, r.PopulationSize,
				cellFloat(r.Expected()), cellFloat(r.FoldEnrichment()),
				cellFloat(r.RawPValue), cellFloat(r.PValue), cellFloat(r.QValue),
				r.Rank, r.FractionalRank, r.Significant, inView,
			})
		}
	}
	return rows
}

func similarityRows(report Report) [][]interface{} {
	ids := make([]snapshot.EditionID, 0, len(report.Similarity))
	for id := range report.Similarity {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	rows := make([][]interface{}, 0, len(ids))
	for _, id := range ids {
		s := report.Similarity[id]
		rows = append(rows, []interface{}{
			int(id), int(s.Reference),
			cellScore(s.CompleteLabels), cellScore(s.TopLabels), cellScore(s.TopEntities), cellScore(s.TopAncestors),
			s.TopLabelSet.Len(), s.TopEntitySet.Len(),
		})
	}
	return rows
}

func stabilityRows(report Report) [][]interface{} {
	labels := make([]core.Label, 0, len(report.Stability))
	for label := range report.Stability {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	var rows [][]interface{}
	for _, label := range labels {
		byEdition := report.Stability[label]
		ids := make([]snapshot.EditionID, 0, len(byEdition))
		for id := range byEdition {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range ids {
			s := byEdition[id]
			rows = append(rows, []interface{}{
				string(label), int(id),
				cellFloat(s.SampleSigma), cellFloat(s.PopulationSigma),
				cellFloat(s.MinPValue), cellFloat(s.MaxPValue),
				cellFloat(s.Score), cellFloat(s.AverageScore),
			})
		}
	}
	return rows
}

func summaryRows(report Report) [][]interface{} {
	s := report.Summary
	series := []struct {
		name string
		n    int
		vals [3]float64
	}{
		{"Complete Labels", s.CompleteLabels.N, [3]float64{s.CompleteLabels.Mean, s.CompleteLabels.Median, s.CompleteLabels.Min}},
		{"Top Labels", s.TopLabels.N, [3]float64{s.TopLabels.Mean, s.TopLabels.Median, s.TopLabels.Min}},
		{"Top Entities", s.TopEntities.N, [3]float64{s.TopEntities.Mean, s.TopEntities.Median, s.TopEntities.Min}},
		{"Top Ancestors", s.TopAncestors.N, [3]float64{s.TopAncestors.Mean, s.TopAncestors.Median, s.TopAncestors.Min}},
	}

	rows := make([][]interface{}, 0, len(series))
	for _, sr := range series {
		if sr.n == 0 {
			rows = append(rows, []interface{}{sr.name, 0, "", "", ""})
			continue
		}
		rows = append(rows, []interface{}{sr.name, sr.n, cellFloat(sr.vals[0]), cellFloat(sr.vals[1]), cellFloat(sr.vals[2])})
	}
	return rows
}

// cellFloat keeps non-finite values out of numeric cells, which xlsx
// cannot represent
func cellFloat(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	default:
		return v
	}
}

func cellScore(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return cellFloat(*v)
}
