package excel

import (
	"gotrack/adapters/stats/similarity"
	"gotrack/adapters/stats/temporal"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
)

// RawRowData represents a row of raw sheet data as header-keyed strings
type RawRowData map[string]string

// SheetData represents one sheet or CSV file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Report is everything one workbook export covers. Similarity, Stability
// and Summary are optional.
type Report struct {
	RunID      string
	Analysis   *temporal.Analysis
	Similarity map[snapshot.EditionID]similarity.SimilarityScore
	Stability  map[core.Label]map[snapshot.EditionID]similarity.StabilityScore
	Summary    *similarity.DriftSummary
}
