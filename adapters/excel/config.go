package excel

// Sheet names written by the exporter
const (
	SheetEnrichment = "Enrichment"
	SheetSimilarity = "Similarity"
	SheetStability  = "Stability"
	SheetSummary    = "Summary"
)

// ExportConfig controls what the exporter writes
type ExportConfig struct {
	FilePath string `json:"file_path"`
	// SignificantOnly limits the enrichment sheet to labels in the current
	// significant view.
	SignificantOnly bool `json:"significant_only"`
	BoldHeaders     bool `json:"bold_headers"`
}

// DefaultExportConfig returns sensible defaults for workbook export
func DefaultExportConfig(path string) ExportConfig {
	return ExportConfig{
		FilePath:    path,
		BoldHeaders: true,
	}
}
