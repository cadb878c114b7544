package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"gotrack/domain/core"
	"gotrack/domain/snapshot"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	log      *logrus.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, log *logrus.Logger) *DataReader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, log: log}
}

// ReadSheet reads one sheet into structured form. CSV files have a single
// sheet and ignore the name; an empty name reads the first sheet of a
// workbook.
func (r *DataReader) ReadSheet(sheet string) (*SheetData, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData(sheet)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

func (r *DataReader) readExcelData(sheet string) (*SheetData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	r.log.WithFields(logrus.Fields{
		"sheet":   sheet,
		"rows":    len(rows),
		"read_ms": float64(time.Since(startTime).Nanoseconds()) / 1e6,
	}).Debug("Sheet read")

	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}
	return r.processRows(rows), nil
}

func (r *DataReader) readCSVData() (*SheetData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.log.WithField("rows", len(rows)).Debug("CSV file read")

	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file has no header row")
	}
	return r.processRows(rows), nil
}

// processRows converts raw string rows into SheetData, keying cells by
// header. Short rows leave trailing columns absent.
func (r *DataReader) processRows(rows [][]string) *SheetData {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &SheetData{Headers: headers, Rows: dataRows}
}

// findColumn returns the header matching one of names, ignoring case
func findColumn(data *SheetData, names ...string) (string, bool) {
	for _, name := range names {
		for _, header := range data.Headers {
			if strings.EqualFold(header, name) {
				return header, true
			}
		}
	}
	return "", false
}

// ReadAnnotations reads a long-format annotation table with edition,
// entity and label columns into per-edition label membership. Rows with
// an empty label are skipped.
func (r *DataReader) ReadAnnotations(sheet string) (map[snapshot.EditionID]map[core.Label]core.EntitySet, error) {
	data, err := r.ReadSheet(sheet)
	if err != nil {
		return nil, err
	}

	edCol, ok := findColumn(data, "edition", "edition_id")
	if !ok {
		return nil, fmt.Errorf("no edition column in %s", r.filePath)
	}
	entityCol, ok := findColumn(data, "entity", "gene", "symbol", "id")
	if !ok {
		return nil, fmt.Errorf("no entity column in %s", r.filePath)
	}
	labelCol, ok := findColumn(data, "label", "term", "go_id")
	if !ok {
		return nil, fmt.Errorf("no label column in %s", r.filePath)
	}

	out := make(map[snapshot.EditionID]map[core.Label]core.EntitySet)
	for i, row := range data.Rows {
		line := i + 2
		if row[labelCol] == "" {
			continue
		}
		ed, err := strconv.Atoi(row[edCol])
		if err != nil || ed < 1 {
			return nil, fmt.Errorf("row %d: invalid edition %q", line, row[edCol])
		}
		entity, err := core.ParseEntity(row[entityCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		label, err := core.ParseLabel(row[labelCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		id := snapshot.EditionID(ed)
		if out[id] == nil {
			out[id] = make(map[core.Label]core.EntitySet)
		}
		if out[id][label] == nil {
			out[id][label] = core.NewSet[core.Entity]()
		}
		out[id][label].Add(entity)
	}

	r.log.WithFields(logrus.Fields{
		"path":     r.filePath,
		"editions": len(out),
	}).Info("Annotations loaded")
	return out, nil
}
