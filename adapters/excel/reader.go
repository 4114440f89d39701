package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"gocausal/ports"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	config   ExcelConfig
	fileType string // "xlsx" or "csv"

	mu      sync.Mutex
	columns []Column
}

var (
	_ ports.AttributeSource    = (*DataReader)(nil)
	_ ports.AttributeDescriber = (*DataReader)(nil)
)

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	cfg := DefaultExcelConfig()
	cfg.FilePath = filePath
	return NewDataReaderWithConfig(cfg)
}

// NewDataReaderWithConfig creates a data reader from an explicit config
func NewDataReaderWithConfig(cfg ExcelConfig) *DataReader {
	if cfg.Sheet == "" {
		cfg.Sheet = "Sheet1"
	}
	ext := strings.ToLower(filepath.Ext(cfg.FilePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{config: cfg, fileType: fileType}
}

// Attributes returns the dataset header: the names that may be dropped onto
// the canvas. The header is read once and cached.
func (r *DataReader) Attributes(ctx context.Context) ([]string, error) {
	cols, err := r.Columns(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// DescribeAttributes returns each attribute with its inferred column type
func (r *DataReader) DescribeAttributes(ctx context.Context) ([]ports.AttributeInfo, error) {
	cols, err := r.Columns(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]ports.AttributeInfo, len(cols))
	for i, c := range cols {
		infos[i] = ports.AttributeInfo{Name: c.Name, Type: string(c.Type)}
	}
	return infos, nil
}

// Columns returns the dataset columns with their inferred types
func (r *DataReader) Columns(ctx context.Context) ([]Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.columns != nil {
		return r.columns, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	r.columns = InferColumns(data, r.config.SampleRows)
	return r.columns, nil
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.config.FilePath)

	if _, err := os.Stat(r.config.FilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.config.FilePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads Excel data from the configured sheet
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.config.Sheet, err)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)",
		r.config.Sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) < 1 {
		return nil, fmt.Errorf("Excel file must have a header row")
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.config.FilePath)
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

	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file must have a header row")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format. Blank and
// duplicate headers are skipped; node ids must be unique.
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	seen := make(map[string]bool, len(headerRow))
	for i, header := range headerRow {
		h := strings.TrimSpace(header)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		headers[i] = h
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		rowData := make(RawRowData)
		for j, cell := range rows[i] {
			if j < len(headers) && headers[j] != "" {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	compact := headers[:0]
	for _, h := range headers {
		if h != "" {
			compact = append(compact, h)
		}
	}
	if len(compact) == 0 {
		return nil, fmt.Errorf("header row has no column names")
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(compact), len(dataRows))

	return &ExcelData{
		Headers: compact,
		Rows:    dataRows,
	}, nil
}

// InferColumns types each column from up to sampleRows rows. A column is
// numeric when every non-empty sampled value parses as a float.
func InferColumns(data *ExcelData, sampleRows int) []Column {
	rows := data.Rows
	if sampleRows > 0 && len(rows) > sampleRows {
		rows = rows[:sampleRows]
	}

	columns := make([]Column, 0, len(data.Headers))
	for _, h := range data.Headers {
		distinct := make(map[string]bool)
		numeric := true
		for _, row := range rows {
			v := row[h]
			if v == "" {
				continue
			}
			distinct[v] = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
			}
		}

		col := Column{Name: h, Distinct: len(distinct)}
		switch {
		case len(distinct) == 0:
			col.Type = ColumnEmpty
		case numeric:
			col.Type = ColumnNumeric
		default:
			col.Type = ColumnCategorical
		}
		columns = append(columns, col)
	}
	return columns
}
