package excel

// RawRowData represents a row of raw Excel data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete Excel dataset
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// ColumnType is the inferred type of a dataset column
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnEmpty       ColumnType = "empty"
)

// Column describes one attribute of the dataset
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Distinct int        `json:"distinct"`
}
