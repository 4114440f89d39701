package excel

// ExcelConfig holds configuration for the dataset file
type ExcelConfig struct {
	FilePath string `json:"file_path"`
	Sheet    string `json:"sheet"`
	// SampleRows bounds how many rows are read for type inference
	SampleRows int `json:"sample_rows"`
}

// DefaultExcelConfig returns sensible defaults for Excel processing
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		Sheet:      "Sheet1",
		SampleRows: 500,
	}
}
