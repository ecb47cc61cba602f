package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Options configures an export.
type Options struct {
	Format    Format
	FilePath  string
	MaxRows   int  // 0 = unlimited
	Delimiter rune // CSV only, default comma
}

// DefaultOptions returns CSV with a comma delimiter and no row cap.
func DefaultOptions() *Options {
	return &Options{
		Format:    FormatCSV,
		Delimiter: ',',
	}
}

// Exporter writes datasets to disk.
type Exporter struct {
	options *Options
}

// NewExporter creates an exporter. A nil options uses DefaultOptions.
func NewExporter(options *Options) *Exporter {
	if options == nil {
		options = DefaultOptions()
	}
	return &Exporter{options: options}
}

// Export writes the dataset in the configured format.
func (e *Exporter) Export(ds *Dataset) error {
	switch e.options.Format {
	case FormatCSV:
		return e.exportCSV(ds)
	case FormatXLSX:
		return e.exportXLSX(ds)
	case FormatJSON:
		return e.exportJSON(ds)
	default:
		return fmt.Errorf("unsupported export format %q", e.options.Format)
	}
}

func (e *Exporter) exportCSV(ds *Dataset) error {
	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", e.options.FilePath, err)
	}
	defer file.Close()

	// UTF-8 BOM so Excel opens the file with the right encoding.
	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if e.options.Delimiter != 0 {
		writer.Comma = e.options.Delimiter
	}
	defer writer.Flush()

	if err := writer.Write(ds.Definition.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range ds.Rows {
		if e.options.MaxRows > 0 && i >= e.options.MaxRows {
			break
		}
		values := make([]string, len(ds.Definition.Columns))
		for j, col := range ds.Definition.Columns {
			values[j] = formatValue(row.Values[col])
		}
		if err := writer.Write(values); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *Exporter) exportXLSX(ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sanitizeSheetName(ds.Definition.Name)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	rows := writeSheet(f, sheet, ds, e.options.MaxRows)

	lastCol, _ := excelize.ColumnNumberToName(len(ds.Definition.Columns))
	f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, rows+1), nil)
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	addMetadataSheet(f, ds)
	return f.SaveAs(e.options.FilePath)
}

// writeSheet fills one sheet with the styled header and data rows, returning
// the number of data rows written.
func writeSheet(f *excelize.File, sheet string, ds *Dataset, maxRows int) int {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"37474F"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range ds.Definition.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, col)
		f.SetCellStyle(sheet, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if width < 15 {
			width = 15
		}
		if width > 50 {
			width = 50
		}
		f.SetColWidth(sheet, colName, colName, width)
	}

	rows := 0
	for i, row := range ds.Rows {
		if maxRows > 0 && i >= maxRows {
			break
		}
		for j, col := range ds.Definition.Columns {
			cell, _ := excelize.CoordinatesToCellName(j+1, rows+2)
			f.SetCellValue(sheet, cell, cellValue(row.Values[col]))
		}
		rows++
	}
	return rows
}

func addMetadataSheet(f *excelize.File, ds *Dataset) {
	sheet := "Metadata"
	f.NewSheet(sheet)

	metadata := [][]string{
		{"Dataset", ds.Definition.Name},
		{"Description", ds.Definition.Description},
		{"Total Rows", fmt.Sprintf("%d", ds.TotalCount)},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
		{"Tool", "ratcrawler"},
	}
	for i, row := range metadata {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), row[1])
	}
	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "B", "B", 50)
}

// jsonExport is the JSON file layout.
type jsonExport struct {
	Metadata jsonMetadata             `json:"metadata"`
	Rows     []map[string]interface{} `json:"rows"`
}

type jsonMetadata struct {
	Table       string   `json:"table"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TotalCount  int      `json:"total_count"`
	Generated   string   `json:"generated"`
	Columns     []string `json:"columns"`
}

func (e *Exporter) exportJSON(ds *Dataset) error {
	out := &jsonExport{
		Metadata: jsonMetadata{
			Table:       string(ds.Definition.Table),
			Name:        ds.Definition.Name,
			Description: ds.Definition.Description,
			TotalCount:  ds.TotalCount,
			Generated:   time.Now().UTC().Format(time.RFC3339),
			Columns:     ds.Definition.Columns,
		},
		Rows: make([]map[string]interface{}, 0, len(ds.Rows)),
	}

	for i, row := range ds.Rows {
		if e.options.MaxRows > 0 && i >= e.options.MaxRows {
			break
		}
		out.Rows = append(out.Rows, row.Values)
	}

	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", e.options.FilePath, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(out)
}

// ExportWorkbook writes every catalog table to one XLSX file, one sheet per
// table.
func ExportWorkbook(g *Generator, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, table := range Tables() {
		ds, err := g.Generate(table, 0)
		if err != nil {
			return err
		}

		sheet := sanitizeSheetName(ds.Definition.Name)
		index, err := f.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		if first {
			f.SetActiveSheet(index)
			first = false
		}
		writeSheet(f, sheet, ds, 0)
	}

	f.DeleteSheet("Sheet1")
	return f.SaveAs(filePath)
}

// formatValue renders a cell value for CSV output.
func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%.2f", val)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// cellValue renders a value for an XLSX cell, keeping numbers as numbers.
func cellValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return v
}

// sanitizeSheetName trims a name to Excel's sheet naming rules.
func sanitizeSheetName(name string) string {
	result := name
	for _, char := range []string{"\\", "/", "?", "*", "[", "]", ":"} {
		result = strings.ReplaceAll(result, char, "_")
	}
	if len(result) > 31 {
		result = result[:31]
	}
	return result
}
