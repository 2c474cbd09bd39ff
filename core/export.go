package core

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	ex "corr.service/data/extensions"
	sm "corr.service/models"
)

const exportSheet = "Correlation"

type ExportResult struct {
	Csv      string `json:"csv,omitempty"`
	Content  string `json:"content,omitempty"` // base64, xlsx only
	Filename string `json:"filename"`
	Format   string `json:"format"`
}

// ExportMatrix renders a symbol -> symbol matrix with the symbols as both the
// header row and the first column. assets fixes the order, symbols it does
// not name are appended sorted.
func ExportMatrix(req sm.ExportRequest, now time.Time) (ExportResult, error) {
	format := req.Format
	if format == "" {
		format = sm.ExportCsv
	}

	order := exportOrder(req.CorrelationMatrix, req.Assets)
	filename := fmt.Sprintf("correlation_matrix_%s.%s", now.Format("20060102_150405"), format)

	switch format {
	case sm.ExportCsv:
		content, err := matrixCsv(req.CorrelationMatrix, order)
		if err != nil {
			return ExportResult{}, err
		}
		return ExportResult{Csv: content, Filename: filename, Format: format}, nil
	case sm.ExportXlsx:
		content, err := matrixXlsx(req.CorrelationMatrix, order)
		if err != nil {
			return ExportResult{}, err
		}
		return ExportResult{Content: base64.StdEncoding.EncodeToString(content), Filename: filename, Format: format}, nil
	default:
		return ExportResult{}, fmt.Errorf("unsupported export format %q", format)
	}
}

func exportOrder(matrix map[string]map[string]float64, assets []string) []string {
	present := make(map[string]struct{})
	for a, row := range matrix {
		present[a] = struct{}{}
		for b := range row {
			present[b] = struct{}{}
		}
	}

	order := ex.Dedupe(ex.FilterMultiple(assets, func(a string) bool {
		_, ok := present[a]
		return ok
	}))

	var rest []string
	for a := range present {
		if !slices.Contains(order, a) {
			rest = append(rest, a)
		}
	}
	slices.Sort(rest)

	return append(order, rest...)
}

// cell reads matrix[column][row], falling back to the mirrored entry.
func cell(matrix map[string]map[string]float64, row, column string) (float64, bool) {
	if v, ok := matrix[column][row]; ok {
		return v, true
	}
	v, ok := matrix[row][column]
	return v, ok
}

func matrixCsv(matrix map[string]map[string]float64, order []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(append([]string{""}, order...)); err != nil {
		return "", fmt.Errorf("error writing csv header: %w", err)
	}
	for _, row := range order {
		record := make([]string, 0, len(order)+1)
		record = append(record, row)
		for _, column := range order {
			if v, ok := cell(matrix, row, column); ok {
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("error writing csv row %s: %w", row, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("error flushing csv: %w", err)
	}
	return buf.String(), nil
}

func matrixXlsx(matrix map[string]map[string]float64, order []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("error naming sheet: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return nil, fmt.Errorf("error creating number style: %w", err)
	}

	set := func(col, row int, value any) error {
		name, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(exportSheet, name, value)
	}

	for i, symbol := range order {
		if err := set(i+2, 1, symbol); err != nil {
			return nil, fmt.Errorf("error writing header: %w", err)
		}
		if err := set(1, i+2, symbol); err != nil {
			return nil, fmt.Errorf("error writing row label: %w", err)
		}
	}

	for r, row := range order {
		for c, column := range order {
			v, ok := cell(matrix, row, column)
			if !ok {
				continue
			}
			if err := set(c+2, r+2, v); err != nil {
				return nil, fmt.Errorf("error writing %s/%s: %w", row, column, err)
			}
		}
	}

	if len(order) > 0 {
		first, _ := excelize.CoordinatesToCellName(2, 2)
		last, _ := excelize.CoordinatesToCellName(len(order)+1, len(order)+1)
		if err := f.SetCellStyle(exportSheet, first, last, style); err != nil {
			return nil, fmt.Errorf("error styling matrix: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
