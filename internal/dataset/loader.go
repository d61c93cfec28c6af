// Package dataset reads the survey response spreadsheet into normalized
// records and keeps the loaded copy in an explicit process-wide cache.
package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

// Required column headers, matched case-insensitively.
const (
	ColDistrict  = "District"
	ColName      = "Name"
	ColQuestion  = "Question"
	ColResponses = "Responses"
	ColRemark    = "Remark"
)

var requiredColumns = []string{ColDistrict, ColName, ColQuestion, ColResponses, ColRemark}

// Result is the outcome of reading a dataset file.
type Result struct {
	Path    string
	Hash    string
	Records []model.ResponseRecord
}

// Load reads an .xlsx or .csv response file. For workbooks, sheet selects
// the worksheet; an empty sheet name selects the first one.
func Load(path, sheet string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.DataLoadError{Path: path, Reason: "read file", Err: err}
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(data, sheet)
	case ".csv":
		rows, err = readCSV(data)
	default:
		return nil, &model.DataLoadError{Path: path, Reason: "unsupported file type " + filepath.Ext(path)}
	}
	if err != nil {
		return nil, &model.DataLoadError{Path: path, Reason: "parse", Err: err}
	}

	records, err := parseRows(rows)
	if err != nil {
		return nil, &model.DataLoadError{Path: path, Reason: "columns", Err: err}
	}

	sum := sha256.Sum256(data)
	return &Result{
		Path:    path,
		Hash:    hex.EncodeToString(sum[:]),
		Records: records,
	}, nil
}

func readWorkbook(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// parseRows locates the header row and converts the remaining rows into
// normalized records. Fully blank rows are skipped.
func parseRows(rows [][]string) ([]model.ResponseRecord, error) {
	if len(rows) == 0 {
		return nil, errors.New("no header row")
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	var missing []string
	cols := make([]int, len(requiredColumns))
	for i, c := range requiredColumns {
		idx, ok := index[strings.ToLower(c)]
		if !ok {
			missing = append(missing, c)
		}
		cols[i] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	records := make([]model.ResponseRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(i int) string {
			if cols[i] < len(row) {
				return strings.TrimSpace(row[cols[i]])
			}
			return ""
		}
		rec := model.ResponseRecord{
			District: cell(0),
			Name:     cell(1),
			Question: cell(2),
			Response: cell(3),
			Remark:   strings.ToLower(cell(4)),
		}
		if rec == (model.ResponseRecord{}) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Districts returns the distinct districts in first-seen order.
func Districts(records []model.ResponseRecord) []string {
	return distinct(records, func(r model.ResponseRecord) string { return r.District })
}

// Participants returns the distinct participant keys in first-seen order.
func Participants(records []model.ResponseRecord) []string {
	return distinct(records, model.ResponseRecord.Participant)
}

func distinct(records []model.ResponseRecord, key func(model.ResponseRecord) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		k := key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
