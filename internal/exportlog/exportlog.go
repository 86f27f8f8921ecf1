package exportlog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one line of the export log.
type Row struct {
	Contract string `json:"contract"`
	Outcome  string `json:"outcome"`
}

// Load reads an export log from .xlsx (first sheet) or .csv. Columns are
// found by header: anything mentioning "contract" and "outcome".
func Load(path string) ([]Row, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported export log %q", path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	contractIdx, outcomeIdx := -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "contract") && contractIdx == -1:
			contractIdx = i
		case strings.Contains(l, "outcome") && outcomeIdx == -1:
			outcomeIdx = i
		}
	}
	if contractIdx == -1 || outcomeIdx == -1 {
		return nil, fmt.Errorf("export log header must name contract and outcome columns, got %v", rows[0])
	}

	var out []Row
	for _, r := range rows[1:] {
		var row Row
		if contractIdx < len(r) {
			row.Contract = strings.TrimSpace(r[contractIdx])
		}
		if outcomeIdx < len(r) {
			row.Outcome = strings.TrimSpace(r[outcomeIdx])
		}
		if row.Contract == "" {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// MissingOutcomes returns the distinct contracts with at least one row
// lacking an outcome, in first-seen order.
func MissingOutcomes(rows []Row) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if r.Outcome != "" || seen[r.Contract] {
			continue
		}
		seen[r.Contract] = true
		out = append(out, r.Contract)
	}
	return out
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

// KeyFile maps contract names to their evaluation-platform API keys.
type KeyFile struct {
	Keys []struct {
		Name string `json:"name"`
		Key  string `json:"key"`
	} `json:"keys"`
}

func LoadKeyFile(path string) (*KeyFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var kf KeyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	return &kf, nil
}

// Lookup returns the API key for contract.
func (k *KeyFile) Lookup(contract string) (string, error) {
	for _, e := range k.Keys {
		if e.Name == contract {
			return e.Key, nil
		}
	}
	return "", fmt.Errorf("API key not found for contract: %s", contract)
}
