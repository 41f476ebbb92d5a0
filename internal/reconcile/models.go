package reconcile

import (
	"encoding/json"
	"fmt"
)

// ScoreColumn is the first column of every result table.
const ScoreColumn = "Score"

// Columns are the attribute columns requested from the extend call, in display order.
var Columns = []string{
	"ValidScientificName",
	"ValidScientificNameId",
	"Kingdom",
	"Phylum",
	"Class",
	"Order",
	"Family",
	"Genus",
	"Species",
	"SubSpecies",
	"ValidScientificNameAuthorship",
	"PrefferedPopularname",
}

// Header returns Score followed by the attribute columns.
func Header() []string {
	return append([]string{ScoreColumn}, Columns...)
}

// MatchCandidate is the best candidate the service returned for one name.
type MatchCandidate struct {
	Name       string
	ExternalID string
	Score      float64
}

// ResultRow is one reconciled name. A column missing from Attributes had no
// value in the extend response.
type ResultRow struct {
	Score      float64
	Attributes map[string]string
}

// Value returns the attribute for column and whether it is present.
func (r ResultRow) Value(column string) (string, bool) {
	v, ok := r.Attributes[column]
	return v, ok
}

// MarshalJSON flattens the row into {"Score": 98, "Kingdom": "Animalia", ...}.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Attributes)+1)
	for k, v := range r.Attributes {
		flat[k] = v
	}
	flat[ScoreColumn] = r.Score
	return json.Marshal(flat)
}

func (r *ResultRow) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	r.Score = 0
	r.Attributes = make(map[string]string, len(flat))
	for k, raw := range flat {
		if k == ScoreColumn {
			if err := json.Unmarshal(raw, &r.Score); err != nil {
				return fmt.Errorf("decode %s: %w", ScoreColumn, err)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		r.Attributes[k] = s
	}
	return nil
}

// Table is the concatenation of all batch results in input order.
type Table struct {
	Rows []ResultRow `json:"rows"`
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// MinScore returns the lowest score, and false for an empty table.
func (t *Table) MinScore() (float64, bool) {
	if t.Len() == 0 {
		return 0, false
	}
	lowest := t.Rows[0].Score
	for _, row := range t.Rows[1:] {
		lowest = min(lowest, row.Score)
	}
	return lowest, true
}

// Progress is reported after each batch is merged into the table.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// ProgressFunc receives progress updates. Calls are never concurrent.
type ProgressFunc func(Progress)
