package reconcilespeciesnames

import "species-checker/internal/reconcile"

// Input accepts either pasted text or an explicit name list. Names wins when
// both are set.
type Input struct {
	Text  string   `json:"text,omitempty"`
	Names []string `json:"names,omitempty"`
}

type Output struct {
	Rows     []reconcile.ResultRow `json:"rows"`
	RowCount int                   `json:"rowCount"`
	MinScore float64               `json:"minScore"`
	LowScore bool                  `json:"lowScore"`
	Mode     reconcile.Mode        `json:"mode"`
}
