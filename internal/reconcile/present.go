package reconcile

const (
	DefaultPreviewSize    = 1000
	DefaultScoreThreshold = 90.0
)

// Mode says how a finished table is shown.
type Mode string

const (
	// ModeInline renders the whole table with a copy button.
	ModeInline Mode = "inline"
	// ModeDownload only offers the CSV file.
	ModeDownload Mode = "download"
)

type Presentation struct {
	Mode     Mode    `json:"mode"`
	RowCount int     `json:"rowCount"`
	MinScore float64 `json:"minScore"`
	LowScore bool    `json:"lowScore"`
}

// Selector chooses a Presentation from row count and minimum score.
type Selector struct {
	PreviewSize    int
	ScoreThreshold float64
}

func NewSelector(previewSize int, scoreThreshold float64) Selector {
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}
	if scoreThreshold <= 0 {
		scoreThreshold = DefaultScoreThreshold
	}
	return Selector{PreviewSize: previewSize, ScoreThreshold: scoreThreshold}
}

// Select returns inline mode up to PreviewSize rows and download mode above.
// LowScore is set when any row scores below ScoreThreshold; it never blocks
// either mode.
func (s Selector) Select(t *Table) Presentation {
	p := Presentation{
		Mode:     ModeInline,
		RowCount: t.Len(),
	}
	if p.RowCount > s.PreviewSize {
		p.Mode = ModeDownload
	}
	if lowest, ok := t.MinScore(); ok {
		p.MinScore = lowest
		p.LowScore = lowest < s.ScoreThreshold
	}
	return p
}
