package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// DownloadFilename is the name offered for CSV downloads.
const DownloadFilename = "arter.csv"

// Record returns the row as Score followed by every column, absent values empty.
func (r ResultRow) Record() []string {
	record := make([]string, 0, len(Columns)+1)
	record = append(record, FormatScore(r.Score))
	for _, col := range Columns {
		record = append(record, r.Attributes[col])
	}
	return record
}

// FormatScore prints whole scores without a fractional part.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// WriteCSV writes the header and one line per row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if t != nil {
		for i, row := range t.Rows {
			if err := cw.Write(row.Record()); err != nil {
				return fmt.Errorf("write csv row %d: %w", i, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable renders the table for a terminal.
func WriteTable(w io.Writer, t *Table) error {
	table := tablewriter.NewTable(w)

	header := Header()
	headers := make([]any, len(header))
	for i, h := range header {
		headers[i] = h
	}
	table.Header(headers...)

	if t != nil {
		for _, row := range t.Rows {
			record := row.Record()
			cells := make([]any, len(record))
			for i, c := range record {
				cells[i] = c
			}
			if err := table.Append(cells...); err != nil {
				return err
			}
		}
	}
	return table.Render()
}
