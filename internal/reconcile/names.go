package reconcile

import (
	"fmt"
	"iter"
	"strings"
)

// Names yields the trimmed, non-empty lines of text in input order.
func Names(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.Lines(text) {
			name := strings.TrimSpace(line)
			if name == "" {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

// ParseNames collects Names(text) into a slice.
func ParseNames(text string) []string {
	var names []string
	for name := range Names(text) {
		names = append(names, name)
	}
	return names
}

// Batch splits names into consecutive groups of size, the last one possibly shorter.
// The returned batches share names' backing array.
func Batch(names []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}

	batches := make([][]string, 0, (len(names)+size-1)/size)
	for start := 0; start < len(names); start += size {
		end := min(start+size, len(names))
		batches = append(batches, names[start:end:end])
	}
	return batches, nil
}
