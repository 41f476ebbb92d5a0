package reconcile

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNames(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "two names", input: "Canis lupus\nFelis catus", expected: []string{"Canis lupus", "Felis catus"}},
		{name: "blank lines and padding", input: "\n  Canis lupus  \n\n\t\nFelis catus\n", expected: []string{"Canis lupus", "Felis catus"}},
		{name: "windows line endings", input: "Canis lupus\r\nFelis catus\r\n", expected: []string{"Canis lupus", "Felis catus"}},
		{name: "duplicates kept", input: "Canis lupus\nCanis lupus", expected: []string{"Canis lupus", "Canis lupus"}},
		{name: "only whitespace", input: " \n\t\n", expected: nil},
		{name: "empty", input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseNames(tt.input))
		})
	}
}

func TestNames_StopsEarly(t *testing.T) {
	var got []string
	for name := range Names("a\nb\nc") {
		got = append(got, name)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNames_Restartable(t *testing.T) {
	seq := Names("a\n\nb")
	assert.Equal(t, slices.Collect(seq), slices.Collect(seq))
}

func TestBatch_Partition(t *testing.T) {
	names := make([]string, 250)
	for i := range names {
		names[i] = strings.Repeat("x", i%7+1)
	}

	batches, err := Batch(names, 100)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 100)
	assert.Len(t, batches[2], 50)

	var joined []string
	for _, b := range batches {
		joined = append(joined, b...)
	}
	assert.Equal(t, names, joined)
}

func TestBatch_EdgeCases(t *testing.T) {
	batches, err := Batch(nil, 100)
	require.NoError(t, err)
	assert.Empty(t, batches)

	batches, err = Batch([]string{"a", "b"}, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, batches)

	_, err = Batch([]string{"a"}, 0)
	assert.Error(t, err)
}

func TestBatch_AppendDoesNotOverwriteNextBatch(t *testing.T) {
	names := []string{"a", "b", "c"}
	batches, err := Batch(names, 2)
	require.NoError(t, err)

	_ = append(batches[0], "z")
	assert.Equal(t, "c", batches[1][0])
}
