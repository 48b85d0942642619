package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndexSelection(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		total int
		want  []int
	}{
		{"singles and range", "1,3,5-7", 7, []int{0, 2, 4, 5, 6}},
		{"unsorted with duplicates", "3, 1 ,3,2-3", 5, []int{0, 1, 2}},
		{"blank tokens ignored", " ,2,, ", 2, []int{1}},
		{"empty input", "", 4, []int{}},
		{"whitespace input", "   ", 0, []int{}},
		{"single element range", "4-4", 4, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndexSelection(tt.text, tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIndexSelection_Errors(t *testing.T) {
	tests := []struct {
		text    string
		total   int
		wantMsg string
	}{
		{"a", 3, "invalid selection: invalid index token: a"},
		{"6", 5, "invalid selection: index out of bounds: 6"},
		{"0", 5, "invalid selection: index out of bounds: 0"},
		{"4-2", 5, "invalid selection: range start > end: 4-2"},
		{"3-9", 5, "invalid selection: range out of bounds: 3-9"},
		{"0-2", 5, "invalid selection: range out of bounds: 0-2"},
		{"1-x", 5, "invalid selection: invalid range token: 1-x"},
		{"-2", 5, "invalid selection: invalid range token: -2"},
		{"+1", 5, "invalid selection: invalid index token: +1"},
		{"1,2,7", 5, "invalid selection: index out of bounds: 7"},
		{"1", 0, "invalid selection: index out of bounds: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseIndexSelection(tt.text, tt.total)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrInvalidSelection)
			assert.EqualError(t, err, tt.wantMsg)
		})
	}
}

func TestParseIndexSelection_NegativeTotal(t *testing.T) {
	_, err := ParseIndexSelection("1", -1)
	assert.ErrorIs(t, err, ErrNegativeTotal)
}

func TestSummarize(t *testing.T) {
	selected, err := ParseIndexSelection("1,3,5-7", 8)
	require.NoError(t, err)

	res := Summarize(selected, 8)

	assert.Equal(t, []int{0, 2, 4, 5, 6}, res.SelectedIndices)
	assert.Equal(t, []int{1, 3, 5, 6, 7}, res.SelectedNumbers)
	assert.Equal(t, []int{2, 4, 8}, res.RejectedNumbers)
}

func TestSummarize_NothingSelected(t *testing.T) {
	res := Summarize([]int{}, 3)
	assert.Equal(t, []int{}, res.SelectedIndices)
	assert.Equal(t, []int{}, res.SelectedNumbers)
	assert.Equal(t, []int{1, 2, 3}, res.RejectedNumbers)
}
