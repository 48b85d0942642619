// Package selection parses index selections typed by a user reviewing a
// numbered candidate list, such as "1,3,5-7".
package selection

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNegativeTotal is returned when the candidate count is below zero.
	ErrNegativeTotal = errors.New("total must be >= 0")
	// ErrInvalidSelection wraps every malformed or out-of-range token.
	ErrInvalidSelection = errors.New("invalid selection")
)

// ParseIndexSelection parses comma-separated 1-based numbers and inclusive
// ranges into sorted, unique 0-based indexes. Every number must lie in
// [1, total]. The first bad token fails the whole call; nothing partial is
// returned. Blank input selects nothing.
func ParseIndexSelection(text string, total int) ([]int, error) {
	if total < 0 {
		return nil, ErrNegativeTotal
	}
	selected := make(map[int]struct{})
	for _, token := range strings.Split(text, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		start, end, err := parseToken(token, total)
		if err != nil {
			return nil, err
		}
		for n := start; n <= end; n++ {
			selected[n-1] = struct{}{}
		}
	}

	indexes := make([]int, 0, len(selected))
	for i := range selected {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes, nil
}

// parseToken returns the 1-based inclusive bounds named by token.
func parseToken(token string, total int) (int, int, error) {
	if left, right, isRange := strings.Cut(token, "-"); isRange {
		start, okStart := parseNumber(left)
		end, okEnd := parseNumber(right)
		if !okStart || !okEnd {
			return 0, 0, fmt.Errorf("%w: invalid range token: %s", ErrInvalidSelection, token)
		}
		if start > end {
			return 0, 0, fmt.Errorf("%w: range start > end: %s", ErrInvalidSelection, token)
		}
		if start < 1 || end > total {
			return 0, 0, fmt.Errorf("%w: range out of bounds: %s", ErrInvalidSelection, token)
		}
		return start, end, nil
	}

	n, ok := parseNumber(token)
	if !ok {
		return 0, 0, fmt.Errorf("%w: invalid index token: %s", ErrInvalidSelection, token)
	}
	if n < 1 || n > total {
		return 0, 0, fmt.Errorf("%w: index out of bounds: %s", ErrInvalidSelection, token)
	}
	return n, n, nil
}

// parseNumber accepts a non-empty run of ASCII digits.
func parseNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Result is the review outcome printed by the parse-selection command.
type Result struct {
	SelectedIndices []int `json:"selected_indices"`
	SelectedNumbers []int `json:"selected_numbers"`
	RejectedNumbers []int `json:"rejected_numbers"`
}

// Summarize splits 1..total into selected and rejected numbers given the
// 0-based indexes returned by ParseIndexSelection.
func Summarize(selected []int, total int) Result {
	res := Result{
		SelectedIndices: append([]int{}, selected...),
		SelectedNumbers: make([]int, 0, len(selected)),
		RejectedNumbers: []int{},
	}
	picked := make(map[int]struct{}, len(selected))
	for _, i := range selected {
		res.SelectedNumbers = append(res.SelectedNumbers, i+1)
		picked[i+1] = struct{}{}
	}
	for n := 1; n <= total; n++ {
		if _, ok := picked[n]; !ok {
			res.RejectedNumbers = append(res.RejectedNumbers, n)
		}
	}
	return res
}
