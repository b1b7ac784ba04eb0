package domain

import "strings"

// DiffKind classifies one line of a comparison.
type DiffKind string

const (
	DiffAdded     DiffKind = "added"
	DiffRemoved   DiffKind = "removed"
	DiffUnchanged DiffKind = "unchanged"
)

// DiffLine is one unit of comparison output. LineNumber is the display line
// number for added and unchanged lines; removed lines do not consume a line
// slot and carry no number.
type DiffLine struct {
	Content    string   `json:"content"`
	Kind       DiffKind `json:"kind"`
	LineNumber int      `json:"line_number,omitempty"`
}

// DiffResult is an ordered sequence of classified lines plus aggregate counts.
type DiffResult struct {
	Lines        []DiffLine `json:"lines"`
	AddedCount   int        `json:"added_count"`
	RemovedCount int        `json:"removed_count"`
	HasChanges   bool       `json:"has_changes"`
}

// ComputeDiff computes a classified line-level diff between two texts using a
// longest-common-subsequence alignment. Line identity is positional, not
// content-keyed: reordered identical lines show up as insert/delete pairs.
// Unchanged and added lines are numbered from 1 in document order.
func ComputeDiff(oldText, newText string) DiffResult {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	// LCS length table; lcs[i][j] covers oldLines[i:] vs newLines[j:].
	lcs := make([][]int, len(oldLines)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(newLines)+1)
	}
	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	result := DiffResult{Lines: []DiffLine{}}
	lineNo := 0
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && oldLines[i] == newLines[j]:
			lineNo++
			result.Lines = append(result.Lines, DiffLine{
				Content:    oldLines[i],
				Kind:       DiffUnchanged,
				LineNumber: lineNo,
			})
			i++
			j++
		case j < len(newLines) && (i == len(oldLines) || lcs[i][j+1] > lcs[i+1][j]):
			lineNo++
			result.Lines = append(result.Lines, DiffLine{
				Content:    newLines[j],
				Kind:       DiffAdded,
				LineNumber: lineNo,
			})
			result.AddedCount++
			j++
		default:
			result.Lines = append(result.Lines, DiffLine{
				Content: oldLines[i],
				Kind:    DiffRemoved,
			})
			result.RemovedCount++
			i++
		}
	}

	result.HasChanges = result.AddedCount > 0 || result.RemovedCount > 0
	return result
}

// CountChanges is the coarse, content-based change summary used for badges:
// lines are treated as members of two unordered sets and the count is the
// number of lines present on one side but absent from the other. It is
// cheaper than ComputeDiff and intentionally disagrees with it on duplicated
// or reordered lines.
func CountChanges(oldText, newText string) int {
	oldSet := lineSet(splitLines(oldText))
	newSet := lineSet(splitLines(newText))

	count := 0
	for line := range oldSet {
		if _, ok := newSet[line]; !ok {
			count++
		}
	}
	for line := range newSet {
		if _, ok := oldSet[line]; !ok {
			count++
		}
	}
	return count
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

func lineSet(lines []string) map[string]struct{} {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		set[line] = struct{}{}
	}
	return set
}
