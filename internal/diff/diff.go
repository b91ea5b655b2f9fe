// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"strings"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Stats counts changed lines.
type Stats struct {
	Additions int
	Deletions int
	Changes   int
}

// Patch contains the complete line diff between two texts
type Patch struct {
	Hunks []Hunk
	Stats Stats
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff generates a line-by-line diff between two texts. Line endings and
// trailing whitespace are normalized first, so the result only reflects
// visible changes.
func (e *Engine) Diff(oldText, newText string) *Patch {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	script := e.script(oldLines, newLines)
	patch := &Patch{Hunks: e.hunks(script)}

	for _, line := range script {
		switch line.Type {
		case Addition:
			patch.Stats.Additions++
		case Deletion:
			patch.Stats.Deletions++
		}
	}
	patch.Stats.Changes = patch.Stats.Additions + patch.Stats.Deletions
	return patch
}

// Empty reports whether the two texts were equal after normalization.
func (p *Patch) Empty() bool {
	return p.Stats.Changes == 0
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimRight(text, "\n \t")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return lines
}

// computeLCS creates a suffix matrix: matrix[i][j] is the length of the
// longest common subsequence of oldLines[i:] and newLines[j:].
func (e *Engine) computeLCS(oldLines, newLines []string) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

// script walks the LCS matrix front to back. Deletions are emitted before
// additions on ties so the output is stable for equal inputs.
func (e *Engine) script(oldLines, newLines []string) []Line {
	lcs := e.computeLCS(oldLines, newLines)
	out := make([]Line, 0, len(oldLines)+len(newLines))

	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && oldLines[i] == newLines[j]:
			out = append(out, Line{Type: Context, Content: oldLines[i], OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		case i < len(oldLines) && (j == len(newLines) || lcs[i+1][j] >= lcs[i][j+1]):
			out = append(out, Line{Type: Deletion, Content: oldLines[i], OldNum: i + 1, NewNum: j})
			i++
		default:
			out = append(out, Line{Type: Addition, Content: newLines[j], OldNum: i, NewNum: j + 1})
			j++
		}
	}
	return out
}

// hunks groups the edit script into hunks with surrounding context. Two
// change runs separated by at most twice the context size share a hunk.
func (e *Engine) hunks(script []Line) []Hunk {
	var hunks []Hunk
	c := e.contextLines

	i := 0
	for i < len(script) {
		for i < len(script) && script[i].Type == Context {
			i++
		}
		if i == len(script) {
			break
		}

		start := max(0, i-c)
		end := i
		j := i
		for j < len(script) {
			if script[j].Type != Context {
				j++
				end = j
				continue
			}
			k := j
			for k < len(script) && script[k].Type == Context {
				k++
			}
			if k == len(script) || k-j > 2*c {
				break
			}
			j = k
		}
		stop := min(len(script), end+c)

		hunks = append(hunks, newHunk(script[start:stop]))
		i = stop
	}
	return hunks
}

func newHunk(lines []Line) Hunk {
	h := Hunk{Lines: append([]Line(nil), lines...)}
	first := lines[0]
	for _, l := range lines {
		switch l.Type {
		case Context:
			h.OldLines++
			h.NewLines++
		case Deletion:
			h.OldLines++
		case Addition:
			h.NewLines++
		}
	}

	// Unified diff convention: an empty range starts at the line before it.
	h.OldStart = first.OldNum
	h.NewStart = first.NewNum
	if first.Type == Addition && h.OldLines > 0 {
		h.OldStart++
	}
	if first.Type == Deletion && h.NewLines > 0 {
		h.NewStart++
	}
	return h
}

// Format returns the unified-style text of the patch. Equal inputs give
// an empty string.
func (p *Patch) Format() string {
	var buf bytes.Buffer

	for _, hunk := range p.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStart, hunk.OldLines,
			hunk.NewStart, hunk.NewLines)

		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				buf.WriteString("+")
			case Deletion:
				buf.WriteString("-")
			case Context:
				buf.WriteString(" ")
			}
			buf.WriteString(line.Content)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}
