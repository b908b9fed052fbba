package transcript

import (
	"fmt"
	"strings"
)

// Document is the labelled transcript of one chunk
type Document struct {
	Lines []Line
}

// Merger aligns transcription segments with speaker turns
type Merger struct {
	assigner RoleAssigner
	unknown  string
}

// NewMerger creates a merger. A nil assigner means positional roles and an
// empty unknown label means UnknownRole.
func NewMerger(assigner RoleAssigner, unknown string) *Merger {
	if assigner == nil {
		assigner = NewPositionalRoles()
	}
	return &Merger{assigner: assigner, unknown: orDefault(unknown, UnknownRole)}
}

// Merge labels every segment with the role of the first turn whose interval
// contains the segment start. Without turns every line is unknown.
func (m *Merger) Merge(segments []Segment, turns []SpeakerTurn) Document {
	var roles Roles
	if len(turns) > 0 {
		roles = m.assigner.Assign(turns)
	}

	doc := Document{Lines: make([]Line, 0, len(segments))}
	for _, seg := range segments {
		role := m.unknown
		for _, turn := range turns {
			if turn.Contains(seg.Start) {
				if label, ok := roles[turn.Speaker]; ok {
					role = label
				}
				break
			}
		}
		doc.Lines = append(doc.Lines, Line{Segment: seg, Role: role})
	}
	return doc
}

// Merge is a convenience wrapper using UnknownRole
func Merge(segments []Segment, turns []SpeakerTurn, assigner RoleAssigner) Document {
	return NewMerger(assigner, UnknownRole).Merge(segments, turns)
}

// FormatLine renders one line as "[1.24s - 2.50s] (Interviewer): text"
func FormatLine(line Line) string {
	return fmt.Sprintf("[%.2fs - %.2fs] (%s): %s", line.Start, line.End, line.Role, line.Text)
}

// String renders the document, one block per line separated by a blank line
func (d Document) String() string {
	blocks := make([]string, len(d.Lines))
	for i, line := range d.Lines {
		blocks[i] = FormatLine(line)
	}
	return strings.Join(blocks, "\n\n")
}

// Roles returns the distinct role labels in order of first use
func (d Document) Roles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range d.Lines {
		if !seen[line.Role] {
			seen[line.Role] = true
			out = append(out, line.Role)
		}
	}
	return out
}
