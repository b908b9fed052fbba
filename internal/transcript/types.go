// Package transcript holds the shared transcription data model and the merge
// of speech-to-text segments with diarization turns into labelled lines.
package transcript

// Segment is a span of recognized text within one chunk
type Segment struct {
	// Start is the segment start in seconds from the beginning of the chunk
	Start float64 `json:"start"`

	// End is the segment end in seconds from the beginning of the chunk
	End float64 `json:"end"`

	// Text is the recognized text, as returned by the model
	Text string `json:"text"`
}

// SpeakerTurn is an interval attributed to one detected speaker
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Contains reports whether t falls inside the half-open turn interval [Start, End)
func (s SpeakerTurn) Contains(t float64) bool {
	return s.Start <= t && t < s.End
}

// Roles maps speaker IDs to display labels
type Roles map[string]string

// Line is a segment with its resolved role label
type Line struct {
	Segment
	Role string
}
