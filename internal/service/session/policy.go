package session

import (
	"unicode/utf8"

	"voice-room-service/internal/models"
)

// DefaultMinPartialChars is the partial length at or below which partials
// are held back.
const DefaultMinPartialChars = 10

// Policy decides which results are forwarded to the client.
// Finals always pass. Partials pass when their text is longer than
// MinPartialChars runes.
type Policy struct {
	MinPartialChars int
}

// Accept reports whether r should be forwarded.
func (p Policy) Accept(r models.TranscriptResult) bool {
	if !r.IsPartial {
		return true
	}
	return utf8.RuneCountInString(r.Text) > p.MinPartialChars
}
