package session

import (
	"testing"

	"voice-room-service/internal/models"
)

func TestPolicy_Accept(t *testing.T) {
	p := Policy{MinPartialChars: 10}

	tests := []struct {
		name   string
		result models.TranscriptResult
		want   bool
	}{
		{"short partial", models.TranscriptResult{Text: "hello", IsPartial: true}, false},
		{"partial at threshold", models.TranscriptResult{Text: "0123456789", IsPartial: true}, false},
		{"partial above threshold", models.TranscriptResult{Text: "0123456789a", IsPartial: true}, true},
		{"empty final", models.TranscriptResult{Text: ""}, true},
		{"short final", models.TranscriptResult{Text: "ok"}, true},
		{"multibyte partial counts runes", models.TranscriptResult{Text: "안녕하세요 여러분", IsPartial: true}, false},
		{"multibyte partial above threshold", models.TranscriptResult{Text: "안녕하세요 여러분 반갑습니다", IsPartial: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Accept(tt.result); got != tt.want {
				t.Errorf("Accept(%+v) = %v, want %v", tt.result, got, tt.want)
			}
		})
	}
}

func TestPolicy_ZeroThresholdForwardsNonEmptyPartials(t *testing.T) {
	p := Policy{}

	if p.Accept(models.TranscriptResult{Text: "", IsPartial: true}) {
		t.Error("expected empty partial to be suppressed")
	}
	if !p.Accept(models.TranscriptResult{Text: "a", IsPartial: true}) {
		t.Error("expected one-char partial to pass with zero threshold")
	}
}
