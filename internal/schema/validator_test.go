package schema

import (
	"strings"
	"testing"

	"voice-room-service/internal/models"
)

type startRequest struct {
	LanguageCode string `validate:"omitempty,bcp47_language_tag"`
	RoomID       string `validate:"required,max=36"`
}

func TestValidate_Valid(t *testing.T) {
	v := New()

	if err := v.Validate(startRequest{LanguageCode: "ko-KR", RoomID: "r1"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	ev := models.TranscriptFinal{
		EventType:    models.EventTranscriptFinal,
		ConnectionID: "c1",
		SessionID:    "s1",
		Timestamp:    1,
		Confidence:   0.9,
	}
	if err := v.Validate(ev); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	v := New()

	err := v.Validate(startRequest{LanguageCode: "not a tag!"})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "LanguageCode") || !strings.Contains(msg, "RoomID") {
		t.Errorf("expected both fields in %q", msg)
	}
}

func TestValidate_ConfidenceRange(t *testing.T) {
	v := New()

	ev := models.TranscriptFinal{
		EventType:    models.EventTranscriptFinal,
		ConnectionID: "c1",
		SessionID:    "s1",
		Timestamp:    1,
		Confidence:   1.5,
	}
	if err := v.Validate(ev); err == nil {
		t.Error("expected confidence above 1 to fail")
	}
}
