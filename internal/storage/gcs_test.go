package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObject_URI(t *testing.T) {
	o := Object{Bucket: "voice-room", Name: "recordings/a.raw"}
	assert.Equal(t, "gs://voice-room/recordings/a.raw", o.URI())
}

func TestGCSUploader_ObjectURL(t *testing.T) {
	u := &GCSUploader{bucket: "voice-room", publicBaseURL: "https://cdn.example.com"}
	o := u.object("images/x.png")

	assert.Equal(t, "https://cdn.example.com/voice-room/images/x.png", o.URL)
	assert.Equal(t, "voice-room", o.Bucket)
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		original string
		prefixed string
		ext      string
	}{
		{"keeps extension", "images", "Photo.PNG", "images/", ".png"},
		{"windows path", "images/", `C:\Users\me\cat.jpg`, "images/", ".jpg"},
		{"no extension", "recordings", "blob", "recordings/", ""},
		{"no prefix", "", "a.webm", "", ".webm"},
		{"suspicious extension", "images", "a.png?x=1", "images/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ObjectName(tt.prefix, tt.original)
			assert.True(t, strings.HasPrefix(got, tt.prefixed), got)
			assert.True(t, strings.HasSuffix(got, tt.ext), got)
			base := strings.TrimSuffix(strings.TrimPrefix(got, tt.prefixed), tt.ext)
			assert.Len(t, base, 36)
		})
	}
}

func TestObjectName_Unique(t *testing.T) {
	assert.NotEqual(t, ObjectName("images", "a.png"), ObjectName("images", "a.png"))
}
