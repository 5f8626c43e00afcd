package audio

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Shapes(t *testing.T) {
	pcm := []byte{0x00, 0x01, 0xfe, 0xff, 0x10, 0x20}
	std := base64.StdEncoding.EncodeToString(pcm)

	tests := []struct {
		name    string
		payload any
		want    []byte
		ok      bool
	}{
		{"raw bytes", pcm, pcm, true},
		{"base64 padded", std, pcm, true},
		{"base64 unpadded", base64.RawStdEncoding.EncodeToString(pcm[:4]), pcm[:4], true},
		{"base64 url alphabet", base64.URLEncoding.EncodeToString(pcm), pcm, true},
		{"data url", "data:audio/pcm;base64," + std, pcm, true},
		{"base64 with newlines", std[:4] + "\n" + std[4:], pcm, true},
		{"json string", json.RawMessage(`"` + std + `"`), pcm, true},
		{"json array", json.RawMessage(`[0,1,254,255]`), []byte{0, 1, 254, 255}, true},
		{"node buffer", json.RawMessage(`{"type":"Buffer","data":[16,32]}`), []byte{16, 32}, true},
		{"decoded array", []any{float64(1), float64(2), float64(3)}, []byte{1, 2, 3}, true},
		{"float slice", []float64{7, 8}, []byte{7, 8}, true},
		{"int slice", []int{9, 10}, []byte{9, 10}, true},
		{"decoded node buffer", map[string]any{"type": "Buffer", "data": []any{float64(5)}}, []byte{5}, true},
		{"out of range wraps", []any{float64(256), float64(-1)}, []byte{0, 255}, true},
		{"non numeric element", []any{"x", float64(4)}, []byte{0, 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_UnknownShapes(t *testing.T) {
	for _, payload := range []any{nil, 42, true, struct{}{}, map[string]any{"foo": 1}, json.RawMessage(`null`), json.RawMessage(``)} {
		got, ok := Normalize(payload)
		assert.False(t, ok, "payload %#v", payload)
		assert.Empty(t, got)
	}
}

func TestNormalize_CorruptBase64KeepsPrefix(t *testing.T) {
	pcm := []byte("abcdefghi")
	enc := base64.StdEncoding.EncodeToString(pcm) // 12 chars, no padding

	got, ok := Normalize(enc[:8] + "!!!!")
	assert.True(t, ok)
	assert.Equal(t, pcm[:6], got)
}

func TestNormalize_NeverPanics(t *testing.T) {
	inputs := []any{
		"", "=", "====", "data:", "data:audio/wav;base64,", "\x00\xff", "a",
		json.RawMessage(`{`), json.RawMessage(`[`), json.RawMessage(`"unterminated`),
		json.RawMessage(`{"data":"AAE="}`), json.RawMessage(`{"data":{}}`),
		[]any{nil, map[string]any{}}, map[string]any{"data": nil},
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Normalize(in) }, "input %#v", in)
	}
}
