// Package audio converts inbound audio payloads into raw byte frames.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Normalize converts a client audio payload into a byte frame. Accepted
// shapes are raw bytes, base64 text (optionally a data URL), JSON numeric
// arrays and Node-style {"type":"Buffer","data":[...]} objects, either
// already decoded or as json.RawMessage.
//
// Corrupt base64 yields the longest decodable prefix. Unknown shapes
// return (nil, false). Normalize never panics.
func Normalize(payload any) ([]byte, bool) {
	switch p := payload.(type) {
	case nil:
		return nil, false
	case []byte:
		return p, true
	case string:
		return decodeBase64(p), true
	case json.RawMessage:
		return fromJSON(p)
	case []any:
		return fromNumbers(p), true
	case []float64:
		out := make([]byte, len(p))
		for i, v := range p {
			out[i] = byte(int64(v))
		}
		return out, true
	case []int:
		out := make([]byte, len(p))
		for i, v := range p {
			out[i] = byte(v)
		}
		return out, true
	case map[string]any:
		if data, ok := p["data"]; ok {
			return Normalize(data)
		}
		return nil, false
	default:
		return nil, false
	}
}

func fromJSON(raw json.RawMessage) ([]byte, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		return decodeBase64(s), true
	case '[':
		var nums []any
		if err := json.Unmarshal(raw, &nums); err != nil {
			return nil, false
		}
		return fromNumbers(nums), true
	case '{':
		var obj struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil || len(obj.Data) == 0 {
			return nil, false
		}
		return fromJSON(obj.Data)
	default:
		return nil, false
	}
}

// fromNumbers mirrors typed-array coercion: values wrap modulo 256 and
// non-numeric elements become zero.
func fromNumbers(values []any) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		switch n := v.(type) {
		case float64:
			out[i] = byte(int64(n))
		case int:
			out[i] = byte(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				out[i] = byte(int64(f))
			}
		}
	}
	return out
}

func decodeBase64(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	if strings.ContainsAny(s, " \t\r\n") {
		s = strings.Join(strings.Fields(s), "")
	}
	s = strings.TrimRight(s, "=")
	if s == "" {
		return nil
	}

	enc := base64.RawStdEncoding
	if strings.ContainsAny(s, "-_") {
		enc = base64.RawURLEncoding
	}

	buf := make([]byte, enc.DecodedLen(len(s)))
	n, _ := enc.Decode(buf, []byte(s))
	return buf[:n]
}
