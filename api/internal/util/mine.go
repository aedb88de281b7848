package util

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var ErrNotDataURL = errors.New("image must be a base64 data URL (data:image/<type>;base64,<payload>)")

func MakeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL decodes data:<mime>;base64,<payload>. Anything else, including
// bare base64, is rejected with ErrNotDataURL.
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, "", ErrNotDataURL
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return nil, "", ErrNotDataURL
	}
	meta := s[len("data:"):idx] // "<mime>;base64"
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, "", ErrNotDataURL
	}
	hintMIME := strings.TrimSpace(meta[:len(meta)-len(";base64")])

	payload := s[idx+1:]
	// Standard base64 first, then URL-safe and unpadded variants.
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(payload); err == nil {
			if len(b) == 0 {
				return nil, "", errors.New("image payload is empty")
			}
			return b, hintMIME, nil
		}
	}
	return nil, "", errors.New("image payload is not valid base64")
}

// PickMIME takes the explicit MIME, then the data URL hint, else sniffs the bytes.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "image/png"
}

func IsImageMIME(m string) bool {
	m = strings.ToLower(strings.TrimSpace(m))
	switch m {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}
