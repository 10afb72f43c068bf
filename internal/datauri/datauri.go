// Package datauri encodes and decodes base64 "data:" URIs carrying images.
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("datauri: malformed data URI")

// Is reports whether s looks like a data URI.
func Is(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// Encode renders data as data:<mime>;base64,<payload>.
func Encode(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode parses a base64 data URI. Only image media types are accepted
// when imageOnly is set.
func Decode(uri string, imageOnly bool) (mime string, data []byte, err error) {
	uri = strings.TrimSpace(uri)
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrMalformed
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformed
	}
	mime, enc, ok := strings.Cut(meta, ";")
	if !ok || !strings.EqualFold(enc, "base64") {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformed)
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		return "", nil, fmt.Errorf("%w: missing media type", ErrMalformed)
	}
	if imageOnly && !strings.HasPrefix(mime, "image/") {
		return "", nil, fmt.Errorf("%w: %s is not an image", ErrMalformed, mime)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some browsers drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	return mime, data, nil
}
