// Package llm is the model boundary: structured JSON generation and image
// generation behind one Client interface, with decorating middlewares.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidJSON means the model answered with something that is not JSON.
	ErrInvalidJSON = errors.New("llm: invalid JSON from model")
	// ErrNoImage means the image model answered without an image payload.
	ErrNoImage = errors.New("llm: no image in model response")
)

// Image is raw image bytes with their media type.
type Image struct {
	MIMEType string
	Data     []byte
}

// Part is one element of a multimodal prompt. Exactly one field is set.
type Part struct {
	Text  string
	Image *Image
}

func TextPart(s string) Part { return Part{Text: s} }
func ImagePart(img Image) Part { return Part{Image: &img} }
func (p Part) IsImage() bool { return p.Image != nil }

// JSONRequest asks the text model for output matching Schema.
type JSONRequest struct {
	// Phase labels the call in logs, e.g. "suggest" or "critique".
	Phase  string
	Parts  []Part
	Schema *Schema
}

// ImageRequest asks the image model for exactly one image.
type ImageRequest struct {
	Phase string
	Parts []Part
}

// Client talks to a model provider.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error)
	GenerateImage(ctx context.Context, req ImageRequest) (Image, error)
	Close() error
}

// promptBytes approximates the request size for logs without touching image data.
func promptBytes(parts []Part) (text, images int) {
	for _, p := range parts {
		if p.Image != nil {
			images += len(p.Image.Data)
			continue
		}
		text += len(p.Text)
	}
	return text, images
}
