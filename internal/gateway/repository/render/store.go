package render

import (
	"context"
	"errors"
	"mime"
	"strings"

	"github.com/google/uuid"

	"charmstudio/internal/llm"
)

var ErrNotFound = errors.New("render: not found")

// Stored points at an archived render.
type Stored struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Store archives composed images. URL is the address a browser can load.
type Store interface {
	Put(ctx context.Context, ownerID string, img llm.Image) (Stored, error)
	Get(ctx context.Context, id string) (llm.Image, error)
}

func newID(mimeType string) string {
	ext := ".png"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return uuid.NewString() + ext
}

func validID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && !strings.ContainsAny(id, "/\\") && !strings.HasPrefix(id, ".")
}
