package render

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"charmstudio/internal/llm"
)

// MemoryStore keeps the most recent renders and serves them through the
// gateway at URLPrefix + id.
type MemoryStore struct {
	renders   *lru.Cache[string, llm.Image]
	urlPrefix string
}

const DefaultMemoryCapacity = 256

func NewMemoryStore(capacity int, urlPrefix string) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	c, err := lru.New[string, llm.Image](capacity)
	if err != nil {
		return nil, fmt.Errorf("init render cache: %w", err)
	}
	return &MemoryStore{renders: c, urlPrefix: urlPrefix}, nil
}

func (s *MemoryStore) Put(_ context.Context, _ string, img llm.Image) (Stored, error) {
	if len(img.Data) == 0 {
		return Stored{}, fmt.Errorf("render is empty")
	}
	id := newID(img.MIMEType)
	s.renders.Add(id, llm.Image{MIMEType: img.MIMEType, Data: append([]byte(nil), img.Data...)})
	return Stored{ID: id, URL: s.urlPrefix + id}, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (llm.Image, error) {
	img, ok := s.renders.Get(id)
	if !ok {
		return llm.Image{}, ErrNotFound
	}
	return img, nil
}
