package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient uses one model for structured text and another for images.
type GeminiClient struct {
	cli        *genai.Client
	textModel  string
	imageModel string
}

func NewGeminiClient(ctx context.Context, apiKey, textModel, imageModel string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{cli: cli, textModel: textModel, imageModel: imageModel}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.textModel + "+" + g.imageModel }
func (g *GeminiClient) Close() error { return nil }

// GenerateJSON requests application/json constrained by the schema and
// validates the answer before returning it.
func (g *GeminiClient) GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if req.Schema != nil {
		cfg.ResponseSchema = toGenaiSchema(req.Schema)
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.textModel, toContents(req.Parts), cfg)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, p := range firstParts(resp) {
		sb.WriteString(p.Text)
	}
	txt := strings.TrimSpace(sb.String())
	if txt == "" {
		return nil, ErrInvalidJSON
	}
	raw := json.RawMessage(txt)
	if err := req.Schema.Validate(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GenerateImage returns the first inline image of the response.
func (g *GeminiClient) GenerateImage(ctx context.Context, req ImageRequest) (Image, error) {
	cfg := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}
	resp, err := g.cli.Models.GenerateContent(ctx, g.imageModel, toContents(req.Parts), cfg)
	if err != nil {
		return Image{}, err
	}
	for _, p := range firstParts(resp) {
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return Image{MIMEType: mime, Data: p.InlineData.Data}, nil
		}
	}
	return Image{}, ErrNoImage
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

func toContents(parts []Part) []*genai.Content {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: p.Image.MIMEType, Data: p.Image.Data}})
			continue
		}
		out = append(out, &genai.Part{Text: p.Text})
	}
	return []*genai.Content{{Role: "user", Parts: out}}
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGenaiSchema(v)
		}
		out.PropertyOrdering = s.Order
	}
	if s.MinItems != nil {
		n := int64(*s.MinItems)
		out.MinItems = &n
	}
	if s.MaxItems != nil {
		n := int64(*s.MaxItems)
		out.MaxItems = &n
	}
	return out
}

func genaiType(t Type) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeNumber:
		return genai.TypeNumber
	case TypeInteger:
		return genai.TypeInteger
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
