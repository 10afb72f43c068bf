package flow

import (
	"context"
	"strings"

	"charmstudio/internal/llm"
	"charmstudio/internal/prompt"
)

// CritiqueInput is a design preview and the locale of the answer.
type CritiqueInput struct {
	Image  string `json:"image"`
	Locale string `json:"locale"`
}

type CritiqueOutput struct {
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

var critiqueSchema = llm.Object("Design critique.",
	llm.Field{Name: "summary", Schema: llm.String("Two or three sentences.")},
	llm.Field{Name: "strengths", Schema: llm.Array("What works.", llm.String("One strength."), 1, 5)},
	llm.Field{Name: "improvements", Schema: llm.Array("Concrete changes.", llm.String("One improvement."), 1, 5)},
)

// Critique reviews a design in the caller's locale.
func (s *Service) Critique(ctx context.Context, in CritiqueInput) (CritiqueOutput, error) {
	const op = "flow.Critique"
	img, err := decodeImage(op, "image", in.Image)
	if err != nil {
		return CritiqueOutput{}, err
	}
	loc, err := ParseLocale(op, in.Locale)
	if err != nil {
		return CritiqueOutput{}, err
	}

	var b prompt.Builder
	b.Section("PURPOSE", "You are a jewelry stylist. Critique the custom charm jewelry design in the attached image.")
	b.List("RULES", []string{
		"Judge balance, spacing, color harmony and how wearable the piece is.",
		"Improvements must be actionable: name what to move, add or remove.",
		"Be kind and specific.",
	})
	b.Section("LANGUAGE", languageRule(loc))
	b.Section("OUTPUT", prompt.Fields([]prompt.Field{
		{Name: "summary", Type: "string", Required: true},
		{Name: "strengths", Type: "[]string", Required: true, Description: "1 to 5 items"},
		{Name: "improvements", Type: "[]string", Required: true, Description: "1 to 5 items"},
	}))
	b.Section("OUTPUT_FORMAT", "JSON only, no markdown.")

	req := llm.JSONRequest{
		Phase:  "critique",
		Parts:  []llm.Part{llm.TextPart(b.String()), llm.ImagePart(img)},
		Schema: critiqueSchema,
	}
	var out CritiqueOutput
	if err := s.generate(ctx, op, req, &out); err != nil {
		return CritiqueOutput{}, err
	}
	out.Summary = strings.TrimSpace(out.Summary)
	return out, nil
}
