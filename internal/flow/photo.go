package flow

import (
	"context"

	"charmstudio/internal/apperr"
	"charmstudio/internal/llm"
	"charmstudio/internal/prompt"
)

// PhotoInput is a photo of a finished piece and the charms it may show.
type PhotoInput struct {
	Image      string   `json:"image"`
	Candidates []string `json:"candidates"`
}

// PhotoOutput lists the recognized candidates. It may be empty.
type PhotoOutput struct {
	CharmNames []string `json:"charm_names"`
}

// AnalyzePhoto identifies which candidate charms appear in a photo.
func (s *Service) AnalyzePhoto(ctx context.Context, in PhotoInput) (PhotoOutput, error) {
	const op = "flow.AnalyzePhoto"
	img, err := decodeImage(op, "image", in.Image)
	if err != nil {
		return PhotoOutput{}, err
	}
	candidates := cleanNames(in.Candidates)
	if len(candidates) == 0 {
		return PhotoOutput{}, apperr.Validation(op, "candidate list is empty")
	}

	var b prompt.Builder
	b.Section("PURPOSE", "Identify which of the candidate charms are visible on the jewelry in the attached photo.")
	b.List("CANDIDATES", prompt.Quote(candidates))
	b.List("RULES", []string{
		"Only answer names copied exactly from CANDIDATES.",
		"List a charm once even if it appears several times.",
		"Answer an empty list when no candidate is visible.",
	})
	b.Section("OUTPUT", prompt.Fields([]prompt.Field{{Name: "charm_names", Type: "[]string", Required: true}}))
	b.Section("OUTPUT_FORMAT", "JSON only, no markdown.")

	schema := llm.Object("Recognized charms.",
		llm.Field{Name: "charm_names", Schema: llm.Array("Candidate names visible in the photo.", llm.String("Candidate name."), 0, len(candidates))},
	)
	req := llm.JSONRequest{
		Phase:  "photo_analysis",
		Parts:  []llm.Part{llm.TextPart(b.String()), llm.ImagePart(img)},
		Schema: schema,
	}
	var out PhotoOutput
	if err := s.generate(ctx, op, req, &out); err != nil {
		return PhotoOutput{}, err
	}

	allowed := normalizedSet(candidates)
	seen := make(map[string]bool, len(out.CharmNames))
	names := make([]string, 0, len(out.CharmNames))
	for _, n := range out.CharmNames {
		key := normalizeName(n)
		canonical, ok := allowed[key]
		if !ok {
			return PhotoOutput{}, rejectOutput(op, "%q is not a candidate", n)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, canonical)
	}
	return PhotoOutput{CharmNames: names}, nil
}
