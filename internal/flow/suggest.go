package flow

import (
	"context"
	"strings"

	"charmstudio/internal/apperr"
	"charmstudio/internal/llm"
	"charmstudio/internal/prompt"
)

const (
	MinSuggestions = 3
	MaxSuggestions = 5
)

// SuggestInput describes the piece being designed.
type SuggestInput struct {
	JewelryType    string   `json:"jewelry_type"`
	ExistingCharms []string `json:"existing_charms"`
	AllCharms      []string `json:"all_charms"`
	UserPreference string   `json:"user_preference,omitempty"`
}

// Suggestion proposes one charm at a percentage position on the canvas.
type Suggestion struct {
	Name          string  `json:"name"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Justification string  `json:"justification"`
}

type SuggestOutput struct {
	Suggestions []Suggestion `json:"suggestions"`
}

var suggestSchema = llm.Object("Charm suggestions for one jewelry piece.",
	llm.Field{Name: "suggestions", Schema: llm.Array("Between 3 and 5 suggestions.",
		llm.Object("One suggested charm.",
			llm.Field{Name: "name", Schema: llm.String("Exact charm name from the available list.")},
			llm.Field{Name: "x", Schema: llm.Number("Horizontal position in percent of the canvas width.", 0, 100)},
			llm.Field{Name: "y", Schema: llm.Number("Vertical position in percent of the canvas height.", 0, 100)},
			llm.Field{Name: "justification", Schema: llm.String("One or two sentences.")},
		), MinSuggestions, MaxSuggestions)},
)

// Suggest proposes 3 to 5 charms to add. A suggestion naming a charm that is
// already placed, or not in the catalog, fails the whole response.
func (s *Service) Suggest(ctx context.Context, in SuggestInput) (SuggestOutput, error) {
	const op = "flow.Suggest"
	jt := strings.TrimSpace(in.JewelryType)
	if jt == "" {
		return SuggestOutput{}, apperr.Validation(op, "jewelry type is required")
	}
	all := cleanNames(in.AllCharms)
	if len(all) == 0 {
		return SuggestOutput{}, apperr.Validation(op, "charm catalog is empty")
	}
	existing := cleanNames(in.ExistingCharms)
	placed := normalizedSet(existing)
	var available []string
	for _, n := range all {
		if _, ok := placed[normalizeName(n)]; !ok {
			available = append(available, n)
		}
	}
	if len(available) == 0 {
		return SuggestOutput{}, apperr.Validation(op, "every catalog charm is already placed")
	}

	req := llm.JSONRequest{
		Phase:  "suggest",
		Parts:  []llm.Part{llm.TextPart(suggestPrompt(jt, existing, available, strings.TrimSpace(in.UserPreference)))},
		Schema: suggestSchema,
	}
	var out SuggestOutput
	if err := s.generate(ctx, op, req, &out); err != nil {
		return SuggestOutput{}, err
	}

	allowed := normalizedSet(available)
	for i, sg := range out.Suggestions {
		key := normalizeName(sg.Name)
		if _, ok := placed[key]; ok {
			return SuggestOutput{}, rejectOutput(op, "suggestion %d repeats placed charm %q", i, sg.Name)
		}
		canonical, ok := allowed[key]
		if !ok {
			return SuggestOutput{}, rejectOutput(op, "suggestion %d names unknown charm %q", i, sg.Name)
		}
		out.Suggestions[i].Name = canonical
		out.Suggestions[i].Justification = strings.TrimSpace(sg.Justification)
	}
	return out, nil
}

func suggestPrompt(jewelryType string, existing, available []string, preference string) string {
	var b prompt.Builder
	b.Section("PURPOSE", "You are a jewelry designer. Suggest charms to add to a "+jewelryType+" so the finished piece looks balanced and intentional.")
	b.ListOr("EXISTING_CHARMS", prompt.Quote(existing), "The piece has no charms yet. Propose a coherent starting set.")
	b.List("AVAILABLE_CHARMS", prompt.Quote(available))
	if preference != "" {
		b.Section("USER_PREFERENCE", preference)
	}
	rules := []string{
		"Suggest between 3 and 5 charms.",
		"Only use names copied exactly from AVAILABLE_CHARMS.",
		"Never suggest a charm listed in EXISTING_CHARMS.",
		"Positions are percentages of the canvas: x from 0 (left) to 100 (right), y from 0 (top) to 100 (bottom).",
		placementBias(jewelryType),
	}
	switch {
	case preference != "" && len(existing) > 0:
		rules = append(rules, "Each justification is one or two sentences and refers to the user preference or to the existing charms.")
	case preference != "":
		rules = append(rules, "Each justification is one or two sentences and refers to the user preference.")
	case len(existing) > 0:
		rules = append(rules, "Each justification is one or two sentences and refers to the existing charms.")
	default:
		rules = append(rules, "Each justification is one or two sentences.")
	}
	b.List("RULES", rules)
	b.Section("OUTPUT", prompt.Fields([]prompt.Field{
		{Name: "suggestions[].name", Type: "string", Required: true, Description: "charm name"},
		{Name: "suggestions[].x", Type: "number", Required: true, Description: "0 to 100"},
		{Name: "suggestions[].y", Type: "number", Required: true, Description: "0 to 100"},
		{Name: "suggestions[].justification", Type: "string", Required: true},
	}))
	b.Section("OUTPUT_FORMAT", "JSON only, no markdown.")
	return b.String()
}

// placementBias steers coordinates toward where the piece is worn.
func placementBias(jewelryType string) string {
	t := strings.ToLower(jewelryType)
	switch {
	case strings.Contains(t, "collier") || strings.Contains(t, "necklace"):
		return "Keep charms in the lower half of the canvas (y above 50), hanging along the chain."
	case strings.Contains(t, "bracelet"):
		return "Keep charms in the central horizontal band (y between 35 and 65), spread along the band."
	case strings.Contains(t, "boucle") || strings.Contains(t, "earring"):
		return "Keep charms below the hook (y above 40), close to the vertical center line."
	default:
		return "Place charms where they would hang naturally when the piece is worn."
	}
}
