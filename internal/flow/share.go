package flow

import (
	"context"
	"strings"
	"unicode"

	"charmstudio/internal/llm"
	"charmstudio/internal/prompt"
)

const (
	MinHashtags = 3
	MaxHashtags = 8
)

// ShareInput is a finished design and the locale of the post.
type ShareInput struct {
	Image  string `json:"image"`
	Locale string `json:"locale"`
}

// ShareOutput is ready-to-post social content.
type ShareOutput struct {
	Title    string   `json:"title"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

var shareSchema = llm.Object("Social media post.",
	llm.Field{Name: "title", Schema: llm.String("Short title.")},
	llm.Field{Name: "caption", Schema: llm.String("One short paragraph.")},
	llm.Field{Name: "hashtags", Schema: llm.Array("Hashtags starting with #.", llm.String("One hashtag."), MinHashtags, MaxHashtags)},
)

// ShareContent writes a title, caption and hashtags for a design.
func (s *Service) ShareContent(ctx context.Context, in ShareInput) (ShareOutput, error) {
	const op = "flow.ShareContent"
	img, err := decodeImage(op, "image", in.Image)
	if err != nil {
		return ShareOutput{}, err
	}
	loc, err := ParseLocale(op, in.Locale)
	if err != nil {
		return ShareOutput{}, err
	}

	var b prompt.Builder
	b.Section("PURPOSE", "Write a social media post presenting the custom charm jewelry in the attached image.")
	b.List("RULES", []string{
		"The title has at most 8 words.",
		"The caption is one short paragraph without hashtags.",
		"Give between 3 and 8 hashtags, each starting with # and containing no spaces.",
	})
	b.Section("LANGUAGE", languageRule(loc))
	b.Section("OUTPUT", prompt.Fields([]prompt.Field{
		{Name: "title", Type: "string", Required: true},
		{Name: "caption", Type: "string", Required: true},
		{Name: "hashtags", Type: "[]string", Required: true},
	}))
	b.Section("OUTPUT_FORMAT", "JSON only, no markdown.")

	req := llm.JSONRequest{
		Phase:  "share_content",
		Parts:  []llm.Part{llm.TextPart(b.String()), llm.ImagePart(img)},
		Schema: shareSchema,
	}
	var out ShareOutput
	if err := s.generate(ctx, op, req, &out); err != nil {
		return ShareOutput{}, err
	}
	for i, h := range out.Hashtags {
		h = strings.TrimSpace(h)
		if !validHashtag(h) {
			return ShareOutput{}, rejectOutput(op, "hashtag %d %q is malformed", i, h)
		}
		out.Hashtags[i] = h
	}
	return out, nil
}

func validHashtag(h string) bool {
	body, ok := strings.CutPrefix(h, "#")
	if !ok || body == "" {
		return false
	}
	for _, r := range body {
		if unicode.IsSpace(r) || r == '#' {
			return false
		}
	}
	return true
}
