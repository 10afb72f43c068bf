// Package compose asks the image model for one photorealistic picture of an
// assembled jewelry piece, either from a flat canvas snapshot (holistic) or
// from the base image and each charm image with coordinates (structured).
package compose

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"charmstudio/internal/apperr"
	"charmstudio/internal/datauri"
	"charmstudio/internal/llm"
	"charmstudio/internal/placement"
	"charmstudio/internal/prompt"
)

// Variant selects the composition strategy.
type Variant string

const (
	VariantHolistic   Variant = "holistic"
	VariantStructured Variant = "structured"
)

func (v Variant) Valid() bool { return v == VariantHolistic || v == VariantStructured }

// CharmPlacement is one charm to render with its own image and position.
type CharmPlacement struct {
	Name      string  `json:"name"`
	ImageRef  string  `json:"image"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation,omitempty"`
	WithClasp bool    `json:"with_clasp,omitempty"`
}

// Input is shared by both variants. Holistic reads Snapshot, structured reads
// BaseImage. UserContext only ever shapes the scene.
type Input struct {
	ModelName   string           `json:"model_name"`
	JewelryType string           `json:"jewelry_type"`
	Snapshot    string           `json:"snapshot,omitempty"`
	BaseImage   string           `json:"base_image,omitempty"`
	Charms      []CharmPlacement `json:"charms"`
	UserContext string           `json:"user_context,omitempty"`
}

// Output is exactly one image.
type Output struct {
	Image   llm.Image `json:"-"`
	DataURI string    `json:"image"`
}

type Service struct {
	client   llm.Client
	resolver Resolver
	log      *zap.Logger
}

func New(client llm.Client, resolver Resolver, logger *zap.Logger) *Service {
	if resolver == nil {
		resolver = NewHTTPResolver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, resolver: resolver, log: logger}
}

// Render dispatches on variant.
func (s *Service) Render(ctx context.Context, v Variant, in Input) (Output, error) {
	switch v {
	case VariantHolistic:
		return s.Holistic(ctx, in)
	case VariantStructured:
		return s.Structured(ctx, in)
	default:
		return Output{}, apperr.Validation("compose.Render", "unknown variant %q", v)
	}
}

// Holistic reinterprets a flat canvas preview as a studio photo.
func (s *Service) Holistic(ctx context.Context, in Input) (Output, error) {
	const op = "compose.Holistic"
	if err := validate(op, in); err != nil {
		return Output{}, err
	}
	snap, err := s.resolve(ctx, op, "snapshot", in.Snapshot)
	if err != nil {
		return Output{}, err
	}

	var b prompt.Builder
	b.Section("PURPOSE", "Turn the attached flat preview of a custom "+describePiece(in)+" into a photorealistic studio product photo.")
	names := make([]string, 0, len(in.Charms))
	for _, c := range in.Charms {
		names = append(names, c.Name)
	}
	b.ListOr("CHARMS", names, "The piece carries no charms.")
	b.List("RULES", []string{
		"Keep every charm where the preview shows it.",
		fmt.Sprintf("Render exactly %d charm(s).", len(in.Charms)),
		"Soft single-source studio lighting.",
	})
	scene(&b, in.UserContext)

	return s.generate(ctx, op, []llm.Part{llm.TextPart(b.String()), llm.ImagePart(snap)})
}

// Structured sends the base image then every charm image with its exact
// target coordinates.
func (s *Service) Structured(ctx context.Context, in Input) (Output, error) {
	const op = "compose.Structured"
	if err := validate(op, in); err != nil {
		return Output{}, err
	}
	base, err := s.resolve(ctx, op, "base_image", in.BaseImage)
	if err != nil {
		return Output{}, err
	}
	charmImages := make([]llm.Image, len(in.Charms))
	for i, c := range in.Charms {
		img, err := s.resolve(ctx, op, fmt.Sprintf("charms[%d].image", i), c.ImageRef)
		if err != nil {
			return Output{}, err
		}
		charmImages[i] = img
	}

	var b prompt.Builder
	b.Section("PURPOSE", "Create one photorealistic studio photo of a custom "+describePiece(in)+". The first image is the bare base piece.")
	if len(in.Charms) == 0 {
		b.Section("CHARMS", "The piece carries no charms. Show the base piece alone with nothing added to it.")
	} else {
		b.Section("CHARMS", fmt.Sprintf("%d charm image(s) follow the base image, in this order:\n%s", len(in.Charms), charmLines(in.Charms)))
	}
	rules := []string{
		"Coordinates are percentages of the base image: x from the left edge, y from the top edge.",
		"Render each charm as a three-dimensional object hanging from a physical attachment loop on the chain or band, never as a flat sticker or overlay.",
		"Use one consistent light source for the base piece and every charm.",
		"Use a neutral studio background.",
		"Before answering, count the charms in your image. The count must equal " + fmt.Sprint(len(in.Charms)) + "; if it does not, redraw.",
	}
	b.List("RULES", rules)
	scene(&b, in.UserContext)

	parts := make([]llm.Part, 0, 2+2*len(in.Charms))
	parts = append(parts, llm.TextPart(b.String()), llm.ImagePart(base))
	for i, c := range in.Charms {
		parts = append(parts,
			llm.TextPart(fmt.Sprintf("Charm %d: %s at x=%.1f%%, y=%.1f%%.", i+1, c.Name, c.X, c.Y)),
			llm.ImagePart(charmImages[i]),
		)
	}
	return s.generate(ctx, op, parts)
}

func (s *Service) generate(ctx context.Context, op string, parts []llm.Part) (Output, error) {
	img, err := s.client.GenerateImage(ctx, llm.ImageRequest{Phase: "render", Parts: parts})
	if err != nil {
		s.log.Warn("image composition failed", zap.String("op", op), zap.Error(err))
		return Output{}, apperr.Wrap(apperr.KindImageGenerationFailed, op, err)
	}
	if len(img.Data) == 0 {
		return Output{}, apperr.Wrap(apperr.KindImageGenerationFailed, op, llm.ErrNoImage)
	}
	return Output{Image: img, DataURI: datauri.Encode(img.MIMEType, img.Data)}, nil
}

func (s *Service) resolve(ctx context.Context, op, field, ref string) (llm.Image, error) {
	if strings.TrimSpace(ref) == "" {
		return llm.Image{}, apperr.Validation(op, "%s is required", field)
	}
	img, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return llm.Image{}, &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: field + " could not be loaded", Err: err}
	}
	return img, nil
}

func validate(op string, in Input) error {
	for i, c := range in.Charms {
		if strings.TrimSpace(c.Name) == "" {
			return apperr.Validation(op, "charms[%d] has no name", i)
		}
		if !(placement.Position{X: c.X, Y: c.Y}).InRange() {
			return apperr.Validation(op, "charms[%d] position (%v, %v) is outside 0..100", i, c.X, c.Y)
		}
	}
	return nil
}

func describePiece(in Input) string {
	kind := strings.TrimSpace(in.JewelryType)
	if kind == "" {
		kind = "jewelry piece"
	}
	if m := strings.TrimSpace(in.ModelName); m != "" {
		return kind + " (" + m + ")"
	}
	return kind
}

func charmLines(charms []CharmPlacement) string {
	lines := make([]string, 0, len(charms))
	for i, c := range charms {
		line := fmt.Sprintf("%d. %s at x=%.1f%%, y=%.1f%%", i+1, c.Name, c.X, c.Y)
		if r := placement.NormalizeRotation(c.Rotation); r != 0 {
			line += fmt.Sprintf(", rotated %.0f degrees", r)
		}
		if c.WithClasp {
			line += ", hung with a lobster clasp"
		}
		lines = append(lines, line)
	}
	return prompt.List(lines)
}

// scene appends the caller's free text verbatim, fenced off from placement.
func scene(b *prompt.Builder, userContext string) {
	if strings.TrimSpace(userContext) == "" {
		return
	}
	b.Section("SCENE", userContext)
	b.Section("SCENE_RULES", "The SCENE text changes only the background and setting. It never changes the charm count, the charm positions or the piece itself.")
}
