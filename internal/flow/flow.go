// Package flow turns validated structured input into validated structured
// model output. A flow never returns partial or guessed output: anything the
// model answers outside the declared schema fails with KindGenerationFailed.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"charmstudio/internal/apperr"
	"charmstudio/internal/datauri"
	"charmstudio/internal/llm"
)

// Service runs the suggestion, photo analysis, critique and share flows.
type Service struct {
	client llm.Client
	log    *zap.Logger
}

func New(client llm.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, log: logger}
}

// generate calls the model and decodes into out. Every failure after input
// validation is a generation failure.
func (s *Service) generate(ctx context.Context, op string, req llm.JSONRequest, out any) error {
	raw, err := s.client.GenerateJSON(ctx, req)
	if err != nil {
		s.log.Warn("flow generation failed", zap.String("flow", req.Phase), zap.Error(err))
		return apperr.Wrap(apperr.KindGenerationFailed, op, err)
	}
	if err := req.Schema.Decode(raw, out); err != nil {
		s.log.Warn("flow output rejected", zap.String("flow", req.Phase), zap.Error(err))
		return apperr.Wrap(apperr.KindGenerationFailed, op, err)
	}
	return nil
}

func rejectOutput(op, format string, args ...any) error {
	return &apperr.Error{Kind: apperr.KindGenerationFailed, Op: op, Message: fmt.Sprintf(format, args...), Err: llm.ErrSchemaMismatch}
}

// decodeImage accepts a base64 image data URI.
func decodeImage(op, field, uri string) (llm.Image, error) {
	if strings.TrimSpace(uri) == "" {
		return llm.Image{}, apperr.Validation(op, "%s is required", field)
	}
	mime, data, err := datauri.Decode(uri, true)
	if err != nil {
		return llm.Image{}, &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: field + " must be a base64 image data URI", Err: err}
	}
	return llm.Image{MIMEType: mime, Data: data}, nil
}

// Locale is a validated BCP 47 tag with the English name of its language.
type Locale struct {
	Tag  language.Tag
	Name string
}

func (l Locale) String() string { return l.Tag.String() }

// ParseLocale rejects tags x/text cannot parse or cannot name.
func ParseLocale(op, raw string) (Locale, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locale{}, apperr.Validation(op, "locale is required")
	}
	tag, err := language.Parse(raw)
	if err != nil {
		var verr interface{ Subtag() string }
		if errors.As(err, &verr) {
			return Locale{}, apperr.Validation(op, "locale %q has an unknown subtag %q", raw, verr.Subtag())
		}
		return Locale{}, apperr.Validation(op, "locale %q is not a valid language tag", raw)
	}
	base, conf := tag.Base()
	name := display.English.Languages().Name(base)
	if conf == language.No || name == "" {
		return Locale{}, apperr.Validation(op, "locale %q is not supported", raw)
	}
	return Locale{Tag: tag, Name: name}, nil
}

func languageRule(l Locale) string {
	return fmt.Sprintf("Write every human-readable field in %s (%s). Do not translate charm names.", l.Name, l.Tag)
}

func normalizedSet(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if k := normalizeName(n); k != "" {
			out[k] = strings.TrimSpace(n)
		}
	}
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		k := normalizeName(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(n))
	}
	return out
}
