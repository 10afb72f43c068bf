package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"charmstudio/internal/datauri"
	"charmstudio/internal/gateway/config"
	"charmstudio/internal/llm"
)

// demoPNG is a 1x1 image the offline client answers renders with.
const demoPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func newLLMClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (llm.Client, error) {
	var inner llm.Client
	switch {
	case cfg.Fake:
		fake, err := demoClient()
		if err != nil {
			return nil, err
		}
		inner = fake
	case cfg.APIKey == "":
		return nil, fmt.Errorf("GEMINI_API_KEY is required unless LLM_FAKE is set")
	default:
		g, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.TextModel, cfg.ImageModel)
		if err != nil {
			return nil, err
		}
		inner = g
	}
	logger.Info("llm client ready", zap.String("client", inner.Name()))
	return llm.Wrap(inner, llm.WithLogging(logger), llm.RateLimit(cfg.RPS, cfg.Burst)), nil
}

// demoClient answers every flow with canned content drawn from the seeded catalog.
func demoClient() (*llm.FakeClient, error) {
	mime, data, err := datauri.Decode(demoPNG, true)
	if err != nil {
		return nil, fmt.Errorf("demo image: %w", err)
	}
	f := llm.NewFakeClient()
	f.ScriptJSON("suggest", `{"suggestions":[
		{"name":"Star","x":30,"y":55,"justification":"Balances the left side of the chain."},
		{"name":"Moon","x":50,"y":70,"justification":"Anchors the centre as a pendant."},
		{"name":"Heart","x":70,"y":55,"justification":"Mirrors the star on the right."}]}`, nil)
	f.ScriptJSON("photo_analysis", `{"charm_names":["Star"]}`, nil)
	f.ScriptJSON("critique", `{"summary":"A balanced, airy composition.","strengths":["Symmetric spacing"],"improvements":["Add one accent charm near the clasp"]}`, nil)
	f.ScriptJSON("share_content", `{"title":"My celestial necklace","caption":"Designed charm by charm.","hashtags":["#charms","#jewelry","#handmade"]}`, nil)
	f.ScriptImage("render", llm.Image{MIMEType: mime, Data: data}, nil)
	return f, nil
}
