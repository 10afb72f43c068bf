package flow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"charmstudio/internal/apperr"
	"charmstudio/internal/datauri"
	"charmstudio/internal/llm"
)

var photo = datauri.Encode("image/png", []byte{0x89, 'P', 'N', 'G'})

func starInput() SuggestInput {
	return SuggestInput{
		JewelryType:    "Colliers",
		ExistingCharms: []string{"Star"},
		AllCharms:      []string{"Star", "Moon", "Heart"},
	}
}

func TestSuggestNeverReturnsExistingCharm(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("suggest", `{"suggestions":[
		{"name":"Moon","x":40,"y":70,"justification":"Pairs with the Star."},
		{"name":"heart","x":60,"y":72,"justification":"Echoes the Star."},
		{"name":"Moon","x":50,"y":80,"justification":"Balances the Star."}]}`, nil)
	out, err := New(fake, nil).Suggest(context.Background(), starInput())
	require.NoError(t, err)
	require.Len(t, out.Suggestions, 3)
	for _, s := range out.Suggestions {
		assert.NotEqual(t, "Star", s.Name)
	}
	assert.Equal(t, "Heart", out.Suggestions[1].Name, "names are canonicalized to the catalog spelling")

	reqs := fake.JSONRequests()
	require.Len(t, reqs, 1)
	text := reqs[0].Parts[0].Text
	assert.Contains(t, text, "[EXISTING_CHARMS]\n- \"Star\"")
	assert.NotContains(t, strings.SplitN(text, "[AVAILABLE_CHARMS]", 2)[1], `"Star"`)
	assert.Contains(t, text, "lower half of the canvas")
	assert.Contains(t, text, "refers to the existing charms")
}

func TestSuggestRejectsResponseNamingExistingCharm(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("suggest", `{"suggestions":[
		{"name":"Star","x":40,"y":70,"justification":"a"},
		{"name":"Moon","x":40,"y":70,"justification":"b"},
		{"name":"Heart","x":40,"y":70,"justification":"c"}]}`, nil)
	_, err := New(fake, nil).Suggest(context.Background(), starInput())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGenerationFailed))
}

func TestSuggestRejectsUnknownCharm(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("suggest", `{"suggestions":[
		{"name":"Dragon","x":40,"y":70,"justification":"a"},
		{"name":"Moon","x":40,"y":70,"justification":"b"},
		{"name":"Heart","x":40,"y":70,"justification":"c"}]}`, nil)
	_, err := New(fake, nil).Suggest(context.Background(), starInput())
	assert.True(t, apperr.Is(err, apperr.KindGenerationFailed))
}

func TestSuggestEmptyPieceBranch(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("suggest", `{"suggestions":[
		{"name":"Moon","x":40,"y":40,"justification":"a"},
		{"name":"Heart","x":50,"y":50,"justification":"b"},
		{"name":"Star","x":60,"y":50,"justification":"c"}]}`, nil)
	in := SuggestInput{JewelryType: "Bracelets", AllCharms: []string{"Star", "Moon", "Heart"}, UserPreference: "minimalist gold"}
	_, err := New(fake, nil).Suggest(context.Background(), in)
	require.NoError(t, err)

	text := fake.JSONRequests()[0].Parts[0].Text
	assert.Contains(t, text, "The piece has no charms yet.")
	assert.Contains(t, text, "[USER_PREFERENCE]\nminimalist gold")
	assert.Contains(t, text, "refers to the user preference.")
}

func TestSuggestFailures(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
		kind   apperr.Kind
		in     SuggestInput
	}{
		{name: "no jewelry type", in: SuggestInput{AllCharms: []string{"Moon"}}, kind: apperr.KindValidation},
		{name: "empty catalog", in: SuggestInput{JewelryType: "Colliers"}, kind: apperr.KindValidation},
		{name: "all placed", in: SuggestInput{JewelryType: "Colliers", ExistingCharms: []string{"Moon"}, AllCharms: []string{"moon"}}, kind: apperr.KindValidation},
		{name: "model error", in: starInput(), err: errors.New("quota"), kind: apperr.KindGenerationFailed},
		{name: "unparseable", in: starInput(), answer: `sorry, no`, kind: apperr.KindGenerationFailed},
		{name: "too few", in: starInput(), answer: `{"suggestions":[{"name":"Moon","x":1,"y":1,"justification":"a"}]}`, kind: apperr.KindGenerationFailed},
		{name: "out of range", in: starInput(), answer: `{"suggestions":[{"name":"Moon","x":140,"y":1,"justification":"a"},{"name":"Moon","x":1,"y":1,"justification":"a"},{"name":"Moon","x":1,"y":1,"justification":"a"}]}`, kind: apperr.KindGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := llm.NewFakeClient()
			if tt.answer != "" || tt.err != nil {
				fake.ScriptJSON("suggest", tt.answer, tt.err)
			}
			out, err := New(fake, nil).Suggest(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Empty(t, out.Suggestions)
		})
	}
}

func TestAnalyzePhoto(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("photo_analysis", `{"charm_names":["moon","Star","Moon"]}`, nil)
	out, err := New(fake, nil).AnalyzePhoto(context.Background(), PhotoInput{Image: photo, Candidates: []string{"Star", "Moon", "Heart"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Moon", "Star"}, out.CharmNames)

	req := fake.JSONRequests()[0]
	require.Len(t, req.Parts, 2)
	assert.True(t, req.Parts[1].IsImage())
	assert.Equal(t, "image/png", req.Parts[1].Image.MIMEType)
}

func TestAnalyzePhotoRejectsNonCandidate(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("photo_analysis", `{"charm_names":["Dragon"]}`, nil)
	_, err := New(fake, nil).AnalyzePhoto(context.Background(), PhotoInput{Image: photo, Candidates: []string{"Star"}})
	assert.True(t, apperr.Is(err, apperr.KindGenerationFailed))
}

func TestAnalyzePhotoValidatesImage(t *testing.T) {
	_, err := New(llm.NewFakeClient(), nil).AnalyzePhoto(context.Background(), PhotoInput{Image: "https://x/y.png", Candidates: []string{"Star"}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCritiqueCarriesLocale(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("critique", `{"summary":"Joli.","strengths":["Équilibre"],"improvements":["Ajouter une lune"]}`, nil)
	out, err := New(fake, nil).Critique(context.Background(), CritiqueInput{Image: photo, Locale: "fr-FR"})
	require.NoError(t, err)
	assert.Equal(t, "Joli.", out.Summary)
	assert.Contains(t, fake.JSONRequests()[0].Parts[0].Text, "in French (fr-FR)")
}

func TestCritiqueRejectsBadLocale(t *testing.T) {
	for _, loc := range []string{"", "not a locale", "xx-??"} {
		_, err := New(llm.NewFakeClient(), nil).Critique(context.Background(), CritiqueInput{Image: photo, Locale: loc})
		assert.True(t, apperr.Is(err, apperr.KindValidation), "locale %q: %v", loc, err)
	}
}

func TestShareContent(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("share_content", `{"title":"Ma création","caption":"Un collier unique.","hashtags":["#bijoux"," #charms","#fait_main"]}`, nil)
	out, err := New(fake, nil).ShareContent(context.Background(), ShareInput{Image: photo, Locale: "fr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"#bijoux", "#charms", "#fait_main"}, out.Hashtags)
}

func TestShareContentRejectsMalformedHashtag(t *testing.T) {
	fake := llm.NewFakeClient().ScriptJSON("share_content", `{"title":"T","caption":"C","hashtags":["#a","b","#c"]}`, nil)
	_, err := New(fake, nil).ShareContent(context.Background(), ShareInput{Image: photo, Locale: "en"})
	assert.True(t, apperr.Is(err, apperr.KindGenerationFailed))
}

// blockingClient holds every call until release is closed.
type blockingClient struct {
	*llm.FakeClient
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingClient) GenerateJSON(ctx context.Context, req llm.JSONRequest) (json.RawMessage, error) {
	b.calls.Add(1)
	<-b.release
	return b.FakeClient.GenerateJSON(ctx, req)
}

func TestConcurrentInvocationsDoNotInterfere(t *testing.T) {
	fake := llm.NewFakeClient().
		ScriptJSON("suggest", `{"suggestions":[{"name":"Moon","x":1,"y":60,"justification":"a"},{"name":"Heart","x":2,"y":60,"justification":"b"},{"name":"Moon","x":3,"y":60,"justification":"c"}]}`, nil).
		ScriptJSON("critique", `{"summary":"Nice.","strengths":["a"],"improvements":["b"]}`, nil)
	svc := New(fake, nil)

	var g errgroup.Group
	var sugg SuggestOutput
	var crit CritiqueOutput
	g.Go(func() error {
		var err error
		sugg, err = svc.Suggest(context.Background(), starInput())
		return err
	})
	g.Go(func() error {
		var err error
		crit, err = svc.Critique(context.Background(), CritiqueInput{Image: photo, Locale: "en-US"})
		return err
	})
	require.NoError(t, g.Wait())
	assert.Len(t, sugg.Suggestions, 3)
	assert.Equal(t, "Nice.", crit.Summary)
}

func TestInvocationSurvivesAbandonment(t *testing.T) {
	bc := &blockingClient{
		FakeClient: llm.NewFakeClient().ScriptJSON("critique", `{"summary":"Done.","strengths":["a"],"improvements":["b"]}`, nil),
		release:    make(chan struct{}),
	}
	svc := New(bc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	inv := Start(ctx, func(ctx context.Context) (CritiqueOutput, error) {
		return svc.Critique(ctx, CritiqueInput{Image: photo, Locale: "en"})
	})
	assert.Equal(t, StateRequesting, inv.State())

	cancel()
	_, err := inv.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(bc.release)
	select {
	case <-inv.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("invocation never finished")
	}
	res, err := inv.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "Done.", res.Output.Summary)
	assert.EqualValues(t, 1, bc.calls.Load())
}

func TestResultEnvelope(t *testing.T) {
	ok := Invoke(context.Background(), func(context.Context) (PhotoOutput, error) {
		return PhotoOutput{CharmNames: []string{"Star"}}, nil
	})
	b, err := ok.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"succeeded","output":{"charm_names":["Star"]}}`, string(b))

	failed := Invoke(context.Background(), func(context.Context) (PhotoOutput, error) {
		return PhotoOutput{}, apperr.New(apperr.KindGenerationFailed, "flow.AnalyzePhoto", "no output")
	})
	b, err = failed.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"failed","kind":"generation_failed","reason":"flow.AnalyzePhoto: no output"}`, string(b))
	assert.True(t, failed.State.Terminal())
}
