package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeClient replays scripted answers per phase for offline runs and tests.
// Unscripted JSON phases answer "{}" and unscripted image phases fail
// with ErrNoImage. Requests are recorded in arrival order.
type FakeClient struct {
	mu       sync.Mutex
	json     map[string][]fakeJSON
	images   map[string][]fakeImage
	jsonReqs []JSONRequest
	imgReqs  []ImageRequest
}

type fakeJSON struct {
	raw json.RawMessage
	err error
}

type fakeImage struct {
	img Image
	err error
}

func NewFakeClient() *FakeClient {
	return &FakeClient{json: map[string][]fakeJSON{}, images: map[string][]fakeImage{}}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// ScriptJSON queues an answer for phase. The last queued answer repeats.
func (f *FakeClient) ScriptJSON(phase string, raw string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.json[phase] = append(f.json[phase], fakeJSON{raw: json.RawMessage(raw), err: err})
	return f
}

// ScriptImage queues an image answer for phase. The last queued answer repeats.
func (f *FakeClient) ScriptImage(phase string, img Image, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[phase] = append(f.images[phase], fakeImage{img: img, err: err})
	return f
}

func (f *FakeClient) GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.jsonReqs = append(f.jsonReqs, req)
	q := f.json[req.Phase]
	var a fakeJSON
	switch len(q) {
	case 0:
		a = fakeJSON{raw: json.RawMessage(`{}`)}
	case 1:
		a = q[0]
	default:
		a, f.json[req.Phase] = q[0], q[1:]
	}
	f.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	if err := req.Schema.Validate(a.raw); err != nil {
		return nil, err
	}
	return a.raw, nil
}

func (f *FakeClient) GenerateImage(ctx context.Context, req ImageRequest) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	f.mu.Lock()
	f.imgReqs = append(f.imgReqs, req)
	q := f.images[req.Phase]
	var a fakeImage
	switch len(q) {
	case 0:
		a = fakeImage{err: ErrNoImage}
	case 1:
		a = q[0]
	default:
		a, f.images[req.Phase] = q[0], q[1:]
	}
	f.mu.Unlock()
	return a.img, a.err
}

// JSONRequests returns the recorded structured requests.
func (f *FakeClient) JSONRequests() []JSONRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]JSONRequest(nil), f.jsonReqs...)
}

// ImageRequests returns the recorded image requests.
func (f *FakeClient) ImageRequests() []ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ImageRequest(nil), f.imgReqs...)
}
